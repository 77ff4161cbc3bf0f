package submissions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vidinsight/client/internal/logging"
	"github.com/vidinsight/client/internal/metrics"
	"github.com/vidinsight/client/internal/models"
)

const maxBackoffFactor = 16

// StatusUpdate is published after every poll. Detail is set once, when the
// video reached a terminal status and its full payload was fetched.
type StatusUpdate struct {
	ID       string
	Status   models.SubmissionStatus
	Progress *int
	Err      error
	Detail   *models.Submission
}

// Target is what the Poller polls and patches.
type Target interface {
	GetVideoStatus(ctx context.Context, id string) (models.StatusProbe, error)
	UpdateStatus(id string, status models.SubmissionStatus)
	RefreshVideo(ctx context.Context, id string) (models.Submission, error)
}

type subscription struct {
	cancel context.CancelFunc
}

// Poller runs one status subscription per non-terminal video.
type Poller struct {
	target   Target
	interval time.Duration
	listener func(StatusUpdate)
	metrics  metrics.Recorder
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[string]*subscription
	wg   sync.WaitGroup
	// base parents every subscription, including the final detail fetch of
	// one that already left subs. StopAll cancels it and installs a new one.
	base   context.Context
	cancel context.CancelFunc
}

// PollerConfig configures a Poller.
type PollerConfig struct {
	Interval time.Duration
	Listener func(StatusUpdate)
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// NewPoller constructs a Poller. The listener is called from the polling
// goroutines and must not call StopAll.
func NewPoller(target Target, cfg PollerConfig) *Poller {
	if target == nil {
		panic("submissions: poll target must not be nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Poller{
		target:   target,
		interval: cfg.Interval,
		listener: cfg.Listener,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		subs:     make(map[string]*subscription),
	}
	p.base, p.cancel = p.newBase()
	return p
}

func (p *Poller) newBase() (context.Context, context.CancelFunc) {
	return context.WithCancel(logging.WithLogger(context.Background(), p.logger))
}

// Start begins polling id. It does nothing for a terminal status or an id
// that is already polled, and reports whether a subscription was created.
func (p *Poller) Start(id string, status models.SubmissionStatus) bool {
	if id == "" || status.Terminal() {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subs[id]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(p.base)
	sub := &subscription{cancel: cancel}
	p.subs[id] = sub

	p.wg.Add(1)
	go p.run(ctx, id, sub)
	return true
}

// Stop cancels the subscription for id.
func (p *Poller) Stop(id string) {
	p.mu.Lock()
	sub, ok := p.subs[id]
	if ok {
		delete(p.subs, id)
	}
	p.mu.Unlock()
	if ok {
		sub.cancel()
	}
}

// StopAll cancels every subscription, including detail fetches already
// running for videos that reached a terminal status, and waits for the
// goroutines to exit. The Poller can be started again afterwards.
func (p *Poller) StopAll() {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[string]*subscription)
	cancelBase := p.cancel
	p.base, p.cancel = p.newBase()
	p.mu.Unlock()

	cancelBase()
	for _, sub := range subs {
		sub.cancel()
	}
	p.wg.Wait()
}

// Active reports whether id is being polled.
func (p *Poller) Active(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[id]
	return ok
}

// ActiveIDs returns the ids being polled.
func (p *Poller) ActiveIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	return ids
}

// Sync reconciles subscriptions with the visible rows: non-terminal rows are
// polled, everything else is stopped.
func (p *Poller) Sync(rows []models.Submission) {
	wanted := make(map[string]models.SubmissionStatus, len(rows))
	for _, row := range rows {
		if id := row.ID.String(); id != "" {
			wanted[id] = row.Status
		}
	}

	for _, id := range p.ActiveIDs() {
		status, ok := wanted[id]
		if !ok || status.Terminal() {
			p.Stop(id)
		}
	}
	for id, status := range wanted {
		p.Start(id, status)
	}
}

func (p *Poller) run(ctx context.Context, id string, sub *subscription) {
	defer p.wg.Done()
	defer p.release(id, sub)

	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	failures := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		probe, err := p.poll(ctx, id)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			p.metrics.RecordPoll("error")
			p.publish(StatusUpdate{ID: id, Err: err})
			if !sleep(ctx, p.backoff(failures)) {
				return
			}
			continue
		}
		failures = 0

		p.target.UpdateStatus(id, probe.Status)
		if !probe.Status.Terminal() {
			p.metrics.RecordPoll("ok")
			p.publish(StatusUpdate{ID: id, Status: probe.Status, Progress: probe.Progress})
			continue
		}

		p.metrics.RecordPoll("terminal")
		p.detach(id, sub)
		update := StatusUpdate{ID: id, Status: probe.Status, Progress: probe.Progress}
		detail, err := p.target.RefreshVideo(ctx, id)
		if err != nil {
			update.Err = err
		} else {
			update.Detail = &detail
		}
		p.publish(update)
		return
	}
}

func (p *Poller) poll(ctx context.Context, id string) (models.StatusProbe, error) {
	ctx, span := logging.StartSpan(ctx, "submissions.poll", slog.String("video_id", id))
	defer span.End()

	probe, err := p.target.GetVideoStatus(ctx, id)
	span.Fail(err)
	return probe, err
}

// backoff is the wait after the nth consecutive failure. It never drops
// below the poll interval.
func (p *Poller) backoff(failures int) time.Duration {
	factor := 1
	for i := 0; i < failures && factor < maxBackoffFactor; i++ {
		factor *= 2
	}
	if factor > maxBackoffFactor {
		factor = maxBackoffFactor
	}
	return time.Duration(factor) * p.interval
}

func (p *Poller) release(id string, sub *subscription) {
	p.detach(id, sub)
	sub.cancel()
}

func (p *Poller) detach(id string, sub *subscription) {
	p.mu.Lock()
	if current, ok := p.subs[id]; ok && current == sub {
		delete(p.subs, id)
	}
	p.mu.Unlock()
}

func (p *Poller) publish(update StatusUpdate) {
	if p.listener != nil {
		p.listener(update)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
