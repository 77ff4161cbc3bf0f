package submissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vidinsight/client/internal/logging"
	"github.com/vidinsight/client/internal/metrics"
	"github.com/vidinsight/client/internal/models"
	"github.com/vidinsight/client/internal/querycache"
)

var (
	// ErrMissingID indicates a detail or status request without an identifier.
	ErrMissingID = errors.New("video id is required")
	// ErrMissingURL indicates a submission without a video URL.
	ErrMissingURL = errors.New("video url is required")
)

// PlaceholderTitle is shown for a freshly submitted row until the server
// reports a title.
const PlaceholderTitle = "Processing..."

const listKey = "videos"

// API is the subset of the backend client used for submissions.
type API interface {
	SubmitVideo(ctx context.Context, videoURL string) (models.SubmitResult, error)
	ListVideos(ctx context.Context) (models.VideoList, error)
	GetVideo(ctx context.Context, id string) (models.Submission, error)
	GetVideoStatus(ctx context.Context, id string) (models.StatusProbe, error)
}

// Options tunes cache lifetimes.
type Options struct {
	ListStaleTime   time.Duration
	DetailStaleTime time.Duration
	Metrics         metrics.Recorder
}

// Service caches the submission list, details and status probes.
type Service struct {
	api  API
	opts Options
	now  func() time.Time

	list     *querycache.Cache[[]models.Submission]
	details  *querycache.Cache[models.Submission]
	statuses *querycache.Cache[models.StatusProbe]
}

// NewService constructs a Service. Zero stale times fall back to 30s for the
// list and one minute for details.
func NewService(api API, opts Options) *Service {
	if api == nil {
		panic("submissions: api must not be nil")
	}
	if opts.ListStaleTime <= 0 {
		opts.ListStaleTime = 30 * time.Second
	}
	if opts.DetailStaleTime <= 0 {
		opts.DetailStaleTime = time.Minute
	}
	return &Service{
		api:      api,
		opts:     opts,
		now:      time.Now,
		list:     querycache.New[[]models.Submission]("videos", opts.Metrics),
		details:  querycache.New[models.Submission]("video", opts.Metrics),
		statuses: querycache.New[models.StatusProbe]("video_status", opts.Metrics),
	}
}

// ListVideos returns the submission list, fetching it when stale.
func (s *Service) ListVideos(ctx context.Context) ([]models.Submission, error) {
	videos, err := s.list.Fetch(ctx, listKey, s.opts.ListStaleTime, func(ctx context.Context) ([]models.Submission, error) {
		ctx, span := logging.StartSpan(ctx, "submissions.list")
		defer span.End()

		resp, err := s.api.ListVideos(ctx)
		if err != nil {
			span.Fail(err)
			return nil, fmt.Errorf("list videos: %w", err)
		}
		return resp.Videos, nil
	})
	return cloneList(videos), err
}

// Focus refetches the list if it went stale while the view was away.
func (s *Service) Focus(ctx context.Context) ([]models.Submission, error) {
	return s.ListVideos(ctx)
}

// CachedList returns the list entry without touching the network.
func (s *Service) CachedList() (querycache.Entry[[]models.Submission], bool) {
	entry, ok := s.list.Get(listKey)
	entry.Value = cloneList(entry.Value)
	return entry, ok
}

// InvalidateAll marks the list, every detail and every status stale.
func (s *Service) InvalidateAll() {
	s.list.InvalidateAll()
	s.details.InvalidateAll()
	s.statuses.InvalidateAll()
}

// GetVideo returns the full payload for id, fetching it when stale.
func (s *Service) GetVideo(ctx context.Context, id string) (models.Submission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Submission{}, ErrMissingID
	}
	return s.details.Fetch(ctx, id, s.opts.DetailStaleTime, func(ctx context.Context) (models.Submission, error) {
		ctx, span := logging.StartSpan(ctx, "submissions.detail", slog.String("video_id", id))
		defer span.End()

		video, err := s.api.GetVideo(ctx, id)
		if err != nil {
			span.Fail(err)
			return models.Submission{}, fmt.Errorf("get video %s: %w", id, err)
		}
		return video, nil
	})
}

// RefreshVideo drops the cached detail for id and fetches it again.
func (s *Service) RefreshVideo(ctx context.Context, id string) (models.Submission, error) {
	s.details.Invalidate(id)
	return s.GetVideo(ctx, id)
}

// GetVideoStatus always asks the server for the status of id.
func (s *Service) GetVideoStatus(ctx context.Context, id string) (models.StatusProbe, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.StatusProbe{}, ErrMissingID
	}
	return s.statuses.Fetch(ctx, id, 0, func(ctx context.Context) (models.StatusProbe, error) {
		probe, err := s.api.GetVideoStatus(ctx, id)
		if err != nil {
			return models.StatusProbe{}, fmt.Errorf("get video status %s: %w", id, err)
		}
		return probe, nil
	})
}

// SubmitVideo posts videoURL. On success the list is invalidated and, when a
// list is cached, a placeholder row is put at its head until the next fetch
// replaces it. On failure the cache is left alone.
func (s *Service) SubmitVideo(ctx context.Context, videoURL string) (result models.SubmitResult, err error) {
	ctx, span := logging.StartSpan(ctx, "submissions.submit")
	defer func() {
		span.Fail(err)
		span.End()
	}()

	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return models.SubmitResult{}, ErrMissingURL
	}

	result, err = s.api.SubmitVideo(ctx, videoURL)
	if err != nil {
		return models.SubmitResult{}, fmt.Errorf("submit video: %w", err)
	}

	s.list.Invalidate(listKey)
	placeholder := s.placeholder(result)
	s.list.SetOptimistic(listKey, func(current []models.Submission, ok bool) ([]models.Submission, bool) {
		if !ok {
			return nil, false
		}
		next := make([]models.Submission, 0, len(current)+1)
		next = append(next, placeholder)
		return append(next, current...), true
	})

	logging.FromContext(ctx).Info("video submitted",
		slog.String("video_id", result.ID.String()),
		slog.String("status", string(result.Status)),
	)
	return result, nil
}

// UpdateStatus patches the cached detail and list row of id with status.
func (s *Service) UpdateStatus(id string, status models.SubmissionStatus) {
	s.details.Update(id, func(cur models.Submission, ok bool) (models.Submission, bool) {
		if !ok {
			return cur, false
		}
		cur.Status = status
		return cur, true
	})
	s.list.Update(listKey, func(cur []models.Submission, ok bool) ([]models.Submission, bool) {
		if !ok {
			return cur, false
		}
		next := cloneList(cur)
		changed := false
		for i := range next {
			if next[i].ID.String() == id && next[i].Status != status {
				next[i].Status = status
				changed = true
			}
		}
		return next, changed
	})
}

func (s *Service) placeholder(result models.SubmitResult) models.Submission {
	title := result.Message
	if title == "" {
		title = PlaceholderTitle
	}
	return models.Submission{
		ID:         result.ID,
		Title:      title,
		Status:     result.Status,
		CreatedAt:  s.now().UTC(),
		Platform:   string(models.PlatformUnknown),
		Summary:    models.Summary{Metrics: []models.SummaryMetric{}},
		Transcript: []models.TranscriptBlock{},
		Insights:   models.Insights{Chips: []models.InsightChip{}, Sections: []models.InsightSection{}},
	}
}

func cloneList(in []models.Submission) []models.Submission {
	if in == nil {
		return nil
	}
	return append([]models.Submission(nil), in...)
}
