package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vidinsight/client/internal/apiclient"
	"github.com/vidinsight/client/internal/models"
	"github.com/vidinsight/client/internal/submissions"
	"github.com/vidinsight/client/internal/videos"
	"github.com/vidinsight/client/internal/view"
	"github.com/vidinsight/client/internal/wallet"
)

var (
	errNotSignedIn    = errors.New("not signed in: run `vidinsight login` first")
	errSessionExpired = errors.New("session expired: run `vidinsight login` again")
	errInvalidURL     = errors.New("please enter a valid YouTube, Vimeo, Twitter, or Instagram URL")
)

type command func(ctx context.Context, c *client, std streams, args []string) error

var commands = map[string]command{
	"login":     login,
	"signup":    signup,
	"logout":    logout,
	"whoami":    whoami,
	"oauth-url": oauthURL,
	"preview":   preview,
	"submit":    submit,
	"list":      list,
	"show":      show,
	"watch":     watch,
	"credits":   credits,
}

func login(ctx context.Context, c *client, std streams, args []string) error {
	return authenticate(ctx, c, std, "login", args, c.session.Login)
}

func signup(ctx context.Context, c *client, std streams, args []string) error {
	return authenticate(ctx, c, std, "signup", args, c.session.Signup)
}

func authenticate(
	ctx context.Context,
	c *client,
	std streams,
	name string,
	args []string,
	call func(ctx context.Context, email, password string) error,
) error {
	fs := newFlagSet(name, std.err)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := newPrompter(std)
	if *email == "" {
		value, err := p.line("Email: ")
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		*email = value
	}
	password, err := p.password("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	if err := call(ctx, *email, password); err != nil {
		return err
	}
	view.Session(std.out, c.session.State())
	return nil
}

func logout(ctx context.Context, c *client, std streams, _ []string) error {
	if err := c.signOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(std.out, view.LabelStyle.Render("Signed out"))
	return nil
}

func whoami(ctx context.Context, c *client, std streams, _ []string) error {
	if err := c.session.Bootstrap(ctx); err != nil {
		if apiclient.IsUnauthorized(err) {
			_ = c.signOut(ctx)
			return errSessionExpired
		}
		if c.session.Token() == "" {
			return err
		}
		c.logger.Debug("profile unavailable", "error", err)
	}
	view.Session(std.out, c.session.State())
	return nil
}

func oauthURL(_ context.Context, c *client, std streams, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: oauth-url <google|discord>")
	}
	target, err := c.api.OAuthURL(apiclient.OAuthProvider(strings.ToLower(args[0])))
	if err != nil {
		return err
	}
	fmt.Fprintln(std.out, target)
	return nil
}

func preview(ctx context.Context, c *client, std streams, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: preview <url>")
	}
	state, err := resolvePreview(ctx, c, args[0])
	if err != nil {
		return err
	}
	view.Preview(std.out, state)
	return nil
}

// resolvePreview drives the debounced preview controller with a single edit
// and waits for the probe it schedules.
func resolvePreview(ctx context.Context, c *client, rawURL string) (videos.PreviewState, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !videos.IsValidVideoURL(rawURL) {
		return videos.PreviewState{}, errInvalidURL
	}

	done := make(chan videos.PreviewState, 1)
	var once sync.Once
	var loading bool
	controller := videos.NewPreviewController(c.prober, c.cfg.DebounceWindow, func(s videos.PreviewState) {
		if s.Loading {
			loading = true
			return
		}
		if loading {
			once.Do(func() { done <- s })
		}
	})
	defer controller.Stop()

	controller.Input(rawURL)
	select {
	case state := <-done:
		return state, nil
	case <-ctx.Done():
		return videos.PreviewState{}, ctx.Err()
	}
}

func submit(ctx context.Context, c *client, std streams, args []string) error {
	fs := newFlagSet("submit", std.err)
	watchAfter := fs.Bool("watch", false, "poll the submission until it finishes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: submit [--watch] <url>")
	}
	rawURL := strings.TrimSpace(fs.Arg(0))

	if err := requireSession(ctx, c); err != nil {
		return err
	}

	state, err := resolvePreview(ctx, c, rawURL)
	if err != nil {
		return err
	}
	view.Preview(std.out, state)
	if !state.CanSubmit() {
		return errInvalidURL
	}

	result, err := c.submissions.SubmitVideo(ctx, rawURL)
	if err != nil {
		return checkSession(ctx, c, err)
	}
	c.wallet.Invalidate()
	view.Update(std.out, result.ID.String(), result.Status, nil, nil)
	if result.Message != "" {
		fmt.Fprintln(std.out, view.LabelStyle.Render(result.Message))
	}

	if !*watchAfter {
		return nil
	}
	return follow(ctx, c, std, map[string]models.SubmissionStatus{result.ID.String(): result.Status})
}

func list(ctx context.Context, c *client, std streams, _ []string) error {
	if err := requireSession(ctx, c); err != nil {
		return err
	}
	rows, err := c.submissions.ListVideos(ctx)
	if err != nil {
		return checkSession(ctx, c, err)
	}
	view.Submissions(std.out, rows)
	return nil
}

func show(ctx context.Context, c *client, std streams, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show <id>")
	}
	if err := requireSession(ctx, c); err != nil {
		return err
	}
	sub, err := c.submissions.GetVideo(ctx, args[0])
	if err != nil {
		return checkSession(ctx, c, err)
	}
	view.Submission(std.out, sub)
	return nil
}

func watch(ctx context.Context, c *client, std streams, args []string) error {
	if err := requireSession(ctx, c); err != nil {
		return err
	}
	rows, err := c.submissions.ListVideos(ctx)
	if err != nil {
		return checkSession(ctx, c, err)
	}

	wanted := make(map[string]bool, len(args))
	for _, id := range args {
		wanted[id] = true
	}
	targets := make(map[string]models.SubmissionStatus)
	for _, row := range rows {
		if len(wanted) > 0 && !wanted[row.ID.String()] {
			continue
		}
		if !row.Status.Terminal() {
			targets[row.ID.String()] = row.Status
		}
	}
	if len(targets) == 0 {
		fmt.Fprintln(std.out, view.LabelStyle.Render("Nothing to watch: every submission has finished."))
		return nil
	}
	return follow(ctx, c, std, targets)
}

// follow polls targets until each reaches a terminal status or the process
// is interrupted.
func follow(ctx context.Context, c *client, std streams, targets map[string]models.SubmissionStatus) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var outMu sync.Mutex
	tick := make(chan struct{}, 1)
	poller := submissions.NewPoller(c.submissions, submissions.PollerConfig{
		Interval: c.cfg.StatusPollInterval,
		Metrics:  c.metrics,
		Logger:   c.logger,
		Listener: func(u submissions.StatusUpdate) {
			outMu.Lock()
			printUpdate(std.out, u)
			outMu.Unlock()
			select {
			case tick <- struct{}{}:
			default:
			}
		},
	})
	defer poller.StopAll()

	for id, status := range targets {
		poller.Start(id, status)
	}

	recheck := time.NewTicker(time.Second)
	defer recheck.Stop()
	for len(poller.ActiveIDs()) > 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		case <-recheck.C:
		}
	}
	return nil
}

func printUpdate(w io.Writer, u submissions.StatusUpdate) {
	if u.Detail != nil {
		fmt.Fprintf(w, "%s finished: %s\n", u.ID, u.Detail.Title)
		return
	}
	view.Update(w, u.ID, u.Status, u.Progress, u.Err)
}

func credits(ctx context.Context, c *client, std streams, args []string) error {
	fs := newFlagSet("credits", std.err)
	txType := fs.String("type", "all", "transaction type: all, spend, purchase or refund")
	period := fs.String("period", string(wallet.Period30Days), "transaction period: all or 30days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, err := wallet.ParseFilter(*txType, *period)
	if err != nil {
		return err
	}

	if err := requireSession(ctx, c); err != nil {
		return err
	}
	page, err := c.wallet.GetCredits(ctx)
	if err != nil {
		return checkSession(ctx, c, err)
	}

	shown := filter.Apply(page.Transactions, time.Now())
	view.Credits(std.out, wallet.Summarize(page, c.cfg.CreditsPerVideo), shown, len(page.Transactions))
	return nil
}

func requireSession(ctx context.Context, c *client) error {
	if err := c.session.Bootstrap(ctx); err != nil {
		if apiclient.IsUnauthorized(err) {
			_ = c.signOut(ctx)
			return errSessionExpired
		}
		c.logger.Debug("session bootstrap incomplete", "error", err)
	}
	if c.session.Token() == "" {
		return errNotSignedIn
	}
	return nil
}

// checkSession turns a 401 into a cleared session and a login hint.
func checkSession(ctx context.Context, c *client, err error) error {
	if apiclient.IsUnauthorized(err) {
		_ = c.signOut(ctx)
		return errSessionExpired
	}
	return err
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
