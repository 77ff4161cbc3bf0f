package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vidinsight/client/internal/apiclient"
	"github.com/vidinsight/client/internal/config"
	"github.com/vidinsight/client/internal/handlers"
	"github.com/vidinsight/client/internal/metrics"
	"github.com/vidinsight/client/internal/middleware"
	"github.com/vidinsight/client/internal/session"
	"github.com/vidinsight/client/internal/storage"
	"github.com/vidinsight/client/internal/submissions"
	"github.com/vidinsight/client/internal/videos"
	"github.com/vidinsight/client/internal/wallet"
)

// client bundles the stores the CLI commands drive.
type client struct {
	cfg         config.Config
	logger      *slog.Logger
	metrics     *metrics.Collector
	store       storage.Store
	api         *apiclient.Client
	session     *session.Manager
	submissions *submissions.Service
	wallet      *wallet.Service
	prober      videos.Prober
}

// buildClient wires the session, query caches and metadata prober for one
// CLI invocation. The returned cleanup releases storage connections.
func buildClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (*client, func(), error) {
	collector := metrics.NewCollector(prometheus.NewRegistry())

	store, err := storage.Open(ctx, cfg.StorageURL, storage.Options{Passphrase: cfg.StoragePassphrase})
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	cleanup := func() {
		if closer, ok := store.(storage.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("close storage", "error", err)
			}
		}
	}

	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("parse api base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create cookie jar: %w", err)
	}

	var mgr *session.Manager
	api, err := apiclient.New(cfg.APIBaseURL,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout, Jar: jar}),
		apiclient.WithTokenSource(apiclient.TokenFunc(func() string { return mgr.Token() })),
		apiclient.WithMetrics(collector),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	mgr = session.NewManager(api, store, session.JarSink{Jar: jar, URL: base})

	prober, err := buildProber(ctx, cfg, collector)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &client{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		store:   store,
		api:     api,
		session: mgr,
		submissions: submissions.NewService(api, submissions.Options{
			ListStaleTime:   cfg.ListStaleTime,
			DetailStaleTime: cfg.DetailStaleTime,
			Metrics:         collector,
		}),
		wallet: wallet.NewService(api, wallet.Options{
			StaleTime:    cfg.CreditsStaleTime,
			CostPerVideo: cfg.CreditsPerVideo,
			Metrics:      collector,
			OnBalance:    mgr.SetCredits,
		}),
		prober: prober,
	}, cleanup, nil
}

// signOut clears the session and marks every cached server response stale,
// so data fetched for the old token is never served as fresh.
func (c *client) signOut(ctx context.Context) error {
	err := c.session.Logout(ctx)
	c.submissions.InvalidateAll()
	c.wallet.InvalidateAll()
	return err
}

// buildProber layers the preview cache over the oEmbed prober, adding
// YouTube Data API enrichment when a key is configured.
func buildProber(ctx context.Context, cfg config.Config, rec metrics.Recorder) (videos.Prober, error) {
	opts := []videos.ProberOption{videos.WithProberMetrics(rec)}
	if cfg.AllowPrivateURLs {
		opts = append(opts, videos.WithProberHTTPClient(&http.Client{Timeout: cfg.OEmbedTimeout}))
	}
	if cfg.YouTubeAPIKey != "" {
		enricher, err := videos.NewYouTubeEnricher(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return nil, fmt.Errorf("create youtube enricher: %w", err)
		}
		opts = append(opts, videos.WithEnricher(enricher))
	}
	return videos.NewCachingProber(videos.NewOEmbedProber(cfg.OEmbedTimeout, opts...), cfg.PreviewCacheTTL), nil
}

// buildEdge wires the request-scoped collaborators of the edge server. Each
// callback gets its own session whose cookie lands on that response.
func buildEdge(cfg config.Config, started time.Time) (handlers.Dependencies, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	newAPI := func(tokens apiclient.TokenSource) (*apiclient.Client, error) {
		return apiclient.New(cfg.APIBaseURL,
			apiclient.WithHTTPClient(httpClient),
			apiclient.WithTokenSource(tokens),
			apiclient.WithMetrics(collector),
		)
	}

	oauth, err := newAPI(nil)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	sessions := func(w http.ResponseWriter, _ *http.Request) handlers.OAuthSession {
		var mgr *session.Manager
		api, err := newAPI(apiclient.TokenFunc(func() string { return mgr.Token() }))
		if err != nil {
			return nil
		}
		mgr = session.NewManager(api, storage.NewMemoryStore(), session.ResponseSink{W: w})
		return mgr
	}

	backends := func(token string) (handlers.Backend, error) {
		api, err := newAPI(apiclient.TokenFunc(func() string { return token }))
		if err != nil {
			return nil, err
		}
		return api, nil
	}

	return handlers.Dependencies{
		Sessions:     sessions,
		Backends:     backends,
		OAuth:        oauth,
		Limiter:      middleware.NewIPRateLimiter(cfg.CallbackRateLimit, cfg.CallbackRateWindow, 10*cfg.CallbackRateWindow),
		Metrics:      metrics.Handler(registry),
		CostPerVideo: cfg.CreditsPerVideo,
		PollInterval: cfg.StatusPollInterval,
		Started:      started,
	}, nil
}
