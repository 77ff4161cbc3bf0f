package handlers

import (
	"net/http"
	"time"

	"github.com/vidinsight/client/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Sessions     SessionFactory
	Backends     BackendFactory
	OAuth        OAuthURLer
	Limiter      RateLimiter
	Metrics      http.Handler
	CostPerVideo int
	PollInterval time.Duration
	Started      time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Started: deps.Started}
	pages := PageHandler{Backends: deps.Backends, CostPerVideo: deps.CostPerVideo, PollInterval: deps.PollInterval}
	callback := CallbackHandler{Sessions: deps.Sessions, Limiter: deps.Limiter}

	mux.HandleFunc("GET /healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.Handle("/auth/callback", callback)
	mux.Handle("GET /auth/oauth/{provider}", OAuthStartHandler{URLs: deps.OAuth})
	mux.Handle("/auth/logout", LogoutHandler{})

	mux.Handle("GET /{$}", middleware.PageBoundary(http.HandlerFunc(pages.Home)))
	mux.Handle("GET /public", middleware.PageBoundary(http.HandlerFunc(pages.Public)))
	mux.Handle("GET /dashboard", middleware.PageBoundary(http.HandlerFunc(pages.Dashboard)))
	mux.Handle("GET /submissions", middleware.PageBoundary(http.HandlerFunc(pages.Dashboard)))
	mux.Handle("GET /submissions/{id}", middleware.PageBoundary(http.HandlerFunc(pages.Submission)))
	mux.Handle("GET /wallet", middleware.PageBoundary(http.HandlerFunc(pages.Wallet)))
	mux.HandleFunc("/", pages.NotFound)
}

// NewHandler builds the complete edge handler: routing, gate, panic
// boundary and request logging.
func NewHandler(deps Dependencies, gate middleware.GateConfig, logger func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	var h http.Handler = mux
	h = middleware.Gate(gate)(h)
	h = middleware.GlobalBoundary(h)
	if logger != nil {
		h = logger(h)
	}
	return h
}
