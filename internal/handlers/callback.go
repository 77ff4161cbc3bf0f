package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vidinsight/client/internal/logging"
)

// CallbackOutcome names the branch the OAuth callback took.
type CallbackOutcome string

const (
	OutcomeToken CallbackOutcome = "token"
	OutcomeError CallbackOutcome = "error"
	OutcomeNone  CallbackOutcome = "none"
)

// Redirect targets of the OAuth callback.
const (
	RedirectDashboard   = "/dashboard"
	RedirectOAuthFailed = "/public?error=oauth_failed"
	RedirectPublic      = "/public"
)

// CallbackResult is the single transition made by one callback invocation.
type CallbackResult struct {
	Outcome  CallbackOutcome
	Redirect string
}

// CallbackHandler completes the OAuth redirect flow.
type CallbackHandler struct {
	Sessions SessionFactory
	Limiter  RateLimiter
}

// Resolve applies the callback query to sess. A token is persisted and the
// profile fetched on a best-effort basis; the redirect goes to the
// dashboard even when the profile fetch fails.
func (h CallbackHandler) Resolve(ctx context.Context, query url.Values, sess OAuthSession) CallbackResult {
	logger := logging.FromContext(ctx)

	token := query.Get("token")
	switch {
	case token != "":
		if sess == nil {
			logger.Error("oauth callback has no session")
			return CallbackResult{Outcome: OutcomeError, Redirect: RedirectOAuthFailed}
		}
		if err := sess.SetOAuthSession(ctx, nil, token); err != nil {
			logger.Error("persist oauth session", "error", err)
			return CallbackResult{Outcome: OutcomeError, Redirect: RedirectOAuthFailed}
		}
		if err := sess.FetchProfile(ctx); err != nil {
			logger.Warn("oauth profile fetch failed", "error", err)
		}
		return CallbackResult{Outcome: OutcomeToken, Redirect: RedirectDashboard}
	case query.Get("error") != "":
		logger.Warn("oauth provider returned an error", "error", query.Get("error"))
		return CallbackResult{Outcome: OutcomeError, Redirect: RedirectOAuthFailed}
	default:
		return CallbackResult{Outcome: OutcomeNone, Redirect: RedirectPublic}
	}
}

// ServeHTTP handles GET /auth/callback.
func (h CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !allowRequest(h.Limiter, r, "oauth-callback") {
		respondJSON(r.Context(), w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	var sess OAuthSession
	if h.Sessions != nil {
		sess = h.Sessions(w, r)
	}
	result := h.Resolve(r.Context(), r.URL.Query(), sess)
	http.Redirect(w, r, result.Redirect, http.StatusFound)
}
