package handlers

import (
	"net/http"

	"github.com/vidinsight/client/internal/apiclient"
	"github.com/vidinsight/client/internal/middleware"
	"github.com/vidinsight/client/internal/session"
)

// OAuthStartHandler sends the browser to the backend to begin an OAuth flow.
type OAuthStartHandler struct {
	URLs OAuthURLer
}

// ServeHTTP handles GET /auth/oauth/{provider}.
func (h OAuthStartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.URLs == nil {
		respondJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"error": "oauth unavailable"})
		return
	}
	target, err := h.URLs.OAuthURL(apiclient.OAuthProvider(r.PathValue("provider")))
	if err != nil {
		middleware.RenderErrorPage(w, middleware.ErrorPage{
			Status:   http.StatusNotFound,
			Title:    "Unknown sign-in provider",
			Message:  "Choose Google or Discord to sign in.",
			Redirect: middleware.NotFoundRedirect,
		})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// LogoutHandler clears the session cookie.
type LogoutHandler struct{}

// ServeHTTP handles GET and POST /auth/logout.
func (LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	http.SetCookie(w, session.ClearCookie())
	http.Redirect(w, r, "/", http.StatusFound)
}
