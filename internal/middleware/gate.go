package middleware

import (
	"net/http"
	"strings"

	"github.com/vidinsight/client/internal/session"
)

// ContentSecurityPolicy is sent on every page the gate lets through.
const ContentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-eval' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' data:; connect-src 'self' https:;"

var aliases = map[string]string{
	"/home":  "/",
	"/index": "/",
	"/main":  "/",
}

// GateConfig lists the route prefixes the gate knows about.
type GateConfig struct {
	Private []string
	Public  []string
	// Bypass prefixes skip the gate entirely.
	Bypass []string
}

// DefaultGateConfig mirrors the routes served by the edge server.
func DefaultGateConfig(private []string) GateConfig {
	if len(private) == 0 {
		private = []string{"/dashboard", "/wallet", "/submissions"}
	}
	return GateConfig{
		Private: private,
		Public:  []string{"/", "/auth", "/api/auth"},
		Bypass:  []string{"/api", "/public", "/favicon.ico", "/healthz", "/metrics"},
	}
}

// Gate normalizes legacy paths, keeps unauthenticated callers off private
// routes and stamps security headers on everything it lets through.
func Gate(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if matchesAny(path, cfg.Bypass, false) {
				next.ServeHTTP(w, r)
				return
			}

			if target, ok := rewrite(path); ok {
				u := *r.URL
				u.Path = target
				u.RawPath = ""
				http.Redirect(w, r, u.RequestURI(), http.StatusFound)
				return
			}

			private := matchesAny(path, cfg.Private, true)
			if !private && !matchesAny(path, cfg.Public, true) {
				next.ServeHTTP(w, r)
				return
			}
			if private && TokenFromRequest(r) == "" {
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}

			SecurityHeaders(w.Header())
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the response headers applied to gated pages.
func SecurityHeaders(h http.Header) {
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "origin-when-cross-origin")
	h.Set("Content-Security-Policy", ContentSecurityPolicy)
}

// TokenFromRequest returns the session token from the auth cookie or a
// bearer Authorization header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(session.TokenKey); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func rewrite(path string) (string, bool) {
	if path != "/" && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/"), true
	}
	if target, ok := aliases[path]; ok {
		return target, true
	}
	if strings.HasPrefix(path, "/submission/") {
		return "/submissions/" + strings.TrimPrefix(path, "/submission/"), true
	}
	return "", false
}

func matchesAny(path string, prefixes []string, exact bool) bool {
	for _, prefix := range prefixes {
		if prefix == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/") {
			return true
		}
		if !exact && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
