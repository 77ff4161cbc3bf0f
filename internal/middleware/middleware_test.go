package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vidinsight/client/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateRedirects(t *testing.T) {
	gate := Gate(DefaultGateConfig(nil))(okHandler())

	cases := []struct {
		path     string
		location string
	}{
		{"/dashboard/", "/dashboard"},
		{"/home", "/"},
		{"/index", "/"},
		{"/main", "/"},
		{"/submission/abc", "/submissions/abc"},
		{"/wallet/?type=spend", "/wallet?type=spend"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "tok"})
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("%s: expected redirect, got %d", tc.path, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != tc.location {
			t.Fatalf("%s: expected location %s, got %s", tc.path, tc.location, got)
		}
	}
}

func TestGateProtectsPrivateRoutes(t *testing.T) {
	gate := Gate(DefaultGateConfig(nil))(okHandler())

	for _, path := range []string{"/dashboard", "/wallet", "/submissions/42"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
			t.Fatalf("%s: expected redirect home, got %d %s", path, rec.Code, rec.Header().Get("Location"))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "tok"})
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected cookie to pass the gate, got %d", rec.Code)
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Content-Security-Policy") != ContentSecurityPolicy {
		t.Fatalf("expected security headers, got %v", rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected bearer token to pass the gate, got %d", rec.Code)
	}
}

func TestTokenFromRequest(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"Bearer  abc ": "abc",
		"Bearer ":      "",
		"abc":          "",
		"Token abc":    "",
		"":             "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := TokenFromRequest(req); got != want {
			t.Errorf("TokenFromRequest(%q) = %q, want %q", header, got, want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer header")
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie"})
	if got := TokenFromRequest(req); got != "cookie" {
		t.Fatalf("expected cookie to win over header, got %q", got)
	}
}

func TestGatePublicAndUnknownRoutes(t *testing.T) {
	gate := Gate(DefaultGateConfig(nil))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?token=x", nil)
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected public route with headers, got %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/pricing", nil)
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Frame-Options") != "" {
		t.Fatalf("expected unknown route to pass untouched, got %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/public/", nil)
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected bypassed route not to redirect, got %d", rec.Code)
	}
}

func TestBoundariesRenderErrorPages(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	PageBoundary(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet?type=spend", nil))
	body := rec.Body.String()
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(body, `content="8;url=/"`) || !strings.Contains(body, "Go home") || !strings.Contains(body, "Try again") {
		t.Fatalf("unexpected page boundary body: %s", body)
	}
	if !strings.Contains(body, `href="/wallet?type=spend"`) {
		t.Fatalf("expected retry link to the failed page: %s", body)
	}

	rec = httptest.NewRecorder()
	GlobalBoundary(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), `content="10;url=/"`) {
		t.Fatalf("unexpected global boundary body: %s", rec.Body.String())
	}
}

func TestRenderErrorPageNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderErrorPage(rec, ErrorPage{Status: http.StatusNotFound, Title: "Page not found", Redirect: NotFoundRedirect})
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `content="5;url=/"`) {
		t.Fatalf("unexpected not found page %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "Try again") {
		t.Fatal("expected no retry link without a retry path")
	}
}

func TestRequestLoggerAttachesContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var requestID string
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if requestID != "req-123" {
		t.Fatalf("expected propagated request id, got %q", requestID)
	}
	if !strings.Contains(buf.String(), `"status":418`) || !strings.Contains(buf.String(), "request completed") {
		t.Fatalf("unexpected log output: %s", buf.String())
	}
}

func TestKeyedRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(2, time.Minute, time.Minute)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	if !limiter.Allow("1.1.1.1") || !limiter.Allow("1.1.1.1") {
		t.Fatal("expected burst of two to be allowed")
	}
	if limiter.Allow("1.1.1.1") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow("2.2.2.2") {
		t.Fatal("expected other keys to be independent")
	}

	current = current.Add(31 * time.Second)
	if !limiter.Allow("1.1.1.1") {
		t.Fatal("expected a token to refill after half the window")
	}

	current = current.Add(10 * time.Minute)
	limiter.Allow("3.3.3.3")
	if limiter.Tracked() != 1 {
		t.Fatalf("expected idle visitors swept, tracked=%d", limiter.Tracked())
	}
}
