package session

import (
	"net/http"
	"net/url"
	"time"
)

// TokenKey names both the storage entry and the cookie that carry the bearer token.
const TokenKey = "auth_token"

// CookieMaxAge is how long the mirrored token cookie lives in the browser.
const CookieMaxAge = 15 * 24 * time.Hour

// CookieSink receives the token cookie whenever the session token changes.
type CookieSink interface {
	SetCookie(cookie *http.Cookie)
}

// AuthCookie returns the cookie that mirrors token for the edge server.
func AuthCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     TokenKey,
		Value:    token,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns a cookie that removes the mirrored token.
func ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:    TokenKey,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0).UTC(),
		MaxAge:  -1,
	}
}

// ResponseSink writes cookies onto an HTTP response.
type ResponseSink struct {
	W http.ResponseWriter
}

// SetCookie implements CookieSink.
func (s ResponseSink) SetCookie(cookie *http.Cookie) {
	http.SetCookie(s.W, cookie)
}

// JarSink records cookies in a cookie jar scoped to the backend URL, so the
// CLI keeps the same cookie the browser would.
type JarSink struct {
	Jar http.CookieJar
	URL *url.URL
}

// SetCookie implements CookieSink.
func (s JarSink) SetCookie(cookie *http.Cookie) {
	if s.Jar == nil || s.URL == nil {
		return
	}
	s.Jar.SetCookies(s.URL, []*http.Cookie{cookie})
}

type nopSink struct{}

func (nopSink) SetCookie(*http.Cookie) {}
