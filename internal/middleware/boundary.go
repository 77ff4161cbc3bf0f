package middleware

import (
	"html/template"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/vidinsight/client/internal/logging"
)

// Redirect delays of the error pages.
const (
	PageErrorRedirect   = 8 * time.Second
	GlobalErrorRedirect = 10 * time.Second
	NotFoundRedirect    = 5 * time.Second
)

// ErrorPage describes an error screen with an automatic redirect home.
type ErrorPage struct {
	Status    int
	Title     string
	Message   string
	RetryPath string
	Redirect  time.Duration
}

var errorTemplate = template.Must(template.New("error").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Seconds}};url=/">
<title>{{.Title}}</title>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p>Redirecting to the home page in {{.Seconds}} seconds.</p>
<nav>
<a href="/">Go home</a>
{{if .RetryPath}}<a href="{{.RetryPath}}">Try again</a>{{end}}
</nav>
</main>
</body>
</html>
`))

// RenderErrorPage writes page as HTML.
func RenderErrorPage(w http.ResponseWriter, page ErrorPage) {
	if page.Status == 0 {
		page.Status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(page.Status)
	_ = errorTemplate.Execute(w, struct {
		ErrorPage
		Seconds int
	}{page, int(page.Redirect / time.Second)})
}

// PageBoundary recovers panics raised while rendering a page and shows a
// retryable error screen.
func PageBoundary(next http.Handler) http.Handler {
	return boundary(next, "page", func(r *http.Request) ErrorPage {
		return ErrorPage{
			Title:     "Something went wrong",
			Message:   "We could not load this page.",
			RetryPath: r.URL.RequestURI(),
			Redirect:  PageErrorRedirect,
		}
	})
}

// GlobalBoundary is the outermost panic recovery.
func GlobalBoundary(next http.Handler) http.Handler {
	return boundary(next, "global", func(r *http.Request) ErrorPage {
		return ErrorPage{
			Title:     "Application error",
			Message:   "An unexpected error occurred.",
			RetryPath: r.URL.RequestURI(),
			Redirect:  GlobalErrorRedirect,
		}
	})
}

func boundary(next http.Handler, scope string, page func(*http.Request) ErrorPage) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.FromContext(r.Context()).Error("panic recovered",
				slog.String("boundary", scope),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			RenderErrorPage(w, page(r))
		}()
		next.ServeHTTP(w, r)
	})
}
