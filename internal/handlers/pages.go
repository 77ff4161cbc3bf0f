package handlers

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/vidinsight/client/internal/apiclient"
	"github.com/vidinsight/client/internal/logging"
	"github.com/vidinsight/client/internal/middleware"
	"github.com/vidinsight/client/internal/models"
	"github.com/vidinsight/client/internal/session"
	"github.com/vidinsight/client/internal/wallet"
)

const oauthFailedMessage = "Sign-in failed. Please try again."

type pageData struct {
	Title   string
	Refresh int
	User    *models.User
	Data    any
}

// PageHandler renders the server-side pages.
type PageHandler struct {
	Backends     BackendFactory
	CostPerVideo int
	PollInterval time.Duration
	Now          func() time.Time
}

// Home handles GET /.
func (h PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, homeTemplate, pageData{Title: "Home", Data: struct{ Error string }{}})
}

// Public handles GET /public.
func (h PageHandler) Public(w http.ResponseWriter, r *http.Request) {
	var msg string
	if r.URL.Query().Get("error") == "oauth_failed" {
		msg = oauthFailedMessage
	}
	h.render(w, r, homeTemplate, pageData{Title: "Welcome", Data: struct{ Error string }{msg}})
}

// Dashboard handles GET /dashboard and GET /submissions.
func (h PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	backend, ok := h.backend(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	list, err := backend.ListVideos(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	title := "Dashboard"
	if strings.HasPrefix(r.URL.Path, "/submissions") {
		title = "Submissions"
	}
	data := pageData{
		Title: title,
		User:  h.profile(ctx, backend),
		Data:  struct{ Videos []models.Submission }{list.Videos},
	}
	for _, v := range list.Videos {
		if !v.Status.Terminal() {
			data.Refresh = h.refreshSeconds()
			break
		}
	}
	h.render(w, r, listTemplate, data)
}

// Submission handles GET /submissions/{id}.
func (h PageHandler) Submission(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.NotFound(w, r)
		return
	}
	backend, ok := h.backend(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	video, err := backend.GetVideo(ctx, id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			h.NotFound(w, r)
			return
		}
		h.fail(w, r, err)
		return
	}

	data := pageData{
		Title: video.Title,
		User:  h.profile(ctx, backend),
		Data:  struct{ Video models.Submission }{video},
	}
	if !video.Status.Terminal() {
		data.Refresh = h.refreshSeconds()
	}
	h.render(w, r, detailTemplate, data)
}

// Wallet handles GET /wallet.
func (h PageHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	period := query.Get("period")
	if period == "" {
		period = string(wallet.Period30Days)
	}
	filter, err := wallet.ParseFilter(query.Get("type"), period)
	if err != nil {
		middleware.RenderErrorPage(w, middleware.ErrorPage{
			Status:    http.StatusBadRequest,
			Title:     "Invalid filter",
			Message:   err.Error(),
			RetryPath: "/wallet",
			Redirect:  middleware.PageErrorRedirect,
		})
		return
	}

	backend, ok := h.backend(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	credits, err := backend.Credits(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user := h.profile(ctx, backend)
	if user != nil {
		user.Credits = credits.Credits
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	h.render(w, r, walletTemplate, pageData{
		Title: "Wallet",
		User:  user,
		Data: struct {
			Summary      wallet.Summary
			Filter       wallet.Filter
			Types        []string
			Transactions []models.Transaction
			Total        int
		}{
			Summary:      wallet.Summarize(credits, h.CostPerVideo),
			Filter:       filter,
			Types:        []string{"all", "spend", "purchase", "refund"},
			Transactions: filter.Apply(credits.Transactions, now()),
			Total:        len(credits.Transactions),
		},
	})
}

// NotFound renders the 404 page.
func (h PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.RenderErrorPage(w, middleware.ErrorPage{
		Status:   http.StatusNotFound,
		Title:    "Page not found",
		Message:  "The page you are looking for does not exist.",
		Redirect: middleware.NotFoundRedirect,
	})
}

func (h PageHandler) backend(w http.ResponseWriter, r *http.Request) (Backend, bool) {
	token := middleware.TokenFromRequest(r)
	if token == "" || h.Backends == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return nil, false
	}
	backend, err := h.Backends(token)
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return backend, true
}

func (h PageHandler) profile(ctx context.Context, backend Backend) *models.User {
	user, err := backend.Profile(ctx)
	if err != nil {
		logging.FromContext(ctx).Debug("profile unavailable for page", "error", err)
		return nil
	}
	return &user
}

func (h PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apiclient.IsUnauthorized(err) {
		http.SetCookie(w, session.ClearCookie())
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	logging.FromContext(r.Context()).Error("page data unavailable", "path", r.URL.Path, "error", err)
	page := middleware.ErrorPage{
		Status:   http.StatusBadGateway,
		Title:    "Failed to load",
		Message:  "We could not reach the VidInsight service.",
		Redirect: middleware.PageErrorRedirect,
	}
	if apiclient.IsRetryable(err) {
		page.RetryPath = r.URL.RequestURI()
	}
	middleware.RenderErrorPage(w, page)
}

func (h PageHandler) refreshSeconds() int {
	interval := h.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return int(interval / time.Second)
}

func (h PageHandler) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}
