package handlers

import (
	"context"
	"net/http"

	"github.com/vidinsight/client/internal/apiclient"
	"github.com/vidinsight/client/internal/models"
)

// OAuthSession is the part of the session the callback drives.
type OAuthSession interface {
	SetOAuthSession(ctx context.Context, user *models.User, token string) error
	FetchProfile(ctx context.Context) error
}

// SessionFactory builds a request-scoped session whose cookies are written to w.
type SessionFactory func(w http.ResponseWriter, r *http.Request) OAuthSession

// Backend is the backend surface used to render pages.
type Backend interface {
	Profile(ctx context.Context) (models.User, error)
	ListVideos(ctx context.Context) (models.VideoList, error)
	GetVideo(ctx context.Context, id string) (models.Submission, error)
	Credits(ctx context.Context) (models.CreditsPage, error)
}

// BackendFactory returns a Backend authenticated with token.
type BackendFactory func(token string) (Backend, error)

// OAuthURLer resolves the backend URL that starts an OAuth flow.
type OAuthURLer interface {
	OAuthURL(provider apiclient.OAuthProvider) (string, error)
}
