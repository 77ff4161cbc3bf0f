package apiclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/vidinsight/client/internal/models"
)

// Credentials is the body of the signup and login endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /auth/signup.
func (c *Client) Signup(ctx context.Context, creds Credentials) (models.AuthResult, error) {
	var out models.AuthResult
	if err := c.post(ctx, "/auth/signup", creds, &out); err != nil {
		return models.AuthResult{}, err
	}
	return out, nil
}

// Login handles POST /auth/login.
func (c *Client) Login(ctx context.Context, creds Credentials) (models.AuthResult, error) {
	var out models.AuthResult
	if err := c.post(ctx, "/auth/login", creds, &out); err != nil {
		return models.AuthResult{}, err
	}
	return out, nil
}

// Profile handles GET /user/profile.
func (c *Client) Profile(ctx context.Context) (models.User, error) {
	var out models.User
	if err := c.get(ctx, "/user/profile", &out); err != nil {
		return models.User{}, err
	}
	return out, nil
}

// Credits handles GET /credits.
func (c *Client) Credits(ctx context.Context) (models.CreditsPage, error) {
	var out models.CreditsPage
	if err := c.get(ctx, "/credits", &out); err != nil {
		return models.CreditsPage{}, err
	}
	return out, nil
}

// SubmitVideo handles POST /video.
func (c *Client) SubmitVideo(ctx context.Context, videoURL string) (models.SubmitResult, error) {
	var out models.SubmitResult
	body := struct {
		VideoURL string `json:"videoUrl"`
	}{VideoURL: videoURL}
	if err := c.post(ctx, "/video", body, &out); err != nil {
		return models.SubmitResult{}, err
	}
	return out, nil
}

// ListVideos handles GET /video.
func (c *Client) ListVideos(ctx context.Context) (models.VideoList, error) {
	var out models.VideoList
	if err := c.get(ctx, "/video", &out); err != nil {
		return models.VideoList{}, err
	}
	return out, nil
}

// GetVideo handles GET /video/{id}.
func (c *Client) GetVideo(ctx context.Context, id string) (models.Submission, error) {
	var out models.Submission
	if err := c.get(ctx, "/video/"+url.PathEscape(id), &out); err != nil {
		return models.Submission{}, err
	}
	return out, nil
}

// GetVideoStatus handles GET /video/{id}/status.
func (c *Client) GetVideoStatus(ctx context.Context, id string) (models.StatusProbe, error) {
	var out models.StatusProbe
	if err := c.get(ctx, "/video/"+url.PathEscape(id)+"/status", &out); err != nil {
		return models.StatusProbe{}, err
	}
	return out, nil
}

// OAuthProvider names an identity provider supported by the backend.
type OAuthProvider string

const (
	ProviderGoogle  OAuthProvider = "google"
	ProviderDiscord OAuthProvider = "discord"
)

// OAuthURL returns the backend URL that starts the redirect flow for provider.
func (c *Client) OAuthURL(provider OAuthProvider) (string, error) {
	switch provider {
	case ProviderGoogle, ProviderDiscord:
		return c.baseURL + "/auth/oauth/" + string(provider), nil
	default:
		return "", fmt.Errorf("apiclient: unsupported oauth provider %q", provider)
	}
}
