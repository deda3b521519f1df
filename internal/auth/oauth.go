// Package auth handles the GitHub OAuth login and the API session tokens
// issued after it.
package auth

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	apperrors "github.com/kurihiro0119/syscope/internal/errors"
)

// Scopes requested from GitHub. repo is needed to read private repositories
// and their collaborators.
var Scopes = []string{"repo", "read:user"}

// OAuth runs the GitHub authorization-code flow
type OAuth struct {
	config *oauth2.Config
}

// NewGitHubOAuth creates an OAuth flow against github.com
func NewGitHubOAuth(clientID, clientSecret, redirectURL string) *OAuth {
	return NewOAuth(&oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     github.Endpoint,
	})
}

// NewOAuth creates an OAuth flow from a prepared config
func NewOAuth(config *oauth2.Config) *OAuth {
	return &OAuth{config: config}
}

// NewState returns a random value to bind the callback to the login request
func NewState() string {
	return uuid.NewString()
}

// AuthCodeURL returns the GitHub consent page URL for state
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a GitHub access token
func (o *OAuth) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", apperrors.NewBadRequestError("missing authorization code")
	}

	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return "", &apperrors.AppError{
			Code:    apperrors.ErrCodeUnauthorized,
			Message: "GitHub authorization failed",
			Err:     err,
		}
	}
	return token.AccessToken, nil
}
