package domain

import "time"

// User is a dashboard account backed by a GitHub identity
type User struct {
	UID         string    `json:"uid"`
	GitHubID    int64     `json:"github_id"`
	Login       string    `json:"login"`
	Name        *string   `json:"name"`
	Email       *string   `json:"email"`
	AvatarURL   string    `json:"avatar_url"`
	Provider    string    `json:"provider"`
	GitHubToken string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`

	// SessionEpoch is bumped on logout; session tokens carry the epoch they
	// were issued at
	SessionEpoch int `json:"-"`
}

// HasToken reports whether a GitHub access token is stored for the user
func (u *User) HasToken() bool {
	return u.GitHubToken != ""
}

// Session is returned after a successful login
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
