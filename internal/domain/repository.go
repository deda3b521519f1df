package domain

import "time"

// RepoRegistration is a GitHub repository a user has added to their dashboard
type RepoRegistration struct {
	ID          string    `json:"id"`
	RepoID      int64     `json:"repo_id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description *string   `json:"description"`
	OwnerUID    string    `json:"owner_uid"`
	CreatedAt   time.Time `json:"created_at"`
}

// GitHubRepo is a repository as listed by GitHub for the authenticated user
type GitHubRepo struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	HTMLURL     string  `json:"html_url"`
	Description *string `json:"description"`
	Owner       string  `json:"owner"`
	Archived    bool    `json:"archived"`
	Private     bool    `json:"private"`
}

// Registration converts a GitHub repository into a registration record for owner
func (r *GitHubRepo) Registration(ownerUID string) *RepoRegistration {
	return &RepoRegistration{
		RepoID:      r.ID,
		Name:        r.Name,
		FullName:    r.FullName,
		HTMLURL:     r.HTMLURL,
		Description: r.Description,
		OwnerUID:    ownerUID,
	}
}

// Organisation is a named grouping created by a user
type Organisation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Member is a collaborator seen on any registered repository
type Member struct {
	ID          string    `json:"id"`
	Login       string    `json:"login"`
	AvatarURL   string    `json:"avatar_url"`
	HTMLURL     string    `json:"html_url"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// Permissions mirrors GitHub's collaborator permission flags
type Permissions struct {
	Pull  bool `json:"pull"`
	Push  bool `json:"push"`
	Admin bool `json:"admin"`
}

// Collaborator is a repository collaborator as returned by GitHub
type Collaborator struct {
	Login       string      `json:"login"`
	AvatarURL   string      `json:"avatar_url"`
	HTMLURL     string      `json:"html_url"`
	Permissions Permissions `json:"permissions"`
}

// Member converts a collaborator into a member record first seen at t
func (c *Collaborator) Member(t time.Time) *Member {
	return &Member{
		Login:       c.Login,
		AvatarURL:   c.AvatarURL,
		HTMLURL:     c.HTMLURL,
		FirstSeenAt: t,
	}
}
