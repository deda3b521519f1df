package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/kurihiro0119/syscope/internal/domain"
)

// Collector defines the interface for fetching live data from GitHub on
// behalf of one authenticated user
type Collector interface {
	// GetAuthenticatedUser retrieves the profile of the token's owner
	GetAuthenticatedUser(ctx context.Context) (*domain.User, error)

	// ListUserRepositories retrieves up to limit repositories of the
	// authenticated user, most recently updated first
	ListUserRepositories(ctx context.Context, limit int) ([]*domain.GitHubRepo, error)

	// GetRepository retrieves a single repository visible to the user
	GetRepository(ctx context.Context, owner, repo string) (*domain.GitHubRepo, error)

	// ListCommits retrieves commits for a repository, newest first
	ListCommits(ctx context.Context, owner, repo string, opts CommitOptions) ([]*domain.Commit, error)

	// ListCollaborators retrieves all collaborators of a repository
	ListCollaborators(ctx context.Context, owner, repo string) ([]*domain.Collaborator, error)
}

// Factory builds a Collector authenticated with a user's GitHub token
type Factory func(token string) Collector

// CommitOptions bounds a commit listing
type CommitOptions struct {
	// PerPage is the GitHub page size (1-100)
	PerPage int
	// MaxPages stops after this many pages; 0 walks every page
	MaxPages int
}

// SplitFullName splits "owner/repo" into its parts
func SplitFullName(fullName string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/repo", fullName)
	}
	return owner, repo, nil
}
