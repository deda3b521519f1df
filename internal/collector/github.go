package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v55/github"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"

	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
	"github.com/kurihiro0119/syscope/internal/metrics"
)

// DefaultRepoLimit is how many user repositories are listed when no limit is given
const DefaultRepoLimit = 50

// limiterCacheSize bounds how many per-token rate limiters a Factory keeps
const limiterCacheSize = 1024

// githubCollector implements Collector using GitHub API
type githubCollector struct {
	client      *github.Client
	rateLimiter RateLimiter
	logger      *log.Logger
}

// Option configures a GitHub collector
type Option func(*githubCollector) error

// WithBaseURL points the collector at a GitHub Enterprise or test server
func WithBaseURL(baseURL string) Option {
	return func(c *githubCollector) error {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return err
		}
		c.client.BaseURL = u
		return nil
	}
}

// WithRateLimiter replaces the default rate limiter
func WithRateLimiter(rl RateLimiter) Option {
	return func(c *githubCollector) error {
		c.rateLimiter = rl
		return nil
	}
}

// WithLogger sets the collector logger
func WithLogger(logger *log.Logger) Option {
	return func(c *githubCollector) error {
		c.logger = logger
		return nil
	}
}

// NewGitHubCollector creates a new GitHub collector
func NewGitHubCollector(token string, opts ...Option) (Collector, error) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	c := &githubCollector{
		client: github.NewClient(tc),
		logger: log.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.rateLimiter == nil {
		c.rateLimiter = NewRateLimiter(c.logger, DefaultMinDelay, DefaultMaxWait)
	}

	return c, nil
}

// limiterTTL matches GitHub's hourly rate limit window
const limiterTTL = time.Hour

// NewFactory returns a Factory building collectors with the given options.
// The options are checked once here so the factory itself cannot fail.
// Collectors built for the same token share one rate limiter, so the limit
// seen by one request carries over to the next.
func NewFactory(logger *log.Logger, opts ...Option) (Factory, error) {
	all := append([]Option{WithLogger(logger)}, opts...)
	if _, err := NewGitHubCollector("", all...); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	limiters := expirable.NewLRU[string, RateLimiter](limiterCacheSize, nil, limiterTTL)
	limiterFor := func(token string) RateLimiter {
		mu.Lock()
		defer mu.Unlock()
		if rl, ok := limiters.Get(token); ok {
			return rl
		}
		rl := NewRateLimiter(logger, DefaultMinDelay, DefaultMaxWait)
		limiters.Add(token, rl)
		return rl
	}

	return func(token string) Collector {
		// Options given to NewFactory come last and may replace the limiter
		c, _ := NewGitHubCollector(token, append([]Option{WithRateLimiter(limiterFor(token))}, all...)...)
		return c
	}, nil
}

// GetAuthenticatedUser retrieves the profile of the token's owner
func (c *githubCollector) GetAuthenticatedUser(ctx context.Context) (*domain.User, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return nil, c.wrapError("get_user", "failed to get authenticated user", resp, err)
	}
	c.observe("get_user", resp)

	return &domain.User{
		GitHubID:  u.GetID(),
		Login:     u.GetLogin(),
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.GetAvatarURL(),
		Provider:  "github",
	}, nil
}

// ListUserRepositories retrieves repositories of the authenticated user
func (c *githubCollector) ListUserRepositories(ctx context.Context, limit int) ([]*domain.GitHubRepo, error) {
	if limit <= 0 {
		limit = DefaultRepoLimit
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var allRepos []*domain.GitHubRepo
	opts := &github.RepositoryListOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: min(limit, 100)},
	}

	for {
		repos, resp, err := c.client.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, c.wrapError("list_repos", "failed to list repositories", resp, err)
		}
		c.observe("list_repos", resp)

		for _, repo := range repos {
			allRepos = append(allRepos, toGitHubRepo(repo))
			if len(allRepos) == limit {
				return allRepos, nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return allRepos, nil
}

// GetRepository retrieves a single repository
func (c *githubCollector) GetRepository(ctx context.Context, owner, repo string) (*domain.GitHubRepo, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	r, resp, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, c.wrapError("get_repo", fmt.Sprintf("repository %s/%s not found", owner, repo), resp, err)
	}
	c.observe("get_repo", resp)

	return toGitHubRepo(r), nil
}

// ListCommits retrieves commits for a repository
func (c *githubCollector) ListCommits(ctx context.Context, owner, repo string, opts CommitOptions) ([]*domain.Commit, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	perPage := opts.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 100
	}

	var allCommits []*domain.Commit
	listOpts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	for page := 1; ; page++ {
		commits, resp, err := c.client.Repositories.ListCommits(ctx, owner, repo, listOpts)
		if err != nil {
			// Empty repositories answer 409
			if resp != nil && resp.StatusCode == http.StatusConflict {
				c.observe("list_commits", resp)
				return allCommits, nil
			}
			return nil, c.wrapError("list_commits", fmt.Sprintf("failed to list commits for %s/%s", owner, repo), resp, err)
		}
		c.observe("list_commits", resp)

		for _, commit := range commits {
			allCommits = append(allCommits, toCommit(owner+"/"+repo, commit))
		}

		if resp.NextPage == 0 || (opts.MaxPages > 0 && page >= opts.MaxPages) {
			break
		}
		listOpts.Page = resp.NextPage

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return allCommits, nil
}

// ListCollaborators retrieves all collaborators of a repository
func (c *githubCollector) ListCollaborators(ctx context.Context, owner, repo string) ([]*domain.Collaborator, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	var all []*domain.Collaborator
	opts := &github.ListCollaboratorsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		users, resp, err := c.client.Repositories.ListCollaborators(ctx, owner, repo, opts)
		if err != nil {
			return nil, c.wrapError("list_collaborators", fmt.Sprintf("failed to list collaborators for %s/%s", owner, repo), resp, err)
		}
		c.observe("list_collaborators", resp)

		for _, u := range users {
			all = append(all, &domain.Collaborator{
				Login:     u.GetLogin(),
				AvatarURL: u.GetAvatarURL(),
				HTMLURL:   u.GetHTMLURL(),
				Permissions: domain.Permissions{
					Pull:  u.Permissions["pull"],
					Push:  u.Permissions["push"],
					Admin: u.Permissions["admin"],
				},
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return all, nil
}

func toGitHubRepo(repo *github.Repository) *domain.GitHubRepo {
	return &domain.GitHubRepo{
		ID:          repo.GetID(),
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		HTMLURL:     repo.GetHTMLURL(),
		Description: repo.Description,
		Owner:       repo.GetOwner().GetLogin(),
		Archived:    repo.GetArchived(),
		Private:     repo.GetPrivate(),
	}
}

// toCommit maps a GitHub commit onto the dashboard shape. The author is the
// git author name, falling back to the GitHub login when it is empty.
func toCommit(fullName string, rc *github.RepositoryCommit) *domain.Commit {
	gitAuthor := rc.GetCommit().GetAuthor()
	author := gitAuthor.GetName()
	if author == "" {
		author = rc.GetAuthor().GetLogin()
	}
	return &domain.Commit{
		SHA:     rc.GetSHA(),
		Message: rc.GetCommit().GetMessage(),
		Author:  author,
		Date:    gitAuthor.GetDate().Time.UTC(),
		Avatar:  rc.GetAuthor().GetAvatarURL(),
		Repo:    fullName,
	}
}

// observe records a successful call and updates the rate limiter from the response
func (c *githubCollector) observe(op string, resp *github.Response) {
	metrics.GitHubCalls.WithLabelValues(op, "ok").Inc()
	if resp != nil && resp.Rate.Limit > 0 {
		c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}

// wrapError converts a go-github failure into an AppError
func (c *githubCollector) wrapError(op, message string, resp *github.Response, err error) error {
	metrics.GitHubCalls.WithLabelValues(op, "error").Inc()

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr):
		c.rateLimiter.UpdateLimit(rateErr.Rate.Remaining, rateErr.Rate.Reset.Time)
		return apperrors.NewRateLimitedError(fmt.Sprintf("GitHub rate limit exceeded, resets at %s", rateErr.Rate.Reset.Format(time.RFC3339)))
	case errors.As(err, &abuseErr):
		return apperrors.NewRateLimitedError("GitHub secondary rate limit exceeded")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return apperrors.NewUnauthorizedError("GitHub token rejected")
		case http.StatusNotFound:
			return &apperrors.AppError{Code: apperrors.ErrCodeNotFound, Message: message, Err: err}
		case http.StatusForbidden:
			return &apperrors.AppError{Code: apperrors.ErrCodeForbidden, Message: message, Err: err}
		}
	}
	return apperrors.NewUpstreamError(message, err)
}
