// Package dashboard composes the GitHub collector, the record store and the
// commit cache into the views served by the API.
package dashboard

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/kurihiro0119/syscope/internal/auth"
	"github.com/kurihiro0119/syscope/internal/cache"
	"github.com/kurihiro0119/syscope/internal/collector"
	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
	"github.com/kurihiro0119/syscope/internal/storage"
)

const (
	// recentPerRepo and recentLimit shape the dashboard recent activity list
	recentPerRepo = 5
	recentLimit   = 10

	// orgPerRepo and orgRecentLimit shape the organisation activity tab
	orgPerRepo     = 10
	orgRecentLimit = 10

	// insightsCommits is how many commits the repository insights cover
	insightsCommits = 30

	// DefaultConcurrency bounds parallel GitHub fetches per request
	DefaultConcurrency = 4
)

// TokenExchanger trades an OAuth authorization code for a GitHub token
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// Service implements every dashboard operation for an authenticated user
type Service struct {
	store       storage.Storage
	collectors  collector.Factory
	cache       *cache.CommitCache
	oauth       TokenExchanger
	sessions    *auth.Sessions
	logger      *log.Logger
	concurrency int
}

// Option configures a Service
type Option func(*Service)

// WithConcurrency sets how many GitHub fetches run at once
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the service logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a dashboard service
func NewService(store storage.Storage, collectors collector.Factory, commits *cache.CommitCache, oauth TokenExchanger, sessions *auth.Sessions, opts ...Option) *Service {
	s := &Service{
		store:       store,
		collectors:  collectors,
		cache:       commits,
		oauth:       oauth,
		sessions:    sessions,
		logger:      log.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login completes the OAuth flow: it exchanges the code, records the GitHub
// profile and token, and issues a session token
func (s *Service) Login(ctx context.Context, code string) (*domain.Session, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := s.collectors(token).GetAuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}
	profile.GitHubToken = token

	user, err := s.store.EnsureUser(ctx, profile)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to save user", err)
	}

	sessionToken, expiresAt, err := s.sessions.Issue(user.UID, user.SessionEpoch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "login", user.Login, "uid", user.UID)
	return &domain.Session{Token: sessionToken, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a session token to a signed-in user
func (s *Service) Authenticate(ctx context.Context, sessionToken string) (*domain.User, error) {
	claims, err := s.sessions.Parse(sessionToken)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, claims.Subject)
	if apperrors.IsNotFound(err) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.HasToken() || claims.Epoch != user.SessionEpoch {
		return nil, apperrors.NewUnauthorizedError("signed out, log in again")
	}
	return user, nil
}

// Logout forgets the user's GitHub token and cached views. Session tokens
// issued before are rejected from then on, even after the next login.
func (s *Service) Logout(ctx context.Context, user *domain.User) error {
	if err := s.store.ClearUserToken(ctx, user.UID); err != nil {
		return err
	}
	s.cache.Invalidate(user.UID)
	s.logger.Info("user logged out", "login", user.Login)
	return nil
}

// InvalidateCache drops the user's cached commit views and reports how many
// were removed
func (s *Service) InvalidateCache(user *domain.User) int {
	return s.cache.Invalidate(user.UID)
}

func (s *Service) github(user *domain.User) collector.Collector {
	return s.collectors(user.GitHubToken)
}
