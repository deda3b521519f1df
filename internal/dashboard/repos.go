package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/kurihiro0119/syscope/internal/collector"
	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
)

// GitHubRepositories lists the user's GitHub repositories, most recently
// updated first
func (s *Service) GitHubRepositories(ctx context.Context, user *domain.User) ([]*domain.GitHubRepo, error) {
	repos, err := s.github(user).ListUserRepositories(ctx, collector.DefaultRepoLimit)
	if err != nil {
		return nil, err
	}
	if repos == nil {
		repos = []*domain.GitHubRepo{}
	}
	return repos, nil
}

// AvailableRepositories lists the user's GitHub repositories that can still
// be registered: not archived and not registered yet
func (s *Service) AvailableRepositories(ctx context.Context, user *domain.User) ([]*domain.GitHubRepo, error) {
	repos, err := s.GitHubRepositories(ctx, user)
	if err != nil {
		return nil, err
	}

	registered, err := s.store.GetRepositories(ctx, user.UID)
	if err != nil {
		return nil, err
	}
	taken := make(map[int64]struct{}, len(registered))
	for _, r := range registered {
		taken[r.RepoID] = struct{}{}
	}

	available := []*domain.GitHubRepo{}
	for _, r := range repos {
		if r.Archived {
			continue
		}
		if _, ok := taken[r.ID]; ok {
			continue
		}
		available = append(available, r)
	}
	return available, nil
}

// RegisterRepository adds a GitHub repository to the user's dashboard
func (s *Service) RegisterRepository(ctx context.Context, user *domain.User, fullName string) (*domain.RepoRegistration, error) {
	owner, name, err := collector.SplitFullName(strings.TrimSpace(fullName))
	if err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	repo, err := s.github(user).GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if repo.Archived {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("repository %s is archived", repo.FullName))
	}

	registration := repo.Registration(user.UID)
	if err := s.store.SaveRepository(ctx, registration); err != nil {
		return nil, err
	}

	s.cache.Invalidate(user.UID)
	s.logger.Info("repository registered", "repo", registration.FullName, "login", user.Login)
	return registration, nil
}

// RegisteredRepositories lists the user's registered repositories, newest first
func (s *Service) RegisteredRepositories(ctx context.Context, user *domain.User) ([]*domain.RepoRegistration, error) {
	return s.store.GetRepositories(ctx, user.UID)
}

// UnregisterRepository removes a registration from the user's dashboard
func (s *Service) UnregisterRepository(ctx context.Context, user *domain.User, id string) error {
	if err := s.store.DeleteRepository(ctx, user.UID, id); err != nil {
		return err
	}
	s.cache.Invalidate(user.UID)
	return nil
}
