package dashboard

import (
	"context"
	"strings"

	"github.com/kurihiro0119/syscope/internal/aggregator"
	"github.com/kurihiro0119/syscope/internal/cache"
	"github.com/kurihiro0119/syscope/internal/collector"
	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
)

// CreateOrganisation creates an organisation owned by the user. The name is
// required; a blank description is stored as null.
func (s *Service) CreateOrganisation(ctx context.Context, user *domain.User, name, description string) (*domain.Organisation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequestError("organisation name is required")
	}

	org := &domain.Organisation{
		Name:    name,
		OwnerID: user.UID,
	}
	if d := strings.TrimSpace(description); d != "" {
		org.Description = &d
	}

	if err := s.store.CreateOrganisation(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// Organisations lists the user's organisations, newest first
func (s *Service) Organisations(ctx context.Context, user *domain.User) ([]*domain.Organisation, error) {
	return s.store.GetOrganisations(ctx, user.UID)
}

// Organisation retrieves one of the user's organisations
func (s *Service) Organisation(ctx context.Context, user *domain.User, id string) (*domain.Organisation, error) {
	return s.store.GetOrganisation(ctx, user.UID, id)
}

// OrganisationActivity samples the latest commits of the user's registered
// repositories and ranks their authors
func (s *Service) OrganisationActivity(ctx context.Context, user *domain.User, id string) (*domain.OrgActivity, error) {
	org, err := s.store.GetOrganisation(ctx, user.UID, id)
	if err != nil {
		return nil, err
	}

	commits, err := s.cached(cache.Key(user.UID, cache.ViewOrgActivity, ""), func() ([]*domain.Commit, error) {
		repos, err := s.store.GetRepositories(ctx, user.UID)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(repos))
		for _, r := range repos {
			names = append(names, r.FullName)
		}
		return s.fetchCommits(ctx, s.github(user), names, collector.CommitOptions{PerPage: orgPerRepo, MaxPages: 1})
	})
	if err != nil {
		return nil, err
	}

	return &domain.OrgActivity{
		Organisation:  org,
		RecentCommits: aggregator.Recent(commits, orgRecentLimit),
		Leaderboard:   aggregator.Leaderboard(commits),
		WeeklyChart: domain.ContributorChart{
			Series:  aggregator.Series(aggregator.UniqueAuthors(commits)),
			Buckets: aggregator.WeeklyByContributor(commits),
		},
	}, nil
}
