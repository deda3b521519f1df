package dashboard

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/syscope/internal/aggregator"
	"github.com/kurihiro0119/syscope/internal/cache"
	"github.com/kurihiro0119/syscope/internal/collector"
	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
)

// Overview returns the stat cards and the daily commit chart. The user's
// repositories are listed once for both the count and the commit fetch.
func (s *Service) Overview(ctx context.Context, user *domain.User) (*domain.Overview, error) {
	overview := &domain.Overview{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		gh := s.github(user)
		repos, err := gh.ListUserRepositories(gctx, collector.DefaultRepoLimit)
		if err != nil {
			return err
		}
		overview.Repositories = len(repos)

		commits, err := s.allCommits(gctx, user, gh, func() ([]*domain.GitHubRepo, error) {
			return repos, nil
		})
		if err != nil {
			return err
		}
		overview.DailyCommits = aggregator.DailyCounts(commits)
		return nil
	})
	g.Go(func() error {
		count, err := s.store.CountOrganisations(gctx, user.UID)
		overview.Organisations = count
		return err
	})
	g.Go(func() error {
		count, err := s.store.CountMembers(gctx)
		overview.Members = count
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return overview, nil
}

// AllCommits returns every commit of the user's GitHub repositories, newest
// first, with per-day totals
func (s *Service) AllCommits(ctx context.Context, user *domain.User) (*domain.CommitHistory, error) {
	gh := s.github(user)
	commits, err := s.allCommits(ctx, user, gh, func() ([]*domain.GitHubRepo, error) {
		return gh.ListUserRepositories(ctx, collector.DefaultRepoLimit)
	})
	if err != nil {
		return nil, err
	}

	return &domain.CommitHistory{
		Commits:      commits,
		DailyCommits: aggregator.DailyCounts(commits),
	}, nil
}

// allCommits serves the all-commits view from the cache, listing the
// repositories only on a miss
func (s *Service) allCommits(ctx context.Context, user *domain.User, gh collector.Collector, repos func() ([]*domain.GitHubRepo, error)) ([]*domain.Commit, error) {
	return s.cached(cache.Key(user.UID, cache.ViewAllCommits, ""), func() ([]*domain.Commit, error) {
		listed, err := repos()
		if err != nil {
			return nil, err
		}
		return s.fetchCommits(ctx, gh, repoNames(listed), collector.CommitOptions{PerPage: 100})
	})
}

// RecentActivity returns the newest commits across the user's GitHub
// repositories, sampling a few from each
func (s *Service) RecentActivity(ctx context.Context, user *domain.User) ([]*domain.Commit, error) {
	return s.cached(cache.Key(user.UID, cache.ViewRecent, ""), func() ([]*domain.Commit, error) {
		gh := s.github(user)
		repos, err := gh.ListUserRepositories(ctx, collector.DefaultRepoLimit)
		if err != nil {
			return nil, err
		}
		commits, err := s.fetchCommits(ctx, gh, repoNames(repos), collector.CommitOptions{PerPage: recentPerRepo, MaxPages: 1})
		if err != nil {
			return nil, err
		}
		return aggregator.Recent(commits, recentLimit), nil
	})
}

// RepositoryInsights returns the latest commits of one repository with a
// daily per-contributor chart
func (s *Service) RepositoryInsights(ctx context.Context, user *domain.User, fullName string) (*domain.RepoInsights, error) {
	owner, repo, err := collector.SplitFullName(fullName)
	if err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	commits, err := s.cached(cache.Key(user.UID, cache.ViewInsights, fullName), func() ([]*domain.Commit, error) {
		return s.github(user).ListCommits(ctx, owner, repo, collector.CommitOptions{PerPage: insightsCommits, MaxPages: 1})
	})
	if err != nil {
		return nil, err
	}
	if commits == nil {
		commits = []*domain.Commit{}
	}

	series := aggregator.Series(aggregator.UniqueAuthors(commits))
	return &domain.RepoInsights{
		FullName:     fullName,
		Commits:      commits,
		Contributors: series,
		DailyChart: domain.ContributorChart{
			Series:  series,
			Buckets: aggregator.DailyByContributor(commits),
		},
	}, nil
}

// cached returns the commits stored under key, loading and storing them on a miss
func (s *Service) cached(key string, load func() ([]*domain.Commit, error)) ([]*domain.Commit, error) {
	if commits, ok := s.cache.Get(key); ok {
		return commits, nil
	}

	commits, err := load()
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, commits)
	return commits, nil
}

func repoNames(repos []*domain.GitHubRepo) []string {
	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.FullName)
	}
	return names
}

// fetchCommits lists commits of every repository in parallel and merges
// them newest first. A repository that fails is logged and left out, unless
// the failure affects every repository.
func (s *Service) fetchCommits(ctx context.Context, gh collector.Collector, fullNames []string, opts collector.CommitOptions) ([]*domain.Commit, error) {
	results := make([][]*domain.Commit, len(fullNames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, fullName := range fullNames {
		g.Go(func() error {
			owner, repo, err := collector.SplitFullName(fullName)
			if err != nil {
				s.logger.Warn("skipping repository", "repo", fullName, "err", err)
				return nil
			}

			commits, err := gh.ListCommits(gctx, owner, repo, opts)
			if err != nil {
				if abortsFetch(err) {
					return err
				}
				s.logger.Warn("failed to fetch commits, skipping repository", "repo", fullName, "err", err)
				return nil
			}
			results[i] = commits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []*domain.Commit{}
	for _, commits := range results {
		all = append(all, commits...)
	}
	aggregator.SortNewestFirst(all)
	return all, nil
}

// abortsFetch reports whether a per-repository failure should stop the
// whole fan-out
func abortsFetch(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		apperrors.IsUnauthorized(err) ||
		apperrors.IsRateLimited(err)
}
