package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/syscope/internal/aggregator"
	"github.com/kurihiro0119/syscope/internal/collector"
	"github.com/kurihiro0119/syscope/internal/domain"
	"github.com/kurihiro0119/syscope/internal/metrics"
)

// SyncCollaborators lists the collaborators of every registered repository
// and records the ones not yet known as members. A repository whose
// collaborators cannot be listed contributes an empty list.
func (s *Service) SyncCollaborators(ctx context.Context, user *domain.User) (*domain.CollaboratorSync, error) {
	repos, err := s.store.GetRepositories(ctx, user.UID)
	if err != nil {
		return nil, err
	}

	gh := s.github(user)
	perRepo := make([]domain.RepoCollaborators, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, repo := range repos {
		g.Go(func() error {
			perRepo[i] = domain.RepoCollaborators{FullName: repo.FullName, Collaborators: []*domain.Collaborator{}}

			owner, name, err := collector.SplitFullName(repo.FullName)
			if err != nil {
				s.logger.Warn("skipping repository", "repo", repo.FullName, "err", err)
				return nil
			}
			collaborators, err := gh.ListCollaborators(gctx, owner, name)
			if err != nil {
				if abortsFetch(err) {
					return err
				}
				s.logger.Warn("failed to list collaborators", "repo", repo.FullName, "err", err)
				return nil
			}
			if collaborators != nil {
				perRepo[i].Collaborators = collaborators
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lists := make([][]*domain.Collaborator, 0, len(perRepo))
	for _, rc := range perRepo {
		lists = append(lists, rc.Collaborators)
	}
	unique := aggregator.UniqueCollaborators(lists...)

	now := time.Now().UTC()
	inserted := 0
	for _, c := range unique {
		ok, err := s.store.SaveMemberIfAbsent(ctx, c.Member(now))
		if err != nil {
			return nil, err
		}
		if ok {
			inserted++
		}
	}
	metrics.MembersInserted.Add(float64(inserted))

	s.logger.Info("collaborators synced",
		"login", user.Login,
		"repositories", len(repos),
		"collaborators", len(unique),
		"new_members", inserted)

	return &domain.CollaboratorSync{
		Repositories:  perRepo,
		Collaborators: unique,
		NewMembers:    inserted,
	}, nil
}

// Members lists every known member, oldest first
func (s *Service) Members(ctx context.Context) ([]*domain.Member, error) {
	return s.store.GetMembers(ctx)
}
