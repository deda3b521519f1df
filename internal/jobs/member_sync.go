package jobs

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/kurihiro0119/syscope/internal/domain"
)

// UserLister lists every dashboard user
type UserLister interface {
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// CollaboratorSyncer records the collaborators of a user's registered
// repositories as members
type CollaboratorSyncer interface {
	SyncCollaborators(ctx context.Context, user *domain.User) (*domain.CollaboratorSync, error)
}

// MemberSync syncs collaborators for every user with a stored GitHub token
type MemberSync struct {
	users  UserLister
	syncer CollaboratorSyncer
	logger *log.Logger
}

// NewMemberSync creates the member sync job
func NewMemberSync(users UserLister, syncer CollaboratorSyncer, logger *log.Logger) *MemberSync {
	return &MemberSync{
		users:  users,
		syncer: syncer,
		logger: logger.WithPrefix("member-sync"),
	}
}

// Run syncs every signed-in user once. A failing user is logged and skipped.
// It returns the number of new members.
func (j *MemberSync) Run(ctx context.Context) (int, error) {
	users, err := j.users.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if !u.HasToken() {
			continue
		}

		result, err := j.syncer.SyncCollaborators(ctx, u)
		if err != nil {
			j.logger.Warn("sync failed", "login", u.Login, "err", err)
			continue
		}
		total += result.NewMembers
	}

	j.logger.Info("sync finished", "users", len(users), "new_members", total)
	return total, nil
}

// Func returns a cron callback running the job under ctx
func (j *MemberSync) Func(ctx context.Context) func() {
	return func() {
		if _, err := j.Run(ctx); err != nil {
			j.logger.Error("sync aborted", "err", err)
		}
	}
}
