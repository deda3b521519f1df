package storage

import (
	"context"

	"github.com/kurihiro0119/syscope/internal/domain"
)

// Storage is the abstract interface for the persistence layer
type Storage interface {
	// User operations
	EnsureUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, uid string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	ClearUserToken(ctx context.Context, uid string) error

	// Repository registration operations
	SaveRepository(ctx context.Context, repo *domain.RepoRegistration) error
	GetRepositories(ctx context.Context, ownerUID string) ([]*domain.RepoRegistration, error)
	GetRepository(ctx context.Context, ownerUID, id string) (*domain.RepoRegistration, error)
	DeleteRepository(ctx context.Context, ownerUID, id string) error

	// Organisation operations
	CreateOrganisation(ctx context.Context, org *domain.Organisation) error
	GetOrganisations(ctx context.Context, ownerID string) ([]*domain.Organisation, error)
	GetOrganisation(ctx context.Context, ownerID, id string) (*domain.Organisation, error)
	CountOrganisations(ctx context.Context, ownerID string) (int, error)

	// Member operations. Members are shared by every user.
	SaveMemberIfAbsent(ctx context.Context, member *domain.Member) (bool, error)
	GetMembers(ctx context.Context) ([]*domain.Member, error)
	CountMembers(ctx context.Context) (int, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
