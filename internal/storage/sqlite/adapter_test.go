package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
	"github.com/kurihiro0119/syscope/internal/storage"
)

func newTestStorage(t *testing.T) storage.Storage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	first, err := s.EnsureUser(ctx, &domain.User{
		GitHubID:    42,
		Login:       "octocat",
		Name:        strPtr("The Octocat"),
		AvatarURL:   "https://avatars/octocat",
		GitHubToken: "gho_first",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.UID)
	assert.Equal(t, "github", first.Provider)
	assert.Equal(t, "gho_first", first.GitHubToken)
	require.NotNil(t, first.Name)
	assert.Nil(t, first.Email)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := s.EnsureUser(ctx, &domain.User{
		GitHubID:    42,
		Login:       "octocat-renamed",
		GitHubToken: "gho_second",
	})
	require.NoError(t, err)
	assert.Equal(t, first.UID, second.UID)
	assert.Equal(t, "octocat-renamed", second.Login)
	assert.Equal(t, "gho_second", second.GitHubToken)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt))
	assert.False(t, second.LastLoginAt.Before(first.LastLoginAt))

	got, err := s.GetUser(ctx, first.UID)
	require.NoError(t, err)
	assert.Equal(t, "octocat-renamed", got.Login)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestGetUserNotFound(t *testing.T) {
	_, err := newTestStorage(t).GetUser(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestClearUserToken(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	u, err := s.EnsureUser(ctx, &domain.User{GitHubID: 1, Login: "ada", GitHubToken: "gho_x"})
	require.NoError(t, err)

	assert.Equal(t, 0, u.SessionEpoch)

	require.NoError(t, s.ClearUserToken(ctx, u.UID))
	got, err := s.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.False(t, got.HasToken())
	assert.Equal(t, 1, got.SessionEpoch)

	again, err := s.EnsureUser(ctx, &domain.User{GitHubID: 1, Login: "ada", GitHubToken: "gho_y"})
	require.NoError(t, err)
	assert.True(t, again.HasToken())
	assert.Equal(t, 1, again.SessionEpoch, "a new login keeps the epoch")

	assert.True(t, apperrors.IsNotFound(s.ClearUserToken(ctx, "missing")))
}

func TestRepositories(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	older := &domain.RepoRegistration{RepoID: 1, Name: "a", FullName: "me/a", HTMLURL: "https://github.com/me/a", OwnerUID: "u1", CreatedAt: base}
	newer := &domain.RepoRegistration{RepoID: 2, Name: "b", FullName: "me/b", Description: strPtr("second"), OwnerUID: "u1", CreatedAt: base.Add(time.Hour)}
	other := &domain.RepoRegistration{RepoID: 1, Name: "a", FullName: "me/a", OwnerUID: "u2"}

	require.NoError(t, s.SaveRepository(ctx, older))
	require.NoError(t, s.SaveRepository(ctx, newer))
	require.NoError(t, s.SaveRepository(ctx, other), "another owner may register the same repository")
	assert.NotEmpty(t, older.ID)

	dup := &domain.RepoRegistration{RepoID: 1, Name: "a", FullName: "me/a", OwnerUID: "u1"}
	err := s.SaveRepository(ctx, dup)
	assert.True(t, apperrors.IsConflict(err))
	assert.Empty(t, dup.ID, "no id for a record that was not stored")
	assert.True(t, dup.CreatedAt.IsZero())

	repos, err := s.GetRepositories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "me/b", repos[0].FullName)
	require.NotNil(t, repos[0].Description)
	assert.Equal(t, "second", *repos[0].Description)
	assert.Nil(t, repos[1].Description)
	assert.True(t, repos[1].CreatedAt.Equal(base))

	got, err := s.GetRepository(ctx, "u1", older.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RepoID)

	_, err = s.GetRepository(ctx, "u2", older.ID)
	assert.True(t, apperrors.IsNotFound(err), "owner scoped")

	assert.True(t, apperrors.IsNotFound(s.DeleteRepository(ctx, "u2", older.ID)))
	require.NoError(t, s.DeleteRepository(ctx, "u1", older.ID))

	repos, err = s.GetRepositories(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, repos, 1)

	none, err := s.GetRepositories(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestOrganisations(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	platform := &domain.Organisation{Name: "Platform", Description: strPtr("infra"), OwnerID: "u1", CreatedAt: base}
	web := &domain.Organisation{Name: "Web", OwnerID: "u1", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.CreateOrganisation(ctx, platform))
	require.NoError(t, s.CreateOrganisation(ctx, web))
	require.NoError(t, s.CreateOrganisation(ctx, &domain.Organisation{Name: "Web", OwnerID: "u2"}))

	dup := &domain.Organisation{Name: "Web", OwnerID: "u1"}
	err := s.CreateOrganisation(ctx, dup)
	assert.True(t, apperrors.IsConflict(err))
	assert.Empty(t, dup.ID, "no id for a record that was not stored")
	assert.True(t, dup.CreatedAt.IsZero())
	assert.NotEmpty(t, web.ID)

	orgs, err := s.GetOrganisations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "Web", orgs[0].Name)
	assert.Nil(t, orgs[0].Description)
	assert.Equal(t, "infra", *orgs[1].Description)

	got, err := s.GetOrganisation(ctx, "u1", platform.ID)
	require.NoError(t, err)
	assert.Equal(t, "Platform", got.Name)

	_, err = s.GetOrganisation(ctx, "u2", platform.ID)
	assert.True(t, apperrors.IsNotFound(err))

	count, err := s.CountOrganisations(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSaveMemberIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	seen := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ada := &domain.Member{Login: "ada", AvatarURL: "https://avatars/ada", HTMLURL: "https://github.com/ada", FirstSeenAt: seen}
	inserted, err := s.SaveMemberIfAbsent(ctx, ada)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, ada.ID)

	inserted, err = s.SaveMemberIfAbsent(ctx, &domain.Member{Login: "ada", AvatarURL: "changed"})
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = s.SaveMemberIfAbsent(ctx, &domain.Member{Login: "bob", FirstSeenAt: seen.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, inserted)

	members, err := s.GetMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "ada", members[0].Login)
	assert.Equal(t, "https://avatars/ada", members[0].AvatarURL, "existing member is untouched")
	assert.Equal(t, "bob", members[1].Login)

	count, err := s.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
