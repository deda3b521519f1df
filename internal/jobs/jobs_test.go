package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/syscope/internal/domain"
	"github.com/kurihiro0119/syscope/internal/logging"
)

type fakeUsers []*domain.User

func (f fakeUsers) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return f, nil
}

type fakeSyncer struct {
	synced []string
}

func (f *fakeSyncer) SyncCollaborators(ctx context.Context, user *domain.User) (*domain.CollaboratorSync, error) {
	f.synced = append(f.synced, user.Login)
	if user.Login == "broken" {
		return nil, errors.New("github unavailable")
	}
	return &domain.CollaboratorSync{NewMembers: 2}, nil
}

func TestMemberSyncRun(t *testing.T) {
	users := fakeUsers{
		{Login: "ada", GitHubToken: "gho_a"},
		{Login: "signed-out"},
		{Login: "broken", GitHubToken: "gho_b"},
		{Login: "bob", GitHubToken: "gho_c"},
	}
	syncer := &fakeSyncer{}

	total, err := NewMemberSync(users, syncer, logging.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, []string{"ada", "broken", "bob"}, syncer.synced)
}

func TestMemberSyncStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	syncer := &fakeSyncer{}
	_, err := NewMemberSync(fakeUsers{{Login: "ada", GitHubToken: "x"}}, syncer, logging.Discard()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, syncer.synced)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(logging.Discard())
	assert.Error(t, s.AddFunc("not a schedule", func() {}))
	assert.NoError(t, s.AddFunc("0 3 * * *", func() {}))
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(logging.Discard())
	var runs atomic.Int32
	require.NoError(t, s.AddFunc("@every 1s", func() { runs.Add(1) }))

	s.Start()
	defer s.Shutdown()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
