package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kurihiro0119/syscope/internal/errors"
	"github.com/kurihiro0119/syscope/internal/logging"
)

func newTestCollector(t *testing.T, mux *http.ServeMux) Collector {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c, err := NewGitHubCollector("test-token",
		WithBaseURL(server.URL),
		WithLogger(logging.Discard()),
		WithRateLimiter(NewRateLimiter(logging.Discard(), 0, DefaultMaxWait)),
	)
	require.NoError(t, err)
	return c
}

func TestGetAuthenticatedUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id": 42, "login": "octocat", "name": "The Octocat", "avatar_url": "https://avatars/octocat"}`)
	})

	user, err := newTestCollector(t, mux).GetAuthenticatedUser(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(42), user.GitHubID)
	assert.Equal(t, "octocat", user.Login)
	require.NotNil(t, user.Name)
	assert.Equal(t, "The Octocat", *user.Name)
	assert.Nil(t, user.Email)
	assert.Equal(t, "github", user.Provider)
}

func TestListUserRepositoriesPaginatesUpToLimit(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/user/repos?page=2>; rel="next"`, "http://"+r.Host))
			fmt.Fprint(w, `[{"id":1,"name":"a","full_name":"me/a","owner":{"login":"me"}},{"id":2,"name":"b","full_name":"me/b","archived":true,"owner":{"login":"me"}}]`)
			return
		}
		fmt.Fprint(w, `[{"id":3,"name":"c","full_name":"me/c","description":"third","owner":{"login":"me"}},{"id":4,"name":"d","full_name":"me/d","owner":{"login":"me"}}]`)
	})

	repos, err := newTestCollector(t, mux).ListUserRepositories(context.Background(), 3)
	require.NoError(t, err)

	require.Len(t, repos, 3)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "me/a", repos[0].FullName)
	assert.True(t, repos[1].Archived)
	require.NotNil(t, repos[2].Description)
	assert.Equal(t, "third", *repos[2].Description)
	assert.Equal(t, "me", repos[2].Owner)
}

func TestGetRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/me/app", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":7,"name":"app","full_name":"me/app","html_url":"https://github.com/me/app","private":true,"owner":{"login":"me"}}`)
	})

	repo, err := newTestCollector(t, mux).GetRepository(context.Background(), "me", "app")
	require.NoError(t, err)
	assert.Equal(t, int64(7), repo.ID)
	assert.Equal(t, "https://github.com/me/app", repo.HTMLURL)
	assert.True(t, repo.Private)
	assert.Nil(t, repo.Description)
}

func TestListCommitsMapsFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/me/app/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"sha":"abc","commit":{"message":"fix","author":{"name":"Ada","date":"2024-03-05T10:00:00Z"}},"author":{"login":"ada","avatar_url":"https://avatars/ada"}},
			{"sha":"def","commit":{"message":"init","author":{"name":"","date":"2024-03-04T09:00:00Z"}},"author":{"login":"bob"}}
		]`)
	})

	commits, err := newTestCollector(t, mux).ListCommits(context.Background(), "me", "app", CommitOptions{PerPage: 10, MaxPages: 1})
	require.NoError(t, err)
	require.Len(t, commits, 2)

	assert.Equal(t, "abc", commits[0].SHA)
	assert.Equal(t, "Ada", commits[0].Author)
	assert.Equal(t, "https://avatars/ada", commits[0].Avatar)
	assert.Equal(t, "me/app", commits[0].Repo)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), commits[0].Date)
	assert.Equal(t, "bob", commits[1].Author, "falls back to the GitHub login")
}

func TestListCommitsStopsAtMaxPages(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/me/app/commits", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/me/app/commits?page=%d>; rel="next"`, r.Host, calls+1))
		fmt.Fprintf(w, `[{"sha":"c%d","commit":{"message":"m","author":{"name":"Ada","date":"2024-03-05T10:00:00Z"}}}]`, calls)
	})

	commits, err := newTestCollector(t, mux).ListCommits(context.Background(), "me", "app", CommitOptions{PerPage: 1, MaxPages: 3})
	require.NoError(t, err)
	assert.Len(t, commits, 3)
	assert.Equal(t, 3, calls)
}

func TestListCommitsEmptyRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/me/empty/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"Git Repository is empty."}`)
	})

	commits, err := newTestCollector(t, mux).ListCommits(context.Background(), "me", "empty", CommitOptions{})
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestListCommitsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/me/gone/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	_, err := newTestCollector(t, mux).ListCommits(context.Background(), "me", "gone", CommitOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUnauthorizedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	})

	_, err := newTestCollector(t, mux).GetAuthenticatedUser(context.Background())
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestListCollaborators(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/me/app/collaborators", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"login":"ada","avatar_url":"https://avatars/ada","html_url":"https://github.com/ada","permissions":{"pull":true,"push":true,"admin":false}}]`)
	})

	collabs, err := newTestCollector(t, mux).ListCollaborators(context.Background(), "me", "app")
	require.NoError(t, err)
	require.Len(t, collabs, 1)

	assert.Equal(t, "ada", collabs[0].Login)
	assert.Equal(t, "https://github.com/ada", collabs[0].HTMLURL)
	assert.True(t, collabs[0].Permissions.Push)
	assert.False(t, collabs[0].Permissions.Admin)
}

func TestSplitFullName(t *testing.T) {
	owner, repo, err := SplitFullName("octocat/hello-world")
	require.NoError(t, err)
	assert.Equal(t, "octocat", owner)
	assert.Equal(t, "hello-world", repo)

	for _, bad := range []string{"", "octocat", "/repo", "owner/", "a/b/c"} {
		_, _, err := SplitFullName(bad)
		assert.Error(t, err, bad)
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	rl := NewRateLimiter(logging.Discard(), 0, time.Minute)
	rl.UpdateLimit(0, time.Now().Add(30*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)

	remaining, _, err := rl.CheckLimit()
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	rl := NewRateLimiter(logging.Discard(), 0, DefaultMaxWait)
	rl.UpdateLimit(1, time.Now().Add(-time.Second))

	require.NoError(t, rl.Wait(context.Background()))

	remaining, _, _ := rl.CheckLimit()
	assert.Equal(t, defaultRateLimit, remaining)
}

func TestRateLimiterFailsFastWhenResetIsFar(t *testing.T) {
	rl := NewRateLimiter(logging.Discard(), 0, time.Second)
	rl.UpdateLimit(5, time.Now().Add(time.Hour))

	start := time.Now()
	err := rl.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestListCommitsRateLimitedMidPagination(t *testing.T) {
	var calls int
	reset := time.Now().Add(time.Hour).Unix()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/me/app/commits", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "5")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset))
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/me/app/commits?page=%d>; rel="next"`, r.Host, calls+1))
		fmt.Fprintf(w, `[{"sha":"c%d","commit":{"message":"m","author":{"name":"Ada","date":"2024-03-05T10:00:00Z"}}}]`, calls)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := newTestCollector(t, mux).ListCommits(ctx, "me", "app", CommitOptions{PerPage: 1, MaxPages: 2})
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFactorySharesRateLimiterPerToken(t *testing.T) {
	factory, err := NewFactory(logging.Discard())
	require.NoError(t, err)

	limiter := func(token string) RateLimiter {
		c, ok := factory(token).(*githubCollector)
		require.True(t, ok)
		return c.rateLimiter
	}

	first := limiter("token-a")
	first.UpdateLimit(7, time.Now().Add(time.Minute))

	assert.Same(t, first, limiter("token-a"))
	assert.NotSame(t, first, limiter("token-b"))

	remaining, _, err := limiter("token-a").CheckLimit()
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
}
