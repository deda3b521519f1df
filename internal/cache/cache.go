// Package cache keeps commit listings fetched from GitHub in memory so the
// dashboard views do not refetch them on every request.
package cache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kurihiro0119/syscope/internal/domain"
	"github.com/kurihiro0119/syscope/internal/metrics"
)

// View names a cached commit listing
type View string

const (
	ViewAllCommits  View = "all_commits"
	ViewRecent      View = "recent"
	ViewOrgActivity View = "org_activity"
	ViewInsights    View = "insights"
)

// CommitCache is a size-bounded LRU of commit listings whose entries expire
// after a fixed TTL
type CommitCache struct {
	lru *expirable.LRU[string, []*domain.Commit]
}

// New creates a commit cache holding at most size entries for ttl each
func New(size int, ttl time.Duration) *CommitCache {
	if size <= 0 {
		size = 1
	}
	return &CommitCache{
		lru: expirable.NewLRU[string, []*domain.Commit](size, nil, ttl),
	}
}

// Key builds the cache key for a user's view, optionally narrowed by arg
func Key(uid string, view View, arg string) string {
	if arg == "" {
		return uid + ":" + string(view)
	}
	return uid + ":" + string(view) + ":" + arg
}

// Get returns the cached commits for key
func (c *CommitCache) Get(key string) ([]*domain.Commit, bool) {
	commits, ok := c.lru.Get(key)
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return commits, ok
}

// Set stores commits under key
func (c *CommitCache) Set(key string, commits []*domain.Commit) {
	c.lru.Add(key, commits)
}

// Invalidate drops every entry belonging to uid and returns how many were removed
func (c *CommitCache) Invalidate(uid string) int {
	prefix := uid + ":"
	removed := 0
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) && c.lru.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries
func (c *CommitCache) Len() int {
	return c.lru.Len()
}
