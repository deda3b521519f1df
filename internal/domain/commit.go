package domain

import "time"

// Commit is a single commit pulled live from GitHub. Commits are never stored
// as records; they only live in the commit cache.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	Avatar  string    `json:"avatar,omitempty"`
	Repo    string    `json:"repo,omitempty"`
}

// Contributor is a leaderboard row
type Contributor struct {
	Login   string `json:"login"`
	Avatar  string `json:"avatar,omitempty"`
	Commits int    `json:"commits"`
	Color   string `json:"color"`
}

// DailyCount is the number of commits made on a UTC day (YYYY-MM-DD)
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ContributorBucket holds per-contributor commit counts for one period
type ContributorBucket struct {
	Period string         `json:"period"`
	Counts map[string]int `json:"counts"`
}

// ContributorSeries describes one stacked series in a contributor chart
type ContributorSeries struct {
	Login string `json:"login"`
	Color string `json:"color"`
}
