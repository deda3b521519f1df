// Package aggregator groups and ranks commits fetched from GitHub. Every
// function is pure; callers own fetching and caching.
package aggregator

import (
	"sort"
	"time"

	"github.com/kurihiro0119/syscope/internal/domain"
)

const dayLayout = "2006-01-02"

// SortNewestFirst sorts commits by date, newest first. Commits with equal
// dates keep their relative order.
func SortNewestFirst(commits []*domain.Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Date.After(commits[j].Date)
	})
}

// Recent returns the n newest commits. The input is not modified.
func Recent(commits []*domain.Commit, n int) []*domain.Commit {
	sorted := make([]*domain.Commit, len(commits))
	copy(sorted, commits)
	SortNewestFirst(sorted)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// DailyCounts groups commits by UTC day, oldest day first
func DailyCounts(commits []*domain.Commit) []domain.DailyCount {
	counts := make(map[string]int)
	for _, c := range commits {
		counts[c.Date.UTC().Format(dayLayout)]++
	}

	days := make([]string, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Strings(days)

	result := make([]domain.DailyCount, 0, len(days))
	for _, day := range days {
		result = append(result, domain.DailyCount{Date: day, Count: counts[day]})
	}
	return result
}

// Leaderboard ranks authors by commit count, highest first. Ties keep the
// order in which authors first appear. The avatar is taken from the author's
// first commit that carries one.
func Leaderboard(commits []*domain.Commit) []*domain.Contributor {
	byLogin := make(map[string]*domain.Contributor)
	ranked := []*domain.Contributor{}

	for _, c := range commits {
		contributor, ok := byLogin[c.Author]
		if !ok {
			contributor = &domain.Contributor{
				Login: c.Author,
				Color: ContributorColor(c.Author),
			}
			byLogin[c.Author] = contributor
			ranked = append(ranked, contributor)
		}
		if contributor.Avatar == "" {
			contributor.Avatar = c.Avatar
		}
		contributor.Commits++
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Commits > ranked[j].Commits
	})
	return ranked
}

// UniqueAuthors returns author names in order of first appearance
func UniqueAuthors(commits []*domain.Commit) []string {
	seen := make(map[string]struct{})
	var authors []string
	for _, c := range commits {
		if _, ok := seen[c.Author]; ok {
			continue
		}
		seen[c.Author] = struct{}{}
		authors = append(authors, c.Author)
	}
	return authors
}

// Series returns one chart series per author with its stable colour
func Series(authors []string) []domain.ContributorSeries {
	series := make([]domain.ContributorSeries, 0, len(authors))
	for _, a := range authors {
		series = append(series, domain.ContributorSeries{Login: a, Color: ContributorColor(a)})
	}
	return series
}

// DailyByContributor counts commits per author per UTC day, oldest day first.
// Only days with commits are present.
func DailyByContributor(commits []*domain.Commit) []domain.ContributorBucket {
	buckets := make(map[string]map[string]int)
	for _, c := range commits {
		day := c.Date.UTC().Format(dayLayout)
		if buckets[day] == nil {
			buckets[day] = make(map[string]int)
		}
		buckets[day][c.Author]++
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	result := make([]domain.ContributorBucket, 0, len(days))
	for _, day := range days {
		result = append(result, domain.ContributorBucket{Period: day, Counts: buckets[day]})
	}
	return result
}

// WeeklyByContributor counts commits per author per UTC week. Weeks start on
// Monday and are labelled by that Monday's date. Every week between the first
// and the last commit is present, empty weeks included.
func WeeklyByContributor(commits []*domain.Commit) []domain.ContributorBucket {
	if len(commits) == 0 {
		return []domain.ContributorBucket{}
	}

	buckets := make(map[time.Time]map[string]int)
	first, last := time.Time{}, time.Time{}
	for _, c := range commits {
		week := startOfWeek(c.Date.UTC())
		if buckets[week] == nil {
			buckets[week] = make(map[string]int)
		}
		buckets[week][c.Author]++
		if first.IsZero() || week.Before(first) {
			first = week
		}
		if week.After(last) {
			last = week
		}
	}

	var result []domain.ContributorBucket
	for current := first; !current.After(last); current = current.AddDate(0, 0, 7) {
		counts := buckets[current]
		if counts == nil {
			counts = map[string]int{}
		}
		result = append(result, domain.ContributorBucket{Period: current.Format(dayLayout), Counts: counts})
	}
	return result
}

// UniqueCollaborators merges collaborator lists, keeping the first entry seen
// for each login
func UniqueCollaborators(lists ...[]*domain.Collaborator) []*domain.Collaborator {
	seen := make(map[string]struct{})
	result := []*domain.Collaborator{}
	for _, list := range lists {
		for _, c := range list {
			if _, ok := seen[c.Login]; ok {
				continue
			}
			seen[c.Login] = struct{}{}
			result = append(result, c)
		}
	}
	return result
}

// startOfWeek truncates t to midnight of the Monday starting its week
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()-weekday+1, 0, 0, 0, 0, t.Location())
}
