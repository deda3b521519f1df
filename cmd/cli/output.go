package main

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kurihiro0119/syscope/internal/domain"
)

const messageWidth = 60

func printCommits(commits []*domain.Commit) {
	table := newTable("SHA", "Repository", "Author", "Message", "When")
	for _, c := range commits {
		table.Append([]string{shortSHA(c.SHA), c.Repo, c.Author, firstLine(c.Message), since(c.Date)})
	}
	table.Render()
}

func printDailyCounts(counts []domain.DailyCount) {
	table := newTable("Date", "Commits")
	for _, d := range counts {
		table.Append([]string{d.Date, humanize.Comma(int64(d.Count))})
	}
	table.Render()
}

func printGitHubRepos(repos []*domain.GitHubRepo) error {
	if outputJSON {
		return printJSON(repos)
	}

	table := newTable("Repository", "Visibility", "Description")
	for _, r := range repos {
		visibility := "public"
		if r.Private {
			visibility = "private"
		}
		if r.Archived {
			visibility += " (archived)"
		}
		table.Append([]string{r.FullName, visibility, deref(r.Description)})
	}
	table.Render()
	return nil
}

// commitsBy totals a contributor's commits across every bucket of a chart.
func commitsBy(chart domain.ContributorChart, login string) int {
	total := 0
	for _, b := range chart.Buckets {
		total += b.Counts[login]
	}
	return total
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(message string) string {
	line, _, _ := strings.Cut(message, "\n")
	if runes := []rune(line); len(runes) > messageWidth {
		return string(runes[:messageWidth-3]) + "..."
	}
	return line
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
