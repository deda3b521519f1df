package domain

// Overview backs the dashboard stat cards and the daily commit chart
type Overview struct {
	Repositories  int          `json:"repositories"`
	Organisations int          `json:"organisations"`
	Members       int          `json:"members"`
	DailyCommits  []DailyCount `json:"daily_commits"`
}

// CommitHistory is every commit of the user's repositories plus daily totals
type CommitHistory struct {
	Commits      []*Commit    `json:"commits"`
	DailyCommits []DailyCount `json:"daily_commits"`
}

// ContributorChart is a stacked bar chart of commits per contributor
type ContributorChart struct {
	Series  []ContributorSeries `json:"series"`
	Buckets []ContributorBucket `json:"buckets"`
}

// OrgActivity backs the organisation view tabs
type OrgActivity struct {
	Organisation  *Organisation    `json:"organisation"`
	RecentCommits []*Commit        `json:"recent_commits"`
	Leaderboard   []*Contributor   `json:"leaderboard"`
	WeeklyChart   ContributorChart `json:"weekly_chart"`
}

// RepoInsights backs the repository insights popup
type RepoInsights struct {
	FullName     string              `json:"full_name"`
	Commits      []*Commit           `json:"commits"`
	Contributors []ContributorSeries `json:"contributors"`
	DailyChart   ContributorChart    `json:"daily_chart"`
}

// RepoCollaborators lists the collaborators of one registered repository
type RepoCollaborators struct {
	FullName      string          `json:"full_name"`
	Collaborators []*Collaborator `json:"collaborators"`
}

// CollaboratorSync is the outcome of syncing collaborators into members
type CollaboratorSync struct {
	Repositories  []RepoCollaborators `json:"repositories"`
	Collaborators []*Collaborator     `json:"collaborators"`
	NewMembers    int                 `json:"new_members"`
}
