package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/syscope/internal/config"
	"github.com/kurihiro0119/syscope/pkg/client"
)

var (
	outputJSON  bool
	commitLimit int
)

var rootCmd = &cobra.Command{
	Use:   "syscope",
	Short: "GitHub repository dashboard",
	Long: `A CLI for the syscope dashboard API.

Register GitHub repositories, group them into organisations and inspect
commit activity and contributors. Log in through the web flow at
/auth/login and export the returned session token as SYSCOPE_TOKEN.`,
	SilenceUsage: true,
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runMe,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and revoke the session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show dashboard totals and daily commits",
	Args:  cobra.NoArgs,
	RunE:  runOverview,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the most recent commits",
	Args:  cobra.NoArgs,
	RunE:  runActivity,
}

var commitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Show the commit history",
	Args:  cobra.NoArgs,
	RunE:  runCommits,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached commit views",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached commit views",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List registered repositories",
	Args:  cobra.NoArgs,
	RunE:  runRepos,
}

var reposGitHubCmd = &cobra.Command{
	Use:   "github",
	Short: "List your GitHub repositories",
	Args:  cobra.NoArgs,
	RunE:  runReposGitHub,
}

var reposAvailableCmd = &cobra.Command{
	Use:   "available",
	Short: "List repositories that can be registered",
	Args:  cobra.NoArgs,
	RunE:  runReposAvailable,
}

var reposAddCmd = &cobra.Command{
	Use:   "add [owner/repo]",
	Short: "Register a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposAdd,
}

var reposRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Unregister a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runReposRemove,
}

var insightsCmd = &cobra.Command{
	Use:   "insights [owner/repo]",
	Short: "Show recent commits and contributors of a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsights,
}

var orgsCmd = &cobra.Command{
	Use:   "orgs",
	Short: "List organisations",
	Args:  cobra.NoArgs,
	RunE:  runOrgs,
}

var orgsCreateCmd = &cobra.Command{
	Use:   "create [name] [description]",
	Short: "Create an organisation",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runOrgsCreate,
}

var orgsActivityCmd = &cobra.Command{
	Use:   "activity [id]",
	Short: "Show recent commits of an organisation",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrgsActivity,
}

var orgsLeaderboardCmd = &cobra.Command{
	Use:   "leaderboard [id]",
	Short: "Show the contributor leaderboard of an organisation",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrgsLeaderboard,
}

var orgsChartCmd = &cobra.Command{
	Use:   "chart [id]",
	Short: "Show weekly commits per contributor of an organisation",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrgsChart,
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List members",
	Args:  cobra.NoArgs,
	RunE:  runMembers,
}

var membersSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Record collaborators of registered repositories as members",
	Args:  cobra.NoArgs,
	RunE:  runMembersSync,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	commitsCmd.Flags().IntVar(&commitLimit, "limit", 50, "maximum number of commits to show (0 for all)")

	rootCmd.AddCommand(meCmd, logoutCmd, overviewCmd, activityCmd, commitsCmd, cacheCmd,
		reposCmd, insightsCmd, orgsCmd, membersCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	reposCmd.AddCommand(reposGitHubCmd, reposAvailableCmd, reposAddCmd, reposRemoveCmd)
	orgsCmd.AddCommand(orgsCreateCmd, orgsActivityCmd, orgsLeaderboardCmd, orgsChartCmd)
	membersCmd.AddCommand(membersSyncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getClient() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return client.NewClient(cfg.APIEndpoint, cfg.Token), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	return table
}

func runMe(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	user, err := c.Me(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if outputJSON {
		return printJSON(user)
	}

	table := newTable("Field", "Value")
	table.Append([]string{"Login", user.Login})
	table.Append([]string{"Name", deref(user.Name)})
	table.Append([]string{"Email", deref(user.Email)})
	table.Append([]string{"Last login", since(user.LastLoginAt)})
	table.Render()
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	if err := c.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	fmt.Println("Logged out")
	return nil
}

func runOverview(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	overview, err := c.Overview(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get overview: %w", err)
	}
	if outputJSON {
		return printJSON(overview)
	}

	table := newTable("Metric", "Value")
	table.Append([]string{"Repositories", fmt.Sprintf("%d", overview.Repositories)})
	table.Append([]string{"Organisations", fmt.Sprintf("%d", overview.Organisations)})
	table.Append([]string{"Members", fmt.Sprintf("%d", overview.Members)})
	table.Render()

	if len(overview.DailyCommits) == 0 {
		return nil
	}
	fmt.Println()
	printDailyCounts(overview.DailyCommits)
	return nil
}

func runActivity(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	commits, err := c.RecentActivity(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get activity: %w", err)
	}
	if outputJSON {
		return printJSON(commits)
	}
	printCommits(commits)
	return nil
}

func runCommits(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	history, err := c.Commits(cmd.Context(), commitLimit)
	if err != nil {
		return fmt.Errorf("failed to get commits: %w", err)
	}
	if outputJSON {
		return printJSON(history)
	}
	printCommits(history.Commits)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	removed, err := c.ClearCache(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Printf("Removed %d cached views\n", removed)
	return nil
}

func runRepos(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	repos, err := c.Repositories(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get repositories: %w", err)
	}
	if outputJSON {
		return printJSON(repos)
	}

	table := newTable("ID", "Repository", "Description", "Registered")
	for _, r := range repos {
		table.Append([]string{r.ID, r.FullName, deref(r.Description), since(r.CreatedAt)})
	}
	table.Render()
	return nil
}

func runReposGitHub(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	repos, err := c.GitHubRepositories(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get repositories: %w", err)
	}
	return printGitHubRepos(repos)
}

func runReposAvailable(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	repos, err := c.AvailableRepositories(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get repositories: %w", err)
	}
	return printGitHubRepos(repos)
}

func runReposAdd(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	repo, err := c.AddRepository(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to register repository: %w", err)
	}
	if outputJSON {
		return printJSON(repo)
	}
	fmt.Printf("Registered %s (%s)\n", repo.FullName, repo.ID)
	return nil
}

func runReposRemove(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}
	if err := c.RemoveRepository(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to unregister repository: %w", err)
	}
	fmt.Println("Repository removed")
	return nil
}

func runInsights(cmd *cobra.Command, args []string) error {
	owner, name, ok := strings.Cut(args[0], "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("repository must be in owner/repo form: %q", args[0])
	}

	c, err := getClient()
	if err != nil {
		return err
	}

	insights, err := c.RepositoryInsights(cmd.Context(), owner, name)
	if err != nil {
		return fmt.Errorf("failed to get insights: %w", err)
	}
	if outputJSON {
		return printJSON(insights)
	}

	fmt.Printf("\nRepository: %s\n\n", insights.FullName)
	printCommits(insights.Commits)
	fmt.Println()

	table := newTable("Contributor", "Commits")
	for _, s := range insights.Contributors {
		table.Append([]string{s.Login, fmt.Sprintf("%d", commitsBy(insights.DailyChart, s.Login))})
	}
	table.Render()
	return nil
}

func runOrgs(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	orgs, err := c.Organisations(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get organisations: %w", err)
	}
	if outputJSON {
		return printJSON(orgs)
	}

	table := newTable("ID", "Name", "Description", "Created")
	for _, o := range orgs {
		table.Append([]string{o.ID, o.Name, deref(o.Description), since(o.CreatedAt)})
	}
	table.Render()
	return nil
}

func runOrgsCreate(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	var description string
	if len(args) > 1 {
		description = args[1]
	}
	org, err := c.CreateOrganisation(cmd.Context(), args[0], description)
	if err != nil {
		return fmt.Errorf("failed to create organisation: %w", err)
	}
	if outputJSON {
		return printJSON(org)
	}
	fmt.Printf("Created organisation %s (%s)\n", org.Name, org.ID)
	return nil
}

func runOrgsActivity(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	activity, err := c.OrganisationActivity(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get organisation activity: %w", err)
	}
	if outputJSON {
		return printJSON(activity)
	}

	fmt.Printf("\nOrganisation: %s\n\n", activity.Organisation.Name)
	printCommits(activity.RecentCommits)
	return nil
}

func runOrgsLeaderboard(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	board, err := c.OrganisationLeaderboard(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get leaderboard: %w", err)
	}
	if outputJSON {
		return printJSON(board)
	}

	table := newTable("Rank", "Contributor", "Commits")
	for i, entry := range board {
		table.Append([]string{fmt.Sprintf("%d", i+1), entry.Login, fmt.Sprintf("%d", entry.Commits)})
	}
	table.Render()
	return nil
}

func runOrgsChart(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	chart, err := c.OrganisationChart(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get chart: %w", err)
	}
	if outputJSON {
		return printJSON(chart)
	}

	header := []string{"Week"}
	for _, s := range chart.Series {
		header = append(header, s.Login)
	}
	table := newTable(header...)
	for _, b := range chart.Buckets {
		row := []string{b.Period}
		for _, s := range chart.Series {
			row = append(row, fmt.Sprintf("%d", b.Counts[s.Login]))
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

func runMembers(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	members, err := c.Members(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get members: %w", err)
	}
	if outputJSON {
		return printJSON(members)
	}

	table := newTable("Login", "Profile", "First seen")
	for _, m := range members {
		table.Append([]string{m.Login, m.HTMLURL, since(m.FirstSeenAt)})
	}
	table.Render()
	return nil
}

func runMembersSync(cmd *cobra.Command, args []string) error {
	c, err := getClient()
	if err != nil {
		return err
	}

	result, err := c.SyncMembers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to sync members: %w", err)
	}
	if outputJSON {
		return printJSON(result)
	}

	table := newTable("Repository", "Collaborators")
	for _, r := range result.Repositories {
		table.Append([]string{r.FullName, fmt.Sprintf("%d", len(r.Collaborators))})
	}
	table.Render()
	fmt.Printf("\n%d unique collaborators, %d new members\n", len(result.Collaborators), result.NewMembers)
	return nil
}
