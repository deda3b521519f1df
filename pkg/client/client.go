package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/syscope/internal/domain"
)

// Client is the API client for syscope
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// APIError is an error response returned by the API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error: %s: %s", e.Code, e.Message)
}

// NewClient creates a new API client authenticated with a session token
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			// Cold commit views fetch every page of every repository
			Timeout: 5 * time.Minute,
		},
	}
}

// Me retrieves the signed-in user
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.get(ctx, "/api/v1/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout signs the user out on the server
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/logout", nil, nil, nil)
}

// Overview retrieves the dashboard stat cards and daily commits
func (c *Client) Overview(ctx context.Context) (*domain.Overview, error) {
	var overview domain.Overview
	if err := c.get(ctx, "/api/v1/dashboard/overview", nil, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// RecentActivity retrieves the newest commits across the user's repositories
func (c *Client) RecentActivity(ctx context.Context) ([]*domain.Commit, error) {
	var commits []*domain.Commit
	if err := c.get(ctx, "/api/v1/dashboard/activity", nil, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// Commits retrieves the commit history; limit 0 returns every commit
func (c *Client) Commits(ctx context.Context, limit int) (*domain.CommitHistory, error) {
	var params url.Values
	if limit > 0 {
		params = url.Values{"limit": {strconv.Itoa(limit)}}
	}

	var history domain.CommitHistory
	if err := c.get(ctx, "/api/v1/dashboard/commits", params, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// ClearCache drops the user's cached commit views
func (c *Client) ClearCache(ctx context.Context) (int, error) {
	var result struct {
		Removed int `json:"removed"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/v1/dashboard/cache", nil, nil, &result); err != nil {
		return 0, err
	}
	return result.Removed, nil
}

// GitHubRepositories lists the user's GitHub repositories
func (c *Client) GitHubRepositories(ctx context.Context) ([]*domain.GitHubRepo, error) {
	var repos []*domain.GitHubRepo
	if err := c.get(ctx, "/api/v1/github/repos", nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// Repositories lists the registered repositories
func (c *Client) Repositories(ctx context.Context) ([]*domain.RepoRegistration, error) {
	var repos []*domain.RepoRegistration
	if err := c.get(ctx, "/api/v1/repos", nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// AvailableRepositories lists repositories that can still be registered
func (c *Client) AvailableRepositories(ctx context.Context) ([]*domain.GitHubRepo, error) {
	var repos []*domain.GitHubRepo
	if err := c.get(ctx, "/api/v1/repos/available", nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// AddRepository registers owner/name
func (c *Client) AddRepository(ctx context.Context, fullName string) (*domain.RepoRegistration, error) {
	body := map[string]string{"full_name": fullName}

	var repo domain.RepoRegistration
	if err := c.do(ctx, http.MethodPost, "/api/v1/repos", nil, body, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// RemoveRepository unregisters a repository by registration id
func (c *Client) RemoveRepository(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/repos/"+url.PathEscape(id), nil, nil, nil)
}

// RepositoryInsights retrieves commits and contributors of owner/name
func (c *Client) RepositoryInsights(ctx context.Context, owner, name string) (*domain.RepoInsights, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/insights", url.PathEscape(owner), url.PathEscape(name))

	var insights domain.RepoInsights
	if err := c.get(ctx, path, nil, &insights); err != nil {
		return nil, err
	}
	return &insights, nil
}

// Organisations lists the user's organisations
func (c *Client) Organisations(ctx context.Context) ([]*domain.Organisation, error) {
	var orgs []*domain.Organisation
	if err := c.get(ctx, "/api/v1/orgs", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// CreateOrganisation creates an organisation
func (c *Client) CreateOrganisation(ctx context.Context, name, description string) (*domain.Organisation, error) {
	body := map[string]string{"name": name, "description": description}

	var org domain.Organisation
	if err := c.do(ctx, http.MethodPost, "/api/v1/orgs", nil, body, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// Organisation retrieves one organisation
func (c *Client) Organisation(ctx context.Context, id string) (*domain.Organisation, error) {
	var org domain.Organisation
	if err := c.get(ctx, "/api/v1/orgs/"+url.PathEscape(id), nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// OrganisationActivity retrieves recent commits, leaderboard and weekly chart
func (c *Client) OrganisationActivity(ctx context.Context, id string) (*domain.OrgActivity, error) {
	var activity domain.OrgActivity
	if err := c.get(ctx, "/api/v1/orgs/"+url.PathEscape(id)+"/activity", nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// OrganisationLeaderboard retrieves the organisation leaderboard
func (c *Client) OrganisationLeaderboard(ctx context.Context, id string) ([]*domain.Contributor, error) {
	var board []*domain.Contributor
	if err := c.get(ctx, "/api/v1/orgs/"+url.PathEscape(id)+"/leaderboard", nil, &board); err != nil {
		return nil, err
	}
	return board, nil
}

// OrganisationChart retrieves the weekly per-contributor chart of an organisation
func (c *Client) OrganisationChart(ctx context.Context, id string) (*domain.ContributorChart, error) {
	var chart domain.ContributorChart
	if err := c.get(ctx, "/api/v1/orgs/"+url.PathEscape(id)+"/chart", nil, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}

// Members lists every known member
func (c *Client) Members(ctx context.Context) ([]*domain.Member, error) {
	var members []*domain.Member
	if err := c.get(ctx, "/api/v1/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SyncMembers records the collaborators of the registered repositories
func (c *Client) SyncMembers(ctx context.Context) (*domain.CollaboratorSync, error) {
	var result domain.CollaboratorSync
	if err := c.do(ctx, http.MethodPost, "/api/v1/members/sync", nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, result)
}

// do sends a request and decodes the data envelope into result. A nil
// result ignores the response body.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	envelope := struct {
		Data interface{} `json:"data"`
	}{Data: result}
	return json.NewDecoder(resp.Body).Decode(&envelope)
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{Status: resp.StatusCode, Code: envelope.Error.Code, Message: envelope.Error.Message}
}
