package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/syscope/internal/auth"
	"github.com/kurihiro0119/syscope/internal/dashboard"
	"github.com/kurihiro0119/syscope/internal/domain"
	apperrors "github.com/kurihiro0119/syscope/internal/errors"
)

const (
	stateCookie    = "syscope_oauth_state"
	stateCookieTTL = 10 * time.Minute
	userKey        = "user"
)

// Handler handles API requests
type Handler struct {
	dashboard *dashboard.Service
	oauth     *auth.OAuth
	secure    bool
}

// NewHandler creates a new API handler. secure marks the OAuth state cookie
// as HTTPS only.
func NewHandler(svc *dashboard.Service, oauth *auth.OAuth, secure bool) *Handler {
	return &Handler{
		dashboard: svc,
		oauth:     oauth,
		secure:    secure,
	}
}

// HealthCheck returns the health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Login redirects to the GitHub consent page
// GET /auth/login
func (h *Handler) Login(c *gin.Context) {
	state := auth.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateCookieTTL.Seconds()), "/auth", "", h.secure, true)
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// Callback completes the GitHub login and returns a session token
// GET /auth/callback
func (h *Handler) Callback(c *gin.Context) {
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		respondError(c, apperrors.NewBadRequestError("invalid OAuth state"))
		return
	}
	c.SetCookie(stateCookie, "", -1, "/auth", "", h.secure, true)

	if msg := c.Query("error_description"); msg != "" {
		respondError(c, apperrors.NewUnauthorizedError(msg))
		return
	}

	session, err := h.dashboard.Login(c.Request.Context(), c.Query("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": session,
	})
}

// Me returns the signed-in user
// GET /api/v1/me
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"data": currentUser(c),
	})
}

// Logout signs the user out
// POST /api/v1/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.dashboard.Logout(c.Request.Context(), currentUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetOverview returns the dashboard stat cards and daily commit chart
// GET /api/v1/dashboard/overview
func (h *Handler) GetOverview(c *gin.Context) {
	overview, err := h.dashboard.Overview(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": overview,
	})
}

// GetActivity returns the most recent commits across the user's repositories
// GET /api/v1/dashboard/activity
func (h *Handler) GetActivity(c *gin.Context) {
	commits, err := h.dashboard.RecentActivity(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": commits,
	})
}

// GetCommits returns every commit of the user's repositories. An optional
// limit query parameter truncates the commit list; daily totals always
// cover every commit.
// GET /api/v1/dashboard/commits
func (h *Handler) GetCommits(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := h.dashboard.AllCommits(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if limit > 0 && len(history.Commits) > limit {
		history = &domain.CommitHistory{
			Commits:      history.Commits[:limit],
			DailyCommits: history.DailyCommits,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": history,
	})
}

// ClearCache drops the user's cached commit views
// DELETE /api/v1/dashboard/cache
func (h *Handler) ClearCache(c *gin.Context) {
	removed := h.dashboard.InvalidateCache(currentUser(c))
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"removed": removed},
	})
}

// GetGitHubRepos lists the user's GitHub repositories
// GET /api/v1/github/repos
func (h *Handler) GetGitHubRepos(c *gin.Context) {
	repos, err := h.dashboard.GitHubRepositories(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": repos,
	})
}

// GetRepos lists the user's registered repositories
// GET /api/v1/repos
func (h *Handler) GetRepos(c *gin.Context) {
	repos, err := h.dashboard.RegisteredRepositories(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": repos,
	})
}

// GetAvailableRepos lists repositories that can still be registered
// GET /api/v1/repos/available
func (h *Handler) GetAvailableRepos(c *gin.Context) {
	repos, err := h.dashboard.AvailableRepositories(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": repos,
	})
}

// AddRepoRequest is the body of POST /api/v1/repos
type AddRepoRequest struct {
	FullName string `json:"full_name" binding:"required"`
}

// AddRepo registers a repository
// POST /api/v1/repos
func (h *Handler) AddRepo(c *gin.Context) {
	var req AddRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("full_name is required"))
		return
	}

	repo, err := h.dashboard.RegisterRepository(c.Request.Context(), currentUser(c), req.FullName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": repo,
	})
}

// RemoveRepo unregisters a repository
// DELETE /api/v1/repos/:id
func (h *Handler) RemoveRepo(c *gin.Context) {
	if err := h.dashboard.UnregisterRepository(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRepoInsights returns the latest commits and contributors of a repository
// GET /api/v1/repos/:owner/:name/insights
func (h *Handler) GetRepoInsights(c *gin.Context) {
	fullName := c.Param("owner") + "/" + c.Param("name")

	insights, err := h.dashboard.RepositoryInsights(c.Request.Context(), currentUser(c), fullName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": insights,
	})
}

// GetOrgs lists the user's organisations
// GET /api/v1/orgs
func (h *Handler) GetOrgs(c *gin.Context) {
	orgs, err := h.dashboard.Organisations(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": orgs,
	})
}

// CreateOrgRequest is the body of POST /api/v1/orgs
type CreateOrgRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateOrg creates an organisation
// POST /api/v1/orgs
func (h *Handler) CreateOrg(c *gin.Context) {
	var req CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewBadRequestError("invalid request body"))
		return
	}

	org, err := h.dashboard.CreateOrganisation(c.Request.Context(), currentUser(c), req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": org,
	})
}

// GetOrg returns one organisation
// GET /api/v1/orgs/:id
func (h *Handler) GetOrg(c *gin.Context) {
	org, err := h.dashboard.Organisation(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": org,
	})
}

// GetOrgActivity returns recent commits, leaderboard and weekly chart
// GET /api/v1/orgs/:id/activity
func (h *Handler) GetOrgActivity(c *gin.Context) {
	activity, ok := h.orgActivity(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": activity,
	})
}

// GetOrgLeaderboard returns the organisation leaderboard
// GET /api/v1/orgs/:id/leaderboard
func (h *Handler) GetOrgLeaderboard(c *gin.Context) {
	activity, ok := h.orgActivity(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": activity.Leaderboard,
	})
}

// GetOrgChart returns the weekly per-contributor chart
// GET /api/v1/orgs/:id/chart
func (h *Handler) GetOrgChart(c *gin.Context) {
	activity, ok := h.orgActivity(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": activity.WeeklyChart,
	})
}

func (h *Handler) orgActivity(c *gin.Context) (*domain.OrgActivity, bool) {
	activity, err := h.dashboard.OrganisationActivity(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return activity, true
}

// GetMembers lists every known member
// GET /api/v1/members
func (h *Handler) GetMembers(c *gin.Context) {
	members, err := h.dashboard.Members(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": members,
	})
}

// SyncMembers records the collaborators of the user's registered repositories
// POST /api/v1/members/sync
func (h *Handler) SyncMembers(c *gin.Context) {
	result, err := h.dashboard.SyncCollaborators(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": result,
	})
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.NewBadRequestError("limit must be a non-negative integer")
	}
	return limit, nil
}

func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeForbidden:
			status = http.StatusForbidden
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case apperrors.ErrCodeConflict:
			status = http.StatusConflict
		case apperrors.ErrCodeUpstream:
			status = http.StatusBadGateway
		}
		if status >= http.StatusInternalServerError {
			log.FromContext(c.Request.Context()).Error("request failed", "err", err)
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	// Raw errors may carry driver or network details
	log.FromContext(c.Request.Context()).Error("request failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": "internal server error",
		},
	})
}
