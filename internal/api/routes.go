package api

import (
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler, logger *log.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(logger))
	router.Use(Metrics())

	// Health check and metrics
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// GitHub login
	authGroup := router.Group("/auth")
	{
		authGroup.GET("/login", handler.Login)
		authGroup.GET("/callback", handler.Callback)
	}

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(RequireSession(handler.dashboard))
	{
		v1.GET("/me", handler.Me)
		v1.POST("/logout", handler.Logout)

		dash := v1.Group("/dashboard")
		{
			dash.GET("/overview", handler.GetOverview)
			dash.GET("/activity", handler.GetActivity)
			dash.GET("/commits", handler.GetCommits)
			dash.DELETE("/cache", handler.ClearCache)
		}

		v1.GET("/github/repos", handler.GetGitHubRepos)

		repos := v1.Group("/repos")
		{
			repos.GET("", handler.GetRepos)
			repos.POST("", handler.AddRepo)
			repos.GET("/available", handler.GetAvailableRepos)
			repos.DELETE("/:id", handler.RemoveRepo)
			repos.GET("/:owner/:name/insights", handler.GetRepoInsights)
		}

		orgs := v1.Group("/orgs")
		{
			orgs.GET("", handler.GetOrgs)
			orgs.POST("", handler.CreateOrg)
			orgs.GET("/:id", handler.GetOrg)
			orgs.GET("/:id/activity", handler.GetOrgActivity)
			orgs.GET("/:id/leaderboard", handler.GetOrgLeaderboard)
			orgs.GET("/:id/chart", handler.GetOrgChart)
		}

		members := v1.Group("/members")
		{
			members.GET("", handler.GetMembers)
			members.POST("/sync", handler.SyncMembers)
		}
	}

	return router
}
