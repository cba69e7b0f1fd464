package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"abfeedback/api/config"
	"abfeedback/api/middleware"
)

// Routes groups the handler sets mounted by NewRouter.
type Routes struct {
	Behavior *BehaviorHandlers
	Feedback *FeedbackHandlers
	Stats    *StatsHandlers
	Variant  *VariantHandlers
	Auth     *AuthHandlers
}

func NewRouter(cfg *config.Config, h Routes) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.FEOrigin))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sinks": cfg.Sinks()})
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	api := r.Group("/api")
	{
		ingest := api.Group("/")
		ingest.Use(middleware.RateLimit(limiter))
		{
			ingest.POST("/behavior", h.Behavior.PostBehavior)
			ingest.POST("/feedback", h.Feedback.PostFeedback)
		}

		api.GET("/behavior", h.Behavior.ListBehaviors)
		api.GET("/feedback", h.Feedback.ListFeedbacks)
		api.GET("/feedback/analysis", h.Feedback.Analysis)
		api.GET("/feedback/compare", h.Feedback.Compare)
		api.GET("/variant", h.Variant.Assign)

		api.POST("/dashboard/login", middleware.RateLimit(limiter), h.Auth.Login)
		api.POST("/dashboard/logout", h.Auth.Logout)

		stats := api.Group("/stats")
		stats.Use(middleware.AuthRequired(cfg.JWTSecret, cfg.DefaultAPIKey))
		{
			stats.GET("/event-counts", h.Stats.GetEventCountsOverTime)
			stats.GET("/unique-sessions", h.Stats.GetUniqueSessionsOverTime)
			stats.GET("/top-paths", h.Stats.GetTopNPagePaths)
		}
	}

	return r
}
