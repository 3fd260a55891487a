package handler

import (
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/docassist/internal/middleware"
)

type RouterDeps struct {
	Assistant       *AssistantHandler
	StaticDir       string
	CORSOrigins     []string
	RateLimitWindow time.Duration
}

func NewRouter(deps RouterDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.CORS(deps.CORSOrigins),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/assistant/stream"})),
	)

	engine.GET("/health", Health)

	api := engine.Group("/api")
	if deps.RateLimitWindow > 0 {
		api.Use(middleware.RateLimit(deps.RateLimitWindow))
	}
	api.POST("/assistant", deps.Assistant.Ask)
	api.POST("/assistant/stream", deps.Assistant.Stream)
	api.POST("/assistant/feedback", deps.Assistant.Feedback)

	if deps.StaticDir != "" {
		engine.NoRoute(StaticSite(deps.StaticDir))
	}
	return engine
}
