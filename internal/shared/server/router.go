package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"compare-backend/internal/analyses"
	"compare-backend/internal/export"
	"compare-backend/internal/services/health"
	"compare-backend/internal/shared/config"
	"compare-backend/internal/shared/metrics"
	"compare-backend/internal/shared/server/middleware"
	"compare-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers mounted on the API group.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *analyses.Handler
	ExportHandler   *export.Handler
	Health          *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.WriteLimit(deps.Config.WriteRateRPS, deps.Config.WriteRateBurst),
	)
	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, analyses.ErrorCodeNotFound, "route not found", nil)
	})

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		report := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	api.GET("/metrics", metrics.Handler())

	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.ExportHandler != nil {
		deps.ExportHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
