package delivery

import (
	"time"

	"adpivot/internal/delivery/middleware"
	"adpivot/pkg/logger"
	"adpivot/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPRouter struct {
	handlers    *HTTPHandlers
	logger      *logger.Logger
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	rateLimiter *middleware.RateLimiter
	timeout     time.Duration
}

func NewHTTPRouter(
	handlers *HTTPHandlers,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	gatherer prometheus.Gatherer,
	rateLimiter *middleware.RateLimiter,
	timeout time.Duration,
) *HTTPRouter {
	return &HTTPRouter{
		handlers:    handlers,
		logger:      logger,
		metrics:     metrics,
		gatherer:    gatherer,
		rateLimiter: rateLimiter,
		timeout:     timeout,
	}
}

func (r *HTTPRouter) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.Recovery(r.logger))
	router.Use(middleware.Metrics(r.metrics))

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	config.ExposeHeaders = []string{"X-Request-ID"}

	router.Use(cors.New(config))

	// Health endpoint
	router.GET("/health", r.handlers.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(r.rateLimiter.Handler())
	v1.Use(middleware.Timeout(r.timeout))
	{
		v1.GET("/", r.handlers.GetAPIInfo)
		v1.GET("", r.handlers.GetAPIInfo)

		// Pivot views
		v1.GET("/data", r.handlers.GetData)
		v1.GET("/drilldown", r.handlers.GetDrilldown)
		v1.GET("/summary", r.handlers.GetSummary)
		v1.GET("/ads", r.handlers.GetAds)

		// Facets
		for _, name := range []string{"products", "usecases", "angles", "offers"} {
			v1.GET("/"+name, r.handlers.GetFacet(name))
		}

		// Cache endpoints
		cache := v1.Group("/cache")
		{
			cache.POST("/invalidate", r.handlers.InvalidateCache)
		}

		// Export endpoints
		export := v1.Group("/export")
		{
			export.POST("/run", r.handlers.ExportRun)
		}
	}

	// Prometheus metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler(r.gatherer))

	return router
}
