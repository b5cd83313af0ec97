// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arbiterhq/arbiter/controller"
	"github.com/arbiterhq/arbiter/metrics"
	"github.com/arbiterhq/arbiter/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(middleware.TenantRequired())

	controllers.Decision.RegisterRoutes(api)
	controllers.Policy.RegisterRoutes(api)
	controllers.Identity.RegisterRoutes(api)
	controllers.Audit.RegisterRoutes(api)

	return router
}
