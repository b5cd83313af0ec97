// middleware/tenant.go

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/arbiterhq/arbiter/logging"
)

const TenantHeader = "X-Tenant-ID"

// TenantRequired rejects requests that carry no tenant header and places the
// tenant id on the request context for handlers downstream. Every data path
// in the service is tenant-scoped; there is no cross-tenant surface.
func TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantHeader)
		if tenantID == "" {
			logger.Warn("Request without tenant header",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Tenant-ID header is required"})
			c.Abort()
			return
		}

		c.Set("tenantID", tenantID)
		c.Next()
	}
}
