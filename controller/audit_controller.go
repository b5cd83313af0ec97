// controller/audit_controller.go
package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arbiterhq/arbiter/audit"
	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	"github.com/arbiterhq/arbiter/util"
	helper_util "github.com/arbiterhq/arbiter/util/helper"
)

type AuditController struct {
	repo audit.Repository
}

func NewAuditController(repo audit.Repository) *AuditController {
	return &AuditController{
		repo: repo,
	}
}

// RegisterRoutes registers the API routes
func (ac *AuditController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit/decisions", ac.QueryDecisions)
}

// QueryDecisions endpoint
func (ac *AuditController) QueryDecisions(c *gin.Context) {
	tenantID := util.GetTenantIDFromContext(c)
	principalID := c.Query("principal_id")

	from, err := parseTimeParam(c.DefaultQuery("from", time.Now().UTC().Add(-24*time.Hour).Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid 'from' timestamp", err)
		return
	}
	to, err := parseTimeParam(c.DefaultQuery("to", time.Now().UTC().Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid 'to' timestamp", err)
		return
	}

	limit, offset, err := helper_util.GetPaginationParams(c)
	if err != nil || limit < 0 || offset < 0 {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid pagination parameters", arbiter_errors.ErrInvalidPagination)
		return
	}

	records, err := ac.repo.QueryDecisions(c, from, to, tenantID, principalID)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query decision logs", err)
		return
	}

	if offset > len(records) {
		offset = len(records)
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}

	c.JSON(http.StatusOK, gin.H{"decisions": records[offset:end], "total": len(records)})
}

func parseTimeParam(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
