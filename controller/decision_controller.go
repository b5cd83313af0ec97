// controller/decision_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	pdp_model "github.com/arbiterhq/arbiter/pdp/model"
	"github.com/arbiterhq/arbiter/service"
	"github.com/arbiterhq/arbiter/util"
)

type DecisionController struct {
	accessService service.IAccessService
}

func NewDecisionController(accessService service.IAccessService) *DecisionController {
	return &DecisionController{
		accessService: accessService,
	}
}

// RegisterRoutes registers the API routes
func (dc *DecisionController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/decisions", dc.Decide)
	r.POST("/field-masks", dc.MaskFields)
}

// Decide endpoint
func (dc *DecisionController) Decide(c *gin.Context) {
	var req pdp_model.AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid access request", err)
		return
	}
	req.TenantID = util.GetTenantIDFromContext(c)

	decision, err := dc.accessService.Decide(c, req)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrTenantRequired):
			util.RespondWithError(c, http.StatusBadRequest, "Tenant is required", err)
		case errors.Is(err, arbiter_errors.ErrUnknownOperation):
			util.RespondWithError(c, http.StatusBadRequest, "Operation is required", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to evaluate access request", arbiter_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusOK, decision)
}

// MaskFields endpoint
func (dc *DecisionController) MaskFields(c *gin.Context) {
	var req pdp_model.MaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid field mask request", err)
		return
	}
	req.TenantID = util.GetTenantIDFromContext(c)

	decisions, err := dc.accessService.MaskFields(c, req)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrTenantRequired):
			util.RespondWithError(c, http.StatusBadRequest, "Tenant is required", err)
		case errors.Is(err, arbiter_errors.ErrInvalidFieldPolicyData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid field mask request", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to evaluate field masks", arbiter_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"fields": decisions})
}
