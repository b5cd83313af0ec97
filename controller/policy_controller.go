// controller/policy_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	"github.com/arbiterhq/arbiter/model"
	"github.com/arbiterhq/arbiter/service"
	"github.com/arbiterhq/arbiter/util"
)

type PolicyController struct {
	policyService service.IPolicyService
}

func NewPolicyController(policyService service.IPolicyService) *PolicyController {
	return &PolicyController{
		policyService: policyService,
	}
}

// RegisterRoutes registers the API routes
func (pc *PolicyController) RegisterRoutes(r *gin.RouterGroup) {
	policies := r.Group("/policies")
	{
		policies.POST("", pc.CreatePolicy)
		policies.GET("/:id", pc.GetPolicy)
		policies.POST("/:id/versions", pc.CreateVersion)
	}
	versions := r.Group("/policy-versions")
	{
		versions.POST("/:id/publish", pc.PublishVersion)
		versions.POST("/:id/rules", pc.AddRule)
		versions.POST("/:id/compile", pc.CompileVersion)
	}
	r.POST("/entity-policies", pc.CreateEntityPolicy)
	r.POST("/field-policies", pc.CreateFieldPolicy)
}

// CreatePolicy endpoint
func (pc *PolicyController) CreatePolicy(c *gin.Context) {
	var policy model.PermissionPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", arbiter_errors.ErrInvalidPolicyData)
		return
	}
	policy.TenantID = util.GetTenantIDFromContext(c)

	createdPolicy, err := pc.policyService.CreatePolicy(c, policy)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrInvalidPolicyData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid policy data", err)
		case errors.Is(err, arbiter_errors.ErrPolicyConflict):
			util.RespondWithError(c, http.StatusConflict, "Policy already exists", err)
		case errors.Is(err, arbiter_errors.ErrDatabaseOperation):
			util.RespondWithError(c, http.StatusInternalServerError, "Database operation failed", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create policy", arbiter_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusCreated, createdPolicy)
}

// GetPolicy endpoint
func (pc *PolicyController) GetPolicy(c *gin.Context) {
	policyID := c.Param("id")
	tenantID := util.GetTenantIDFromContext(c)

	policy, err := pc.policyService.GetPolicy(c, tenantID, policyID)
	if err != nil {
		if errors.Is(err, arbiter_errors.ErrPolicyNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Policy not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve policy", err)
		}
		return
	}

	c.JSON(http.StatusOK, policy)
}

// CreateVersion endpoint
func (pc *PolicyController) CreateVersion(c *gin.Context) {
	policyID := c.Param("id")
	tenantID := util.GetTenantIDFromContext(c)

	version, err := pc.policyService.CreateVersion(c, tenantID, policyID)
	if err != nil {
		if errors.Is(err, arbiter_errors.ErrPolicyNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "Policy not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create policy version", err)
		}
		return
	}

	c.JSON(http.StatusCreated, version)
}

// PublishVersion endpoint
func (pc *PolicyController) PublishVersion(c *gin.Context) {
	versionID := c.Param("id")
	tenantID := util.GetTenantIDFromContext(c)

	version, err := pc.policyService.PublishVersion(c, tenantID, versionID)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrPolicyVersionNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Policy version not found", err)
		case errors.Is(err, arbiter_errors.ErrVersionPublished):
			util.RespondWithError(c, http.StatusConflict, "Policy version is already published", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to publish policy version", err)
		}
		return
	}

	c.JSON(http.StatusOK, version)
}

// AddRule endpoint
func (pc *PolicyController) AddRule(c *gin.Context) {
	versionID := c.Param("id")
	var rule model.PermissionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid rule data", arbiter_errors.ErrInvalidRuleData)
		return
	}
	rule.TenantID = util.GetTenantIDFromContext(c)
	rule.PolicyVersionID = versionID

	createdRule, err := pc.policyService.AddRule(c, rule)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrInvalidRuleData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid rule data", err)
		case errors.Is(err, arbiter_errors.ErrPolicyVersionNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Policy version not found", err)
		case errors.Is(err, arbiter_errors.ErrVersionPublished):
			util.RespondWithError(c, http.StatusConflict, "Published versions are immutable", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to add rule", err)
		}
		return
	}

	c.JSON(http.StatusCreated, createdRule)
}

// CompileVersion endpoint
func (pc *PolicyController) CompileVersion(c *gin.Context) {
	versionID := c.Param("id")
	tenantID := util.GetTenantIDFromContext(c)

	artifact, err := pc.policyService.Compile(c, tenantID, versionID)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrPolicyVersionNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Policy version not found", err)
		case errors.Is(err, arbiter_errors.ErrDraftNotCompilable):
			util.RespondWithError(c, http.StatusConflict, "Draft versions cannot be compiled", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to compile policy version", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"policy_version_id": artifact.PolicyVersionID,
		"compiled_hash":     artifact.Hash,
		"rule_count":        artifact.RuleCount,
	})
}

// CreateEntityPolicy endpoint
func (pc *PolicyController) CreateEntityPolicy(c *gin.Context) {
	var policy model.EntityPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid entity policy data", arbiter_errors.ErrInvalidPolicyData)
		return
	}
	policy.TenantID = util.GetTenantIDFromContext(c)

	createdPolicy, err := pc.policyService.CreateEntityPolicy(c, policy)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrInvalidPolicyData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid entity policy data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create entity policy", err)
		}
		return
	}

	c.JSON(http.StatusCreated, createdPolicy)
}

// CreateFieldPolicy endpoint
func (pc *PolicyController) CreateFieldPolicy(c *gin.Context) {
	var policy model.FieldSecurityPolicy
	if err := c.ShouldBindJSON(&policy); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid field policy data", arbiter_errors.ErrInvalidFieldPolicyData)
		return
	}
	policy.TenantID = util.GetTenantIDFromContext(c)

	createdPolicy, err := pc.policyService.CreateFieldPolicy(c, policy)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrInvalidFieldPolicyData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid field policy data", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create field policy", err)
		}
		return
	}

	c.JSON(http.StatusCreated, createdPolicy)
}
