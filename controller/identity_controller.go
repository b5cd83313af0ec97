// controller/identity_controller.go
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

type IdentityController struct {
	identityService service.IIdentityService
}

func NewIdentityController(identityService service.IIdentityService) *IdentityController {
	return &IdentityController{
		identityService: identityService,
	}
}

// RegisterRoutes registers the API routes
func (ic *IdentityController) RegisterRoutes(r *gin.RouterGroup) {
	principals := r.Group("/principals")
	{
		principals.POST("", ic.CreatePrincipal)
		principals.POST("/:id/roles", ic.AssignRole)
		principals.POST("/:id/groups", ic.AddToGroup)
		principals.POST("/:id/personas", ic.GrantPersona)
		principals.POST("/:id/ous", ic.AssignOU)
		principals.POST("/:id/modules", ic.AssignModule)
	}
	ous := r.Group("/ous")
	{
		ous.POST("", ic.CreateOU)
		ous.GET("/:id", ic.GetOU)
	}
}

type createPrincipalRequest struct {
	PrincipalID string            `json:"principal_id" binding:"required"`
	Kind        model.SubjectType `json:"kind"`
}

type grantRequest struct {
	Code string `json:"code" binding:"required"`
}

// CreatePrincipal endpoint
func (ic *IdentityController) CreatePrincipal(c *gin.Context) {
	var req createPrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid principal data", err)
		return
	}
	tenantID := util.GetTenantIDFromContext(c)

	if err := ic.identityService.CreatePrincipal(c, tenantID, req.PrincipalID, req.Kind); err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to create principal", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"principal_id": req.PrincipalID})
}

func (ic *IdentityController) grant(c *gin.Context, apply func(tenantID, principalID, code string) error, what string) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid "+what+" grant", err)
		return
	}
	tenantID := util.GetTenantIDFromContext(c)
	principalID := c.Param("id")

	if err := apply(tenantID, principalID, req.Code); err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrPrincipalNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Principal not found", err)
		case errors.Is(err, arbiter_errors.ErrOUNotFound):
			util.RespondWithError(c, http.StatusNotFound, "OU not found", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to grant "+what, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"principal_id": principalID, what: req.Code})
}

// AssignRole endpoint
func (ic *IdentityController) AssignRole(c *gin.Context) {
	ic.grant(c, func(tenantID, principalID, code string) error {
		return ic.identityService.AssignRole(c, tenantID, principalID, code)
	}, "role")
}

// AddToGroup endpoint
func (ic *IdentityController) AddToGroup(c *gin.Context) {
	ic.grant(c, func(tenantID, principalID, code string) error {
		return ic.identityService.AddToGroup(c, tenantID, principalID, code)
	}, "group")
}

// GrantPersona endpoint
func (ic *IdentityController) GrantPersona(c *gin.Context) {
	ic.grant(c, func(tenantID, principalID, code string) error {
		return ic.identityService.GrantPersona(c, tenantID, principalID, code)
	}, "persona")
}

// AssignOU endpoint
func (ic *IdentityController) AssignOU(c *gin.Context) {
	ic.grant(c, func(tenantID, principalID, code string) error {
		return ic.identityService.AssignOU(c, tenantID, principalID, code)
	}, "ou")
}

// AssignModule endpoint
func (ic *IdentityController) AssignModule(c *gin.Context) {
	ic.grant(c, func(tenantID, principalID, code string) error {
		return ic.identityService.AssignModule(c, tenantID, principalID, code)
	}, "module")
}

// CreateOU endpoint
func (ic *IdentityController) CreateOU(c *gin.Context) {
	var node model.OUNode
	if err := c.ShouldBindJSON(&node); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid OU data", err)
		return
	}
	node.TenantID = util.GetTenantIDFromContext(c)

	createdOU, err := ic.identityService.CreateOU(c, node)
	if err != nil {
		switch {
		case errors.Is(err, arbiter_errors.ErrMalformedOUPath):
			util.RespondWithError(c, http.StatusBadRequest, "Malformed OU path", err)
		case errors.Is(err, arbiter_errors.ErrOUNotFound):
			util.RespondWithError(c, http.StatusNotFound, "Parent OU not found", err)
		case errors.Is(err, arbiter_errors.ErrOUConflict):
			util.RespondWithError(c, http.StatusConflict, "OU already exists", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to create OU", err)
		}
		return
	}

	c.JSON(http.StatusCreated, createdOU)
}

// GetOU endpoint
func (ic *IdentityController) GetOU(c *gin.Context) {
	tenantID := util.GetTenantIDFromContext(c)
	ouID := c.Param("id")

	node, err := ic.identityService.GetOU(c, tenantID, ouID)
	if err != nil {
		if errors.Is(err, arbiter_errors.ErrOUNotFound) {
			util.RespondWithError(c, http.StatusNotFound, "OU not found", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve OU", err)
		}
		return
	}

	c.JSON(http.StatusOK, node)
}
