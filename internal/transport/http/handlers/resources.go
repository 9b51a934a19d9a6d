package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/enterprise-authz/internal/repository"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

// ResourceHandler exposes per-resource permission and ACL administration.
type ResourceHandler struct {
	resources *usecase.ResourceService
}

// NewResourceHandler builds a resource handler instance.
func NewResourceHandler(resources *usecase.ResourceService) *ResourceHandler {
	return &ResourceHandler{resources: resources}
}

// RegisterResourceRoutes mounts permission endpoints onto the resources group.
func (h *ResourceHandler) RegisterResourceRoutes(r *gin.RouterGroup) {
	r.PUT("/:resource_id/permissions", h.SetPermissions)
	r.GET("/:resource_id/permissions", h.GetPermissions)
	r.POST("/:resource_id/permissions/inherit", h.InheritPermissions)
}

// RegisterACLRoutes mounts ACL endpoints onto the acls group.
func (h *ResourceHandler) RegisterACLRoutes(r *gin.RouterGroup) {
	r.POST("", h.CreateACL)
}

// SetPermissions godoc
// @Summary Replace a resource's permission grants
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource_id path string true "Resource ID"
// @Param request body SetResourcePermissionsRequest true "Permission set request"
// @Success 200 {object} ResourcePermissionsPayload
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/resources/{resource_id}/permissions [put]
func (h *ResourceHandler) SetPermissions(c *gin.Context) {
	var req SetResourcePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permissions payload"))
		return
	}

	permissions, err := h.resources.SetResourcePermissions(c.Request.Context(), usecase.SetResourcePermissionsInput{
		ResourceID:   c.Param("resource_id"),
		ResourceType: req.ResourceType,
		Grants:       grantsToDomain(req.Grants),
		SetBy:        req.SetBy,
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to set resource permissions")
		return
	}

	c.JSON(http.StatusOK, resourcePermissionsPayload(*permissions))
}

// GetPermissions godoc
// @Summary Fetch a resource's permission grants
// @Tags Resources
// @Produce json
// @Param resource_id path string true "Resource ID"
// @Success 200 {object} ResourcePermissionsPayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/resources/{resource_id}/permissions [get]
func (h *ResourceHandler) GetPermissions(c *gin.Context) {
	permissions, err := h.resources.GetResourcePermissions(c.Request.Context(), c.Param("resource_id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "resource permissions not found"},
		}, http.StatusInternalServerError, "failed to load resource permissions")
		return
	}

	c.JSON(http.StatusOK, resourcePermissionsPayload(*permissions))
}

// InheritPermissions godoc
// @Summary Clone a parent resource's grants onto a child resource
// @Tags Resources
// @Accept json
// @Produce json
// @Param resource_id path string true "Child resource ID"
// @Param request body InheritPermissionsRequest true "Inheritance request"
// @Success 200 {object} ResourcePermissionsPayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/resources/{resource_id}/permissions/inherit [post]
func (h *ResourceHandler) InheritPermissions(c *gin.Context) {
	var req InheritPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid inheritance payload"))
		return
	}

	permissions, err := h.resources.InheritResourcePermissions(
		c.Request.Context(),
		c.Param("resource_id"),
		req.ParentID,
		req.InheritedBy,
	)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "parent resource has no permissions set"},
		}, http.StatusInternalServerError, "failed to inherit resource permissions")
		return
	}

	c.JSON(http.StatusOK, resourcePermissionsPayload(*permissions))
}

// CreateACL godoc
// @Summary Create an access-control list for a resource
// @Tags Resources
// @Accept json
// @Produce json
// @Param request body ACLCreateRequest true "ACL create request"
// @Success 201 {object} ACLPayload
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/acls [post]
func (h *ResourceHandler) CreateACL(c *gin.Context) {
	var req ACLCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid acl payload"))
		return
	}

	acl, err := h.resources.CreateAccessControlList(c.Request.Context(), usecase.CreateACLInput{
		ResourceID:       req.ResourceID,
		ResourceType:     req.ResourceType,
		Entries:          aclEntriesToDomain(req.Entries),
		InheritanceRules: req.InheritanceRules,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to create acl")
		return
	}

	c.JSON(http.StatusCreated, aclPayload(*acl))
}
