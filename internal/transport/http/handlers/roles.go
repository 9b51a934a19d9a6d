package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/enterprise-authz/internal/repository"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

// RoleHandler exposes the role catalogue and assignment administration.
type RoleHandler struct {
	assignments *usecase.AssignmentService
}

// NewRoleHandler builds a role handler instance.
func NewRoleHandler(assignments *usecase.AssignmentService) *RoleHandler {
	return &RoleHandler{assignments: assignments}
}

// RegisterRoleRoutes mounts catalogue endpoints onto the roles group.
func (h *RoleHandler) RegisterRoleRoutes(r *gin.RouterGroup) {
	r.GET("", h.ListRoles)
}

// RegisterAssignmentRoutes mounts assignment endpoints onto the assignments group.
func (h *RoleHandler) RegisterAssignmentRoutes(r *gin.RouterGroup) {
	r.POST("", h.AssignRole)
	r.POST("/revoke", h.RevokeRole)
}

// ListRoles godoc
// @Summary List role definitions
// @Tags Roles
// @Produce json
// @Success 200 {object} RoleListResponse
// @Router /api/v1/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles := h.assignments.ListRoles(c.Request.Context())

	payloads := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payloads = append(payloads, rolePayload(role))
	}

	c.JSON(http.StatusOK, RoleListResponse{Roles: payloads})
}

// AssignRole godoc
// @Summary Assign a role to a principal
// @Tags Roles
// @Accept json
// @Produce json
// @Param request body AssignRoleRequest true "Assignment request"
// @Success 201 {object} AssignmentPayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/assignments [post]
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid assignment payload"))
		return
	}

	assignment, err := h.assignments.AssignRole(c.Request.Context(), usecase.AssignRoleInput{
		PrincipalID:    req.PrincipalID,
		RoleID:         req.RoleID,
		Scope:          req.Scope,
		ExpirationDate: req.ExpirationDate,
		AssignedBy:     req.AssignedBy,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "role not found"},
		}, http.StatusInternalServerError, "failed to assign role")
		return
	}

	c.JSON(http.StatusCreated, assignmentPayload(*assignment))
}

// RevokeRole godoc
// @Summary Revoke a role from a principal
// @Tags Roles
// @Accept json
// @Produce json
// @Param request body RevokeRoleRequest true "Revocation request"
// @Success 200 {object} AssignmentPayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/assignments/revoke [post]
func (h *RoleHandler) RevokeRole(c *gin.Context) {
	var req RevokeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid revocation payload"))
		return
	}

	assignment, err := h.assignments.RevokeRole(c.Request.Context(), usecase.RevokeRoleInput{
		PrincipalID: req.PrincipalID,
		RoleID:      req.RoleID,
		RevokedBy:   req.RevokedBy,
		Reason:      req.Reason,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "no active assignment found"},
		}, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	c.JSON(http.StatusOK, assignmentPayload(*assignment))
}

// ListAssignments godoc
// @Summary List a principal's role assignment history
// @Tags Roles
// @Produce json
// @Param principal_id path string true "Principal ID"
// @Success 200 {object} AssignmentListResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/principals/{principal_id}/assignments [get]
func (h *RoleHandler) ListAssignments(c *gin.Context) {
	principalID := c.Param("principal_id")

	assignments, err := h.assignments.ListAssignments(c.Request.Context(), principalID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list assignments")
		return
	}

	payloads := make([]AssignmentPayload, 0, len(assignments))
	for _, assignment := range assignments {
		payloads = append(payloads, assignmentPayload(assignment))
	}

	c.JSON(http.StatusOK, AssignmentListResponse{Assignments: payloads})
}
