package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/enterprise-authz/internal/repository"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

// PolicyHandler exposes permission policy administration.
type PolicyHandler struct {
	policies *usecase.PolicyService
}

// NewPolicyHandler builds a policy handler instance.
func NewPolicyHandler(policies *usecase.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// RegisterRoutes mounts policy endpoints onto the provided group.
func (h *PolicyHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.CreatePolicy)
	r.GET("", h.ListPolicies)
	r.GET("/:policy_id", h.GetPolicy)
	r.PATCH("/:policy_id", h.UpdatePolicy)
}

// CreatePolicy godoc
// @Summary Create a permission policy
// @Tags Policies
// @Accept json
// @Produce json
// @Param request body PolicyCreateRequest true "Policy create request"
// @Success 201 {object} PolicyPayload
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/policies [post]
func (h *PolicyHandler) CreatePolicy(c *gin.Context) {
	var req PolicyCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy payload"))
		return
	}

	policy, err := h.policies.CreatePolicy(c.Request.Context(), usecase.CreatePolicyInput{
		Name:        req.Name,
		Description: req.Description,
		Rules:       rulesToDomain(req.Rules),
		Scope:       scopeToDomain(req.Scope),
		Priority:    req.Priority,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRule, Status: http.StatusBadRequest, Message: "invalid policy rule"},
		}, http.StatusInternalServerError, "failed to create policy")
		return
	}

	c.JSON(http.StatusCreated, policyPayload(*policy))
}

// UpdatePolicy godoc
// @Summary Update a permission policy
// @Tags Policies
// @Accept json
// @Produce json
// @Param policy_id path string true "Policy ID"
// @Param request body PolicyUpdateRequest true "Policy update request"
// @Success 200 {object} PolicyPayload
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/policies/{policy_id} [patch]
func (h *PolicyHandler) UpdatePolicy(c *gin.Context) {
	var req PolicyUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy payload"))
		return
	}

	input := usecase.UpdatePolicyInput{
		ID:          c.Param("policy_id"),
		Name:        req.Name,
		Description: req.Description,
		Priority:    req.Priority,
		IsActive:    req.IsActive,
		ModifiedBy:  req.ModifiedBy,
	}
	if req.Rules != nil {
		input.Rules = rulesToDomain(req.Rules)
	}
	if req.Scope != nil {
		scope := scopeToDomain(*req.Scope)
		input.Scope = &scope
	}

	policy, err := h.policies.UpdatePolicy(c.Request.Context(), input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "policy not found"},
			{Err: usecase.ErrInvalidRule, Status: http.StatusBadRequest, Message: "invalid policy rule"},
		}, http.StatusInternalServerError, "failed to update policy")
		return
	}

	c.JSON(http.StatusOK, policyPayload(*policy))
}

// GetPolicy godoc
// @Summary Fetch one permission policy
// @Tags Policies
// @Produce json
// @Param policy_id path string true "Policy ID"
// @Success 200 {object} PolicyPayload
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/policies/{policy_id} [get]
func (h *PolicyHandler) GetPolicy(c *gin.Context) {
	policy, err := h.policies.GetPolicy(c.Request.Context(), c.Param("policy_id"))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "policy not found"},
		}, http.StatusInternalServerError, "failed to load policy")
		return
	}

	c.JSON(http.StatusOK, policyPayload(*policy))
}

// ListPolicies godoc
// @Summary List permission policies in evaluation order
// @Tags Policies
// @Produce json
// @Success 200 {object} PolicyListResponse
// @Router /api/v1/policies [get]
func (h *PolicyHandler) ListPolicies(c *gin.Context) {
	policies := h.policies.ListPolicies(c.Request.Context())

	payloads := make([]PolicyPayload, 0, len(policies))
	for _, policy := range policies {
		payloads = append(payloads, policyPayload(policy))
	}

	c.JSON(http.StatusOK, PolicyListResponse{Policies: payloads})
}
