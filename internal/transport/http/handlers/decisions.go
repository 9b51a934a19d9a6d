package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

// DecisionHandler answers authorization queries.
type DecisionHandler struct {
	evaluations *usecase.EvaluationService
}

// NewDecisionHandler builds a decision handler instance.
func NewDecisionHandler(evaluations *usecase.EvaluationService) *DecisionHandler {
	return &DecisionHandler{evaluations: evaluations}
}

// RegisterRoutes mounts decision endpoints onto the provided group.
func (h *DecisionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.Decide)
	r.POST("/evaluate", h.Evaluate)
}

// Decide godoc
// @Summary Check a single permission
// @Description Evaluates whether the principal may perform the action on the resource.
// @Tags Decisions
// @Accept json
// @Produce json
// @Param request body DecisionRequest true "Decision request"
// @Success 200 {object} DecisionResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/decisions [post]
func (h *DecisionHandler) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid decision payload"))
		return
	}

	decision := h.evaluations.DecideDetailed(
		c.Request.Context(),
		req.PrincipalID,
		req.Action,
		domain.Resource{ID: req.Resource.ID, Type: req.Resource.Type},
		req.Context,
	)

	c.JSON(http.StatusOK, DecisionResponse{
		Granted:   decision.Granted,
		Source:    string(decision.Source),
		CacheHit:  decision.CacheHit,
		CheckedAt: decision.CheckedAt,
	})
}

// Evaluate godoc
// @Summary Evaluate a composite permission query
// @Description Evaluates a set of actions against a set of resources with supplemental conditions.
// @Tags Decisions
// @Accept json
// @Produce json
// @Param request body ComplexEvaluationRequest true "Complex evaluation request"
// @Success 200 {object} ComplexEvaluationResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/decisions/evaluate [post]
func (h *DecisionHandler) Evaluate(c *gin.Context) {
	var req ComplexEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid evaluation payload"))
		return
	}

	resources := make([]domain.Resource, 0, len(req.Resources))
	for _, res := range req.Resources {
		resources = append(resources, domain.Resource{ID: res.ID, Type: res.Type})
	}

	result := h.evaluations.EvaluateComplex(c.Request.Context(), usecase.ComplexEvaluationInput{
		PrincipalID: req.PrincipalID,
		Actions:     req.Actions,
		Resources:   resources,
		Conditions:  conditionsToDomain(req.Conditions),
		Context:     req.Context,
	})

	c.JSON(http.StatusOK, ComplexEvaluationResponse{
		Results:           result.Results,
		ConditionsMet:     result.ConditionsMet,
		ConsultedPolicies: result.ConsultedPolicies,
	})
}
