package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/usecase"
)

// AuditHandler exposes audit reporting.
type AuditHandler struct {
	audits *usecase.AuditService
}

// NewAuditHandler builds an audit handler instance.
func NewAuditHandler(audits *usecase.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// RegisterRoutes mounts audit endpoints onto the provided group.
func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/report", h.Report)
}

// Report godoc
// @Summary Generate a security audit report
// @Description Aggregates the audit log over [from, to] with violations and risk scoring.
// @Tags Audit
// @Produce json
// @Param from query string true "Window start (RFC 3339)"
// @Param to query string false "Window end (RFC 3339, defaults to now)"
// @Success 200 {object} AuditReportResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/audit/report [get]
func (h *AuditHandler) Report(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid from timestamp"))
		return
	}

	to := time.Now().UTC()
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid to timestamp"))
			return
		}
	}

	if to.Before(from) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "report window end precedes start"))
		return
	}

	report, err := h.audits.GenerateSecurityAuditReport(c.Request.Context(), from, to)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to generate audit report")
		return
	}

	c.JSON(http.StatusOK, auditReportResponse(report))
}

func auditReportResponse(report *domain.SecurityAuditReport) AuditReportResponse {
	violations := make([]ViolationPayload, 0, len(report.Violations))
	for _, v := range report.Violations {
		violations = append(violations, ViolationPayload{
			PrincipalID: v.PrincipalID,
			Type:        v.Type,
			Severity:    v.Severity,
			DeniedCount: v.DeniedCount,
			From:        v.From,
			To:          v.To,
		})
	}

	users := make([]UserActivityPayload, 0, len(report.UserActivity))
	for _, ua := range report.UserActivity {
		users = append(users, UserActivityPayload{
			PrincipalID:  ua.PrincipalID,
			Checks:       ua.Checks,
			Granted:      ua.Granted,
			Denied:       ua.Denied,
			LastActivity: ua.LastActivity,
		})
	}

	resources := make([]ResourceActivityPayload, 0, len(report.ResourceActivity))
	for _, ra := range report.ResourceActivity {
		resources = append(resources, ResourceActivityPayload{
			ResourceID:   ra.ResourceID,
			ResourceType: ra.ResourceType,
			Checks:       ra.Checks,
			Granted:      ra.Granted,
			Denied:       ra.Denied,
		})
	}

	return AuditReportResponse{
		From:             report.From,
		To:               report.To,
		TotalChecks:      report.TotalChecks,
		Granted:          report.Granted,
		Denied:           report.Denied,
		Violations:       violations,
		UserActivity:     users,
		ResourceActivity: resources,
		Risk: RiskPayload{
			Score:           report.Risk.Score,
			Level:           string(report.Risk.Level),
			DenialRate:      report.Risk.DenialRate,
			Recommendations: report.Risk.Recommendations,
		},
	}
}
