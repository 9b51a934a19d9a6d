package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// ResourcePayload identifies the target of an authorization check.
type ResourcePayload struct {
	ID   string `json:"id" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// ConditionPayload describes a single permission condition.
type ConditionPayload struct {
	Type      string `json:"type" binding:"required"`
	Attribute string `json:"attribute" binding:"required"`
	Operator  string `json:"operator" binding:"required"`
	Value     string `json:"value" binding:"required"`
}

func (p ConditionPayload) toDomain() domain.PermissionCondition {
	return domain.PermissionCondition{
		Type:      domain.ConditionType(p.Type),
		Attribute: p.Attribute,
		Operator:  domain.ConditionOperator(p.Operator),
		Value:     p.Value,
	}
}

// DecisionRequest defines the payload for a single authorization check.
type DecisionRequest struct {
	PrincipalID string            `json:"principal_id" binding:"required"`
	Action      string            `json:"action" binding:"required"`
	Resource    ResourcePayload   `json:"resource" binding:"required"`
	Context     map[string]string `json:"context,omitempty"`
}

// DecisionResponse describes the outcome of a single authorization check.
type DecisionResponse struct {
	Granted   bool      `json:"granted"`
	Source    string    `json:"source"`
	CacheHit  bool      `json:"cache_hit"`
	CheckedAt time.Time `json:"checked_at"`
}

// ComplexEvaluationRequest defines the payload for a composite authorization query.
type ComplexEvaluationRequest struct {
	PrincipalID string             `json:"principal_id" binding:"required"`
	Actions     []string           `json:"actions" binding:"required"`
	Resources   []ResourcePayload  `json:"resources"`
	Conditions  []ConditionPayload `json:"conditions,omitempty"`
	Context     map[string]string  `json:"context,omitempty"`
}

// ComplexEvaluationResponse aggregates per-action results.
type ComplexEvaluationResponse struct {
	Results           map[string]bool     `json:"results"`
	ConditionsMet     bool                `json:"conditions_met"`
	ConsultedPolicies map[string][]string `json:"consulted_policies,omitempty"`
}

// PermissionPayload describes a role permission.
type PermissionPayload struct {
	Action       string             `json:"action"`
	ResourceType string             `json:"resource_type"`
	IsGranted    bool               `json:"is_granted"`
	Conditions   []ConditionPayload `json:"conditions,omitempty"`
}

// RolePayload describes a role definition returned by the API.
type RolePayload struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  *string             `json:"description,omitempty"`
	Permissions  []PermissionPayload `json:"permissions"`
	IsSystemRole bool                `json:"is_system_role"`
}

// RoleListResponse wraps the role catalogue.
type RoleListResponse struct {
	Roles []RolePayload `json:"roles"`
}

// AssignRoleRequest defines the payload for assigning a role.
type AssignRoleRequest struct {
	PrincipalID    string     `json:"principal_id" binding:"required"`
	RoleID         string     `json:"role_id" binding:"required"`
	Scope          string     `json:"scope,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
	AssignedBy     string     `json:"assigned_by" binding:"required"`
}

// RevokeRoleRequest defines the payload for revoking a role.
type RevokeRoleRequest struct {
	PrincipalID string  `json:"principal_id" binding:"required"`
	RoleID      string  `json:"role_id" binding:"required"`
	RevokedBy   string  `json:"revoked_by" binding:"required"`
	Reason      *string `json:"reason,omitempty"`
}

// AssignmentPayload describes one role assignment record.
type AssignmentPayload struct {
	ID               string     `json:"id"`
	PrincipalID      string     `json:"principal_id"`
	RoleID           string     `json:"role_id"`
	Scope            string     `json:"scope,omitempty"`
	AssignedBy       string     `json:"assigned_by"`
	AssignedAt       time.Time  `json:"assigned_at"`
	ExpirationDate   *time.Time `json:"expiration_date,omitempty"`
	IsActive         bool       `json:"is_active"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedBy        *string    `json:"revoked_by,omitempty"`
	RevocationReason *string    `json:"revocation_reason,omitempty"`
}

// AssignmentListResponse wraps a principal's assignment history.
type AssignmentListResponse struct {
	Assignments []AssignmentPayload `json:"assignments"`
}

// RulePayload describes one policy rule.
type RulePayload struct {
	ID         string             `json:"id,omitempty"`
	Conditions []ConditionPayload `json:"conditions"`
	Effect     string             `json:"effect" binding:"required"`
}

// ScopePayload restricts a policy to specific principals, actions, or resource types.
type ScopePayload struct {
	PrincipalIDs  []string `json:"principal_ids,omitempty"`
	Actions       []string `json:"actions,omitempty"`
	ResourceTypes []string `json:"resource_types,omitempty"`
}

// PolicyCreateRequest defines the payload for creating a policy.
type PolicyCreateRequest struct {
	Name        string        `json:"name" binding:"required"`
	Description *string       `json:"description,omitempty"`
	Rules       []RulePayload `json:"rules" binding:"required"`
	Scope       ScopePayload  `json:"scope"`
	Priority    int           `json:"priority"`
	CreatedBy   string        `json:"created_by" binding:"required"`
}

// PolicyUpdateRequest defines the payload for updating a policy. Omitted
// fields are left unchanged.
type PolicyUpdateRequest struct {
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Rules       []RulePayload `json:"rules,omitempty"`
	Scope       *ScopePayload `json:"scope,omitempty"`
	Priority    *int          `json:"priority,omitempty"`
	IsActive    *bool         `json:"is_active,omitempty"`
	ModifiedBy  string        `json:"modified_by" binding:"required"`
}

// PolicyPayload describes a policy returned by the API.
type PolicyPayload struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description,omitempty"`
	Rules       []RulePayload `json:"rules"`
	Scope       ScopePayload  `json:"scope"`
	Priority    int           `json:"priority"`
	IsActive    bool          `json:"is_active"`
	CreatedBy   string        `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	ModifiedBy  *string       `json:"modified_by,omitempty"`
	ModifiedAt  *time.Time    `json:"modified_at,omitempty"`
}

// PolicyListResponse wraps all policies in evaluation order.
type PolicyListResponse struct {
	Policies []PolicyPayload `json:"policies"`
}

// GrantPayload describes one resource-level permission grant.
type GrantPayload struct {
	PrincipalID string `json:"principal_id" binding:"required"`
	Action      string `json:"action" binding:"required"`
	IsGranted   bool   `json:"is_granted"`
}

// SetResourcePermissionsRequest defines the payload for replacing a
// resource's grant set.
type SetResourcePermissionsRequest struct {
	ResourceType string         `json:"resource_type" binding:"required"`
	Grants       []GrantPayload `json:"grants"`
	SetBy        string         `json:"set_by" binding:"required"`
}

// InheritPermissionsRequest defines the payload for cloning a parent's grants.
type InheritPermissionsRequest struct {
	ParentID    string `json:"parent_id" binding:"required"`
	InheritedBy string `json:"inherited_by" binding:"required"`
}

// ResourcePermissionsPayload describes a resource's current grant set.
type ResourcePermissionsPayload struct {
	ResourceID        string         `json:"resource_id"`
	ResourceType      string         `json:"resource_type"`
	Grants            []GrantPayload `json:"grants"`
	InheritFromParent bool           `json:"inherit_from_parent"`
	SetBy             string         `json:"set_by"`
	SetAt             time.Time      `json:"set_at"`
}

// ACLEntryPayload describes one access-control list entry.
type ACLEntryPayload struct {
	PrincipalID   string `json:"principal_id" binding:"required"`
	PrincipalType string `json:"principal_type"`
	Action        string `json:"action" binding:"required"`
	IsGranted     bool   `json:"is_granted"`
}

// ACLCreateRequest defines the payload for creating an access-control list.
type ACLCreateRequest struct {
	ResourceID       string            `json:"resource_id" binding:"required"`
	ResourceType     string            `json:"resource_type" binding:"required"`
	Entries          []ACLEntryPayload `json:"entries"`
	InheritanceRules string            `json:"inheritance_rules,omitempty"`
	CreatedBy        string            `json:"created_by" binding:"required"`
}

// ACLPayload describes an access-control list returned by the API.
type ACLPayload struct {
	ID               string            `json:"id"`
	ResourceID       string            `json:"resource_id"`
	ResourceType     string            `json:"resource_type"`
	Entries          []ACLEntryPayload `json:"entries"`
	InheritanceRules string            `json:"inheritance_rules,omitempty"`
	CreatedBy        string            `json:"created_by"`
	CreatedAt        time.Time         `json:"created_at"`
}

// AuditReportResponse describes the security audit report payload.
type AuditReportResponse struct {
	From             time.Time                 `json:"from"`
	To               time.Time                 `json:"to"`
	TotalChecks      int                       `json:"total_checks"`
	Granted          int                       `json:"granted"`
	Denied           int                       `json:"denied"`
	Violations       []ViolationPayload        `json:"violations"`
	UserActivity     []UserActivityPayload     `json:"user_activity"`
	ResourceActivity []ResourceActivityPayload `json:"resource_activity"`
	Risk             RiskPayload               `json:"risk"`
}

// ViolationPayload describes a detected violation.
type ViolationPayload struct {
	PrincipalID string    `json:"principal_id"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	DeniedCount int       `json:"denied_count"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}

// UserActivityPayload summarizes one principal's activity.
type UserActivityPayload struct {
	PrincipalID  string    `json:"principal_id"`
	Checks       int       `json:"checks"`
	Granted      int       `json:"granted"`
	Denied       int       `json:"denied"`
	LastActivity time.Time `json:"last_activity"`
}

// ResourceActivityPayload summarizes checks against one resource.
type ResourceActivityPayload struct {
	ResourceID   string `json:"resource_id"`
	ResourceType string `json:"resource_type"`
	Checks       int    `json:"checks"`
	Granted      int    `json:"granted"`
	Denied       int    `json:"denied"`
}

// RiskPayload scores the denial rate over the report window.
type RiskPayload struct {
	Score           float64  `json:"score"`
	Level           string   `json:"level"`
	DenialRate      float64  `json:"denial_rate"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func conditionsToDomain(payloads []ConditionPayload) []domain.PermissionCondition {
	if len(payloads) == 0 {
		return nil
	}
	conditions := make([]domain.PermissionCondition, 0, len(payloads))
	for _, p := range payloads {
		conditions = append(conditions, p.toDomain())
	}
	return conditions
}

func conditionsToPayload(conditions []domain.PermissionCondition) []ConditionPayload {
	if len(conditions) == 0 {
		return nil
	}
	payloads := make([]ConditionPayload, 0, len(conditions))
	for _, cond := range conditions {
		payloads = append(payloads, ConditionPayload{
			Type:      string(cond.Type),
			Attribute: cond.Attribute,
			Operator:  string(cond.Operator),
			Value:     cond.Value,
		})
	}
	return payloads
}

func rolePayload(role domain.Role) RolePayload {
	permissions := make([]PermissionPayload, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		permissions = append(permissions, PermissionPayload{
			Action:       perm.Action,
			ResourceType: perm.ResourceType,
			IsGranted:    perm.IsGranted,
			Conditions:   conditionsToPayload(perm.Conditions),
		})
	}

	return RolePayload{
		ID:           role.ID,
		Name:         role.Name,
		Description:  role.Description,
		Permissions:  permissions,
		IsSystemRole: role.IsSystemRole,
	}
}

func assignmentPayload(assignment domain.RoleAssignment) AssignmentPayload {
	return AssignmentPayload{
		ID:               assignment.ID,
		PrincipalID:      assignment.PrincipalID,
		RoleID:           assignment.RoleID,
		Scope:            assignment.Scope,
		AssignedBy:       assignment.AssignedBy,
		AssignedAt:       assignment.AssignedAt,
		ExpirationDate:   assignment.ExpirationDate,
		IsActive:         assignment.IsActive,
		RevokedAt:        assignment.RevokedAt,
		RevokedBy:        assignment.RevokedBy,
		RevocationReason: assignment.RevocationReason,
	}
}

func rulesToDomain(payloads []RulePayload) []domain.PermissionRule {
	rules := make([]domain.PermissionRule, 0, len(payloads))
	for _, p := range payloads {
		rules = append(rules, domain.PermissionRule{
			ID:         p.ID,
			Conditions: conditionsToDomain(p.Conditions),
			Effect:     domain.RuleEffect(p.Effect),
		})
	}
	return rules
}

func scopeToDomain(payload ScopePayload) domain.PolicyScope {
	return domain.PolicyScope{
		PrincipalIDs:  payload.PrincipalIDs,
		Actions:       payload.Actions,
		ResourceTypes: payload.ResourceTypes,
	}
}

func policyPayload(policy domain.PermissionPolicy) PolicyPayload {
	rules := make([]RulePayload, 0, len(policy.Rules))
	for _, rule := range policy.Rules {
		rules = append(rules, RulePayload{
			ID:         rule.ID,
			Conditions: conditionsToPayload(rule.Conditions),
			Effect:     string(rule.Effect),
		})
	}

	return PolicyPayload{
		ID:          policy.ID,
		Name:        policy.Name,
		Description: policy.Description,
		Rules:       rules,
		Scope: ScopePayload{
			PrincipalIDs:  policy.Scope.PrincipalIDs,
			Actions:       policy.Scope.Actions,
			ResourceTypes: policy.Scope.ResourceTypes,
		},
		Priority:   policy.Priority,
		IsActive:   policy.IsActive,
		CreatedBy:  policy.CreatedBy,
		CreatedAt:  policy.CreatedAt,
		ModifiedBy: policy.ModifiedBy,
		ModifiedAt: policy.ModifiedAt,
	}
}

func grantsToDomain(payloads []GrantPayload) []domain.PermissionGrant {
	grants := make([]domain.PermissionGrant, 0, len(payloads))
	for _, p := range payloads {
		grants = append(grants, domain.PermissionGrant{
			PrincipalID: p.PrincipalID,
			Action:      p.Action,
			IsGranted:   p.IsGranted,
		})
	}
	return grants
}

func resourcePermissionsPayload(permissions domain.ResourcePermissions) ResourcePermissionsPayload {
	grants := make([]GrantPayload, 0, len(permissions.Grants))
	for _, grant := range permissions.Grants {
		grants = append(grants, GrantPayload{
			PrincipalID: grant.PrincipalID,
			Action:      grant.Action,
			IsGranted:   grant.IsGranted,
		})
	}

	return ResourcePermissionsPayload{
		ResourceID:        permissions.ResourceID,
		ResourceType:      permissions.ResourceType,
		Grants:            grants,
		InheritFromParent: permissions.InheritFromParent,
		SetBy:             permissions.SetBy,
		SetAt:             permissions.SetAt,
	}
}

func aclEntriesToDomain(payloads []ACLEntryPayload) []domain.ACLEntry {
	entries := make([]domain.ACLEntry, 0, len(payloads))
	for _, p := range payloads {
		entries = append(entries, domain.ACLEntry{
			PrincipalID:   p.PrincipalID,
			PrincipalType: p.PrincipalType,
			Action:        p.Action,
			IsGranted:     p.IsGranted,
		})
	}
	return entries
}

func aclPayload(acl domain.AccessControlList) ACLPayload {
	entries := make([]ACLEntryPayload, 0, len(acl.Entries))
	for _, entry := range acl.Entries {
		entries = append(entries, ACLEntryPayload{
			PrincipalID:   entry.PrincipalID,
			PrincipalType: entry.PrincipalType,
			Action:        entry.Action,
			IsGranted:     entry.IsGranted,
		})
	}

	return ACLPayload{
		ID:               acl.ID,
		ResourceID:       acl.ResourceID,
		ResourceType:     acl.ResourceType,
		Entries:          entries,
		InheritanceRules: acl.InheritanceRules,
		CreatedBy:        acl.CreatedBy,
		CreatedAt:        acl.CreatedAt,
	}
}
