package domain

import "time"

// AuditResult records whether the audited operation was permitted.
type AuditResult string

const (
	AuditResultGranted AuditResult = "granted"
	AuditResultDenied  AuditResult = "denied"
)

// Administrative audit actions. Decision entries use the requested action verbatim.
const (
	AuditActionRoleAssigned   = "role.assigned"
	AuditActionRoleRevoked    = "role.revoked"
	AuditActionPolicyCreated  = "policy.created"
	AuditActionPolicyUpdated  = "policy.updated"
	AuditActionPermissionsSet = "resource.permissions_set"
	AuditActionACLCreated     = "acl.created"
)

// AuditEntry is one append-only record of a decision or administrative change.
// Sequence is monotonic and assigned at enqueue time so per-principal arrival
// order survives asynchronous persistence.
type AuditEntry struct {
	ID           string
	Sequence     int64
	Timestamp    time.Time
	UserID       string
	Action       string
	ResourceID   *string
	ResourceType *string
	Result       AuditResult
	Context      map[string]string
}

// IsChange reports whether the entry records an administrative mutation
// rather than a decision query.
func (e AuditEntry) IsChange() bool {
	switch e.Action {
	case AuditActionRoleAssigned, AuditActionRoleRevoked,
		AuditActionPolicyCreated, AuditActionPolicyUpdated,
		AuditActionPermissionsSet, AuditActionACLCreated:
		return true
	}
	return false
}

// RiskLevel buckets the overall denial rate.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// ViolationTypeExcessiveDenials flags principals with repeated denied attempts.
const ViolationTypeExcessiveDenials = "excessive_denials"

// Violation is an anomalous pattern detected over an audit window.
type Violation struct {
	PrincipalID string
	Type        string
	Severity    string
	DeniedCount int
	From        time.Time
	To          time.Time
}

// UserActivity summarizes one principal's checks within a report window.
type UserActivity struct {
	PrincipalID  string
	Checks       int
	Granted      int
	Denied       int
	LastActivity time.Time
}

// ResourceActivity summarizes checks against one resource within a report window.
type ResourceActivity struct {
	ResourceID   string
	ResourceType string
	Checks       int
	Granted      int
	Denied       int
}

// RiskAssessment scores the denial rate over a report window.
type RiskAssessment struct {
	Score           float64
	Level           RiskLevel
	DenialRate      float64
	Recommendations []string
}

// SecurityAuditReport aggregates the audit log over a time range.
type SecurityAuditReport struct {
	From             time.Time
	To               time.Time
	TotalChecks      int
	Granted          int
	Denied           int
	Changes          []AuditEntry
	Violations       []Violation
	UserActivity     []UserActivity
	ResourceActivity []ResourceActivity
	Risk             RiskAssessment
}
