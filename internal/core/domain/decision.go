package domain

import (
	"fmt"
	"time"
)

// DecisionSource names the precedence step that produced a decision.
type DecisionSource string

const (
	SourceDirect   DecisionSource = "direct"
	SourceRole     DecisionSource = "role"
	SourcePolicy   DecisionSource = "policy"
	SourceResource DecisionSource = "resource"
	SourceACL      DecisionSource = "acl"
	SourceDefault  DecisionSource = "default"
	SourceCache    DecisionSource = "cache"
	SourceError    DecisionSource = "error"
)

// Decision is the answer to a single authorization check.
type Decision struct {
	PrincipalID string
	Action      string
	Resource    Resource
	Granted     bool
	Source      DecisionSource
	CheckedAt   time.Time
	CacheHit    bool
}

// CacheKey builds the decision-cache key for a (principal, action, resource) tuple.
func CacheKey(principalID, action, resourceID string) string {
	return fmt.Sprintf("%s:%s:%s", principalID, action, resourceID)
}

// PairKey identifies an (action, resource) pair inside a composite evaluation.
func PairKey(action, resourceID string) string {
	return fmt.Sprintf("%s|%s", action, resourceID)
}

// ComplexEvaluation aggregates the outcome of evaluating a set of actions
// against a set of resources plus supplemental conditions.
type ComplexEvaluation struct {
	// Results maps each action to whether it is granted on every evaluated resource.
	Results map[string]bool
	// ConditionsMet is the logical AND of all supplemental conditions.
	ConditionsMet bool
	// ConsultedPolicies maps PairKey(action, resource) to the IDs of policies
	// consulted while deciding that pair.
	ConsultedPolicies map[string][]string
}
