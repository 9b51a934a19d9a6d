package domain

import "time"

// ConditionType identifies the evaluator responsible for a condition.
type ConditionType string

const (
	ConditionTypeUserAttribute     ConditionType = "userAttribute"
	ConditionTypeResourceAttribute ConditionType = "resourceAttribute"
	ConditionTypeContextual        ConditionType = "contextual"
	ConditionTypeTemporal          ConditionType = "temporal"
	ConditionTypeEnvironmental     ConditionType = "environmental"
)

// ConditionOperator compares a resolved attribute against the condition value.
type ConditionOperator string

const (
	OperatorEquals    ConditionOperator = "equals"
	OperatorNotEquals ConditionOperator = "not_equals"
	OperatorIn        ConditionOperator = "in"
	OperatorContains  ConditionOperator = "contains"
)

// PermissionCondition is a single predicate attached to a rule or permission.
type PermissionCondition struct {
	Type      ConditionType
	Attribute string
	Operator  ConditionOperator
	Value     string
}

// RuleEffect is the outcome a rule produces when all of its conditions hold.
type RuleEffect string

const (
	EffectAllow RuleEffect = "allow"
	EffectDeny  RuleEffect = "deny"
)

// PermissionRule yields its effect only when every condition is satisfied;
// otherwise it is not applicable and evaluation continues.
type PermissionRule struct {
	ID         string
	Conditions []PermissionCondition
	Effect     RuleEffect
}

// PolicyScope restricts which (principal, action, resource) tuples a policy
// applies to. Empty slices match everything.
type PolicyScope struct {
	PrincipalIDs  []string
	Actions       []string
	ResourceTypes []string
}

// AppliesTo reports whether the scope covers the given tuple.
func (s PolicyScope) AppliesTo(principalID, action, resourceType string) bool {
	if len(s.PrincipalIDs) > 0 && !containsString(s.PrincipalIDs, principalID) {
		return false
	}
	if len(s.Actions) > 0 && !containsString(s.Actions, action) {
		return false
	}
	if len(s.ResourceTypes) > 0 && !containsString(s.ResourceTypes, resourceType) {
		return false
	}
	return true
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// PermissionPolicy is a named, prioritized bundle of rules. Policies are
// evaluated in descending priority order; rules within a policy in order.
type PermissionPolicy struct {
	ID          string
	Name        string
	Description *string
	Rules       []PermissionRule
	Scope       PolicyScope
	Priority    int
	IsActive    bool
	CreatedBy   string
	CreatedAt   time.Time
	ModifiedBy  *string
	ModifiedAt  *time.Time
}
