package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
)

// EvaluationRequest carries the tuple a condition is evaluated against.
type EvaluationRequest struct {
	PrincipalID string
	Action      string
	Resource    domain.Resource
	Context     map[string]string
}

// ConditionEvaluator decides whether a single condition holds for a request.
// Each condition type has its own evaluator; unknown types are an evaluation
// failure, which the decision path treats as a deny.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, cond domain.PermissionCondition, req EvaluationRequest) (bool, error)
}

// ConditionRegistry dispatches conditions to their type-specific evaluator.
type ConditionRegistry struct {
	evaluators map[domain.ConditionType]ConditionEvaluator
}

// NewConditionRegistry builds a registry with the default evaluators.
// Temporal and environmental conditions are constant-true placeholders until
// real providers exist; they remain registered so policies referencing them
// keep evaluating rather than failing.
func NewConditionRegistry(attrs port.AttributeProvider) *ConditionRegistry {
	r := &ConditionRegistry{evaluators: make(map[domain.ConditionType]ConditionEvaluator)}
	r.Register(domain.ConditionTypeUserAttribute, &userAttributeEvaluator{attrs: attrs})
	r.Register(domain.ConditionTypeResourceAttribute, &resourceAttributeEvaluator{attrs: attrs})
	r.Register(domain.ConditionTypeContextual, contextualEvaluator{})
	r.Register(domain.ConditionTypeTemporal, constantEvaluator{value: true})
	r.Register(domain.ConditionTypeEnvironmental, constantEvaluator{value: true})
	return r
}

// Register installs or replaces the evaluator for a condition type.
func (r *ConditionRegistry) Register(t domain.ConditionType, e ConditionEvaluator) {
	r.evaluators[t] = e
}

// Evaluate dispatches one condition.
func (r *ConditionRegistry) Evaluate(ctx context.Context, cond domain.PermissionCondition, req EvaluationRequest) (bool, error) {
	evaluator, ok := r.evaluators[cond.Type]
	if !ok {
		return false, fmt.Errorf("no evaluator registered for condition type %q", cond.Type)
	}
	return evaluator.Evaluate(ctx, cond, req)
}

// EvaluateAll reports whether every condition holds. An empty condition list
// holds vacuously.
func (r *ConditionRegistry) EvaluateAll(ctx context.Context, conds []domain.PermissionCondition, req EvaluationRequest) (bool, error) {
	for _, cond := range conds {
		ok, err := r.Evaluate(ctx, cond, req)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchOperator(op domain.ConditionOperator, resolved, want string) (bool, error) {
	switch op {
	case domain.OperatorEquals, "":
		return resolved == want, nil
	case domain.OperatorNotEquals:
		return resolved != want, nil
	case domain.OperatorIn:
		for _, candidate := range strings.Split(want, ",") {
			if strings.TrimSpace(candidate) == resolved {
				return true, nil
			}
		}
		return false, nil
	case domain.OperatorContains:
		return strings.Contains(resolved, want), nil
	default:
		return false, fmt.Errorf("unsupported condition operator %q", op)
	}
}

type userAttributeEvaluator struct {
	attrs port.AttributeProvider
}

func (e *userAttributeEvaluator) Evaluate(ctx context.Context, cond domain.PermissionCondition, req EvaluationRequest) (bool, error) {
	resolved, err := e.attrs.UserAttribute(ctx, req.PrincipalID, cond.Attribute)
	if err != nil {
		return false, fmt.Errorf("resolve user attribute %q: %w", cond.Attribute, err)
	}
	return matchOperator(cond.Operator, resolved, cond.Value)
}

type resourceAttributeEvaluator struct {
	attrs port.AttributeProvider
}

func (e *resourceAttributeEvaluator) Evaluate(ctx context.Context, cond domain.PermissionCondition, req EvaluationRequest) (bool, error) {
	resolved, err := e.attrs.ResourceAttribute(ctx, req.Resource.ID, cond.Attribute)
	if err != nil {
		return false, fmt.Errorf("resolve resource attribute %q: %w", cond.Attribute, err)
	}
	return matchOperator(cond.Operator, resolved, cond.Value)
}

// contextualEvaluator matches against the caller-supplied request context map.
type contextualEvaluator struct{}

func (contextualEvaluator) Evaluate(_ context.Context, cond domain.PermissionCondition, req EvaluationRequest) (bool, error) {
	resolved, ok := req.Context[cond.Attribute]
	if !ok {
		return false, nil
	}
	return matchOperator(cond.Operator, resolved, cond.Value)
}

type constantEvaluator struct {
	value bool
}

func (e constantEvaluator) Evaluate(context.Context, domain.PermissionCondition, EvaluationRequest) (bool, error) {
	return e.value, nil
}
