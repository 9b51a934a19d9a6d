package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
	"github.com/arklim/enterprise-authz/internal/repository"
)

// CreatePolicyInput captures the payload for creating a permission policy.
type CreatePolicyInput struct {
	Name        string
	Description *string
	Rules       []domain.PermissionRule
	Scope       domain.PolicyScope
	Priority    int
	CreatedBy   string
}

// UpdatePolicyInput captures the payload for updating a permission policy.
// Nil fields are left unchanged.
type UpdatePolicyInput struct {
	ID          string
	Name        *string
	Description *string
	Rules       []domain.PermissionRule
	Scope       *domain.PolicyScope
	Priority    *int
	IsActive    *bool
	ModifiedBy  string
}

// PolicyService manages permission policies. Policies are global: every
// mutation clears the entire decision cache, because targeted invalidation
// cannot be computed safely from a policy's scope.
type PolicyService struct {
	store    *PolicyStore
	policies port.PolicyRepository
	cache    port.DecisionCache
	recorder *AuditRecorder
	events   port.EventPublisher
	clock    port.Clock
	logger   *zap.Logger
}

// NewPolicyService constructs a PolicyService.
func NewPolicyService(
	store *PolicyStore,
	policies port.PolicyRepository,
	cache port.DecisionCache,
	recorder *AuditRecorder,
	events port.EventPublisher,
	clock port.Clock,
	logger *zap.Logger,
) *PolicyService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PolicyService{
		store:    store,
		policies: policies,
		cache:    cache,
		recorder: recorder,
		events:   events,
		clock:    clock,
		logger:   logger,
	}
}

// CreatePolicy validates and persists a new active policy.
func (s *PolicyService) CreatePolicy(ctx context.Context, input CreatePolicyInput) (*domain.PermissionPolicy, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("policy name is required")
	}

	rules, err := normalizeRules(input.Rules)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	policy := domain.PermissionPolicy{
		ID:        uuid.NewString(),
		Name:      name,
		Rules:     rules,
		Scope:     input.Scope,
		Priority:  input.Priority,
		IsActive:  true,
		CreatedBy: input.CreatedBy,
		CreatedAt: now,
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed != "" {
			policy.Description = &trimmed
		}
	}

	err = s.store.UpsertPolicy(ctx, policy, func(ctx context.Context) error {
		if err := s.policies.Create(ctx, policy); err != nil {
			return persistence("create policy", err)
		}
		if err := s.cache.ClearAll(ctx); err != nil {
			return fmt.Errorf("clear decision cache: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditChange(input.CreatedBy, domain.AuditActionPolicyCreated, now, policy.ID)
	s.publish(ctx, policy, input.CreatedBy, now, false)

	return &policy, nil
}

// UpdatePolicy applies partial changes to an existing policy.
func (s *PolicyService) UpdatePolicy(ctx context.Context, input UpdatePolicyInput) (*domain.PermissionPolicy, error) {
	policyID := strings.TrimSpace(input.ID)
	if policyID == "" {
		return nil, fmt.Errorf("policy id is required")
	}

	existing, ok := s.findPolicy(policyID)
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", policyID, repository.ErrNotFound)
	}

	policy := existing
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		if trimmed == "" {
			return nil, fmt.Errorf("policy name is required")
		}
		policy.Name = trimmed
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		if trimmed == "" {
			policy.Description = nil
		} else {
			policy.Description = &trimmed
		}
	}
	if input.Rules != nil {
		rules, err := normalizeRules(input.Rules)
		if err != nil {
			return nil, err
		}
		policy.Rules = rules
	}
	if input.Scope != nil {
		policy.Scope = *input.Scope
	}
	if input.Priority != nil {
		policy.Priority = *input.Priority
	}
	if input.IsActive != nil {
		policy.IsActive = *input.IsActive
	}

	now := s.clock.Now()
	policy.ModifiedBy = &input.ModifiedBy
	policy.ModifiedAt = &now

	err := s.store.UpsertPolicy(ctx, policy, func(ctx context.Context) error {
		if err := s.policies.Update(ctx, policy); err != nil {
			return persistence("update policy", err)
		}
		if err := s.cache.ClearAll(ctx); err != nil {
			return fmt.Errorf("clear decision cache: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditChange(input.ModifiedBy, domain.AuditActionPolicyUpdated, now, policy.ID)
	s.publish(ctx, policy, input.ModifiedBy, now, true)

	return &policy, nil
}

// GetPolicy returns one policy from the store snapshot.
func (s *PolicyService) GetPolicy(_ context.Context, policyID string) (*domain.PermissionPolicy, error) {
	policy, ok := s.findPolicy(policyID)
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", policyID, repository.ErrNotFound)
	}
	return &policy, nil
}

// ListPolicies returns all policies in descending priority order.
func (s *PolicyService) ListPolicies(context.Context) []domain.PermissionPolicy {
	return s.store.Snapshot().Policies()
}

func (s *PolicyService) findPolicy(policyID string) (domain.PermissionPolicy, bool) {
	for _, policy := range s.store.Snapshot().Policies() {
		if policy.ID == policyID {
			return policy, true
		}
	}
	return domain.PermissionPolicy{}, false
}

// normalizeRules validates conditions and assigns rule IDs where missing.
func normalizeRules(rules []domain.PermissionRule) ([]domain.PermissionRule, error) {
	normalized := make([]domain.PermissionRule, 0, len(rules))

	for i, rule := range rules {
		if rule.Effect != domain.EffectAllow && rule.Effect != domain.EffectDeny {
			return nil, fmt.Errorf("rule %d: effect %q: %w", i, rule.Effect, ErrInvalidRule)
		}
		for j, cond := range rule.Conditions {
			if strings.TrimSpace(cond.Attribute) == "" {
				return nil, fmt.Errorf("rule %d condition %d: empty attribute: %w", i, j, ErrInvalidRule)
			}
			if strings.TrimSpace(cond.Value) == "" {
				return nil, fmt.Errorf("rule %d condition %d: empty value: %w", i, j, ErrInvalidRule)
			}
		}
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		normalized = append(normalized, rule)
	}

	return normalized, nil
}

func (s *PolicyService) auditChange(actor, action string, at time.Time, policyID string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(domain.AuditEntry{
		Timestamp: at,
		UserID:    actor,
		Action:    action,
		Result:    domain.AuditResultGranted,
		Context:   map[string]string{"policy_id": policyID},
	})
}

func (s *PolicyService) publish(ctx context.Context, policy domain.PermissionPolicy, actor string, at time.Time, updated bool) {
	if s.events == nil {
		return
	}

	event := domain.PolicyChangedEvent{
		EventID:   uuid.NewString(),
		PolicyID:  policy.ID,
		Name:      policy.Name,
		Priority:  policy.Priority,
		IsActive:  policy.IsActive,
		Actor:     actor,
		ChangedAt: at,
	}

	var err error
	if updated {
		err = s.events.PublishPolicyUpdated(ctx, event)
	} else {
		err = s.events.PublishPolicyCreated(ctx, event)
	}
	if err != nil {
		s.logger.Warn("publish policy event failed", zap.String("policy_id", policy.ID), zap.Error(err))
	}
}
