package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/repository"
)

func newPolicyFixture(t *testing.T, clock *stubClock, existing []domain.PermissionPolicy) (*PolicyService, *memPolicyRepository, *recordingCache, *stubEventPublisher) {
	t.Helper()

	policyRepo := &memPolicyRepository{policies: existing}
	store := newTestStore(t, &memRoleRepository{}, &memAssignmentRepository{}, policyRepo, &memGrantRepository{})
	cache := newRecordingCache()
	events := &stubEventPublisher{}

	service := NewPolicyService(store, policyRepo, cache, nil, events, clock, zap.NewNop())
	return service, policyRepo, cache, events
}

func allowRule() domain.PermissionRule {
	return domain.PermissionRule{Effect: domain.EffectAllow}
}

func TestCreatePolicyRejectsInvalidRules(t *testing.T) {
	clock := testClock()
	service, _, _, _ := newPolicyFixture(t, clock, nil)

	cases := []struct {
		name  string
		rules []domain.PermissionRule
	}{
		{
			name:  "unknown effect",
			rules: []domain.PermissionRule{{Effect: "maybe"}},
		},
		{
			name: "empty condition attribute",
			rules: []domain.PermissionRule{{
				Effect:     domain.EffectAllow,
				Conditions: []domain.PermissionCondition{{Type: domain.ConditionTypeContextual, Value: "x"}},
			}},
		},
		{
			name: "empty condition value",
			rules: []domain.PermissionRule{{
				Effect:     domain.EffectAllow,
				Conditions: []domain.PermissionCondition{{Type: domain.ConditionTypeContextual, Attribute: "dept"}},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreatePolicy(context.Background(), CreatePolicyInput{
				Name:      "p",
				Rules:     tc.rules,
				CreatedBy: "admin",
			})
			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestCreatePolicyRequiresName(t *testing.T) {
	clock := testClock()
	service, _, _, _ := newPolicyFixture(t, clock, nil)

	if _, err := service.CreatePolicy(context.Background(), CreatePolicyInput{
		Name:  "   ",
		Rules: []domain.PermissionRule{allowRule()},
	}); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestCreatePolicyClearsEntireCache(t *testing.T) {
	clock := testClock()
	service, policyRepo, cache, events := newPolicyFixture(t, clock, nil)

	cache.entries["alice:read:doc-1"] = true
	cache.entries["bob:delete:doc-2"] = false

	policy, err := service.CreatePolicy(context.Background(), CreatePolicyInput{
		Name:      "after-hours-deny",
		Rules:     []domain.PermissionRule{allowRule()},
		Priority:  5,
		CreatedBy: "admin",
	})
	if err != nil {
		t.Fatalf("create policy: %v", err)
	}

	if !policy.IsActive {
		t.Fatalf("new policy must be active")
	}
	if policy.Rules[0].ID == "" {
		t.Fatalf("expected rule id to be generated")
	}
	if len(policyRepo.policies) != 1 {
		t.Fatalf("expected policy to be persisted")
	}
	if cache.clearedAll != 1 {
		t.Fatalf("policy creation must clear the whole decision cache")
	}
	if len(cache.entries) != 0 {
		t.Fatalf("expected cache to be emptied")
	}
	if events.policyCreated != 1 {
		t.Fatalf("expected a policy created event")
	}
}

func TestCreatePolicyPersistenceFailure(t *testing.T) {
	clock := testClock()
	service, policyRepo, cache, _ := newPolicyFixture(t, clock, nil)
	policyRepo.createErr = errBackend

	_, err := service.CreatePolicy(context.Background(), CreatePolicyInput{
		Name:      "p",
		Rules:     []domain.PermissionRule{allowRule()},
		CreatedBy: "admin",
	})

	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if cache.clearedAll != 0 {
		t.Fatalf("cache must survive a failed create")
	}
	if len(service.ListPolicies(context.Background())) != 0 {
		t.Fatalf("failed create must not reach the snapshot")
	}
}

func TestUpdatePolicyNotFound(t *testing.T) {
	clock := testClock()
	service, _, _, _ := newPolicyFixture(t, clock, nil)

	_, err := service.UpdatePolicy(context.Background(), UpdatePolicyInput{ID: "missing", ModifiedBy: "admin"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePolicyAppliesPartialChanges(t *testing.T) {
	clock := testClock()
	service, _, cache, events := newPolicyFixture(t, clock, []domain.PermissionPolicy{
		{ID: "pol-1", Name: "old", Priority: 10, IsActive: true},
		{ID: "pol-2", Name: "other", Priority: 50, IsActive: true},
	})

	priority := 100
	inactive := false
	updated, err := service.UpdatePolicy(context.Background(), UpdatePolicyInput{
		ID:         "pol-1",
		Priority:   &priority,
		IsActive:   &inactive,
		ModifiedBy: "admin",
	})
	if err != nil {
		t.Fatalf("update policy: %v", err)
	}

	if updated.Name != "old" {
		t.Fatalf("untouched fields must be preserved, got name %q", updated.Name)
	}
	if updated.Priority != 100 || updated.IsActive {
		t.Fatalf("expected priority 100 and inactive, got %d active=%t", updated.Priority, updated.IsActive)
	}
	if updated.ModifiedBy == nil || *updated.ModifiedBy != "admin" {
		t.Fatalf("expected ModifiedBy to be recorded")
	}
	if cache.clearedAll != 1 {
		t.Fatalf("policy update must clear the whole decision cache")
	}
	if events.policyUpdated != 1 {
		t.Fatalf("expected a policy updated event")
	}

	// The priority bump reorders the snapshot.
	policies := service.ListPolicies(context.Background())
	if policies[0].ID != "pol-1" {
		t.Fatalf("expected pol-1 first after the priority bump, got %s", policies[0].ID)
	}
}

func TestGetPolicy(t *testing.T) {
	clock := testClock()
	service, _, _, _ := newPolicyFixture(t, clock, []domain.PermissionPolicy{
		{ID: "pol-1", Name: "p", IsActive: true},
	})

	policy, err := service.GetPolicy(context.Background(), "pol-1")
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if policy.ID != "pol-1" {
		t.Fatalf("expected pol-1, got %s", policy.ID)
	}

	if _, err := service.GetPolicy(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
