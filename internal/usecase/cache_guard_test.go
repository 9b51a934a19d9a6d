package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

func TestDecisionCacheGuardDropsStaleWrite(t *testing.T) {
	inner := newRecordingCache()
	guard := NewDecisionCacheGuard(inner)
	ctx := context.Background()

	epoch := guard.Epoch()
	if err := guard.ClearForResource(ctx, "doc-1"); err != nil {
		t.Fatalf("ClearForResource returned error: %v", err)
	}

	if err := guard.PutIfCurrent(ctx, "alice:read:doc-1", true, time.Minute, epoch); err != nil {
		t.Fatalf("PutIfCurrent returned error: %v", err)
	}
	if len(inner.entries) != 0 {
		t.Fatalf("stale write must be dropped, got %v", inner.entries)
	}

	epoch = guard.Epoch()
	if err := guard.PutIfCurrent(ctx, "alice:read:doc-1", true, time.Minute, epoch); err != nil {
		t.Fatalf("PutIfCurrent returned error: %v", err)
	}
	if value, ok := inner.entries["alice:read:doc-1"]; !ok || !value {
		t.Fatalf("current write must reach the cache, got %v", inner.entries)
	}
}

func TestDecisionCacheGuardEveryClearBumpsEpoch(t *testing.T) {
	guard := NewDecisionCacheGuard(newRecordingCache())
	ctx := context.Background()

	before := guard.Epoch()
	_ = guard.ClearForPrincipal(ctx, "alice")
	_ = guard.ClearForResource(ctx, "doc-1")
	_ = guard.ClearAll(ctx)

	if got := guard.Epoch(); got != before+3 {
		t.Fatalf("expected epoch %d, got %d", before+3, got)
	}
}

// mutatingResourceRepository fires a hook after each permission lookup,
// simulating an administrative mutation landing mid-evaluation.
type mutatingResourceRepository struct {
	inner    *memResourceRepository
	afterGet func()
}

func (r *mutatingResourceRepository) Replace(ctx context.Context, permissions domain.ResourcePermissions) error {
	return r.inner.Replace(ctx, permissions)
}

func (r *mutatingResourceRepository) GetByResource(ctx context.Context, resourceID string) (*domain.ResourcePermissions, error) {
	permissions, err := r.inner.GetByResource(ctx, resourceID)
	if r.afterGet != nil {
		r.afterGet()
	}
	return permissions, err
}

func TestDecideDropsWriteBackRacingInvalidation(t *testing.T) {
	clock := testClock()
	ctx := context.Background()

	inner := &memResourceRepository{permissions: map[string]domain.ResourcePermissions{
		"doc-1": {
			ResourceID:   "doc-1",
			ResourceType: "document",
			Grants: []domain.PermissionGrant{
				{PrincipalID: "alice", Action: "read", IsGranted: true},
			},
		},
	}}
	resources := &mutatingResourceRepository{inner: inner}
	cache := newRecordingCache()
	guard := NewDecisionCacheGuard(cache)

	store := NewPolicyStore(&memRoleRepository{}, &memAssignmentRepository{}, &memPolicyRepository{}, &memGrantRepository{grants: map[string][]domain.Permission{}})
	service := NewEvaluationService(store, resources, &memACLRepository{}, guard, NewConditionRegistry(&mapAttributeProvider{}), nil, clock, zap.NewNop())
	refreshStore(t, service)

	// The in-flight decide has already read the allow grant when the grant
	// set is replaced with a deny and the resource's entries are cleared.
	fired := false
	resources.afterGet = func() {
		if fired {
			return
		}
		fired = true
		_ = inner.Replace(ctx, domain.ResourcePermissions{
			ResourceID:   "doc-1",
			ResourceType: "document",
			Grants: []domain.PermissionGrant{
				{PrincipalID: "alice", Action: "read", IsGranted: false},
			},
		})
		if err := guard.ClearForResource(ctx, "doc-1"); err != nil {
			t.Errorf("ClearForResource returned error: %v", err)
		}
	}

	stale := service.DecideDetailed(ctx, "alice", "read", domain.Resource{ID: "doc-1", Type: "document"}, nil)
	if !stale.Granted || stale.Source != domain.SourceResource {
		t.Fatalf("expected the in-flight call to return the pre-mutation grant, got %+v", stale)
	}
	if len(cache.entries) != 0 {
		t.Fatalf("pre-mutation result must not be written back, got %v", cache.entries)
	}

	fresh := service.DecideDetailed(ctx, "alice", "read", domain.Resource{ID: "doc-1", Type: "document"}, nil)
	if fresh.Granted {
		t.Fatalf("expected post-mutation denial, got %+v", fresh)
	}
	if fresh.CacheHit || fresh.Source != domain.SourceResource {
		t.Fatalf("denial must come from re-evaluation, got %+v", fresh)
	}

	key := domain.CacheKey("alice", "read", "doc-1")
	if value, ok := cache.entries[key]; !ok || value {
		t.Fatalf("re-evaluated denial must be cached, got %v", cache.entries)
	}
}
