package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/repository"
)

func newAssignmentFixture(t *testing.T, clock *stubClock, roles []domain.Role) (*AssignmentService, *memAssignmentRepository, *recordingCache, *stubEventPublisher) {
	t.Helper()

	roleRepo := &memRoleRepository{roles: roles}
	assignmentRepo := &memAssignmentRepository{}
	store := newTestStore(t, roleRepo, assignmentRepo, &memPolicyRepository{}, &memGrantRepository{})
	cache := newRecordingCache()
	events := &stubEventPublisher{}

	service := NewAssignmentService(store, assignmentRepo, cache, nil, events, clock, zap.NewNop())
	return service, assignmentRepo, cache, events
}

func TestAssignRoleUnknownRole(t *testing.T) {
	clock := testClock()
	service, _, _, _ := newAssignmentFixture(t, clock, nil)

	_, err := service.AssignRole(context.Background(), AssignRoleInput{
		PrincipalID: "alice",
		RoleID:      "missing",
		AssignedBy:  "admin",
	})

	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignRoleValidatesInput(t *testing.T) {
	clock := testClock()
	service, _, _, _ := newAssignmentFixture(t, clock, nil)

	if _, err := service.AssignRole(context.Background(), AssignRoleInput{RoleID: "role-1"}); err == nil {
		t.Fatalf("expected error for missing principal id")
	}
	if _, err := service.AssignRole(context.Background(), AssignRoleInput{PrincipalID: "alice"}); err == nil {
		t.Fatalf("expected error for missing role id")
	}
}

func TestAssignRolePersistsAndInvalidates(t *testing.T) {
	clock := testClock()
	service, assignmentRepo, cache, events := newAssignmentFixture(t, clock, []domain.Role{
		{ID: "role-1", Name: "viewer"},
	})

	cache.entries["alice:read:doc-1"] = false

	assignment, err := service.AssignRole(context.Background(), AssignRoleInput{
		PrincipalID: "alice",
		RoleID:      "role-1",
		AssignedBy:  "admin",
	})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if assignment.ID == "" {
		t.Fatalf("expected assignment id to be generated")
	}
	if !assignment.IsActive {
		t.Fatalf("new assignment must be active")
	}
	if len(assignmentRepo.assignments) != 1 {
		t.Fatalf("expected assignment to be persisted")
	}
	if len(cache.clearedPrincipals) != 1 || cache.clearedPrincipals[0] != "alice" {
		t.Fatalf("expected principal cache invalidation, got %v", cache.clearedPrincipals)
	}
	if _, ok := cache.entries["alice:read:doc-1"]; ok {
		t.Fatalf("expected stale cached decision to be cleared")
	}
	if events.assigned != 1 {
		t.Fatalf("expected a role assigned event, got %d", events.assigned)
	}
}

func TestAssignRoleDuplicateCreatesIndependentRecord(t *testing.T) {
	clock := testClock()
	service, assignmentRepo, _, _ := newAssignmentFixture(t, clock, []domain.Role{
		{ID: "role-1", Name: "viewer"},
	})

	input := AssignRoleInput{PrincipalID: "alice", RoleID: "role-1", AssignedBy: "admin"}

	first, err := service.AssignRole(context.Background(), input)
	if err != nil {
		t.Fatalf("first assign: %v", err)
	}
	second, err := service.AssignRole(context.Background(), input)
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}

	if first.ID == second.ID {
		t.Fatalf("duplicate assignments must be independent records")
	}
	if len(assignmentRepo.assignments) != 2 {
		t.Fatalf("expected 2 persisted assignments, got %d", len(assignmentRepo.assignments))
	}
}

func TestAssignRolePersistenceFailure(t *testing.T) {
	clock := testClock()
	service, assignmentRepo, cache, events := newAssignmentFixture(t, clock, []domain.Role{
		{ID: "role-1", Name: "viewer"},
	})
	assignmentRepo.createErr = errBackend

	_, err := service.AssignRole(context.Background(), AssignRoleInput{
		PrincipalID: "alice",
		RoleID:      "role-1",
		AssignedBy:  "admin",
	})

	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if len(cache.clearedPrincipals) != 0 {
		t.Fatalf("cache must not be invalidated when persistence fails")
	}
	if events.assigned != 0 {
		t.Fatalf("no event must be published when persistence fails")
	}
}

func TestRevokeRoleThenReassign(t *testing.T) {
	clock := testClock()
	service, assignmentRepo, cache, events := newAssignmentFixture(t, clock, []domain.Role{
		{ID: "role-1", Name: "viewer"},
	})

	if _, err := service.AssignRole(context.Background(), AssignRoleInput{PrincipalID: "alice", RoleID: "role-1", AssignedBy: "admin"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	clock.Advance(time.Minute)
	reason := "offboarding"
	revoked, err := service.RevokeRole(context.Background(), RevokeRoleInput{
		PrincipalID: "alice",
		RoleID:      "role-1",
		RevokedBy:   "admin",
		Reason:      &reason,
	})
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if revoked.IsActive {
		t.Fatalf("revoked assignment must be inactive")
	}
	if revoked.RevocationReason == nil || *revoked.RevocationReason != reason {
		t.Fatalf("expected revocation reason to be recorded")
	}
	if events.revoked != 1 {
		t.Fatalf("expected a role revoked event")
	}
	if got := cache.clearedPrincipals; len(got) != 2 {
		t.Fatalf("expected cache invalidation on assign and revoke, got %v", got)
	}

	// A second revoke finds no active assignment.
	if _, err := service.RevokeRole(context.Background(), RevokeRoleInput{PrincipalID: "alice", RoleID: "role-1", RevokedBy: "admin"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double revoke, got %v", err)
	}

	// Re-assignment creates a fresh record; the revoked one stays revoked.
	clock.Advance(time.Minute)
	fresh, err := service.AssignRole(context.Background(), AssignRoleInput{PrincipalID: "alice", RoleID: "role-1", AssignedBy: "admin"})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if fresh.ID == revoked.ID {
		t.Fatalf("re-assignment must not resurrect the revoked record")
	}

	history, err := service.ListAssignments(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected the full history including the revoked record, got %d", len(history))
	}
	for _, a := range assignmentRepo.assignments {
		if a.ID == revoked.ID && a.IsActive {
			t.Fatalf("revocation must be monotonic")
		}
	}
}

func TestListRolesReturnsSnapshotRoles(t *testing.T) {
	clock := testClock()
	service, _, _, _ := newAssignmentFixture(t, clock, []domain.Role{
		{ID: "role-2", Name: "editor"},
		{ID: "role-1", Name: "viewer"},
	})

	roles := service.ListRoles(context.Background())
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[0].Name != "editor" || roles[1].Name != "viewer" {
		t.Fatalf("expected roles sorted by name, got %s then %s", roles[0].Name, roles[1].Name)
	}
}
