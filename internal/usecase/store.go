package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
	"github.com/arklim/enterprise-authz/internal/repository"
)

// Snapshot is an immutable view of the policy store. Readers obtain one
// pointer and evaluate against it; mutations build a new snapshot and swap,
// so a decision in flight never observes a half-applied state.
type Snapshot struct {
	roles       map[string]domain.Role
	policies    []domain.PermissionPolicy
	assignments map[string][]domain.RoleAssignment
	grants      map[string][]domain.Permission
}

// Role returns the role definition for the given ID.
func (s *Snapshot) Role(id string) (domain.Role, bool) {
	role, ok := s.roles[id]
	return role, ok
}

// Roles returns all role definitions sorted by name.
func (s *Snapshot) Roles() []domain.Role {
	roles := make([]domain.Role, 0, len(s.roles))
	for _, role := range s.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

// Policies returns all policies in descending priority order.
func (s *Snapshot) Policies() []domain.PermissionPolicy {
	return s.policies
}

// ActiveAssignments returns the principal's assignments that are active and
// not expired at the given instant, in assignment order.
func (s *Snapshot) ActiveAssignments(principalID string, now time.Time) []domain.RoleAssignment {
	all := s.assignments[principalID]
	active := make([]domain.RoleAssignment, 0, len(all))
	for _, a := range all {
		if a.EffectiveAt(now) {
			active = append(active, a)
		}
	}
	return active
}

// DirectGrants returns principal-specific permissions in declaration order.
func (s *Snapshot) DirectGrants(principalID string) []domain.Permission {
	return s.grants[principalID]
}

// EffectivePermissions recomputes the principal's permission set at the given
// instant: direct grants first, then role permissions in assignment order.
func (s *Snapshot) EffectivePermissions(principalID string, now time.Time) []domain.Permission {
	effective := make([]domain.Permission, 0, len(s.grants[principalID]))
	effective = append(effective, s.grants[principalID]...)
	for _, a := range s.ActiveAssignments(principalID, now) {
		if role, ok := s.roles[a.RoleID]; ok {
			effective = append(effective, role.Permissions...)
		}
	}
	return effective
}

func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		roles:       make(map[string]domain.Role, len(s.roles)),
		policies:    make([]domain.PermissionPolicy, len(s.policies)),
		assignments: make(map[string][]domain.RoleAssignment, len(s.assignments)),
		grants:      make(map[string][]domain.Permission, len(s.grants)),
	}
	for id, role := range s.roles {
		next.roles[id] = role
	}
	copy(next.policies, s.policies)
	for id, list := range s.assignments {
		next.assignments[id] = list
	}
	for id, list := range s.grants {
		next.grants[id] = list
	}
	return next
}

// PolicyStore is the in-memory collection of role definitions, assignments,
// direct grants, and permission policies the evaluation engine reads from.
// It is seeded with system defaults and refreshed from durable storage.
// Reads are lock-free against an immutable snapshot; mutations persist,
// invalidate caches, and swap the snapshot under a single write lock.
type PolicyStore struct {
	roles       port.RoleRepository
	assignments port.AssignmentRepository
	policies    port.PolicyRepository
	grants      port.GrantRepository

	mu   sync.RWMutex
	snap *Snapshot
}

// NewPolicyStore constructs an empty store bound to the durable repositories.
func NewPolicyStore(roles port.RoleRepository, assignments port.AssignmentRepository, policies port.PolicyRepository, grants port.GrantRepository) *PolicyStore {
	return &PolicyStore{
		roles:       roles,
		assignments: assignments,
		policies:    policies,
		grants:      grants,
		snap: &Snapshot{
			roles:       make(map[string]domain.Role),
			assignments: make(map[string][]domain.RoleAssignment),
			grants:      make(map[string][]domain.Permission),
		},
	}
}

// Snapshot returns the current immutable view.
func (s *PolicyStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh reloads roles, active assignments, policies, and direct grants from
// durable storage and swaps the snapshot.
func (s *PolicyStore) Refresh(ctx context.Context) error {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return persistence("load roles", err)
	}

	assignments, err := s.assignments.ListActive(ctx)
	if err != nil {
		return persistence("load role assignments", err)
	}

	policies, err := s.policies.List(ctx)
	if err != nil {
		return persistence("load policies", err)
	}

	grants, err := s.grants.ListAll(ctx)
	if err != nil {
		return persistence("load direct grants", err)
	}

	next := &Snapshot{
		roles:       make(map[string]domain.Role, len(roles)),
		policies:    sortPolicies(policies),
		assignments: make(map[string][]domain.RoleAssignment),
		grants:      grants,
	}
	if next.grants == nil {
		next.grants = make(map[string][]domain.Permission)
	}
	for _, role := range roles {
		next.roles[role.ID] = role
	}
	for _, a := range assignments {
		next.assignments[a.PrincipalID] = append(next.assignments[a.PrincipalID], a)
	}

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	return nil
}

// EnsureSystemRoles seeds the default system roles when durable storage holds
// no roles yet, then refreshes the snapshot.
func (s *PolicyStore) EnsureSystemRoles(ctx context.Context) error {
	existing, err := s.roles.List(ctx)
	if err != nil {
		return persistence("load roles", err)
	}

	if len(existing) == 0 {
		for _, role := range SystemRoles() {
			if err := s.roles.Create(ctx, role); err != nil {
				return persistence(fmt.Sprintf("seed system role %s", role.Name), err)
			}
		}
	}

	return s.Refresh(ctx)
}

// AddAssignment verifies the role exists, runs commit (persist + cache
// invalidation) and applies the assignment, all under the write lock. It
// returns the assigned role. Duplicate active assignments are allowed and
// create independent records.
func (s *PolicyStore) AddAssignment(ctx context.Context, assignment domain.RoleAssignment, commit func(ctx context.Context) error) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, ok := s.snap.roles[assignment.RoleID]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", assignment.RoleID, repository.ErrNotFound)
	}

	if commit != nil {
		if err := commit(ctx); err != nil {
			return nil, err
		}
	}

	next := s.snap.clone()
	list := make([]domain.RoleAssignment, 0, len(next.assignments[assignment.PrincipalID])+1)
	list = append(list, next.assignments[assignment.PrincipalID]...)
	list = append(list, assignment)
	next.assignments[assignment.PrincipalID] = list
	s.snap = next

	return &role, nil
}

// RevokeAssignment locates the oldest active, non-expired assignment of the
// role to the principal, runs commit with it, and applies the revocation.
// Revocation is monotonic: the record stays revoked forever.
func (s *PolicyStore) RevokeAssignment(ctx context.Context, principalID, roleID string, now time.Time, revokedBy string, reason *string, commit func(ctx context.Context, assignment domain.RoleAssignment) error) (*domain.RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, a := range s.snap.assignments[principalID] {
		if a.RoleID == roleID && a.EffectiveAt(now) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("active assignment of role %s to principal %s: %w", roleID, principalID, repository.ErrNotFound)
	}

	revoked := s.snap.assignments[principalID][idx]
	revoked.IsActive = false
	revoked.RevokedAt = &now
	revoked.RevokedBy = &revokedBy
	revoked.RevocationReason = reason

	if commit != nil {
		if err := commit(ctx, revoked); err != nil {
			return nil, err
		}
	}

	next := s.snap.clone()
	list := make([]domain.RoleAssignment, len(next.assignments[principalID]))
	copy(list, next.assignments[principalID])
	list[idx] = revoked
	next.assignments[principalID] = list
	s.snap = next

	return &revoked, nil
}

// UpsertPolicy runs commit (persist + global cache clear) and inserts or
// replaces the policy, keeping the snapshot sorted by descending priority.
func (s *PolicyStore) UpsertPolicy(ctx context.Context, policy domain.PermissionPolicy, commit func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if commit != nil {
		if err := commit(ctx); err != nil {
			return err
		}
	}

	next := s.snap.clone()
	replaced := false
	for i, existing := range next.policies {
		if existing.ID == policy.ID {
			next.policies[i] = policy
			replaced = true
			break
		}
	}
	if !replaced {
		next.policies = append(next.policies, policy)
	}
	next.policies = sortPolicies(next.policies)
	s.snap = next

	return nil
}

// PutRole inserts or replaces a role definition in the snapshot.
func (s *PolicyStore) PutRole(ctx context.Context, role domain.Role, commit func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if commit != nil {
		if err := commit(ctx); err != nil {
			return err
		}
	}

	next := s.snap.clone()
	next.roles[role.ID] = role
	s.snap = next

	return nil
}

func sortPolicies(policies []domain.PermissionPolicy) []domain.PermissionPolicy {
	sorted := make([]domain.PermissionPolicy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })
	return sorted
}

// System role names seeded on first startup.
const (
	RoleViewer        = "viewer"
	RoleEditor        = "editor"
	RoleManager       = "manager"
	RoleAdministrator = "administrator"
)

// SystemRoles returns the default role set for a fresh deployment.
func SystemRoles() []domain.Role {
	grant := func(action, resourceType string) domain.Permission {
		return domain.Permission{Action: action, ResourceType: resourceType, IsGranted: true}
	}

	return []domain.Role{
		{
			ID:           uuid.NewString(),
			Name:         RoleViewer,
			Permissions:  []domain.Permission{grant("read", "document")},
			IsSystemRole: true,
		},
		{
			ID:   uuid.NewString(),
			Name: RoleEditor,
			Permissions: []domain.Permission{
				grant("read", domain.ResourceTypeAny),
				grant("create", "document"),
				grant("update", "document"),
			},
			IsSystemRole: true,
		},
		{
			ID:   uuid.NewString(),
			Name: RoleManager,
			Permissions: []domain.Permission{
				grant("read", domain.ResourceTypeAny),
				grant("create", domain.ResourceTypeAny),
				grant("update", domain.ResourceTypeAny),
				grant("approve", "document"),
				grant("delete", "document"),
			},
			IsSystemRole: true,
		},
		{
			ID:   uuid.NewString(),
			Name: RoleAdministrator,
			Permissions: []domain.Permission{
				grant("read", domain.ResourceTypeAny),
				grant("create", domain.ResourceTypeAny),
				grant("update", domain.ResourceTypeAny),
				grant("delete", domain.ResourceTypeAny),
				grant("approve", domain.ResourceTypeAny),
				grant("share", domain.ResourceTypeAny),
				grant("manage", domain.ResourceTypeAny),
			},
			IsSystemRole: true,
		},
	}
}
