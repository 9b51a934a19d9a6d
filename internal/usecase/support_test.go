package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/repository"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	return c.now
}

func (c *stubClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

//

type memRoleRepository struct {
	roles     []domain.Role
	listErr   error
	createErr error
}

func (r *memRoleRepository) Create(_ context.Context, role domain.Role) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.roles = append(r.roles, role)
	return nil
}

func (r *memRoleRepository) Update(_ context.Context, role domain.Role) error {
	for i, existing := range r.roles {
		if existing.ID == role.ID {
			r.roles[i] = role
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memRoleRepository) GetByID(_ context.Context, id string) (*domain.Role, error) {
	for _, role := range r.roles {
		if role.ID == id {
			copied := role
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRoleRepository) GetByName(_ context.Context, name string) (*domain.Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			copied := role
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRoleRepository) List(context.Context) ([]domain.Role, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Role, len(r.roles))
	copy(out, r.roles)
	return out, nil
}

//

type memAssignmentRepository struct {
	assignments []domain.RoleAssignment
	createErr   error
	revokeErr   error
}

func (r *memAssignmentRepository) Create(_ context.Context, assignment domain.RoleAssignment) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.assignments = append(r.assignments, assignment)
	return nil
}

func (r *memAssignmentRepository) Revoke(_ context.Context, assignmentID string, revokedAt time.Time, revokedBy, reason string) error {
	if r.revokeErr != nil {
		return r.revokeErr
	}
	for i, a := range r.assignments {
		if a.ID == assignmentID && a.IsActive {
			a.IsActive = false
			a.RevokedAt = &revokedAt
			a.RevokedBy = &revokedBy
			a.RevocationReason = &reason
			r.assignments[i] = a
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memAssignmentRepository) ListByPrincipal(_ context.Context, principalID string) ([]domain.RoleAssignment, error) {
	out := make([]domain.RoleAssignment, 0)
	for _, a := range r.assignments {
		if a.PrincipalID == principalID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAssignmentRepository) ListActive(context.Context) ([]domain.RoleAssignment, error) {
	out := make([]domain.RoleAssignment, 0)
	for _, a := range r.assignments {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

//

type memPolicyRepository struct {
	policies  []domain.PermissionPolicy
	createErr error
	updateErr error
}

func (r *memPolicyRepository) Create(_ context.Context, policy domain.PermissionPolicy) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.policies = append(r.policies, policy)
	return nil
}

func (r *memPolicyRepository) Update(_ context.Context, policy domain.PermissionPolicy) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	for i, existing := range r.policies {
		if existing.ID == policy.ID {
			r.policies[i] = policy
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memPolicyRepository) GetByID(_ context.Context, id string) (*domain.PermissionPolicy, error) {
	for _, policy := range r.policies {
		if policy.ID == id {
			copied := policy
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memPolicyRepository) List(context.Context) ([]domain.PermissionPolicy, error) {
	out := make([]domain.PermissionPolicy, len(r.policies))
	copy(out, r.policies)
	return out, nil
}

//

type memGrantRepository struct {
	grants map[string][]domain.Permission
}

func (r *memGrantRepository) ListByPrincipal(_ context.Context, principalID string) ([]domain.Permission, error) {
	return r.grants[principalID], nil
}

func (r *memGrantRepository) ListAll(context.Context) (map[string][]domain.Permission, error) {
	out := make(map[string][]domain.Permission, len(r.grants))
	for principalID, perms := range r.grants {
		out[principalID] = perms
	}
	return out, nil
}

//

type memResourceRepository struct {
	permissions map[string]domain.ResourcePermissions
	getErr      error
	replaceErr  error
}

func (r *memResourceRepository) Replace(_ context.Context, permissions domain.ResourcePermissions) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	if r.permissions == nil {
		r.permissions = make(map[string]domain.ResourcePermissions)
	}
	r.permissions[permissions.ResourceID] = permissions
	return nil
}

func (r *memResourceRepository) GetByResource(_ context.Context, resourceID string) (*domain.ResourcePermissions, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	permissions, ok := r.permissions[resourceID]
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", resourceID, repository.ErrNotFound)
	}
	copied := permissions
	return &copied, nil
}

//

type memACLRepository struct {
	acls      map[string][]domain.AccessControlList
	createErr error
}

func (r *memACLRepository) Create(_ context.Context, acl domain.AccessControlList) error {
	if r.createErr != nil {
		return r.createErr
	}
	if r.acls == nil {
		r.acls = make(map[string][]domain.AccessControlList)
	}
	r.acls[acl.ResourceID] = append(r.acls[acl.ResourceID], acl)
	return nil
}

func (r *memACLRepository) ListByResource(_ context.Context, resourceID string) ([]domain.AccessControlList, error) {
	return r.acls[resourceID], nil
}

//

type memAuditRepository struct {
	mu        sync.Mutex
	entries   []domain.AuditEntry
	appendErr error
}

func (r *memAuditRepository) Append(_ context.Context, entry domain.AuditEntry) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

func (r *memAuditRepository) ListRange(_ context.Context, from, to time.Time) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.AuditEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.Timestamp.Before(from) || entry.Timestamp.After(to) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *memAuditRepository) Entries() []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

//

// recordingCache tracks decision cache traffic and invalidation calls.
type recordingCache struct {
	entries           map[string]bool
	clearedPrincipals []string
	clearedResources  []string
	clearedAll        int
	getErr            error
	putErr            error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string]bool)}
}

func (c *recordingCache) Get(_ context.Context, key string) (bool, bool, error) {
	if c.getErr != nil {
		return false, false, c.getErr
	}
	value, ok := c.entries[key]
	return value, ok, nil
}

func (c *recordingCache) Put(_ context.Context, key string, value bool, _ time.Duration) error {
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[key] = value
	return nil
}

func (c *recordingCache) ClearForPrincipal(_ context.Context, principalID string) error {
	c.clearedPrincipals = append(c.clearedPrincipals, principalID)
	for key := range c.entries {
		if len(key) > len(principalID) && key[:len(principalID)+1] == principalID+":" {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *recordingCache) ClearForResource(_ context.Context, resourceID string) error {
	c.clearedResources = append(c.clearedResources, resourceID)
	suffix := ":" + resourceID
	for key := range c.entries {
		if len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix {
			delete(c.entries, key)
		}
	}
	return nil
}

func (c *recordingCache) ClearAll(context.Context) error {
	c.clearedAll++
	c.entries = make(map[string]bool)
	return nil
}

//

type stubEventPublisher struct {
	assigned       int
	revoked        int
	policyCreated  int
	policyUpdated  int
	permissionsSet int
	aclCreated     int
}

func (p *stubEventPublisher) PublishRoleAssigned(context.Context, domain.RoleAssignedEvent) error {
	p.assigned++
	return nil
}

func (p *stubEventPublisher) PublishRoleRevoked(context.Context, domain.RoleRevokedEvent) error {
	p.revoked++
	return nil
}

func (p *stubEventPublisher) PublishPolicyCreated(context.Context, domain.PolicyChangedEvent) error {
	p.policyCreated++
	return nil
}

func (p *stubEventPublisher) PublishPolicyUpdated(context.Context, domain.PolicyChangedEvent) error {
	p.policyUpdated++
	return nil
}

func (p *stubEventPublisher) PublishResourcePermissionsSet(context.Context, domain.ResourcePermissionsSetEvent) error {
	p.permissionsSet++
	return nil
}

func (p *stubEventPublisher) PublishACLCreated(context.Context, domain.ACLCreatedEvent) error {
	p.aclCreated++
	return nil
}

//

type mapAttributeProvider struct {
	users     map[string]map[string]string
	resources map[string]map[string]string
}

func (p *mapAttributeProvider) UserAttribute(_ context.Context, principalID, attribute string) (string, error) {
	return p.users[principalID][attribute], nil
}

func (p *mapAttributeProvider) ResourceAttribute(_ context.Context, resourceID, attribute string) (string, error) {
	return p.resources[resourceID][attribute], nil
}

//

var errBackend = errors.New("backend unavailable")

func testClock() *stubClock {
	return &stubClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

// newTestStore loads a snapshot from the given repositories.
func newTestStore(t interface{ Fatalf(string, ...any) }, roles *memRoleRepository, assignments *memAssignmentRepository, policies *memPolicyRepository, grants *memGrantRepository) *PolicyStore {
	store := NewPolicyStore(roles, assignments, policies, grants)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh store: %v", err)
	}
	return store
}
