package port

import (
	"context"
	"time"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

// RoleRepository persists role definitions.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	Update(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
}

// AssignmentRepository persists role assignments. Assignments are never
// deleted; revocation updates the row in place.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment domain.RoleAssignment) error
	Revoke(ctx context.Context, assignmentID string, revokedAt time.Time, revokedBy, reason string) error
	ListByPrincipal(ctx context.Context, principalID string) ([]domain.RoleAssignment, error)
	ListActive(ctx context.Context) ([]domain.RoleAssignment, error)
}

// PolicyRepository persists permission policies.
type PolicyRepository interface {
	Create(ctx context.Context, policy domain.PermissionPolicy) error
	Update(ctx context.Context, policy domain.PermissionPolicy) error
	GetByID(ctx context.Context, id string) (*domain.PermissionPolicy, error)
	List(ctx context.Context) ([]domain.PermissionPolicy, error)
}

// GrantRepository reads principal-specific direct grants. Direct grants are
// provisioned by the surrounding application; the engine only consumes them.
type GrantRepository interface {
	ListByPrincipal(ctx context.Context, principalID string) ([]domain.Permission, error)
	ListAll(ctx context.Context) (map[string][]domain.Permission, error)
}

// ResourceRepository persists per-resource permission sets.
type ResourceRepository interface {
	Replace(ctx context.Context, permissions domain.ResourcePermissions) error
	GetByResource(ctx context.Context, resourceID string) (*domain.ResourcePermissions, error)
}

// ACLRepository persists access-control lists.
type ACLRepository interface {
	Create(ctx context.Context, acl domain.AccessControlList) error
	ListByResource(ctx context.Context, resourceID string) ([]domain.AccessControlList, error)
}

// AuditRepository appends and reads the immutable audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListRange(ctx context.Context, from, to time.Time) ([]domain.AuditEntry, error)
}
