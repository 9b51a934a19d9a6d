package domain

import "time"

// ResourceTypeAny is the wildcard matching every resource type.
const ResourceTypeAny = "any"

// Permission is an atomic grant or deny statement scoped to a resource type.
type Permission struct {
	Action       string
	ResourceType string
	IsGranted    bool
	Conditions   []PermissionCondition
}

// Matches reports whether the permission covers the given action and resource type.
func (p Permission) Matches(action, resourceType string) bool {
	if p.Action != action {
		return false
	}
	return p.ResourceType == resourceType || p.ResourceType == ResourceTypeAny
}

// Role bundles permissions under a name. System roles are seeded at startup
// and never mutated; custom roles may be updated.
type Role struct {
	ID           string
	Name         string
	Description  *string
	Permissions  []Permission
	IsSystemRole bool
}

// RoleAssignment links a principal to a role. Assignments are never physically
// deleted: revocation flips IsActive and records who revoked it and why.
type RoleAssignment struct {
	ID               string
	PrincipalID      string
	RoleID           string
	Scope            string
	AssignedBy       string
	AssignedAt       time.Time
	ExpirationDate   *time.Time
	IsActive         bool
	RevokedAt        *time.Time
	RevokedBy        *string
	RevocationReason *string
}

// Expired reports whether the assignment has passed its expiration date.
// Expiration is a derived read-time state, not a stored transition.
func (a RoleAssignment) Expired(now time.Time) bool {
	return a.ExpirationDate != nil && now.After(*a.ExpirationDate)
}

// EffectiveAt reports whether the assignment grants its role at the given instant.
func (a RoleAssignment) EffectiveAt(now time.Time) bool {
	return a.IsActive && !a.Expired(now)
}
