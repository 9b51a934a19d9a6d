package domain

import "time"

// RoleAssignedEvent represents the payload for authz.role.assigned messages.
type RoleAssignedEvent struct {
	EventID      string
	AssignmentID string
	PrincipalID  string
	RoleID       string
	RoleName     string
	Scope        string
	AssignedBy   string
	AssignedAt   time.Time
	ExpiresAt    *time.Time
	Metadata     map[string]any
}

// RoleRevokedEvent represents the payload for authz.role.revoked messages.
type RoleRevokedEvent struct {
	EventID      string
	AssignmentID string
	PrincipalID  string
	RoleID       string
	RevokedBy    string
	RevokedAt    time.Time
	Reason       string
	Metadata     map[string]any
}

// PolicyChangedEvent represents the payload for authz.policy.created and
// authz.policy.updated messages.
type PolicyChangedEvent struct {
	EventID   string
	PolicyID  string
	Name      string
	Priority  int
	IsActive  bool
	Actor     string
	ChangedAt time.Time
	Metadata  map[string]any
}

// ResourcePermissionsSetEvent represents the payload for
// authz.resource.permissions_set messages.
type ResourcePermissionsSetEvent struct {
	EventID      string
	ResourceID   string
	ResourceType string
	GrantCount   int
	Inherited    bool
	SetBy        string
	SetAt        time.Time
	Metadata     map[string]any
}

// ACLCreatedEvent represents the payload for authz.acl.created messages.
type ACLCreatedEvent struct {
	EventID      string
	ACLID        string
	ResourceID   string
	ResourceType string
	EntryCount   int
	CreatedBy    string
	CreatedAt    time.Time
	Metadata     map[string]any
}
