package domain

import "time"

// Resource is a typed, identified target of an action.
type Resource struct {
	ID   string
	Type string
}

// PermissionGrant is a principal-specific grant attached to one resource instance.
type PermissionGrant struct {
	PrincipalID string
	Action      string
	IsGranted   bool
}

// ResourcePermissions holds the direct grant set for one resource instance.
// Setting permissions replaces the whole set.
type ResourcePermissions struct {
	ResourceID        string
	ResourceType      string
	Grants            []PermissionGrant
	InheritFromParent bool
	SetBy             string
	SetAt             time.Time
}

// ACLEntry grants or denies a single action to a single principal.
type ACLEntry struct {
	PrincipalID   string
	PrincipalType string
	Action        string
	IsGranted     bool
}

// AccessControlList is a per-resource list of principal-specific entries,
// independent of roles and policies.
type AccessControlList struct {
	ID               string
	ResourceID       string
	ResourceType     string
	Entries          []ACLEntry
	InheritanceRules string
	CreatedBy        string
	CreatedAt        time.Time
}
