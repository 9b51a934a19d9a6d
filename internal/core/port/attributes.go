package port

import "context"

// AttributeProvider resolves user and resource attributes referenced by
// userAttribute and resourceAttribute conditions. Production deployments wire
// a directory-backed provider; the in-process static provider covers tests
// and development.
type AttributeProvider interface {
	UserAttribute(ctx context.Context, principalID, attribute string) (string, error)
	ResourceAttribute(ctx context.Context, resourceID, attribute string) (string, error)
}
