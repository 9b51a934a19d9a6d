package port

import (
	"context"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishRoleAssigned(ctx context.Context, event domain.RoleAssignedEvent) error
	PublishRoleRevoked(ctx context.Context, event domain.RoleRevokedEvent) error
	PublishPolicyCreated(ctx context.Context, event domain.PolicyChangedEvent) error
	PublishPolicyUpdated(ctx context.Context, event domain.PolicyChangedEvent) error
	PublishResourcePermissionsSet(ctx context.Context, event domain.ResourcePermissionsSetEvent) error
	PublishACLCreated(ctx context.Context, event domain.ACLCreatedEvent) error
}
