package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("principal_id", principalID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishRoleAssigned logs authz.role.assigned events.
func (p *StubPublisher) PublishRoleAssigned(_ context.Context, event domain.RoleAssignedEvent) error {
	payload := map[string]any{
		"assignment_id": event.AssignmentID,
		"principal_id":  event.PrincipalID,
		"role_id":       event.RoleID,
		"role_name":     event.RoleName,
		"scope":         event.Scope,
		"assigned_by":   event.AssignedBy,
		"assigned_at":   event.AssignedAt,
		"expires_at":    event.ExpiresAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("authz.role.assigned", event.PrincipalID, event.AssignedAt, payload)
	return nil
}

// PublishRoleRevoked logs authz.role.revoked events.
func (p *StubPublisher) PublishRoleRevoked(_ context.Context, event domain.RoleRevokedEvent) error {
	payload := map[string]any{
		"assignment_id": event.AssignmentID,
		"principal_id":  event.PrincipalID,
		"role_id":       event.RoleID,
		"revoked_by":    event.RevokedBy,
		"revoked_at":    event.RevokedAt,
		"reason":        event.Reason,
		"metadata":      event.Metadata,
	}
	p.logEvent("authz.role.revoked", event.PrincipalID, event.RevokedAt, payload)
	return nil
}

func (p *StubPublisher) logPolicyChanged(eventType string, event domain.PolicyChangedEvent) {
	payload := map[string]any{
		"policy_id":  event.PolicyID,
		"name":       event.Name,
		"priority":   event.Priority,
		"is_active":  event.IsActive,
		"actor":      event.Actor,
		"changed_at": event.ChangedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent(eventType, event.Actor, event.ChangedAt, payload)
}

// PublishPolicyCreated logs authz.policy.created events.
func (p *StubPublisher) PublishPolicyCreated(_ context.Context, event domain.PolicyChangedEvent) error {
	p.logPolicyChanged("authz.policy.created", event)
	return nil
}

// PublishPolicyUpdated logs authz.policy.updated events.
func (p *StubPublisher) PublishPolicyUpdated(_ context.Context, event domain.PolicyChangedEvent) error {
	p.logPolicyChanged("authz.policy.updated", event)
	return nil
}

// PublishResourcePermissionsSet logs authz.resource.permissions_set events.
func (p *StubPublisher) PublishResourcePermissionsSet(_ context.Context, event domain.ResourcePermissionsSetEvent) error {
	payload := map[string]any{
		"resource_id":   event.ResourceID,
		"resource_type": event.ResourceType,
		"grant_count":   event.GrantCount,
		"inherited":     event.Inherited,
		"set_by":        event.SetBy,
		"set_at":        event.SetAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("authz.resource.permissions_set", event.SetBy, event.SetAt, payload)
	return nil
}

// PublishACLCreated logs authz.acl.created events.
func (p *StubPublisher) PublishACLCreated(_ context.Context, event domain.ACLCreatedEvent) error {
	payload := map[string]any{
		"acl_id":        event.ACLID,
		"resource_id":   event.ResourceID,
		"resource_type": event.ResourceType,
		"entry_count":   event.EntryCount,
		"created_by":    event.CreatedBy,
		"created_at":    event.CreatedAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("authz.acl.created", event.CreatedBy, event.CreatedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
