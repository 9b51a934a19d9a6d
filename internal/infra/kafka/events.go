package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
	"github.com/arklim/enterprise-authz/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	PrincipalID string           `json:"principal_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, principalID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishRoleAssigned publishes authz.role.assigned events.
func (p *EventPublisher) PublishRoleAssigned(ctx context.Context, event domain.RoleAssignedEvent) error {
	payload := struct {
		AssignmentID string         `json:"assignment_id"`
		PrincipalID  string         `json:"principal_id"`
		RoleID       string         `json:"role_id"`
		RoleName     string         `json:"role_name"`
		Scope        string         `json:"scope,omitempty"`
		AssignedBy   string         `json:"assigned_by"`
		AssignedAt   time.Time      `json:"assigned_at"`
		ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AssignmentID: event.AssignmentID,
		PrincipalID:  event.PrincipalID,
		RoleID:       event.RoleID,
		RoleName:     event.RoleName,
		Scope:        event.Scope,
		AssignedBy:   event.AssignedBy,
		AssignedAt:   event.AssignedAt.UTC(),
		ExpiresAt:    event.ExpiresAt,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.role.assigned", event.PrincipalID, event.AssignedAt, payload)
}

// PublishRoleRevoked publishes authz.role.revoked events.
func (p *EventPublisher) PublishRoleRevoked(ctx context.Context, event domain.RoleRevokedEvent) error {
	payload := struct {
		AssignmentID string         `json:"assignment_id"`
		PrincipalID  string         `json:"principal_id"`
		RoleID       string         `json:"role_id"`
		RevokedBy    string         `json:"revoked_by"`
		RevokedAt    time.Time      `json:"revoked_at"`
		Reason       string         `json:"reason,omitempty"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AssignmentID: event.AssignmentID,
		PrincipalID:  event.PrincipalID,
		RoleID:       event.RoleID,
		RevokedBy:    event.RevokedBy,
		RevokedAt:    event.RevokedAt.UTC(),
		Reason:       event.Reason,
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.role.revoked", event.PrincipalID, event.RevokedAt, payload)
}

func (p *EventPublisher) publishPolicyChanged(ctx context.Context, eventType string, event domain.PolicyChangedEvent) error {
	payload := struct {
		PolicyID  string         `json:"policy_id"`
		Name      string         `json:"name"`
		Priority  int            `json:"priority"`
		IsActive  bool           `json:"is_active"`
		Actor     string         `json:"actor"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		PolicyID:  event.PolicyID,
		Name:      event.Name,
		Priority:  event.Priority,
		IsActive:  event.IsActive,
		Actor:     event.Actor,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventType, event.Actor, event.ChangedAt, payload)
}

// PublishPolicyCreated publishes authz.policy.created events.
func (p *EventPublisher) PublishPolicyCreated(ctx context.Context, event domain.PolicyChangedEvent) error {
	return p.publishPolicyChanged(ctx, "authz.policy.created", event)
}

// PublishPolicyUpdated publishes authz.policy.updated events.
func (p *EventPublisher) PublishPolicyUpdated(ctx context.Context, event domain.PolicyChangedEvent) error {
	return p.publishPolicyChanged(ctx, "authz.policy.updated", event)
}

// PublishResourcePermissionsSet publishes authz.resource.permissions_set events.
func (p *EventPublisher) PublishResourcePermissionsSet(ctx context.Context, event domain.ResourcePermissionsSetEvent) error {
	payload := struct {
		ResourceID   string         `json:"resource_id"`
		ResourceType string         `json:"resource_type"`
		GrantCount   int            `json:"grant_count"`
		Inherited    bool           `json:"inherited"`
		SetBy        string         `json:"set_by"`
		SetAt        time.Time      `json:"set_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		ResourceID:   event.ResourceID,
		ResourceType: event.ResourceType,
		GrantCount:   event.GrantCount,
		Inherited:    event.Inherited,
		SetBy:        event.SetBy,
		SetAt:        event.SetAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.resource.permissions_set", event.SetBy, event.SetAt, payload)
}

// PublishACLCreated publishes authz.acl.created events.
func (p *EventPublisher) PublishACLCreated(ctx context.Context, event domain.ACLCreatedEvent) error {
	payload := struct {
		ACLID        string         `json:"acl_id"`
		ResourceID   string         `json:"resource_id"`
		ResourceType string         `json:"resource_type"`
		EntryCount   int            `json:"entry_count"`
		CreatedBy    string         `json:"created_by"`
		CreatedAt    time.Time      `json:"created_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		ACLID:        event.ACLID,
		ResourceID:   event.ResourceID,
		ResourceType: event.ResourceType,
		EntryCount:   event.EntryCount,
		CreatedBy:    event.CreatedBy,
		CreatedAt:    event.CreatedAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "authz.acl.created", event.CreatedBy, event.CreatedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
