package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
	"github.com/arklim/enterprise-authz/internal/repository"
)

// SetResourcePermissionsInput captures the payload for replacing a resource's
// direct grant set.
type SetResourcePermissionsInput struct {
	ResourceID        string
	ResourceType      string
	Grants            []domain.PermissionGrant
	InheritFromParent bool
	SetBy             string
}

// CreateACLInput captures the payload for creating an access-control list.
type CreateACLInput struct {
	ResourceID       string
	ResourceType     string
	Entries          []domain.ACLEntry
	InheritanceRules string
	CreatedBy        string
}

// ResourceService manages per-resource grants and ACLs. Every mutation clears
// the affected resource's cached decisions before returning.
type ResourceService struct {
	resources port.ResourceRepository
	acls      port.ACLRepository
	cache     port.DecisionCache
	recorder  *AuditRecorder
	events    port.EventPublisher
	clock     port.Clock
	logger    *zap.Logger
}

// NewResourceService constructs a ResourceService.
func NewResourceService(
	resources port.ResourceRepository,
	acls port.ACLRepository,
	cache port.DecisionCache,
	recorder *AuditRecorder,
	events port.EventPublisher,
	clock port.Clock,
	logger *zap.Logger,
) *ResourceService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ResourceService{
		resources: resources,
		acls:      acls,
		cache:     cache,
		recorder:  recorder,
		events:    events,
		clock:     clock,
		logger:    logger,
	}
}

// SetResourcePermissions replaces the resource's grant set.
func (s *ResourceService) SetResourcePermissions(ctx context.Context, input SetResourcePermissionsInput) (*domain.ResourcePermissions, error) {
	resourceID := strings.TrimSpace(input.ResourceID)
	if resourceID == "" {
		return nil, fmt.Errorf("resource id is required")
	}

	resourceType := strings.TrimSpace(input.ResourceType)
	if resourceType == "" {
		return nil, fmt.Errorf("resource type is required")
	}

	now := s.clock.Now()
	permissions := domain.ResourcePermissions{
		ResourceID:        resourceID,
		ResourceType:      resourceType,
		Grants:            input.Grants,
		InheritFromParent: input.InheritFromParent,
		SetBy:             input.SetBy,
		SetAt:             now,
	}

	if err := s.resources.Replace(ctx, permissions); err != nil {
		return nil, persistence("replace resource permissions", err)
	}
	if err := s.cache.ClearForResource(ctx, resourceID); err != nil {
		return nil, fmt.Errorf("clear cached decisions for resource: %w", err)
	}

	s.auditChange(input.SetBy, domain.AuditActionPermissionsSet, now, resourceID, resourceType)

	if s.events != nil {
		event := domain.ResourcePermissionsSetEvent{
			EventID:      uuid.NewString(),
			ResourceID:   resourceID,
			ResourceType: resourceType,
			GrantCount:   len(input.Grants),
			Inherited:    input.InheritFromParent,
			SetBy:        input.SetBy,
			SetAt:        now,
		}
		if err := s.events.PublishResourcePermissionsSet(ctx, event); err != nil {
			s.logger.Warn("publish resource permissions event failed", zap.Error(err))
		}
	}

	return &permissions, nil
}

// InheritResourcePermissions clones the parent's grant set onto the child.
func (s *ResourceService) InheritResourcePermissions(ctx context.Context, childID, parentID, inheritedBy string) (*domain.ResourcePermissions, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, fmt.Errorf("child resource id is required")
	}

	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil, fmt.Errorf("parent resource id is required")
	}

	parent, err := s.resources.GetByResource(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("parent resource %s has no permissions set: %w", parentID, repository.ErrNotFound)
		}
		return nil, persistence("load parent resource permissions", err)
	}

	grants := make([]domain.PermissionGrant, len(parent.Grants))
	copy(grants, parent.Grants)

	return s.SetResourcePermissions(ctx, SetResourcePermissionsInput{
		ResourceID:        childID,
		ResourceType:      parent.ResourceType,
		Grants:            grants,
		InheritFromParent: true,
		SetBy:             inheritedBy,
	})
}

// GetResourcePermissions returns the resource's current grant set.
func (s *ResourceService) GetResourcePermissions(ctx context.Context, resourceID string) (*domain.ResourcePermissions, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return nil, fmt.Errorf("resource id is required")
	}

	permissions, err := s.resources.GetByResource(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, persistence("load resource permissions", err)
	}

	return permissions, nil
}

// CreateAccessControlList persists a new ACL for a resource.
func (s *ResourceService) CreateAccessControlList(ctx context.Context, input CreateACLInput) (*domain.AccessControlList, error) {
	resourceID := strings.TrimSpace(input.ResourceID)
	if resourceID == "" {
		return nil, fmt.Errorf("resource id is required")
	}

	resourceType := strings.TrimSpace(input.ResourceType)
	if resourceType == "" {
		return nil, fmt.Errorf("resource type is required")
	}

	now := s.clock.Now()
	acl := domain.AccessControlList{
		ID:               uuid.NewString(),
		ResourceID:       resourceID,
		ResourceType:     resourceType,
		Entries:          input.Entries,
		InheritanceRules: input.InheritanceRules,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        now,
	}

	if err := s.acls.Create(ctx, acl); err != nil {
		return nil, persistence("create acl", err)
	}
	if err := s.cache.ClearForResource(ctx, resourceID); err != nil {
		return nil, fmt.Errorf("clear cached decisions for resource: %w", err)
	}

	s.auditChange(input.CreatedBy, domain.AuditActionACLCreated, now, resourceID, resourceType)

	if s.events != nil {
		event := domain.ACLCreatedEvent{
			EventID:      uuid.NewString(),
			ACLID:        acl.ID,
			ResourceID:   resourceID,
			ResourceType: resourceType,
			EntryCount:   len(input.Entries),
			CreatedBy:    input.CreatedBy,
			CreatedAt:    now,
		}
		if err := s.events.PublishACLCreated(ctx, event); err != nil {
			s.logger.Warn("publish acl created event failed", zap.Error(err))
		}
	}

	return &acl, nil
}

func (s *ResourceService) auditChange(actor, action string, at time.Time, resourceID, resourceType string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(domain.AuditEntry{
		Timestamp:    at,
		UserID:       actor,
		Action:       action,
		ResourceID:   &resourceID,
		ResourceType: &resourceType,
		Result:       domain.AuditResultGranted,
	})
}
