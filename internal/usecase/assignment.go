package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/core/port"
)

// AssignRoleInput captures the payload for assigning a role to a principal.
type AssignRoleInput struct {
	PrincipalID    string
	RoleID         string
	Scope          string
	ExpirationDate *time.Time
	AssignedBy     string
}

// RevokeRoleInput captures the payload for revoking a role from a principal.
type RevokeRoleInput struct {
	PrincipalID string
	RoleID      string
	RevokedBy   string
	Reason      *string
}

// AssignmentService manages role assignments. Every mutation persists,
// invalidates the principal's cached decisions, updates the policy store
// snapshot atomically, and appends an audit entry.
type AssignmentService struct {
	store       *PolicyStore
	assignments port.AssignmentRepository
	cache       port.DecisionCache
	recorder    *AuditRecorder
	events      port.EventPublisher
	clock       port.Clock
	logger      *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(
	store *PolicyStore,
	assignments port.AssignmentRepository,
	cache port.DecisionCache,
	recorder *AuditRecorder,
	events port.EventPublisher,
	clock port.Clock,
	logger *zap.Logger,
) *AssignmentService {
	if clock == nil {
		clock = port.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AssignmentService{
		store:       store,
		assignments: assignments,
		cache:       cache,
		recorder:    recorder,
		events:      events,
		clock:       clock,
		logger:      logger,
	}
}

// AssignRole creates a role assignment. Assigning the same role twice creates
// two independent active assignments; duplicates are not rejected.
func (s *AssignmentService) AssignRole(ctx context.Context, input AssignRoleInput) (*domain.RoleAssignment, error) {
	principalID := strings.TrimSpace(input.PrincipalID)
	if principalID == "" {
		return nil, fmt.Errorf("principal id is required")
	}

	roleID := strings.TrimSpace(input.RoleID)
	if roleID == "" {
		return nil, fmt.Errorf("role id is required")
	}

	now := s.clock.Now()
	assignment := domain.RoleAssignment{
		ID:             uuid.NewString(),
		PrincipalID:    principalID,
		RoleID:         roleID,
		Scope:          strings.TrimSpace(input.Scope),
		AssignedBy:     input.AssignedBy,
		AssignedAt:     now,
		ExpirationDate: input.ExpirationDate,
		IsActive:       true,
	}

	role, err := s.store.AddAssignment(ctx, assignment, func(ctx context.Context) error {
		if err := s.assignments.Create(ctx, assignment); err != nil {
			return persistence("create role assignment", err)
		}
		if err := s.cache.ClearForPrincipal(ctx, principalID); err != nil {
			return fmt.Errorf("clear cached decisions for principal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditChange(input.AssignedBy, domain.AuditActionRoleAssigned, now, map[string]string{
		"assignment_id": assignment.ID,
		"principal_id":  principalID,
		"role_id":       roleID,
	})

	if s.events != nil {
		event := domain.RoleAssignedEvent{
			EventID:      uuid.NewString(),
			AssignmentID: assignment.ID,
			PrincipalID:  principalID,
			RoleID:       roleID,
			RoleName:     role.Name,
			Scope:        assignment.Scope,
			AssignedBy:   input.AssignedBy,
			AssignedAt:   now,
			ExpiresAt:    input.ExpirationDate,
		}
		if err := s.events.PublishRoleAssigned(ctx, event); err != nil {
			s.logger.Warn("publish role assigned event failed", zap.Error(err))
		}
	}

	return &assignment, nil
}

// RevokeRole marks the principal's oldest active assignment of the role as
// revoked. Revocation is monotonic; re-assigning afterwards creates a new
// assignment while the revoked record stays revoked.
func (s *AssignmentService) RevokeRole(ctx context.Context, input RevokeRoleInput) (*domain.RoleAssignment, error) {
	principalID := strings.TrimSpace(input.PrincipalID)
	if principalID == "" {
		return nil, fmt.Errorf("principal id is required")
	}

	roleID := strings.TrimSpace(input.RoleID)
	if roleID == "" {
		return nil, fmt.Errorf("role id is required")
	}

	now := s.clock.Now()
	reason := ""
	if input.Reason != nil {
		reason = *input.Reason
	}

	revoked, err := s.store.RevokeAssignment(ctx, principalID, roleID, now, input.RevokedBy, input.Reason, func(ctx context.Context, assignment domain.RoleAssignment) error {
		if err := s.assignments.Revoke(ctx, assignment.ID, now, input.RevokedBy, reason); err != nil {
			return persistence("revoke role assignment", err)
		}
		if err := s.cache.ClearForPrincipal(ctx, principalID); err != nil {
			return fmt.Errorf("clear cached decisions for principal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditChange(input.RevokedBy, domain.AuditActionRoleRevoked, now, map[string]string{
		"assignment_id": revoked.ID,
		"principal_id":  principalID,
		"role_id":       roleID,
		"reason":        reason,
	})

	if s.events != nil {
		event := domain.RoleRevokedEvent{
			EventID:      uuid.NewString(),
			AssignmentID: revoked.ID,
			PrincipalID:  principalID,
			RoleID:       roleID,
			RevokedBy:    input.RevokedBy,
			RevokedAt:    now,
			Reason:       reason,
		}
		if err := s.events.PublishRoleRevoked(ctx, event); err != nil {
			s.logger.Warn("publish role revoked event failed", zap.Error(err))
		}
	}

	return revoked, nil
}

// ListAssignments returns the principal's full assignment history, revoked
// records included.
func (s *AssignmentService) ListAssignments(ctx context.Context, principalID string) ([]domain.RoleAssignment, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, fmt.Errorf("principal id is required")
	}

	assignments, err := s.assignments.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, persistence("list role assignments", err)
	}

	return assignments, nil
}

// ListRoles returns all role definitions from the store snapshot.
func (s *AssignmentService) ListRoles(context.Context) []domain.Role {
	return s.store.Snapshot().Roles()
}

func (s *AssignmentService) auditChange(actor, action string, at time.Time, auditCtx map[string]string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(domain.AuditEntry{
		Timestamp: at,
		UserID:    actor,
		Action:    action,
		Result:    domain.AuditResultGranted,
		Context:   auditCtx,
	})
}
