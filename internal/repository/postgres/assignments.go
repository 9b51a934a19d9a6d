package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/repository"
)

// AssignmentRepository implements role assignment persistence. Rows are never
// deleted: revocation updates the row in place so the history stays intact.
type AssignmentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAssignmentRepository constructs a PostgreSQL-backed assignment repository.
func NewAssignmentRepository(exec pgExecutor) *AssignmentRepository {
	return &AssignmentRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new role assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment domain.RoleAssignment) error {
	stmt, args, err := r.builder.Insert("authz.role_assignments").
		Columns("id", "principal_id", "role_id", "scope", "assigned_by", "assigned_at", "expiration_date", "is_active").
		Values(
			assignment.ID,
			assignment.PrincipalID,
			assignment.RoleID,
			assignment.Scope,
			assignment.AssignedBy,
			assignment.AssignedAt,
			assignment.ExpirationDate,
			assignment.IsActive,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert assignment sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}

	return nil
}

// Revoke marks an assignment revoked. Revoking an already revoked assignment
// is reported as not found so revocation stays monotonic.
func (r *AssignmentRepository) Revoke(ctx context.Context, assignmentID string, revokedAt time.Time, revokedBy, reason string) error {
	stmt, args, err := r.builder.Update("authz.role_assignments").
		Set("is_active", false).
		Set("revoked_at", revokedAt).
		Set("revoked_by", revokedBy).
		Set("revocation_reason", reason).
		Where(squirrel.Eq{"id": assignmentID, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke assignment sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByPrincipal retrieves the principal's full assignment history, oldest first.
func (r *AssignmentRepository) ListByPrincipal(ctx context.Context, principalID string) ([]domain.RoleAssignment, error) {
	stmt, args, err := r.assignmentSelect().
		Where(squirrel.Eq{"principal_id": principalID}).
		OrderBy("assigned_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list assignments sql: %w", err)
	}

	return r.queryAssignments(ctx, stmt, args)
}

// ListActive retrieves every active assignment, for warming the in-memory store.
func (r *AssignmentRepository) ListActive(ctx context.Context) ([]domain.RoleAssignment, error) {
	stmt, args, err := r.assignmentSelect().
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("assigned_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active assignments sql: %w", err)
	}

	return r.queryAssignments(ctx, stmt, args)
}

func (r *AssignmentRepository) assignmentSelect() squirrel.SelectBuilder {
	return r.builder.Select(
		"id", "principal_id", "role_id", "scope", "assigned_by", "assigned_at",
		"expiration_date", "is_active", "revoked_at", "revoked_by", "revocation_reason",
	).From("authz.role_assignments")
}

func (r *AssignmentRepository) queryAssignments(ctx context.Context, stmt string, args []any) ([]domain.RoleAssignment, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.RoleAssignment

	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}

	return assignments, nil
}

func scanAssignment(row pgx.Row) (domain.RoleAssignment, error) {
	var assignment domain.RoleAssignment

	err := row.Scan(
		&assignment.ID,
		&assignment.PrincipalID,
		&assignment.RoleID,
		&assignment.Scope,
		&assignment.AssignedBy,
		&assignment.AssignedAt,
		&assignment.ExpirationDate,
		&assignment.IsActive,
		&assignment.RevokedAt,
		&assignment.RevokedBy,
		&assignment.RevocationReason,
	)
	if err != nil {
		return domain.RoleAssignment{}, fmt.Errorf("scan assignment: %w", err)
	}

	return assignment, nil
}
