package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

// GrantRepository reads principal-specific direct grants. The engine only
// consumes these rows; provisioning happens outside this service.
type GrantRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewGrantRepository constructs a PostgreSQL-backed grant repository.
func NewGrantRepository(exec pgExecutor) *GrantRepository {
	return &GrantRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListByPrincipal retrieves one principal's direct grants in insertion order.
func (r *GrantRepository) ListByPrincipal(ctx context.Context, principalID string) ([]domain.Permission, error) {
	stmt, args, err := r.grantSelect().
		Where(squirrel.Eq{"principal_id": principalID}).
		OrderBy("granted_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.Permission

	for rows.Next() {
		var principal string
		permission, err := scanGrant(rows, &principal)
		if err != nil {
			return nil, err
		}
		grants = append(grants, permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}

	return grants, nil
}

// ListAll retrieves every direct grant keyed by principal, for warming the
// in-memory store.
func (r *GrantRepository) ListAll(ctx context.Context) (map[string][]domain.Permission, error) {
	stmt, args, err := r.grantSelect().
		OrderBy("granted_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list all grants sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	grants := make(map[string][]domain.Permission)

	for rows.Next() {
		var principal string
		permission, err := scanGrant(rows, &principal)
		if err != nil {
			return nil, err
		}
		grants[principal] = append(grants[principal], permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}

	return grants, nil
}

func (r *GrantRepository) grantSelect() squirrel.SelectBuilder {
	return r.builder.Select("principal_id", "action", "resource_type", "is_granted", "conditions").
		From("authz.direct_grants")
}

func scanGrant(rows interface {
	Scan(dest ...any) error
}, principal *string) (domain.Permission, error) {
	var (
		permission domain.Permission
		conditions []byte
	)

	if err := rows.Scan(principal, &permission.Action, &permission.ResourceType, &permission.IsGranted, &conditions); err != nil {
		return domain.Permission{}, fmt.Errorf("scan grant: %w", err)
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &permission.Conditions); err != nil {
			return domain.Permission{}, fmt.Errorf("unmarshal grant conditions: %w", err)
		}
	}

	return permission, nil
}
