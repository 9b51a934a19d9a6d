package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/repository"
)

// ResourceRepository implements per-resource permission persistence. A
// resource has at most one row; setting permissions upserts the whole grant
// set.
type ResourceRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewResourceRepository constructs a PostgreSQL-backed resource repository.
func NewResourceRepository(exec pgExecutor) *ResourceRepository {
	return &ResourceRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Replace upserts the resource's grant set.
func (r *ResourceRepository) Replace(ctx context.Context, permissions domain.ResourcePermissions) error {
	grants, err := json.Marshal(permissions.Grants)
	if err != nil {
		return fmt.Errorf("marshal resource grants: %w", err)
	}

	stmt, args, err := r.builder.Insert("authz.resource_permissions").
		Columns("resource_id", "resource_type", "grants", "inherit_from_parent", "set_by", "set_at").
		Values(
			permissions.ResourceID,
			permissions.ResourceType,
			grants,
			permissions.InheritFromParent,
			permissions.SetBy,
			permissions.SetAt,
		).
		Suffix(`ON CONFLICT (resource_id) DO UPDATE SET
			resource_type = EXCLUDED.resource_type,
			grants = EXCLUDED.grants,
			inherit_from_parent = EXCLUDED.inherit_from_parent,
			set_by = EXCLUDED.set_by,
			set_at = EXCLUDED.set_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert resource permissions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert resource permissions: %w", err)
	}

	return nil
}

// GetByResource retrieves the resource's grant set.
func (r *ResourceRepository) GetByResource(ctx context.Context, resourceID string) (*domain.ResourcePermissions, error) {
	stmt, args, err := r.builder.Select("resource_id", "resource_type", "grants", "inherit_from_parent", "set_by", "set_at").
		From("authz.resource_permissions").
		Where(squirrel.Eq{"resource_id": resourceID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select resource permissions sql: %w", err)
	}

	var (
		permissions domain.ResourcePermissions
		grants      []byte
	)

	row := r.exec.QueryRow(ctx, stmt, args...)
	err = row.Scan(
		&permissions.ResourceID,
		&permissions.ResourceType,
		&grants,
		&permissions.InheritFromParent,
		&permissions.SetBy,
		&permissions.SetAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan resource permissions: %w", err)
	}

	if len(grants) > 0 {
		if err := json.Unmarshal(grants, &permissions.Grants); err != nil {
			return nil, fmt.Errorf("unmarshal resource grants: %w", err)
		}
	}

	return &permissions, nil
}
