package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

// ACLRepository implements access-control list persistence. Entries are
// stored as a JSONB document per list.
type ACLRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewACLRepository constructs a PostgreSQL-backed ACL repository.
func NewACLRepository(exec pgExecutor) *ACLRepository {
	return &ACLRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new access-control list.
func (r *ACLRepository) Create(ctx context.Context, acl domain.AccessControlList) error {
	entries, err := json.Marshal(acl.Entries)
	if err != nil {
		return fmt.Errorf("marshal acl entries: %w", err)
	}

	stmt, args, err := r.builder.Insert("authz.access_control_lists").
		Columns("id", "resource_id", "resource_type", "entries", "inheritance_rules", "created_by", "created_at").
		Values(acl.ID, acl.ResourceID, acl.ResourceType, entries, acl.InheritanceRules, acl.CreatedBy, acl.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert acl sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert acl: %w", err)
	}

	return nil
}

// ListByResource retrieves every ACL attached to the resource, oldest first.
func (r *ACLRepository) ListByResource(ctx context.Context, resourceID string) ([]domain.AccessControlList, error) {
	stmt, args, err := r.builder.Select("id", "resource_id", "resource_type", "entries", "inheritance_rules", "created_by", "created_at").
		From("authz.access_control_lists").
		Where(squirrel.Eq{"resource_id": resourceID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list acls sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query acls: %w", err)
	}
	defer rows.Close()

	var acls []domain.AccessControlList

	for rows.Next() {
		var (
			acl     domain.AccessControlList
			entries []byte
		)

		err := rows.Scan(&acl.ID, &acl.ResourceID, &acl.ResourceType, &entries, &acl.InheritanceRules, &acl.CreatedBy, &acl.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan acl: %w", err)
		}

		if len(entries) > 0 {
			if err := json.Unmarshal(entries, &acl.Entries); err != nil {
				return nil, fmt.Errorf("unmarshal acl entries: %w", err)
			}
		}

		acls = append(acls, acl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acls: %w", err)
	}

	return acls, nil
}
