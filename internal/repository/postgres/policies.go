package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/enterprise-authz/internal/core/domain"
	"github.com/arklim/enterprise-authz/internal/repository"
)

// PolicyRepository implements permission policy persistence. Rules and scope
// are stored as JSONB documents.
type PolicyRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPolicyRepository constructs a PostgreSQL-backed policy repository.
func NewPolicyRepository(exec pgExecutor) *PolicyRepository {
	return &PolicyRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new policy.
func (r *PolicyRepository) Create(ctx context.Context, policy domain.PermissionPolicy) error {
	rules, scope, err := marshalPolicyDocs(policy)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Insert("authz.permission_policies").
		Columns("id", "name", "description", "rules", "scope", "priority", "is_active", "created_by", "created_at").
		Values(
			policy.ID,
			policy.Name,
			policy.Description,
			rules,
			scope,
			policy.Priority,
			policy.IsActive,
			policy.CreatedBy,
			policy.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert policy sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}

	return nil
}

// Update replaces a policy's mutable fields.
func (r *PolicyRepository) Update(ctx context.Context, policy domain.PermissionPolicy) error {
	rules, scope, err := marshalPolicyDocs(policy)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.Update("authz.permission_policies").
		Set("name", policy.Name).
		Set("description", policy.Description).
		Set("rules", rules).
		Set("scope", scope).
		Set("priority", policy.Priority).
		Set("is_active", policy.IsActive).
		Set("modified_by", policy.ModifiedBy).
		Set("modified_at", policy.ModifiedAt).
		Where(squirrel.Eq{"id": policy.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update policy sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// GetByID retrieves a policy by its ID.
func (r *PolicyRepository) GetByID(ctx context.Context, id string) (*domain.PermissionPolicy, error) {
	stmt, args, err := r.policySelect().
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select policy sql: %w", err)
	}

	policy, err := scanPolicy(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}

	return policy, nil
}

// List retrieves all policies in descending priority order.
func (r *PolicyRepository) List(ctx context.Context) ([]domain.PermissionPolicy, error) {
	stmt, args, err := r.policySelect().
		OrderBy("priority DESC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list policies sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var policies []domain.PermissionPolicy

	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}

	return policies, nil
}

func (r *PolicyRepository) policySelect() squirrel.SelectBuilder {
	return r.builder.Select(
		"id", "name", "description", "rules", "scope", "priority", "is_active",
		"created_by", "created_at", "modified_by", "modified_at",
	).From("authz.permission_policies")
}

func marshalPolicyDocs(policy domain.PermissionPolicy) ([]byte, []byte, error) {
	rules, err := json.Marshal(policy.Rules)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal policy rules: %w", err)
	}

	scope, err := json.Marshal(policy.Scope)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal policy scope: %w", err)
	}

	return rules, scope, nil
}

func scanPolicy(row pgx.Row) (*domain.PermissionPolicy, error) {
	var (
		policy      domain.PermissionPolicy
		description sql.NullString
		rules       []byte
		scope       []byte
	)

	err := row.Scan(
		&policy.ID,
		&policy.Name,
		&description,
		&rules,
		&scope,
		&policy.Priority,
		&policy.IsActive,
		&policy.CreatedBy,
		&policy.CreatedAt,
		&policy.ModifiedBy,
		&policy.ModifiedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan policy: %w", err)
	}

	if description.Valid {
		policy.Description = &description.String
	}
	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &policy.Rules); err != nil {
			return nil, fmt.Errorf("unmarshal policy rules: %w", err)
		}
	}
	if len(scope) > 0 {
		if err := json.Unmarshal(scope, &policy.Scope); err != nil {
			return nil, fmt.Errorf("unmarshal policy scope: %w", err)
		}
	}

	return &policy, nil
}
