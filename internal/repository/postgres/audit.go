package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/enterprise-authz/internal/core/domain"
)

// AuditRepository implements the append-only audit log. Rows are never
// updated or deleted.
type AuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository constructs a PostgreSQL-backed audit repository.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	return &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	var auditCtx []byte
	if len(entry.Context) > 0 {
		var err error
		auditCtx, err = json.Marshal(entry.Context)
		if err != nil {
			return fmt.Errorf("marshal audit context: %w", err)
		}
	}

	stmt, args, err := r.builder.Insert("authz.audit_entries").
		Columns("id", "sequence", "occurred_at", "user_id", "action", "resource_id", "resource_type", "result", "context").
		Values(
			entry.ID,
			entry.Sequence,
			entry.Timestamp,
			entry.UserID,
			entry.Action,
			entry.ResourceID,
			entry.ResourceType,
			string(entry.Result),
			auditCtx,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit entry sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// ListRange retrieves entries whose timestamp falls within [from, to],
// ordered by sequence.
func (r *AuditRepository) ListRange(ctx context.Context, from, to time.Time) ([]domain.AuditEntry, error) {
	stmt, args, err := r.builder.Select("id", "sequence", "occurred_at", "user_id", "action", "resource_id", "resource_type", "result", "context").
		From("authz.audit_entries").
		Where(squirrel.GtOrEq{"occurred_at": from}).
		Where(squirrel.LtOrEq{"occurred_at": to}).
		OrderBy("sequence ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit entries sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry

	for rows.Next() {
		var (
			entry    domain.AuditEntry
			result   string
			auditCtx []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Sequence,
			&entry.Timestamp,
			&entry.UserID,
			&entry.Action,
			&entry.ResourceID,
			&entry.ResourceType,
			&result,
			&auditCtx,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		entry.Result = domain.AuditResult(result)
		if len(auditCtx) > 0 {
			if err := json.Unmarshal(auditCtx, &entry.Context); err != nil {
				return nil, fmt.Errorf("unmarshal audit context: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}
