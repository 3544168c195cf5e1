package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/platform/pagination"
	"github.com/deskforge/api/internal/repositories"
)

type auditLogRepository struct {
	db *Registry
}

var _ repositories.AuditLogRepository = (*auditLogRepository)(nil)

func (r *auditLogRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	const query = `
		INSERT INTO audit_logs (id, actor, action, target_type, target_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var metadata []byte
	if len(entry.Metadata) > 0 {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return wrapError("postgres.auditLogs.Append", err)
		}
		metadata = encoded
	}

	_, err := r.db.querier(ctx).Exec(ctx, query,
		entry.ID,
		entry.Actor,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		metadata,
		entry.CreatedAt,
	)
	return wrapError("postgres.auditLogs.Append", err)
}

func (r *auditLogRepository) ListByTarget(ctx context.Context, targetType, targetID string, pager domain.Pagination) (domain.CursorPage[domain.AuditLogEntry], error) {
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, wrapError("postgres.auditLogs.ListByTarget", err)
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	query := `
		SELECT id, actor, action, target_type, target_id, metadata, created_at
		FROM audit_logs
		WHERE target_type = $1 AND target_id = $2`
	args := []any{targetType, targetID}
	if cursor.LastID != "" {
		args = append(args, cursor.LastID)
		query += fmt.Sprintf(" AND id < $%d", len(args))
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := r.db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, wrapError("postgres.auditLogs.ListByTarget", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var (
			entry    domain.AuditLogEntry
			metadata []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&entry.Action,
			&entry.TargetType,
			&entry.TargetID,
			&metadata,
			&entry.CreatedAt,
		); err != nil {
			return domain.CursorPage[domain.AuditLogEntry]{}, wrapError("postgres.auditLogs.ListByTarget", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return domain.CursorPage[domain.AuditLogEntry]{}, wrapError("postgres.auditLogs.ListByTarget", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.AuditLogEntry]{}, wrapError("postgres.auditLogs.ListByTarget", err)
	}

	page := domain.CursorPage[domain.AuditLogEntry]{Items: entries}
	if len(entries) > pageSize {
		page.Items = entries[:pageSize]
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: page.Items[pageSize-1].ID})
		if err != nil {
			return domain.CursorPage[domain.AuditLogEntry]{}, wrapError("postgres.auditLogs.ListByTarget", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
