package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/platform/pagination"
	"github.com/deskforge/api/internal/repositories"
)

type estimateRepository struct {
	db *Registry
}

var _ repositories.EstimateRepository = (*estimateRepository)(nil)

const estimateColumns = `id, number, customer_id, ticket_id, currency, status, description, work_order_id, expires_at, created_at, updated_at`

func scanEstimate(row pgx.Row) (domain.Estimate, error) {
	var estimate domain.Estimate
	err := row.Scan(
		&estimate.ID,
		&estimate.Number,
		&estimate.CustomerID,
		&estimate.TicketID,
		&estimate.Currency,
		&estimate.Status,
		&estimate.Description,
		&estimate.WorkOrderID,
		&estimate.ExpiresAt,
		&estimate.CreatedAt,
		&estimate.UpdatedAt,
	)
	return estimate, err
}

func (r *estimateRepository) Insert(ctx context.Context, estimate domain.Estimate) error {
	const query = `
		INSERT INTO estimates (` + estimateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.querier(ctx).Exec(ctx, query,
		estimate.ID,
		estimate.Number,
		estimate.CustomerID,
		estimate.TicketID,
		estimate.Currency,
		estimate.Status,
		estimate.Description,
		estimate.WorkOrderID,
		estimate.ExpiresAt,
		estimate.CreatedAt,
		estimate.UpdatedAt,
	)
	return wrapError("postgres.estimates.Insert", err)
}

func (r *estimateRepository) Update(ctx context.Context, estimate domain.Estimate) error {
	const query = `
		UPDATE estimates
		SET customer_id = $2,
		    ticket_id = $3,
		    currency = $4,
		    status = $5,
		    description = $6,
		    work_order_id = $7,
		    expires_at = $8,
		    updated_at = $9
		WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query,
		estimate.ID,
		estimate.CustomerID,
		estimate.TicketID,
		estimate.Currency,
		estimate.Status,
		estimate.Description,
		estimate.WorkOrderID,
		estimate.ExpiresAt,
		estimate.UpdatedAt,
	)
	if err != nil {
		return wrapError("postgres.estimates.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.estimates.Update")
	}
	return nil
}

func (r *estimateRepository) Delete(ctx context.Context, estimateID string) error {
	const query = `DELETE FROM estimates WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query, estimateID)
	if err != nil {
		return wrapError("postgres.estimates.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.estimates.Delete")
	}
	return nil
}

func (r *estimateRepository) FindByID(ctx context.Context, estimateID string) (domain.Estimate, error) {
	const query = `SELECT ` + estimateColumns + ` FROM estimates WHERE id = $1`

	estimate, err := scanEstimate(r.db.querier(ctx).QueryRow(ctx, query, estimateID))
	if err != nil {
		return domain.Estimate{}, wrapError("postgres.estimates.FindByID", err)
	}
	return estimate, nil
}

func (r *estimateRepository) FindByIDs(ctx context.Context, estimateIDs []string) ([]domain.Estimate, error) {
	if len(estimateIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + estimateColumns + ` FROM estimates WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.querier(ctx).Query(ctx, query, estimateIDs)
	if err != nil {
		return nil, wrapError("postgres.estimates.FindByIDs", err)
	}
	defer rows.Close()

	var estimates []domain.Estimate
	for rows.Next() {
		estimate, err := scanEstimate(rows)
		if err != nil {
			return nil, wrapError("postgres.estimates.FindByIDs", err)
		}
		estimates = append(estimates, estimate)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.estimates.FindByIDs", err)
	}
	return estimates, nil
}

func (r *estimateRepository) List(ctx context.Context, filter repositories.EstimateListFilter) (domain.CursorPage[domain.Estimate], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Estimate]{}, wrapError("postgres.estimates.List", err)
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	var (
		conds []string
		args  []any
	)
	addArg := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.CustomerID != "" {
		addArg("customer_id = $%d", filter.CustomerID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			statuses = append(statuses, string(status))
		}
		addArg("status = ANY($%d)", statuses)
	}
	if filter.CreatedAt.From != nil {
		addArg("created_at >= $%d", *filter.CreatedAt.From)
	}
	if filter.CreatedAt.To != nil {
		addArg("created_at <= $%d", *filter.CreatedAt.To)
	}

	direction := "ASC"
	comparison := "id > $%d"
	if filter.Order == domain.SortDesc {
		direction = "DESC"
		comparison = "id < $%d"
	}
	if cursor.LastID != "" {
		addArg(comparison, cursor.LastID)
	}

	query := `SELECT ` + estimateColumns + ` FROM estimates`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY id %s LIMIT $%d", direction, len(args))

	rows, err := r.db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Estimate]{}, wrapError("postgres.estimates.List", err)
	}
	defer rows.Close()

	var estimates []domain.Estimate
	for rows.Next() {
		estimate, err := scanEstimate(rows)
		if err != nil {
			return domain.CursorPage[domain.Estimate]{}, wrapError("postgres.estimates.List", err)
		}
		estimates = append(estimates, estimate)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Estimate]{}, wrapError("postgres.estimates.List", err)
	}

	page := domain.CursorPage[domain.Estimate]{Items: estimates}
	if len(estimates) > pageSize {
		page.Items = estimates[:pageSize]
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: page.Items[pageSize-1].ID})
		if err != nil {
			return domain.CursorPage[domain.Estimate]{}, wrapError("postgres.estimates.List", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
