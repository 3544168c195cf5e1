package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/platform/pagination"
	"github.com/deskforge/api/internal/repositories"
)

type taxRateRepository struct {
	db *Registry
}

var _ repositories.TaxRateRepository = (*taxRateRepository)(nil)

const taxRateColumns = `id, name, rate_bps, created_at, updated_at`

func scanTaxRate(row pgx.Row) (domain.TaxRate, error) {
	var rate domain.TaxRate
	err := row.Scan(
		&rate.ID,
		&rate.Name,
		&rate.RateBps,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)
	return rate, err
}

func (r *taxRateRepository) Insert(ctx context.Context, rate domain.TaxRate) error {
	const query = `
		INSERT INTO tax_rates (` + taxRateColumns + `)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.querier(ctx).Exec(ctx, query,
		rate.ID,
		rate.Name,
		rate.RateBps,
		rate.CreatedAt,
		rate.UpdatedAt,
	)
	return wrapError("postgres.taxRates.Insert", err)
}

func (r *taxRateRepository) Update(ctx context.Context, rate domain.TaxRate) error {
	const query = `
		UPDATE tax_rates
		SET name = $2,
		    rate_bps = $3,
		    updated_at = $4
		WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query,
		rate.ID,
		rate.Name,
		rate.RateBps,
		rate.UpdatedAt,
	)
	if err != nil {
		return wrapError("postgres.taxRates.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.taxRates.Update")
	}
	return nil
}

func (r *taxRateRepository) Delete(ctx context.Context, rateID string) error {
	const query = `DELETE FROM tax_rates WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query, rateID)
	if err != nil {
		return wrapError("postgres.taxRates.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.taxRates.Delete")
	}
	return nil
}

func (r *taxRateRepository) FindByID(ctx context.Context, rateID string) (domain.TaxRate, error) {
	const query = `SELECT ` + taxRateColumns + ` FROM tax_rates WHERE id = $1`

	rate, err := scanTaxRate(r.db.querier(ctx).QueryRow(ctx, query, rateID))
	if err != nil {
		return domain.TaxRate{}, wrapError("postgres.taxRates.FindByID", err)
	}
	return rate, nil
}

func (r *taxRateRepository) FindByIDs(ctx context.Context, rateIDs []string) ([]domain.TaxRate, error) {
	if len(rateIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + taxRateColumns + ` FROM tax_rates WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.querier(ctx).Query(ctx, query, rateIDs)
	if err != nil {
		return nil, wrapError("postgres.taxRates.FindByIDs", err)
	}
	defer rows.Close()

	var rates []domain.TaxRate
	for rows.Next() {
		rate, err := scanTaxRate(rows)
		if err != nil {
			return nil, wrapError("postgres.taxRates.FindByIDs", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.taxRates.FindByIDs", err)
	}
	return rates, nil
}

func (r *taxRateRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.TaxRate], error) {
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.TaxRate]{}, wrapError("postgres.taxRates.List", err)
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	query := `SELECT ` + taxRateColumns + ` FROM tax_rates`
	var args []any
	if cursor.LastID != "" {
		args = append(args, cursor.LastID)
		query += " WHERE id > $1"
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))

	rows, err := r.db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.TaxRate]{}, wrapError("postgres.taxRates.List", err)
	}
	defer rows.Close()

	var rates []domain.TaxRate
	for rows.Next() {
		rate, err := scanTaxRate(rows)
		if err != nil {
			return domain.CursorPage[domain.TaxRate]{}, wrapError("postgres.taxRates.List", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.TaxRate]{}, wrapError("postgres.taxRates.List", err)
	}

	page := domain.CursorPage[domain.TaxRate]{Items: rates}
	if len(rates) > pageSize {
		page.Items = rates[:pageSize]
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: page.Items[pageSize-1].ID})
		if err != nil {
			return domain.CursorPage[domain.TaxRate]{}, wrapError("postgres.taxRates.List", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
