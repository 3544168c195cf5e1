package postgres

import (
	"context"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

// Lines for work orders and estimates share one table keyed by the owning
// aggregate id. Replacement deletes the full set before reinserting, so it
// must run inside the aggregate transaction.
type lineItemRepository struct {
	db *Registry
}

var _ repositories.LineItemRepository = (*lineItemRepository)(nil)

const lineColumns = `order_id, catalog_item_id, kind, quantity, unit_amount, discount_amount, tax_rate_id, position`

func (r *lineItemRepository) InsertForOrder(ctx context.Context, orderID string, lines []domain.LineItem) error {
	const query = `
		INSERT INTO order_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	q := r.db.querier(ctx)
	for i, line := range lines {
		_, err := q.Exec(ctx, query,
			orderID,
			line.CatalogItemID,
			line.Kind,
			line.Quantity,
			line.UnitAmount,
			line.DiscountAmount,
			line.TaxRateID,
			i,
		)
		if err != nil {
			return wrapError("postgres.lineItems.InsertForOrder", err)
		}
	}
	return nil
}

func (r *lineItemRepository) ReplaceForOrder(ctx context.Context, orderID string, lines []domain.LineItem) error {
	const query = `DELETE FROM order_lines WHERE order_id = $1`

	if _, err := r.db.querier(ctx).Exec(ctx, query, orderID); err != nil {
		return wrapError("postgres.lineItems.ReplaceForOrder", err)
	}
	return r.InsertForOrder(ctx, orderID, lines)
}

func (r *lineItemRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	const query = `
		SELECT ` + lineColumns + `
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position`

	rows, err := r.db.querier(ctx).Query(ctx, query, orderID)
	if err != nil {
		return nil, wrapError("postgres.lineItems.ListByOrder", err)
	}
	defer rows.Close()

	var lines []domain.LineItem
	for rows.Next() {
		var line domain.LineItem
		if err := rows.Scan(
			&line.OrderID,
			&line.CatalogItemID,
			&line.Kind,
			&line.Quantity,
			&line.UnitAmount,
			&line.DiscountAmount,
			&line.TaxRateID,
			&line.Position,
		); err != nil {
			return nil, wrapError("postgres.lineItems.ListByOrder", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.lineItems.ListByOrder", err)
	}
	return lines, nil
}

func (r *lineItemRepository) ListByOrders(ctx context.Context, orderIDs []string) (map[string][]domain.LineItem, error) {
	if len(orderIDs) == 0 {
		return map[string][]domain.LineItem{}, nil
	}
	const query = `
		SELECT ` + lineColumns + `
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	rows, err := r.db.querier(ctx).Query(ctx, query, orderIDs)
	if err != nil {
		return nil, wrapError("postgres.lineItems.ListByOrders", err)
	}
	defer rows.Close()

	grouped := make(map[string][]domain.LineItem)
	for rows.Next() {
		var line domain.LineItem
		if err := rows.Scan(
			&line.OrderID,
			&line.CatalogItemID,
			&line.Kind,
			&line.Quantity,
			&line.UnitAmount,
			&line.DiscountAmount,
			&line.TaxRateID,
			&line.Position,
		); err != nil {
			return nil, wrapError("postgres.lineItems.ListByOrders", err)
		}
		grouped[line.OrderID] = append(grouped[line.OrderID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.lineItems.ListByOrders", err)
	}
	return grouped, nil
}
