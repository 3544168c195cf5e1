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

type workOrderRepository struct {
	db *Registry
}

var _ repositories.WorkOrderRepository = (*workOrderRepository)(nil)

const workOrderColumns = `id, number, customer_id, ticket_id, parent_id, source_ref, currency, billing_status, description, created_at, updated_at`

func scanWorkOrder(row pgx.Row) (domain.WorkOrder, error) {
	var order domain.WorkOrder
	err := row.Scan(
		&order.ID,
		&order.Number,
		&order.CustomerID,
		&order.TicketID,
		&order.ParentID,
		&order.SourceRef,
		&order.Currency,
		&order.BillingStatus,
		&order.Description,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

func (r *workOrderRepository) Insert(ctx context.Context, order domain.WorkOrder) error {
	const query = `
		INSERT INTO work_orders (` + workOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.querier(ctx).Exec(ctx, query,
		order.ID,
		order.Number,
		order.CustomerID,
		order.TicketID,
		order.ParentID,
		order.SourceRef,
		order.Currency,
		order.BillingStatus,
		order.Description,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return wrapError("postgres.workOrders.Insert", err)
}

func (r *workOrderRepository) Update(ctx context.Context, order domain.WorkOrder) error {
	const query = `
		UPDATE work_orders
		SET customer_id = $2,
		    ticket_id = $3,
		    parent_id = $4,
		    source_ref = $5,
		    currency = $6,
		    billing_status = $7,
		    description = $8,
		    updated_at = $9
		WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query,
		order.ID,
		order.CustomerID,
		order.TicketID,
		order.ParentID,
		order.SourceRef,
		order.Currency,
		order.BillingStatus,
		order.Description,
		order.UpdatedAt,
	)
	if err != nil {
		return wrapError("postgres.workOrders.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.workOrders.Update")
	}
	return nil
}

func (r *workOrderRepository) Delete(ctx context.Context, orderID string) error {
	const query = `DELETE FROM work_orders WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query, orderID)
	if err != nil {
		return wrapError("postgres.workOrders.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.workOrders.Delete")
	}
	return nil
}

func (r *workOrderRepository) FindByID(ctx context.Context, orderID string) (domain.WorkOrder, error) {
	const query = `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = $1`

	order, err := scanWorkOrder(r.db.querier(ctx).QueryRow(ctx, query, orderID))
	if err != nil {
		return domain.WorkOrder{}, wrapError("postgres.workOrders.FindByID", err)
	}
	return order, nil
}

func (r *workOrderRepository) FindByIDs(ctx context.Context, orderIDs []string) ([]domain.WorkOrder, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + workOrderColumns + ` FROM work_orders WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.querier(ctx).Query(ctx, query, orderIDs)
	if err != nil {
		return nil, wrapError("postgres.workOrders.FindByIDs", err)
	}
	defer rows.Close()

	var orders []domain.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, wrapError("postgres.workOrders.FindByIDs", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.workOrders.FindByIDs", err)
	}
	return orders, nil
}

func (r *workOrderRepository) List(ctx context.Context, filter repositories.WorkOrderListFilter) (domain.CursorPage[domain.WorkOrder], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.WorkOrder]{}, wrapError("postgres.workOrders.List", err)
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
	if filter.TicketID != "" {
		addArg("ticket_id = $%d", filter.TicketID)
	}
	if len(filter.BillingStatus) > 0 {
		statuses := make([]string, 0, len(filter.BillingStatus))
		for _, status := range filter.BillingStatus {
			statuses = append(statuses, string(status))
		}
		addArg("billing_status = ANY($%d)", statuses)
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

	query := `SELECT ` + workOrderColumns + ` FROM work_orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY id %s LIMIT $%d", direction, len(args))

	rows, err := r.db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.WorkOrder]{}, wrapError("postgres.workOrders.List", err)
	}
	defer rows.Close()

	var orders []domain.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return domain.CursorPage[domain.WorkOrder]{}, wrapError("postgres.workOrders.List", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.WorkOrder]{}, wrapError("postgres.workOrders.List", err)
	}

	page := domain.CursorPage[domain.WorkOrder]{Items: orders}
	if len(orders) > pageSize {
		page.Items = orders[:pageSize]
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: page.Items[pageSize-1].ID})
		if err != nil {
			return domain.CursorPage[domain.WorkOrder]{}, wrapError("postgres.workOrders.List", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
