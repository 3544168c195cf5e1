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

type customerRepository struct {
	db *Registry
}

var _ repositories.CustomerRepository = (*customerRepository)(nil)

const customerColumns = `id, code, display_name, normalized_name, email, phone, created_at, updated_at`

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var customer domain.Customer
	err := row.Scan(
		&customer.ID,
		&customer.Code,
		&customer.DisplayName,
		&customer.NormalizedName,
		&customer.Email,
		&customer.Phone,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	return customer, err
}

func (r *customerRepository) Insert(ctx context.Context, customer domain.Customer) error {
	const query = `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.querier(ctx).Exec(ctx, query,
		customer.ID,
		customer.Code,
		customer.DisplayName,
		customer.NormalizedName,
		customer.Email,
		customer.Phone,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	return wrapError("postgres.customers.Insert", err)
}

func (r *customerRepository) Update(ctx context.Context, customer domain.Customer) error {
	const query = `
		UPDATE customers
		SET code = $2,
		    display_name = $3,
		    normalized_name = $4,
		    email = $5,
		    phone = $6,
		    updated_at = $7
		WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query,
		customer.ID,
		customer.Code,
		customer.DisplayName,
		customer.NormalizedName,
		customer.Email,
		customer.Phone,
		customer.UpdatedAt,
	)
	if err != nil {
		return wrapError("postgres.customers.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.customers.Update")
	}
	return nil
}

func (r *customerRepository) Delete(ctx context.Context, customerID string) error {
	const query = `DELETE FROM customers WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query, customerID)
	if err != nil {
		return wrapError("postgres.customers.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.customers.Delete")
	}
	return nil
}

func (r *customerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	const query = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	customer, err := scanCustomer(r.db.querier(ctx).QueryRow(ctx, query, customerID))
	if err != nil {
		return domain.Customer{}, wrapError("postgres.customers.FindByID", err)
	}
	return customer, nil
}

func (r *customerRepository) FindByIDs(ctx context.Context, customerIDs []string) ([]domain.Customer, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + customerColumns + ` FROM customers WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.querier(ctx).Query(ctx, query, customerIDs)
	if err != nil {
		return nil, wrapError("postgres.customers.FindByIDs", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, wrapError("postgres.customers.FindByIDs", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.customers.FindByIDs", err)
	}
	return customers, nil
}

func (r *customerRepository) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, wrapError("postgres.customers.List", err)
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

	if filter.Search != "" {
		addArg("normalized_name LIKE $%d", filter.Search+"%")
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

	query := `SELECT ` + customerColumns + ` FROM customers`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY id %s LIMIT $%d", direction, len(args))

	rows, err := r.db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, wrapError("postgres.customers.List", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return domain.CursorPage[domain.Customer]{}, wrapError("postgres.customers.List", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Customer]{}, wrapError("postgres.customers.List", err)
	}

	page := domain.CursorPage[domain.Customer]{Items: customers}
	if len(customers) > pageSize {
		page.Items = customers[:pageSize]
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: page.Items[pageSize-1].ID})
		if err != nil {
			return domain.CursorPage[domain.Customer]{}, wrapError("postgres.customers.List", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
