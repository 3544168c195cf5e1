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

type catalogItemRepository struct {
	db *Registry
}

var _ repositories.CatalogItemRepository = (*catalogItemRepository)(nil)

const catalogItemColumns = `id, name, kind, unit_price, currency, active, created_at, updated_at`

func scanCatalogItem(row pgx.Row) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Kind,
		&item.UnitPrice,
		&item.Currency,
		&item.Active,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (r *catalogItemRepository) Insert(ctx context.Context, item domain.CatalogItem) error {
	const query = `
		INSERT INTO catalog_items (` + catalogItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.querier(ctx).Exec(ctx, query,
		item.ID,
		item.Name,
		item.Kind,
		item.UnitPrice,
		item.Currency,
		item.Active,
		item.CreatedAt,
		item.UpdatedAt,
	)
	return wrapError("postgres.catalogItems.Insert", err)
}

func (r *catalogItemRepository) Update(ctx context.Context, item domain.CatalogItem) error {
	const query = `
		UPDATE catalog_items
		SET name = $2,
		    kind = $3,
		    unit_price = $4,
		    currency = $5,
		    active = $6,
		    updated_at = $7
		WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query,
		item.ID,
		item.Name,
		item.Kind,
		item.UnitPrice,
		item.Currency,
		item.Active,
		item.UpdatedAt,
	)
	if err != nil {
		return wrapError("postgres.catalogItems.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.catalogItems.Update")
	}
	return nil
}

func (r *catalogItemRepository) Delete(ctx context.Context, itemID string) error {
	const query = `DELETE FROM catalog_items WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query, itemID)
	if err != nil {
		return wrapError("postgres.catalogItems.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.catalogItems.Delete")
	}
	return nil
}

func (r *catalogItemRepository) FindByID(ctx context.Context, itemID string) (domain.CatalogItem, error) {
	const query = `SELECT ` + catalogItemColumns + ` FROM catalog_items WHERE id = $1`

	item, err := scanCatalogItem(r.db.querier(ctx).QueryRow(ctx, query, itemID))
	if err != nil {
		return domain.CatalogItem{}, wrapError("postgres.catalogItems.FindByID", err)
	}
	return item, nil
}

func (r *catalogItemRepository) FindByIDs(ctx context.Context, itemIDs []string) ([]domain.CatalogItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + catalogItemColumns + ` FROM catalog_items WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.querier(ctx).Query(ctx, query, itemIDs)
	if err != nil {
		return nil, wrapError("postgres.catalogItems.FindByIDs", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, wrapError("postgres.catalogItems.FindByIDs", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.catalogItems.FindByIDs", err)
	}
	return items, nil
}

func (r *catalogItemRepository) List(ctx context.Context, filter repositories.CatalogItemListFilter) (domain.CursorPage[domain.CatalogItem], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.CatalogItem]{}, wrapError("postgres.catalogItems.List", err)
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

	if filter.Kind != "" {
		addArg("kind = $%d", filter.Kind)
	}
	if filter.ActiveOnly {
		conds = append(conds, "active")
	}
	if cursor.LastID != "" {
		addArg("id > $%d", cursor.LastID)
	}

	query := `SELECT ` + catalogItemColumns + ` FROM catalog_items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))

	rows, err := r.db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.CatalogItem]{}, wrapError("postgres.catalogItems.List", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return domain.CursorPage[domain.CatalogItem]{}, wrapError("postgres.catalogItems.List", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.CatalogItem]{}, wrapError("postgres.catalogItems.List", err)
	}

	page := domain.CursorPage[domain.CatalogItem]{Items: items}
	if len(items) > pageSize {
		page.Items = items[:pageSize]
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: page.Items[pageSize-1].ID})
		if err != nil {
			return domain.CursorPage[domain.CatalogItem]{}, wrapError("postgres.catalogItems.List", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
