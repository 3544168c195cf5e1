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

type ticketRepository struct {
	db *Registry
}

var _ repositories.TicketRepository = (*ticketRepository)(nil)

const ticketColumns = `id, subject, body, status, priority, requester_id, assignee_id, labels, created_at, updated_at`

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Body,
		&ticket.Status,
		&ticket.Priority,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.Labels,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	return ticket, err
}

func (r *ticketRepository) Insert(ctx context.Context, ticket domain.Ticket) error {
	const query = `
		INSERT INTO tickets (` + ticketColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.querier(ctx).Exec(ctx, query,
		ticket.ID,
		ticket.Subject,
		ticket.Body,
		ticket.Status,
		ticket.Priority,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.Labels,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return wrapError("postgres.tickets.Insert", err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket domain.Ticket) error {
	const query = `
		UPDATE tickets
		SET subject = $2,
		    body = $3,
		    status = $4,
		    priority = $5,
		    requester_id = $6,
		    assignee_id = $7,
		    labels = $8,
		    updated_at = $9
		WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query,
		ticket.ID,
		ticket.Subject,
		ticket.Body,
		ticket.Status,
		ticket.Priority,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.Labels,
		ticket.UpdatedAt,
	)
	if err != nil {
		return wrapError("postgres.tickets.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.tickets.Update")
	}
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, ticketID string) error {
	const query = `DELETE FROM tickets WHERE id = $1`

	tag, err := r.db.querier(ctx).Exec(ctx, query, ticketID)
	if err != nil {
		return wrapError("postgres.tickets.Delete", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundError("postgres.tickets.Delete")
	}
	return nil
}

func (r *ticketRepository) FindByID(ctx context.Context, ticketID string) (domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(r.db.querier(ctx).QueryRow(ctx, query, ticketID))
	if err != nil {
		return domain.Ticket{}, wrapError("postgres.tickets.FindByID", err)
	}
	return ticket, nil
}

func (r *ticketRepository) FindByIDs(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.querier(ctx).Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, wrapError("postgres.tickets.FindByIDs", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, wrapError("postgres.tickets.FindByIDs", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("postgres.tickets.FindByIDs", err)
	}
	return tickets, nil
}

func (r *ticketRepository) List(ctx context.Context, filter repositories.TicketListFilter) (domain.CursorPage[domain.Ticket], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Ticket]{}, wrapError("postgres.tickets.List", err)
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

	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			statuses = append(statuses, string(status))
		}
		addArg("status = ANY($%d)", statuses)
	}
	if len(filter.Priority) > 0 {
		priorities := make([]string, 0, len(filter.Priority))
		for _, priority := range filter.Priority {
			priorities = append(priorities, string(priority))
		}
		addArg("priority = ANY($%d)", priorities)
	}
	if filter.AssigneeID != "" {
		addArg("assignee_id = $%d", filter.AssigneeID)
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

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, pageSize+1)
	query += fmt.Sprintf(" ORDER BY id %s LIMIT $%d", direction, len(args))

	rows, err := r.db.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Ticket]{}, wrapError("postgres.tickets.List", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return domain.CursorPage[domain.Ticket]{}, wrapError("postgres.tickets.List", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Ticket]{}, wrapError("postgres.tickets.List", err)
	}

	page := domain.CursorPage[domain.Ticket]{Items: tickets}
	if len(tickets) > pageSize {
		page.Items = tickets[:pageSize]
		token, err := pagination.EncodeToken(pagination.Cursor{LastID: page.Items[pageSize-1].ID})
		if err != nil {
			return domain.CursorPage[domain.Ticket]{}, wrapError("postgres.tickets.List", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}
