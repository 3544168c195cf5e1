package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deskforge/api/internal/repositories"
)

type txContextKey struct{}

// querier abstracts the pool and an open transaction behind one query surface.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}

// Registry wires the pgx pool to the typed repositories and implements the
// transactional unit of work.
type Registry struct {
	pool *pgxpool.Pool

	workOrders   *workOrderRepository
	estimates    *estimateRepository
	lineItems    *lineItemRepository
	tickets      *ticketRepository
	customers    *customerRepository
	catalogItems *catalogItemRepository
	taxRates     *taxRateRepository
	auditLogs    *auditLogRepository
	counters     *counterRepository
	health       repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the Postgres repository registry over the provided pool.
func NewRegistry(pool *pgxpool.Pool) (*Registry, error) {
	if pool == nil {
		return nil, errors.New("postgres registry: pool is required")
	}

	r := &Registry{pool: pool}
	r.workOrders = &workOrderRepository{db: r}
	r.estimates = &estimateRepository{db: r}
	r.lineItems = &lineItemRepository{db: r}
	r.tickets = &ticketRepository{db: r}
	r.customers = &customerRepository{db: r}
	r.catalogItems = &catalogItemRepository{db: r}
	r.taxRates = &taxRateRepository{db: r}
	r.auditLogs = &auditLogRepository{db: r}
	r.counters = &counterRepository{db: r}

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "postgres", Check: r.Ping},
	})
	if err != nil {
		return nil, fmt.Errorf("postgres registry: %w", err)
	}
	r.health = health
	return r, nil
}

// Close releases the connection pool.
func (r *Registry) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

// Ping verifies database connectivity.
func (r *Registry) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunInTx executes fn within a transaction. Nested calls reuse the open
// transaction of the surrounding call.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("postgres registry: fn is required")
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return wrapError("postgres.RunInTx.begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapError("postgres.RunInTx.commit", err)
	}
	return nil
}

func (r *Registry) querier(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// WorkOrders returns the work order repository.
func (r *Registry) WorkOrders() repositories.WorkOrderRepository { return r.workOrders }

// Estimates returns the estimate repository.
func (r *Registry) Estimates() repositories.EstimateRepository { return r.estimates }

// LineItems returns the line item repository.
func (r *Registry) LineItems() repositories.LineItemRepository { return r.lineItems }

// Tickets returns the ticket repository.
func (r *Registry) Tickets() repositories.TicketRepository { return r.tickets }

// Customers returns the customer repository.
func (r *Registry) Customers() repositories.CustomerRepository { return r.customers }

// CatalogItems returns the catalog item repository.
func (r *Registry) CatalogItems() repositories.CatalogItemRepository { return r.catalogItems }

// TaxRates returns the tax rate repository.
func (r *Registry) TaxRates() repositories.TaxRateRepository { return r.taxRates }

// AuditLogs returns the audit log repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }

// Counters returns the counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }
