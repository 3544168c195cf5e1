package repositories

import (
	"context"
	"time"

	domain "github.com/deskforge/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	WorkOrders() WorkOrderRepository
	Estimates() EstimateRepository
	LineItems() LineItemRepository
	Tickets() TicketRepository
	Customers() CustomerRepository
	CatalogItems() CatalogItemRepository
	TaxRates() TaxRateRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WorkOrderListFilter constrains work order listings.
type WorkOrderListFilter struct {
	CustomerID    string
	TicketID      string
	BillingStatus []domain.BillingStatus
	CreatedAt     domain.RangeQuery[time.Time]
	Pagination    domain.Pagination
	Order         domain.SortOrder
}

// WorkOrderRepository persists work order headers. Lines live in LineItemRepository.
type WorkOrderRepository interface {
	Insert(ctx context.Context, order domain.WorkOrder) error
	Update(ctx context.Context, order domain.WorkOrder) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.WorkOrder, error)
	FindByIDs(ctx context.Context, orderIDs []string) ([]domain.WorkOrder, error)
	List(ctx context.Context, filter WorkOrderListFilter) (domain.CursorPage[domain.WorkOrder], error)
}

// EstimateListFilter constrains estimate listings.
type EstimateListFilter struct {
	CustomerID string
	Status     []domain.EstimateStatus
	CreatedAt  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
	Order      domain.SortOrder
}

// EstimateRepository persists estimate headers.
type EstimateRepository interface {
	Insert(ctx context.Context, estimate domain.Estimate) error
	Update(ctx context.Context, estimate domain.Estimate) error
	Delete(ctx context.Context, estimateID string) error
	FindByID(ctx context.Context, estimateID string) (domain.Estimate, error)
	FindByIDs(ctx context.Context, estimateIDs []string) ([]domain.Estimate, error)
	List(ctx context.Context, filter EstimateListFilter) (domain.CursorPage[domain.Estimate], error)
}

// LineItemRepository owns the line sets attached to work orders and estimates.
// ReplaceForOrder removes every existing line for the order before inserting
// the new set; callers run it inside the aggregate transaction.
type LineItemRepository interface {
	InsertForOrder(ctx context.Context, orderID string, lines []domain.LineItem) error
	ReplaceForOrder(ctx context.Context, orderID string, lines []domain.LineItem) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.LineItem, error)
	ListByOrders(ctx context.Context, orderIDs []string) (map[string][]domain.LineItem, error)
}

// TicketListFilter constrains ticket listings.
type TicketListFilter struct {
	Status     []domain.TicketStatus
	Priority   []domain.TicketPriority
	AssigneeID string
	Pagination domain.Pagination
	Order      domain.SortOrder
}

// TicketRepository persists support tickets.
type TicketRepository interface {
	Insert(ctx context.Context, ticket domain.Ticket) error
	Update(ctx context.Context, ticket domain.Ticket) error
	Delete(ctx context.Context, ticketID string) error
	FindByID(ctx context.Context, ticketID string) (domain.Ticket, error)
	FindByIDs(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error)
	List(ctx context.Context, filter TicketListFilter) (domain.CursorPage[domain.Ticket], error)
}

// CustomerListFilter constrains customer listings. Search matches against the
// normalized display name.
type CustomerListFilter struct {
	Search     string
	Pagination domain.Pagination
	Order      domain.SortOrder
}

// CustomerRepository persists CRM customer records. Insert and Update surface
// a conflict error when the customer code is already taken.
type CustomerRepository interface {
	Insert(ctx context.Context, customer domain.Customer) error
	Update(ctx context.Context, customer domain.Customer) error
	Delete(ctx context.Context, customerID string) error
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
	FindByIDs(ctx context.Context, customerIDs []string) ([]domain.Customer, error)
	List(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

// CatalogItemListFilter constrains catalog item listings.
type CatalogItemListFilter struct {
	Kind       string
	ActiveOnly bool
	Pagination domain.Pagination
}

// CatalogItemRepository persists the priced catalog referenced by order lines.
type CatalogItemRepository interface {
	Insert(ctx context.Context, item domain.CatalogItem) error
	Update(ctx context.Context, item domain.CatalogItem) error
	Delete(ctx context.Context, itemID string) error
	FindByID(ctx context.Context, itemID string) (domain.CatalogItem, error)
	FindByIDs(ctx context.Context, itemIDs []string) ([]domain.CatalogItem, error)
	List(ctx context.Context, filter CatalogItemListFilter) (domain.CursorPage[domain.CatalogItem], error)
}

// TaxRateRepository persists tax rate definitions.
type TaxRateRepository interface {
	Insert(ctx context.Context, rate domain.TaxRate) error
	Update(ctx context.Context, rate domain.TaxRate) error
	Delete(ctx context.Context, rateID string) error
	FindByID(ctx context.Context, rateID string) (domain.TaxRate, error)
	FindByIDs(ctx context.Context, rateIDs []string) ([]domain.TaxRate, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.TaxRate], error)
}

// AuditLogRepository appends privileged-mutation records.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	ListByTarget(ctx context.Context, targetType, targetID string, pager domain.Pagination) (domain.CursorPage[domain.AuditLogEntry], error)
}

// CounterRepository issues monotonically increasing sequence numbers per
// counter key inside the surrounding transaction.
type CounterRepository interface {
	Next(ctx context.Context, key string) (int64, error)
}

// HealthRepository probes backing dependencies for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
