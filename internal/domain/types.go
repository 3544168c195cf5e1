package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CatalogItemKind distinguishes billable service work from physical parts.
type CatalogItemKind string

const (
	// CatalogItemKindService represents labor or service catalog entries.
	CatalogItemKindService CatalogItemKind = "service"
	// CatalogItemKindPart represents physical part catalog entries.
	CatalogItemKindPart CatalogItemKind = "part"
)

// CatalogItem is a priced, admin-owned entry referenced by order lines.
// UnitPrice is expressed in minor currency units.
type CatalogItem struct {
	ID        string
	Name      string
	Kind      CatalogItemKind
	UnitPrice int64
	Currency  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaxRate is an admin-owned tax definition referenced by order lines.
// RateBps holds the percentage in basis points (8.25% == 825).
type TaxRate struct {
	ID        string
	Name      string
	RateBps   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is a single service or part line on a work order or estimate.
// UnitAmount snapshots the catalog price at the time the line was written;
// DiscountAmount is a flat minor-unit reduction applied after tax.
type LineItem struct {
	OrderID        string
	CatalogItemID  string
	Kind           CatalogItemKind
	Quantity       int
	UnitAmount     int64
	DiscountAmount int64
	TaxRateID      *string
	Position       int
}

// LineTotals carries the derived amounts for one line.
type LineTotals struct {
	CatalogItemID string
	ItemTotal     int64
	TaxAmount     int64
	Discount      int64
}

// OrderTotals summarizes the derived money amounts for an aggregate.
// These values are computed on every read and never persisted.
type OrderTotals struct {
	ServicesSubtotal int64
	PartsSubtotal    int64
	TotalTax         int64
	TotalDiscount    int64
	GrandTotal       int64
	Lines            []LineTotals
}

// BillingStatus enumerates work order billing lifecycle states.
type BillingStatus string

const (
	// BillingStatusDraft indicates the work order has not been billed.
	BillingStatusDraft BillingStatus = "draft"
	// BillingStatusInvoiced indicates an invoice was issued for the work order.
	BillingStatusInvoiced BillingStatus = "invoiced"
	// BillingStatusPaid indicates payment was collected.
	BillingStatusPaid BillingStatus = "paid"
	// BillingStatusVoid indicates the work order was written off.
	BillingStatusVoid BillingStatus = "void"
)

// WorkOrder is the billing aggregate for a unit of field or desk work.
type WorkOrder struct {
	ID            string
	Number        string
	CustomerID    string
	TicketID      *string
	ParentID      *string
	SourceRef     *string
	Currency      string
	BillingStatus BillingStatus
	Description   string
	Lines         []LineItem
	Totals        OrderTotals
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EstimateStatus enumerates estimate lifecycle states.
type EstimateStatus string

const (
	// EstimateStatusPending indicates the estimate awaits a customer decision.
	EstimateStatusPending EstimateStatus = "pending"
	// EstimateStatusApproved indicates the customer accepted the estimate.
	EstimateStatusApproved EstimateStatus = "approved"
	// EstimateStatusRejected indicates the customer declined the estimate.
	EstimateStatusRejected EstimateStatus = "rejected"
	// EstimateStatusExpired indicates the estimate lapsed without a decision.
	EstimateStatusExpired EstimateStatus = "expired"
)

// Estimate is a quoted aggregate sharing the work order line shape.
type Estimate struct {
	ID          string
	Number      string
	CustomerID  string
	TicketID    *string
	Currency    string
	Status      EstimateStatus
	Description string
	WorkOrderID *string
	ExpiresAt   *time.Time
	Lines       []LineItem
	Totals      OrderTotals
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketStatus enumerates support ticket lifecycle states.
type TicketStatus string

const (
	// TicketStatusOpen indicates the ticket awaits triage or work.
	TicketStatusOpen TicketStatus = "open"
	// TicketStatusPending indicates the ticket awaits a requester response.
	TicketStatusPending TicketStatus = "pending"
	// TicketStatusResolved indicates the ticket was answered.
	TicketStatusResolved TicketStatus = "resolved"
	// TicketStatusClosed indicates the ticket is archived.
	TicketStatusClosed TicketStatus = "closed"
)

// TicketPriority orders tickets for triage.
type TicketPriority string

const (
	// TicketPriorityLow marks tickets without time pressure.
	TicketPriorityLow TicketPriority = "low"
	// TicketPriorityNormal is the default priority.
	TicketPriorityNormal TicketPriority = "normal"
	// TicketPriorityHigh marks tickets needing same-day attention.
	TicketPriorityHigh TicketPriority = "high"
	// TicketPriorityUrgent marks tickets breaching service commitments.
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Ticket is a support request that may spawn estimates and work orders.
// Body is stored sanitized.
type Ticket struct {
	ID          string
	Subject     string
	Body        string
	Status      TicketStatus
	Priority    TicketPriority
	RequesterID string
	AssigneeID  *string
	Labels      []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Customer is the CRM record work orders and tickets reference.
// NormalizedName holds the NFKC-casefolded display name used for search.
type Customer struct {
	ID             string
	Code           string
	DisplayName    string
	NormalizedName string
	Email          string
	Phone          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BulkFailure records one item that could not be mutated in a batch.
type BulkFailure struct {
	ID     string
	Reason string
}

// BulkResult summarizes a batch mutation. It is returned to the caller and
// never stored.
type BulkResult struct {
	Processed int
	Failures  []BulkFailure
}

// Failed reports how many items of the batch were not applied.
func (r BulkResult) Failed() int { return len(r.Failures) }

// AuditLogEntry records a privileged mutation for later review.
type AuditLogEntry struct {
	ID         string
	Actor      string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// InvoiceIntent captures the payment provider handle created when a work
// order is invoiced.
type InvoiceIntent struct {
	WorkOrderID  string
	ProviderID   string
	ClientSecret string
	Amount       int64
	Currency     string
	CreatedAt    time.Time
}

// HealthStatus classifies the outcome of a dependency probe.
type HealthStatus string

const (
	// HealthStatusOK indicates the dependency responded normally.
	HealthStatusOK HealthStatus = "ok"
	// HealthStatusDegraded indicates the dependency responded with an error.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusError indicates the dependency timed out or was unreachable.
	HealthStatusError HealthStatus = "error"
)

// SystemHealthCheck reports the result of one dependency probe.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probe results.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}

// CursorPage wraps a page of results with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
