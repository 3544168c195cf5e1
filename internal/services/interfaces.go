package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	CatalogItem        = domain.CatalogItem
	CatalogItemKind    = domain.CatalogItemKind
	TaxRate            = domain.TaxRate
	LineItem           = domain.LineItem
	LineTotals         = domain.LineTotals
	OrderTotals        = domain.OrderTotals
	WorkOrder          = domain.WorkOrder
	BillingStatus      = domain.BillingStatus
	Estimate           = domain.Estimate
	EstimateStatus     = domain.EstimateStatus
	Ticket             = domain.Ticket
	TicketStatus       = domain.TicketStatus
	TicketPriority     = domain.TicketPriority
	Customer           = domain.Customer
	BulkResult         = domain.BulkResult
	BulkFailure        = domain.BulkFailure
	AuditLogEntry      = domain.AuditLogEntry
	InvoiceIntent      = domain.InvoiceIntent
	SystemHealthReport = domain.SystemHealthReport
)

// Constant aliases mirror the domain sort orders for callers of this package.
const (
	SortAsc  = domain.SortAsc
	SortDesc = domain.SortDesc
)

// LineInput describes one requested service or part line on a create or
// update command. UnitAmount is not accepted from callers; it is snapshotted
// from the catalog when the line is written.
type LineInput struct {
	CatalogItemID  string
	Quantity       int
	DiscountAmount int64
	TaxRateID      *string
}

// CreateWorkOrderCommand carries the fields needed to open a work order.
type CreateWorkOrderCommand struct {
	CustomerID  string
	TicketID    *string
	ParentID    *string
	SourceRef   *string
	Currency    string
	Description string
	Lines       []LineInput
	Actor       string
}

// WorkOrderPatch describes a partial update. Nil fields are left untouched;
// a non-nil Lines pointer replaces the full line set.
type WorkOrderPatch struct {
	CustomerID    *string
	TicketID      *string
	Description   *string
	BillingStatus *BillingStatus
	Lines         *[]LineInput
}

// UpdateWorkOrderCommand applies a patch to an existing work order.
type UpdateWorkOrderCommand struct {
	OrderID string
	Patch   WorkOrderPatch
	Actor   string
}

// WorkOrderListFilter narrows work order listings.
type WorkOrderListFilter struct {
	CustomerID    string
	TicketID      string
	BillingStatus []BillingStatus
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Pagination    Pagination
	Order         SortOrder
}

// RequestWorkOrderInvoiceCommand asks the payment provider for a collectable
// intent covering the work order grand total.
type RequestWorkOrderInvoiceCommand struct {
	OrderID string
	Actor   string
}

// WorkOrderService owns the work order aggregate lifecycle. Create and Update
// return the same joined, recomputed shape a subsequent Get would produce.
type WorkOrderService interface {
	Create(ctx context.Context, cmd CreateWorkOrderCommand) (WorkOrder, error)
	Get(ctx context.Context, orderID string) (WorkOrder, error)
	List(ctx context.Context, filter WorkOrderListFilter) (domain.CursorPage[WorkOrder], error)
	Update(ctx context.Context, cmd UpdateWorkOrderCommand) (WorkOrder, error)
	Delete(ctx context.Context, orderID string, actor string) error
	BulkUpdate(ctx context.Context, ids []string, patch WorkOrderPatch, actor string) (BulkResult, error)
	BulkDelete(ctx context.Context, ids []string, actor string) (BulkResult, error)
	RequestInvoice(ctx context.Context, cmd RequestWorkOrderInvoiceCommand) (InvoiceIntent, error)
}

// CreateEstimateCommand carries the fields needed to draft an estimate.
type CreateEstimateCommand struct {
	CustomerID  string
	TicketID    *string
	Currency    string
	Description string
	ExpiresAt   *time.Time
	Lines       []LineInput
	Actor       string
}

// EstimatePatch describes a partial estimate update.
type EstimatePatch struct {
	CustomerID  *string
	TicketID    *string
	Description *string
	Status      *EstimateStatus
	ExpiresAt   *time.Time
	Lines       *[]LineInput
}

// UpdateEstimateCommand applies a patch to an existing estimate.
type UpdateEstimateCommand struct {
	EstimateID string
	Patch      EstimatePatch
	Actor      string
}

// EstimateListFilter narrows estimate listings.
type EstimateListFilter struct {
	CustomerID  string
	Status      []EstimateStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Pagination  Pagination
	Order       SortOrder
}

// EstimateService owns the estimate aggregate lifecycle. Approve converts the
// estimate into a draft work order carrying the estimate's lines.
type EstimateService interface {
	Create(ctx context.Context, cmd CreateEstimateCommand) (Estimate, error)
	Get(ctx context.Context, estimateID string) (Estimate, error)
	List(ctx context.Context, filter EstimateListFilter) (domain.CursorPage[Estimate], error)
	Update(ctx context.Context, cmd UpdateEstimateCommand) (Estimate, error)
	Delete(ctx context.Context, estimateID string, actor string) error
	Approve(ctx context.Context, estimateID string, actor string) (Estimate, error)
	Reject(ctx context.Context, estimateID string, actor string) (Estimate, error)
	BulkUpdate(ctx context.Context, ids []string, patch EstimatePatch, actor string) (BulkResult, error)
	BulkDelete(ctx context.Context, ids []string, actor string) (BulkResult, error)
}

// CreateTicketCommand opens a support ticket. Body is sanitized before storage.
type CreateTicketCommand struct {
	Subject     string
	Body        string
	Priority    TicketPriority
	RequesterID string
	AssigneeID  *string
	Labels      []string
}

// TicketPatch describes a partial ticket update.
type TicketPatch struct {
	Subject    *string
	Body       *string
	Status     *TicketStatus
	Priority   *TicketPriority
	AssigneeID *string
	Labels     *[]string
}

// UpdateTicketCommand applies a patch to an existing ticket.
type UpdateTicketCommand struct {
	TicketID string
	Patch    TicketPatch
}

// TicketListFilter narrows ticket listings.
type TicketListFilter struct {
	Status     []TicketStatus
	Priority   []TicketPriority
	AssigneeID string
	Pagination Pagination
	Order      SortOrder
}

// TicketService owns support ticket lifecycle and batch mutations.
type TicketService interface {
	Create(ctx context.Context, cmd CreateTicketCommand) (Ticket, error)
	Get(ctx context.Context, ticketID string) (Ticket, error)
	List(ctx context.Context, filter TicketListFilter) (domain.CursorPage[Ticket], error)
	Update(ctx context.Context, cmd UpdateTicketCommand) (Ticket, error)
	Delete(ctx context.Context, ticketID string) error
	BulkUpdate(ctx context.Context, ids []string, patch TicketPatch) (BulkResult, error)
	BulkDelete(ctx context.Context, ids []string) (BulkResult, error)
}

// CreateCustomerCommand registers a CRM customer. Code must be unique.
type CreateCustomerCommand struct {
	Code        string
	DisplayName string
	Email       string
	Phone       string
}

// CustomerPatch describes a partial customer update.
type CustomerPatch struct {
	Code        *string
	DisplayName *string
	Email       *string
	Phone       *string
}

// UpdateCustomerCommand applies a patch to an existing customer.
type UpdateCustomerCommand struct {
	CustomerID string
	Patch      CustomerPatch
}

// CustomerListFilter narrows customer listings. Search matches the normalized
// display name prefix.
type CustomerListFilter struct {
	Search     string
	Pagination Pagination
	Order      SortOrder
}

// CustomerService owns CRM customer lifecycle and batch mutations.
type CustomerService interface {
	Create(ctx context.Context, cmd CreateCustomerCommand) (Customer, error)
	Get(ctx context.Context, customerID string) (Customer, error)
	List(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[Customer], error)
	Update(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error)
	Delete(ctx context.Context, customerID string) error
	BulkUpdate(ctx context.Context, ids []string, patch CustomerPatch) (BulkResult, error)
	BulkDelete(ctx context.Context, ids []string) (BulkResult, error)
}

// CatalogItemInput carries the writable catalog item fields.
type CatalogItemInput struct {
	Name      string
	Kind      CatalogItemKind
	UnitPrice int64
	Currency  string
	Active    *bool
}

// CatalogItemPatch describes a partial catalog item update.
type CatalogItemPatch struct {
	Name      *string
	UnitPrice *int64
	Currency  *string
	Active    *bool
}

// TaxRateInput carries the writable tax rate fields. RateBps is the
// percentage in basis points.
type TaxRateInput struct {
	Name    string
	RateBps int64
}

// TaxRatePatch describes a partial tax rate update.
type TaxRatePatch struct {
	Name    *string
	RateBps *int64
}

// CatalogItemListFilter narrows catalog item listings.
type CatalogItemListFilter struct {
	Kind       string
	ActiveOnly bool
	Pagination Pagination
}

// CatalogService owns the admin catalog of priced items and tax rates.
type CatalogService interface {
	CreateItem(ctx context.Context, input CatalogItemInput, actor string) (CatalogItem, error)
	GetItem(ctx context.Context, itemID string) (CatalogItem, error)
	ListItems(ctx context.Context, filter CatalogItemListFilter) (domain.CursorPage[CatalogItem], error)
	UpdateItem(ctx context.Context, itemID string, patch CatalogItemPatch, actor string) (CatalogItem, error)
	DeleteItem(ctx context.Context, itemID string, actor string) error
	BulkUpdateItems(ctx context.Context, ids []string, patch CatalogItemPatch, actor string) (BulkResult, error)
	BulkDeleteItems(ctx context.Context, ids []string, actor string) (BulkResult, error)

	CreateTaxRate(ctx context.Context, input TaxRateInput, actor string) (TaxRate, error)
	GetTaxRate(ctx context.Context, rateID string) (TaxRate, error)
	ListTaxRates(ctx context.Context, pager Pagination) (domain.CursorPage[TaxRate], error)
	UpdateTaxRate(ctx context.Context, rateID string, patch TaxRatePatch, actor string) (TaxRate, error)
	DeleteTaxRate(ctx context.Context, rateID string, actor string) error
	BulkUpdateTaxRates(ctx context.Context, ids []string, patch TaxRatePatch, actor string) (BulkResult, error)
	BulkDeleteTaxRates(ctx context.Context, ids []string, actor string) (BulkResult, error)
}

// AuditLogService records privileged mutations for later review.
type AuditLogService interface {
	Record(ctx context.Context, actor, action, targetType, targetID string, metadata map[string]any) error
	ListByTarget(ctx context.Context, targetType, targetID string, pager Pagination) (domain.CursorPage[AuditLogEntry], error)
}

// CounterService issues formatted document numbers backed by transactional counters.
type CounterService interface {
	NextNumber(ctx context.Context, kind string) (string, error)
}

// SystemService surfaces dependency health for readiness probes.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
}

// Event is the payload handed to the async event pipeline.
type Event struct {
	Type       string
	Subject    string
	Data       map[string]any
	OccurredAt time.Time
}

// EventPublisher pushes domain events to the async pipeline. Implementations
// must tolerate best-effort delivery; services never fail a request on a
// publish error.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// PaymentProvider creates collectable payment intents for invoiced work orders.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntentResult, error)
}

// PaymentIntentRequest describes the charge to prepare with the provider.
type PaymentIntentRequest struct {
	Amount         int64
	Currency       string
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentIntentResult returns the provider handle for a created intent.
type PaymentIntentResult struct {
	ProviderID   string
	ClientSecret string
}

// mapRepositoryError converts categorised repository failures into the
// service-level sentinel triple, wrapping the cause.
func mapRepositoryError(err error, notFound, conflict, unavailable error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", conflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", unavailable, err)
		}
	}
	return err
}
