package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

const (
	workOrderEventCreated          = "workorder.created"
	workOrderEventUpdated          = "workorder.updated"
	workOrderEventDeleted          = "workorder.deleted"
	workOrderEventInvoiceRequested = "workorder.invoice.requested"
	workOrderEventBulkCompleted    = "workorder.bulk.completed"

	workOrderIDPrefix = "wo_"
	workOrderEntity   = "work order"
)

var (
	// ErrWorkOrderInvalidInput signals the caller provided invalid data.
	ErrWorkOrderInvalidInput = errors.New("workorder: invalid input")
	// ErrWorkOrderNotFound indicates the work order could not be located.
	ErrWorkOrderNotFound = errors.New("workorder: not found")
	// ErrWorkOrderInvalidState indicates an invalid billing transition was attempted.
	ErrWorkOrderInvalidState = errors.New("workorder: invalid billing transition")
	// ErrWorkOrderConflict indicates duplicate numbers or conflicting writes.
	ErrWorkOrderConflict = errors.New("workorder: conflict")
	// ErrWorkOrderUnavailable indicates the backing store rejected the request transiently.
	ErrWorkOrderUnavailable = errors.New("workorder: storage unavailable")

	errWorkOrderPaymentsUnavailable = errors.New("workorder: payment provider not configured")
)

var billingTransitions = map[domain.BillingStatus][]domain.BillingStatus{
	domain.BillingStatusDraft:    {domain.BillingStatusInvoiced, domain.BillingStatusVoid},
	domain.BillingStatusInvoiced: {domain.BillingStatusPaid, domain.BillingStatusVoid},
}

func canBillingTransition(current, target domain.BillingStatus) bool {
	if current == target {
		return true
	}
	for _, next := range billingTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// WorkOrderServiceDeps bundles collaborators required to construct the work order service.
type WorkOrderServiceDeps struct {
	WorkOrders  repositories.WorkOrderRepository
	LineItems   repositories.LineItemRepository
	CatalogItem repositories.CatalogItemRepository
	TaxRates    repositories.TaxRateRepository
	Customers   repositories.CustomerRepository
	Numbers     CounterService
	UnitOfWork  repositories.UnitOfWork
	Payments    PaymentProvider
	Events      EventPublisher
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type workOrderService struct {
	workOrders repositories.WorkOrderRepository
	lineItems  repositories.LineItemRepository
	catalog    repositories.CatalogItemRepository
	taxRates   repositories.TaxRateRepository
	customers  repositories.CustomerRepository
	numbers    CounterService
	unitOfWork repositories.UnitOfWork
	payments   PaymentProvider
	events     EventPublisher
	audit      AuditLogService
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewWorkOrderService wires dependencies into a concrete WorkOrderService implementation.
func NewWorkOrderService(deps WorkOrderServiceDeps) (WorkOrderService, error) {
	if deps.WorkOrders == nil {
		return nil, errors.New("workorder service: work order repository is required")
	}
	if deps.LineItems == nil {
		return nil, errors.New("workorder service: line item repository is required")
	}
	if deps.CatalogItem == nil {
		return nil, errors.New("workorder service: catalog item repository is required")
	}
	if deps.TaxRates == nil {
		return nil, errors.New("workorder service: tax rate repository is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("workorder service: customer repository is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("workorder service: counter service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &workOrderService{
		workOrders: deps.WorkOrders,
		lineItems:  deps.LineItems,
		catalog:    deps.CatalogItem,
		taxRates:   deps.TaxRates,
		customers:  deps.Customers,
		numbers:    deps.Numbers,
		unitOfWork: unit,
		payments:   deps.Payments,
		events:     deps.Events,
		audit:      deps.Audit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *workOrderService) Create(ctx context.Context, cmd CreateWorkOrderCommand) (WorkOrder, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return WorkOrder{}, fmt.Errorf("%w: customer id is required", ErrWorkOrderInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if len(currency) != 3 {
		return WorkOrder{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrWorkOrderInvalidInput)
	}
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return WorkOrder{}, err
	}

	now := s.now()
	order := WorkOrder{
		ID:            workOrderIDPrefix + s.newID(),
		CustomerID:    customerID,
		TicketID:      cloneTrimmedPtr(cmd.TicketID),
		ParentID:      cloneTrimmedPtr(cmd.ParentID),
		SourceRef:     cloneTrimmedPtr(cmd.SourceRef),
		Currency:      currency,
		BillingStatus: domain.BillingStatusDraft,
		Description:   strings.TrimSpace(cmd.Description),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		number, err := s.numbers.NextNumber(txCtx, "work_order")
		if err != nil {
			return err
		}
		order.Number = number

		lines, err := s.buildLines(txCtx, order.ID, cmd.Lines)
		if err != nil {
			return err
		}
		if err := s.workOrders.Insert(txCtx, order); err != nil {
			return s.mapErr(err)
		}
		if err := s.lineItems.InsertForOrder(txCtx, order.ID, lines); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return WorkOrder{}, err
	}

	created, err := s.Get(ctx, order.ID)
	if err != nil {
		return WorkOrder{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       workOrderEventCreated,
		Subject:    created.ID,
		OccurredAt: now,
		Data: map[string]any{
			"number":     created.Number,
			"customerId": created.CustomerID,
			"actor":      cmd.Actor,
		},
	})
	return created, nil
}

func (s *workOrderService) Get(ctx context.Context, orderID string) (WorkOrder, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return WorkOrder{}, fmt.Errorf("%w: order id is required", ErrWorkOrderInvalidInput)
	}

	order, err := s.workOrders.FindByID(ctx, id)
	if err != nil {
		return WorkOrder{}, s.mapErr(err)
	}
	lines, err := s.lineItems.ListByOrder(ctx, id)
	if err != nil {
		return WorkOrder{}, s.mapErr(err)
	}
	rates, err := s.loadRates(ctx, lines)
	if err != nil {
		return WorkOrder{}, err
	}

	order.Lines = lines
	order.Totals = ComputeOrderTotals(lines, rates)
	return order, nil
}

func (s *workOrderService) List(ctx context.Context, filter WorkOrderListFilter) (domain.CursorPage[WorkOrder], error) {
	page, err := s.workOrders.List(ctx, repositories.WorkOrderListFilter{
		CustomerID:    strings.TrimSpace(filter.CustomerID),
		TicketID:      strings.TrimSpace(filter.TicketID),
		BillingStatus: filter.BillingStatus,
		CreatedAt:     domain.RangeQuery[time.Time]{From: filter.CreatedFrom, To: filter.CreatedTo},
		Pagination:    filter.Pagination,
		Order:         filter.Order,
	})
	if err != nil {
		return domain.CursorPage[WorkOrder]{}, s.mapErr(err)
	}
	if len(page.Items) == 0 {
		return page, nil
	}

	ids := make([]string, 0, len(page.Items))
	for _, order := range page.Items {
		ids = append(ids, order.ID)
	}
	grouped, err := s.lineItems.ListByOrders(ctx, ids)
	if err != nil {
		return domain.CursorPage[WorkOrder]{}, s.mapErr(err)
	}

	var allLines []LineItem
	for _, lines := range grouped {
		allLines = append(allLines, lines...)
	}
	rates, err := s.loadRates(ctx, allLines)
	if err != nil {
		return domain.CursorPage[WorkOrder]{}, err
	}

	for i := range page.Items {
		lines := grouped[page.Items[i].ID]
		page.Items[i].Lines = lines
		page.Items[i].Totals = ComputeOrderTotals(lines, rates)
	}
	return page, nil
}

func (s *workOrderService) Update(ctx context.Context, cmd UpdateWorkOrderCommand) (WorkOrder, error) {
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" {
		return WorkOrder{}, fmt.Errorf("%w: order id is required", ErrWorkOrderInvalidInput)
	}

	now := s.now()
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.workOrders.FindByID(txCtx, id)
		if err != nil {
			return s.mapErr(err)
		}

		merged, err := mergeWorkOrderPatch(order, cmd.Patch)
		if err != nil {
			return err
		}
		if cmd.Patch.CustomerID != nil {
			if err := s.ensureCustomer(txCtx, merged.CustomerID); err != nil {
				return err
			}
		}
		merged.UpdatedAt = now

		if cmd.Patch.Lines != nil {
			lines, err := s.buildLines(txCtx, id, *cmd.Patch.Lines)
			if err != nil {
				return err
			}
			if err := s.lineItems.ReplaceForOrder(txCtx, id, lines); err != nil {
				return s.mapErr(err)
			}
		}
		if err := s.workOrders.Update(txCtx, merged); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return WorkOrder{}, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return WorkOrder{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       workOrderEventUpdated,
		Subject:    updated.ID,
		OccurredAt: now,
		Data: map[string]any{
			"billingStatus": string(updated.BillingStatus),
			"actor":         cmd.Actor,
		},
	})
	return updated, nil
}

func (s *workOrderService) Delete(ctx context.Context, orderID string, actor string) error {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return fmt.Errorf("%w: order id is required", ErrWorkOrderInvalidInput)
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.lineItems.ReplaceForOrder(txCtx, id, nil); err != nil {
			return s.mapErr(err)
		}
		if err := s.workOrders.Delete(txCtx, id); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, Event{
		Type:       workOrderEventDeleted,
		Subject:    id,
		OccurredAt: s.now(),
		Data:       map[string]any{"actor": actor},
	})
	return nil
}

func (s *workOrderService) BulkUpdate(ctx context.Context, ids []string, patch WorkOrderPatch, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, workOrderEntity,
		s.workOrders.FindByIDs,
		func(order WorkOrder) string { return order.ID },
		func(opCtx context.Context, record WorkOrder) error {
			_, err := s.Update(opCtx, UpdateWorkOrderCommand{OrderID: record.ID, Patch: patch, Actor: actor})
			return s.bulkReason(err)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.finishBulk(ctx, "bulk_update", actor, ids, result)
	return result, nil
}

func (s *workOrderService) BulkDelete(ctx context.Context, ids []string, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, workOrderEntity,
		s.workOrders.FindByIDs,
		func(order WorkOrder) string { return order.ID },
		func(opCtx context.Context, record WorkOrder) error {
			return s.bulkReason(s.Delete(opCtx, record.ID, actor))
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.finishBulk(ctx, "bulk_delete", actor, ids, result)
	return result, nil
}

func (s *workOrderService) RequestInvoice(ctx context.Context, cmd RequestWorkOrderInvoiceCommand) (InvoiceIntent, error) {
	if s.payments == nil {
		return InvoiceIntent{}, errWorkOrderPaymentsUnavailable
	}

	order, err := s.Get(ctx, cmd.OrderID)
	if err != nil {
		return InvoiceIntent{}, err
	}
	if !canBillingTransition(order.BillingStatus, domain.BillingStatusInvoiced) {
		return InvoiceIntent{}, fmt.Errorf("%w: %s -> %s", ErrWorkOrderInvalidState, order.BillingStatus, domain.BillingStatusInvoiced)
	}
	if order.Totals.GrandTotal <= 0 {
		return InvoiceIntent{}, fmt.Errorf("%w: grand total must be positive to invoice", ErrWorkOrderInvalidInput)
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, PaymentIntentRequest{
		Amount:         order.Totals.GrandTotal,
		Currency:       order.Currency,
		Description:    "Work order " + order.Number,
		IdempotencyKey: "wo-invoice-" + order.ID,
		Metadata: map[string]string{
			"workOrderId":     order.ID,
			"workOrderNumber": order.Number,
		},
	})
	if err != nil {
		return InvoiceIntent{}, fmt.Errorf("workorder: create payment intent: %w", err)
	}

	now := s.now()
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.workOrders.FindByID(txCtx, order.ID)
		if err != nil {
			return s.mapErr(err)
		}
		stored.BillingStatus = domain.BillingStatusInvoiced
		stored.UpdatedAt = now
		if err := s.workOrders.Update(txCtx, stored); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return InvoiceIntent{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       workOrderEventInvoiceRequested,
		Subject:    order.ID,
		OccurredAt: now,
		Data: map[string]any{
			"amount":   order.Totals.GrandTotal,
			"currency": order.Currency,
			"actor":    cmd.Actor,
		},
	})

	return InvoiceIntent{
		WorkOrderID:  order.ID,
		ProviderID:   intent.ProviderID,
		ClientSecret: intent.ClientSecret,
		Amount:       order.Totals.GrandTotal,
		Currency:     order.Currency,
		CreatedAt:    now,
	}, nil
}

// mergeWorkOrderPatch applies the typed patch field by field. An empty ticket
// id clears the reference; unknown billing statuses are rejected before any
// write happens.
func mergeWorkOrderPatch(order WorkOrder, patch WorkOrderPatch) (WorkOrder, error) {
	if patch.CustomerID != nil {
		customerID := strings.TrimSpace(*patch.CustomerID)
		if customerID == "" {
			return WorkOrder{}, fmt.Errorf("%w: customer id cannot be cleared", ErrWorkOrderInvalidInput)
		}
		order.CustomerID = customerID
	}
	if patch.TicketID != nil {
		order.TicketID = optionalString(strings.TrimSpace(*patch.TicketID))
	}
	if patch.Description != nil {
		order.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.BillingStatus != nil {
		target := *patch.BillingStatus
		switch target {
		case domain.BillingStatusDraft, domain.BillingStatusInvoiced, domain.BillingStatusPaid, domain.BillingStatusVoid:
		default:
			return WorkOrder{}, fmt.Errorf("%w: unknown billing status %q", ErrWorkOrderInvalidInput, target)
		}
		if !canBillingTransition(order.BillingStatus, target) {
			return WorkOrder{}, fmt.Errorf("%w: %s -> %s", ErrWorkOrderInvalidState, order.BillingStatus, target)
		}
		order.BillingStatus = target
	}
	return order, nil
}

// buildLines validates the requested line set and snapshots catalog prices.
// The returned lines carry the catalog item's current unit price and kind.
func (s *workOrderService) buildLines(ctx context.Context, orderID string, inputs []LineInput) ([]LineItem, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(inputs))
	itemIDs := make([]string, 0, len(inputs))
	var rateIDs []string
	for _, input := range inputs {
		itemID := strings.TrimSpace(input.CatalogItemID)
		if itemID == "" {
			return nil, fmt.Errorf("%w: line catalog item id is required", ErrWorkOrderInvalidInput)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %s quantity must be positive", ErrWorkOrderInvalidInput, itemID)
		}
		if input.DiscountAmount < 0 {
			return nil, fmt.Errorf("%w: line %s discount cannot be negative", ErrWorkOrderInvalidInput, itemID)
		}
		if _, dup := seen[itemID]; dup {
			return nil, fmt.Errorf("%w: duplicate line for catalog item %s", ErrWorkOrderInvalidInput, itemID)
		}
		seen[itemID] = struct{}{}
		itemIDs = append(itemIDs, itemID)
		if input.TaxRateID != nil && strings.TrimSpace(*input.TaxRateID) != "" {
			rateIDs = append(rateIDs, strings.TrimSpace(*input.TaxRateID))
		}
	}

	items, err := s.catalog.FindByIDs(ctx, itemIDs)
	if err != nil {
		return nil, s.mapErr(err)
	}
	itemsByID := make(map[string]CatalogItem, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	rates, err := s.taxRates.FindByIDs(ctx, rateIDs)
	if err != nil {
		return nil, s.mapErr(err)
	}
	ratesByID := make(map[string]TaxRate, len(rates))
	for _, rate := range rates {
		ratesByID[rate.ID] = rate
	}

	lines := make([]LineItem, 0, len(inputs))
	for i, input := range inputs {
		itemID := strings.TrimSpace(input.CatalogItemID)
		item, ok := itemsByID[itemID]
		if !ok {
			return nil, fmt.Errorf("%w: catalog item %s not found", ErrWorkOrderInvalidInput, itemID)
		}
		if !item.Active {
			return nil, fmt.Errorf("%w: catalog item %s is inactive", ErrWorkOrderInvalidInput, itemID)
		}

		var rateRef *string
		if input.TaxRateID != nil {
			rateID := strings.TrimSpace(*input.TaxRateID)
			if rateID != "" {
				if _, ok := ratesByID[rateID]; !ok {
					return nil, fmt.Errorf("%w: tax rate %s not found", ErrWorkOrderInvalidInput, rateID)
				}
				rateRef = valuePtr(rateID)
			}
		}

		lines = append(lines, LineItem{
			OrderID:        orderID,
			CatalogItemID:  item.ID,
			Kind:           item.Kind,
			Quantity:       input.Quantity,
			UnitAmount:     item.UnitPrice,
			DiscountAmount: input.DiscountAmount,
			TaxRateID:      rateRef,
			Position:       i,
		})
	}
	return lines, nil
}

func (s *workOrderService) loadRates(ctx context.Context, lines []LineItem) (map[string]TaxRate, error) {
	var rateIDs []string
	seen := make(map[string]struct{})
	for _, line := range lines {
		if line.TaxRateID == nil {
			continue
		}
		if _, ok := seen[*line.TaxRateID]; ok {
			continue
		}
		seen[*line.TaxRateID] = struct{}{}
		rateIDs = append(rateIDs, *line.TaxRateID)
	}
	if len(rateIDs) == 0 {
		return nil, nil
	}

	rates, err := s.taxRates.FindByIDs(ctx, rateIDs)
	if err != nil {
		return nil, s.mapErr(err)
	}
	byID := make(map[string]TaxRate, len(rates))
	for _, rate := range rates {
		byID[rate.ID] = rate
	}
	return byID, nil
}

func (s *workOrderService) ensureCustomer(ctx context.Context, customerID string) error {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		mapped := s.mapErr(err)
		if errors.Is(mapped, ErrWorkOrderNotFound) {
			return fmt.Errorf("%w: customer %s not found", ErrWorkOrderInvalidInput, customerID)
		}
		return mapped
	}
	return nil
}

func (s *workOrderService) bulkReason(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrWorkOrderNotFound):
		return errors.New(workOrderEntity + " not found")
	default:
		return err
	}
}

func (s *workOrderService) finishBulk(ctx context.Context, action, actor string, ids []string, result BulkResult) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, actor, action, "work_order", "", map[string]any{
			"requested": len(ids),
			"processed": result.Processed,
			"failed":    result.Failed(),
		}); err != nil {
			s.logger(ctx, "workorder.audit.failed", map[string]any{"action": action, "error": err.Error()})
		}
	}
	s.publishEvent(ctx, Event{
		Type:       workOrderEventBulkCompleted,
		Subject:    action,
		OccurredAt: s.now(),
		Data: map[string]any{
			"requested": len(ids),
			"processed": result.Processed,
			"failed":    result.Failed(),
			"actor":     actor,
		},
	})
}

func (s *workOrderService) mapErr(err error) error {
	return mapRepositoryError(err, ErrWorkOrderNotFound, ErrWorkOrderConflict, ErrWorkOrderUnavailable)
}

func (s *workOrderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *workOrderService) now() time.Time {
	return s.clock()
}

func (s *workOrderService) publishEvent(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "workorder.event.publish.failed", map[string]any{
			"type":    event.Type,
			"subject": event.Subject,
			"error":   err.Error(),
		})
	}
}

func cloneTrimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return optionalString(strings.TrimSpace(*value))
}
