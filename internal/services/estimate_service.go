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
	estimateEventCreated       = "estimate.created"
	estimateEventUpdated       = "estimate.updated"
	estimateEventDeleted       = "estimate.deleted"
	estimateEventApproved      = "estimate.approved"
	estimateEventRejected      = "estimate.rejected"
	estimateEventBulkCompleted = "estimate.bulk.completed"

	estimateIDPrefix = "est_"
	estimateEntity   = "estimate"
)

var (
	// ErrEstimateInvalidInput signals the caller provided invalid data.
	ErrEstimateInvalidInput = errors.New("estimate: invalid input")
	// ErrEstimateNotFound indicates the estimate could not be located.
	ErrEstimateNotFound = errors.New("estimate: not found")
	// ErrEstimateInvalidState indicates a decision on a non-pending or expired estimate.
	ErrEstimateInvalidState = errors.New("estimate: invalid state")
	// ErrEstimateConflict indicates duplicate numbers or conflicting writes.
	ErrEstimateConflict = errors.New("estimate: conflict")
	// ErrEstimateUnavailable indicates the backing store rejected the request transiently.
	ErrEstimateUnavailable = errors.New("estimate: storage unavailable")
)

// EstimateServiceDeps bundles collaborators required to construct the estimate service.
type EstimateServiceDeps struct {
	Estimates   repositories.EstimateRepository
	WorkOrders  repositories.WorkOrderRepository
	LineItems   repositories.LineItemRepository
	CatalogItem repositories.CatalogItemRepository
	TaxRates    repositories.TaxRateRepository
	Customers   repositories.CustomerRepository
	Numbers     CounterService
	UnitOfWork  repositories.UnitOfWork
	Events      EventPublisher
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type estimateService struct {
	estimates  repositories.EstimateRepository
	workOrders repositories.WorkOrderRepository
	lineItems  repositories.LineItemRepository
	catalog    repositories.CatalogItemRepository
	taxRates   repositories.TaxRateRepository
	customers  repositories.CustomerRepository
	numbers    CounterService
	unitOfWork repositories.UnitOfWork
	events     EventPublisher
	audit      AuditLogService
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewEstimateService wires dependencies into a concrete EstimateService implementation.
func NewEstimateService(deps EstimateServiceDeps) (EstimateService, error) {
	if deps.Estimates == nil {
		return nil, errors.New("estimate service: estimate repository is required")
	}
	if deps.WorkOrders == nil {
		return nil, errors.New("estimate service: work order repository is required")
	}
	if deps.LineItems == nil {
		return nil, errors.New("estimate service: line item repository is required")
	}
	if deps.CatalogItem == nil {
		return nil, errors.New("estimate service: catalog item repository is required")
	}
	if deps.TaxRates == nil {
		return nil, errors.New("estimate service: tax rate repository is required")
	}
	if deps.Customers == nil {
		return nil, errors.New("estimate service: customer repository is required")
	}
	if deps.Numbers == nil {
		return nil, errors.New("estimate service: counter service is required")
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

	return &estimateService{
		estimates:  deps.Estimates,
		workOrders: deps.WorkOrders,
		lineItems:  deps.LineItems,
		catalog:    deps.CatalogItem,
		taxRates:   deps.TaxRates,
		customers:  deps.Customers,
		numbers:    deps.Numbers,
		unitOfWork: unit,
		events:     deps.Events,
		audit:      deps.Audit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *estimateService) Create(ctx context.Context, cmd CreateEstimateCommand) (Estimate, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Estimate{}, fmt.Errorf("%w: customer id is required", ErrEstimateInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if len(currency) != 3 {
		return Estimate{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrEstimateInvalidInput)
	}
	if err := s.ensureCustomer(ctx, customerID); err != nil {
		return Estimate{}, err
	}

	now := s.now()
	if cmd.ExpiresAt != nil && cmd.ExpiresAt.Before(now) {
		return Estimate{}, fmt.Errorf("%w: expiry must be in the future", ErrEstimateInvalidInput)
	}

	estimate := Estimate{
		ID:          estimateIDPrefix + s.newID(),
		CustomerID:  customerID,
		TicketID:    cloneTrimmedPtr(cmd.TicketID),
		Currency:    currency,
		Status:      domain.EstimateStatusPending,
		Description: strings.TrimSpace(cmd.Description),
		ExpiresAt:   cmd.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		number, err := s.numbers.NextNumber(txCtx, "estimate")
		if err != nil {
			return err
		}
		estimate.Number = number

		lines, err := s.buildLines(txCtx, estimate.ID, cmd.Lines)
		if err != nil {
			return err
		}
		if err := s.estimates.Insert(txCtx, estimate); err != nil {
			return s.mapErr(err)
		}
		if err := s.lineItems.InsertForOrder(txCtx, estimate.ID, lines); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return Estimate{}, err
	}

	created, err := s.Get(ctx, estimate.ID)
	if err != nil {
		return Estimate{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       estimateEventCreated,
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

func (s *estimateService) Get(ctx context.Context, estimateID string) (Estimate, error) {
	id := strings.TrimSpace(estimateID)
	if id == "" {
		return Estimate{}, fmt.Errorf("%w: estimate id is required", ErrEstimateInvalidInput)
	}

	estimate, err := s.estimates.FindByID(ctx, id)
	if err != nil {
		return Estimate{}, s.mapErr(err)
	}
	lines, err := s.lineItems.ListByOrder(ctx, id)
	if err != nil {
		return Estimate{}, s.mapErr(err)
	}
	rates, err := s.loadRates(ctx, lines)
	if err != nil {
		return Estimate{}, err
	}

	estimate.Lines = lines
	estimate.Totals = ComputeOrderTotals(lines, rates)
	return estimate, nil
}

func (s *estimateService) List(ctx context.Context, filter EstimateListFilter) (domain.CursorPage[Estimate], error) {
	page, err := s.estimates.List(ctx, repositories.EstimateListFilter{
		CustomerID: strings.TrimSpace(filter.CustomerID),
		Status:     filter.Status,
		CreatedAt:  domain.RangeQuery[time.Time]{From: filter.CreatedFrom, To: filter.CreatedTo},
		Pagination: filter.Pagination,
		Order:      filter.Order,
	})
	if err != nil {
		return domain.CursorPage[Estimate]{}, s.mapErr(err)
	}
	if len(page.Items) == 0 {
		return page, nil
	}

	ids := make([]string, 0, len(page.Items))
	for _, estimate := range page.Items {
		ids = append(ids, estimate.ID)
	}
	grouped, err := s.lineItems.ListByOrders(ctx, ids)
	if err != nil {
		return domain.CursorPage[Estimate]{}, s.mapErr(err)
	}

	var allLines []LineItem
	for _, lines := range grouped {
		allLines = append(allLines, lines...)
	}
	rates, err := s.loadRates(ctx, allLines)
	if err != nil {
		return domain.CursorPage[Estimate]{}, err
	}

	for i := range page.Items {
		lines := grouped[page.Items[i].ID]
		page.Items[i].Lines = lines
		page.Items[i].Totals = ComputeOrderTotals(lines, rates)
	}
	return page, nil
}

func (s *estimateService) Update(ctx context.Context, cmd UpdateEstimateCommand) (Estimate, error) {
	id := strings.TrimSpace(cmd.EstimateID)
	if id == "" {
		return Estimate{}, fmt.Errorf("%w: estimate id is required", ErrEstimateInvalidInput)
	}

	now := s.now()
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		estimate, err := s.estimates.FindByID(txCtx, id)
		if err != nil {
			return s.mapErr(err)
		}

		merged, err := mergeEstimatePatch(estimate, cmd.Patch, now)
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
			if estimate.Status != domain.EstimateStatusPending {
				return fmt.Errorf("%w: lines can only change while pending", ErrEstimateInvalidState)
			}
			lines, err := s.buildLines(txCtx, id, *cmd.Patch.Lines)
			if err != nil {
				return err
			}
			if err := s.lineItems.ReplaceForOrder(txCtx, id, lines); err != nil {
				return s.mapErr(err)
			}
		}
		if err := s.estimates.Update(txCtx, merged); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return Estimate{}, err
	}

	updated, err := s.Get(ctx, id)
	if err != nil {
		return Estimate{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       estimateEventUpdated,
		Subject:    updated.ID,
		OccurredAt: now,
		Data: map[string]any{
			"status": string(updated.Status),
			"actor":  cmd.Actor,
		},
	})
	return updated, nil
}

func (s *estimateService) Delete(ctx context.Context, estimateID string, actor string) error {
	id := strings.TrimSpace(estimateID)
	if id == "" {
		return fmt.Errorf("%w: estimate id is required", ErrEstimateInvalidInput)
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.lineItems.ReplaceForOrder(txCtx, id, nil); err != nil {
			return s.mapErr(err)
		}
		if err := s.estimates.Delete(txCtx, id); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, Event{
		Type:       estimateEventDeleted,
		Subject:    id,
		OccurredAt: s.now(),
		Data:       map[string]any{"actor": actor},
	})
	return nil
}

// Approve turns a pending estimate into a draft work order carrying the
// estimate's line set. The estimate keeps a reference to the created order.
func (s *estimateService) Approve(ctx context.Context, estimateID string, actor string) (Estimate, error) {
	id := strings.TrimSpace(estimateID)
	if id == "" {
		return Estimate{}, fmt.Errorf("%w: estimate id is required", ErrEstimateInvalidInput)
	}

	now := s.now()
	var workOrderID string
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		estimate, err := s.estimates.FindByID(txCtx, id)
		if err != nil {
			return s.mapErr(err)
		}
		if err := s.ensureDecidable(estimate, now); err != nil {
			return err
		}

		lines, err := s.lineItems.ListByOrder(txCtx, id)
		if err != nil {
			return s.mapErr(err)
		}

		number, err := s.numbers.NextNumber(txCtx, "work_order")
		if err != nil {
			return err
		}

		workOrderID = workOrderIDPrefix + s.newID()
		order := WorkOrder{
			ID:            workOrderID,
			Number:        number,
			CustomerID:    estimate.CustomerID,
			TicketID:      estimate.TicketID,
			SourceRef:     valuePtr(estimate.ID),
			Currency:      estimate.Currency,
			BillingStatus: domain.BillingStatusDraft,
			Description:   estimate.Description,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.workOrders.Insert(txCtx, order); err != nil {
			return s.mapErr(err)
		}

		orderLines := make([]LineItem, len(lines))
		for i, line := range lines {
			line.OrderID = workOrderID
			orderLines[i] = line
		}
		if err := s.lineItems.InsertForOrder(txCtx, workOrderID, orderLines); err != nil {
			return s.mapErr(err)
		}

		estimate.Status = domain.EstimateStatusApproved
		estimate.WorkOrderID = valuePtr(workOrderID)
		estimate.UpdatedAt = now
		if err := s.estimates.Update(txCtx, estimate); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return Estimate{}, err
	}

	approved, err := s.Get(ctx, id)
	if err != nil {
		return Estimate{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       estimateEventApproved,
		Subject:    approved.ID,
		OccurredAt: now,
		Data: map[string]any{
			"workOrderId": workOrderID,
			"actor":       actor,
		},
	})
	return approved, nil
}

func (s *estimateService) Reject(ctx context.Context, estimateID string, actor string) (Estimate, error) {
	id := strings.TrimSpace(estimateID)
	if id == "" {
		return Estimate{}, fmt.Errorf("%w: estimate id is required", ErrEstimateInvalidInput)
	}

	now := s.now()
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		estimate, err := s.estimates.FindByID(txCtx, id)
		if err != nil {
			return s.mapErr(err)
		}
		if err := s.ensureDecidable(estimate, now); err != nil {
			return err
		}

		estimate.Status = domain.EstimateStatusRejected
		estimate.UpdatedAt = now
		if err := s.estimates.Update(txCtx, estimate); err != nil {
			return s.mapErr(err)
		}
		return nil
	})
	if err != nil {
		return Estimate{}, err
	}

	rejected, err := s.Get(ctx, id)
	if err != nil {
		return Estimate{}, err
	}

	s.publishEvent(ctx, Event{
		Type:       estimateEventRejected,
		Subject:    rejected.ID,
		OccurredAt: now,
		Data:       map[string]any{"actor": actor},
	})
	return rejected, nil
}

func (s *estimateService) BulkUpdate(ctx context.Context, ids []string, patch EstimatePatch, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, estimateEntity,
		s.estimates.FindByIDs,
		func(estimate Estimate) string { return estimate.ID },
		func(opCtx context.Context, record Estimate) error {
			_, err := s.Update(opCtx, UpdateEstimateCommand{EstimateID: record.ID, Patch: patch, Actor: actor})
			return s.bulkReason(err)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.finishBulk(ctx, "bulk_update", actor, ids, result)
	return result, nil
}

func (s *estimateService) BulkDelete(ctx context.Context, ids []string, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, estimateEntity,
		s.estimates.FindByIDs,
		func(estimate Estimate) string { return estimate.ID },
		func(opCtx context.Context, record Estimate) error {
			return s.bulkReason(s.Delete(opCtx, record.ID, actor))
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.finishBulk(ctx, "bulk_delete", actor, ids, result)
	return result, nil
}

// mergeEstimatePatch applies the typed patch field by field. Status moves are
// restricted to pending -> approved/rejected/expired.
func mergeEstimatePatch(estimate Estimate, patch EstimatePatch, now time.Time) (Estimate, error) {
	if patch.CustomerID != nil {
		customerID := strings.TrimSpace(*patch.CustomerID)
		if customerID == "" {
			return Estimate{}, fmt.Errorf("%w: customer id cannot be cleared", ErrEstimateInvalidInput)
		}
		estimate.CustomerID = customerID
	}
	if patch.TicketID != nil {
		estimate.TicketID = optionalString(strings.TrimSpace(*patch.TicketID))
	}
	if patch.Description != nil {
		estimate.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.ExpiresAt != nil {
		if patch.ExpiresAt.Before(now) {
			return Estimate{}, fmt.Errorf("%w: expiry must be in the future", ErrEstimateInvalidInput)
		}
		estimate.ExpiresAt = patch.ExpiresAt
	}
	if patch.Status != nil {
		target := *patch.Status
		switch target {
		case domain.EstimateStatusApproved, domain.EstimateStatusRejected, domain.EstimateStatusExpired:
		case domain.EstimateStatusPending:
			if estimate.Status != domain.EstimateStatusPending {
				return Estimate{}, fmt.Errorf("%w: cannot reopen a decided estimate", ErrEstimateInvalidState)
			}
		default:
			return Estimate{}, fmt.Errorf("%w: unknown status %q", ErrEstimateInvalidInput, target)
		}
		if estimate.Status != domain.EstimateStatusPending && estimate.Status != target {
			return Estimate{}, fmt.Errorf("%w: %s -> %s", ErrEstimateInvalidState, estimate.Status, target)
		}
		estimate.Status = target
	}
	return estimate, nil
}

func (s *estimateService) ensureDecidable(estimate Estimate, now time.Time) error {
	if estimate.Status != domain.EstimateStatusPending {
		return fmt.Errorf("%w: estimate is %s", ErrEstimateInvalidState, estimate.Status)
	}
	if estimate.ExpiresAt != nil && estimate.ExpiresAt.Before(now) {
		return fmt.Errorf("%w: estimate expired at %s", ErrEstimateInvalidState, estimate.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// buildLines mirrors the work order line snapshot rules for estimates.
func (s *estimateService) buildLines(ctx context.Context, estimateID string, inputs []LineInput) ([]LineItem, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(inputs))
	itemIDs := make([]string, 0, len(inputs))
	var rateIDs []string
	for _, input := range inputs {
		itemID := strings.TrimSpace(input.CatalogItemID)
		if itemID == "" {
			return nil, fmt.Errorf("%w: line catalog item id is required", ErrEstimateInvalidInput)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %s quantity must be positive", ErrEstimateInvalidInput, itemID)
		}
		if input.DiscountAmount < 0 {
			return nil, fmt.Errorf("%w: line %s discount cannot be negative", ErrEstimateInvalidInput, itemID)
		}
		if _, dup := seen[itemID]; dup {
			return nil, fmt.Errorf("%w: duplicate line for catalog item %s", ErrEstimateInvalidInput, itemID)
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
			return nil, fmt.Errorf("%w: catalog item %s not found", ErrEstimateInvalidInput, itemID)
		}
		if !item.Active {
			return nil, fmt.Errorf("%w: catalog item %s is inactive", ErrEstimateInvalidInput, itemID)
		}

		var rateRef *string
		if input.TaxRateID != nil {
			rateID := strings.TrimSpace(*input.TaxRateID)
			if rateID != "" {
				if _, ok := ratesByID[rateID]; !ok {
					return nil, fmt.Errorf("%w: tax rate %s not found", ErrEstimateInvalidInput, rateID)
				}
				rateRef = valuePtr(rateID)
			}
		}

		lines = append(lines, LineItem{
			OrderID:        estimateID,
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

func (s *estimateService) loadRates(ctx context.Context, lines []LineItem) (map[string]TaxRate, error) {
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

func (s *estimateService) ensureCustomer(ctx context.Context, customerID string) error {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		mapped := s.mapErr(err)
		if errors.Is(mapped, ErrEstimateNotFound) {
			return fmt.Errorf("%w: customer %s not found", ErrEstimateInvalidInput, customerID)
		}
		return mapped
	}
	return nil
}

func (s *estimateService) bulkReason(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEstimateNotFound):
		return errors.New(estimateEntity + " not found")
	default:
		return err
	}
}

func (s *estimateService) finishBulk(ctx context.Context, action, actor string, ids []string, result BulkResult) {
	if s.audit != nil {
		if err := s.audit.Record(ctx, actor, action, "estimate", "", map[string]any{
			"requested": len(ids),
			"processed": result.Processed,
			"failed":    result.Failed(),
		}); err != nil {
			s.logger(ctx, "estimate.audit.failed", map[string]any{"action": action, "error": err.Error()})
		}
	}
	s.publishEvent(ctx, Event{
		Type:       estimateEventBulkCompleted,
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

func (s *estimateService) mapErr(err error) error {
	return mapRepositoryError(err, ErrEstimateNotFound, ErrEstimateConflict, ErrEstimateUnavailable)
}

func (s *estimateService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *estimateService) now() time.Time {
	return s.clock()
}

func (s *estimateService) publishEvent(ctx context.Context, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "estimate.event.publish.failed", map[string]any{
			"type":    event.Type,
			"subject": event.Subject,
			"error":   err.Error(),
		})
	}
}
