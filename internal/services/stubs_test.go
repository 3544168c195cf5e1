package services

import (
	"context"
	"errors"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/repositories"
)

type stubRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string       { return "stub repository error" }
func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

type stubWorkOrderRepo struct {
	insertFn    func(context.Context, domain.WorkOrder) error
	updateFn    func(context.Context, domain.WorkOrder) error
	deleteFn    func(context.Context, string) error
	findFn      func(context.Context, string) (domain.WorkOrder, error)
	findByIDsFn func(context.Context, []string) ([]domain.WorkOrder, error)
	listFn      func(context.Context, repositories.WorkOrderListFilter) (domain.CursorPage[domain.WorkOrder], error)
}

func (s *stubWorkOrderRepo) Insert(ctx context.Context, order domain.WorkOrder) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubWorkOrderRepo) Update(ctx context.Context, order domain.WorkOrder) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubWorkOrderRepo) Delete(ctx context.Context, orderID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return nil
}

func (s *stubWorkOrderRepo) FindByID(ctx context.Context, orderID string) (domain.WorkOrder, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.WorkOrder{}, errors.New("not implemented")
}

func (s *stubWorkOrderRepo) FindByIDs(ctx context.Context, orderIDs []string) ([]domain.WorkOrder, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, orderIDs)
	}
	return nil, nil
}

func (s *stubWorkOrderRepo) List(ctx context.Context, filter repositories.WorkOrderListFilter) (domain.CursorPage[domain.WorkOrder], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.WorkOrder]{}, nil
}

type stubEstimateRepo struct {
	insertFn    func(context.Context, domain.Estimate) error
	updateFn    func(context.Context, domain.Estimate) error
	deleteFn    func(context.Context, string) error
	findFn      func(context.Context, string) (domain.Estimate, error)
	findByIDsFn func(context.Context, []string) ([]domain.Estimate, error)
	listFn      func(context.Context, repositories.EstimateListFilter) (domain.CursorPage[domain.Estimate], error)
}

func (s *stubEstimateRepo) Insert(ctx context.Context, estimate domain.Estimate) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, estimate)
	}
	return nil
}

func (s *stubEstimateRepo) Update(ctx context.Context, estimate domain.Estimate) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, estimate)
	}
	return nil
}

func (s *stubEstimateRepo) Delete(ctx context.Context, estimateID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, estimateID)
	}
	return nil
}

func (s *stubEstimateRepo) FindByID(ctx context.Context, estimateID string) (domain.Estimate, error) {
	if s.findFn != nil {
		return s.findFn(ctx, estimateID)
	}
	return domain.Estimate{}, errors.New("not implemented")
}

func (s *stubEstimateRepo) FindByIDs(ctx context.Context, estimateIDs []string) ([]domain.Estimate, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, estimateIDs)
	}
	return nil, nil
}

func (s *stubEstimateRepo) List(ctx context.Context, filter repositories.EstimateListFilter) (domain.CursorPage[domain.Estimate], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Estimate]{}, nil
}

type stubLineItemRepo struct {
	insertFn       func(context.Context, string, []domain.LineItem) error
	replaceFn      func(context.Context, string, []domain.LineItem) error
	listByOrderFn  func(context.Context, string) ([]domain.LineItem, error)
	listByOrdersFn func(context.Context, []string) (map[string][]domain.LineItem, error)
}

func (s *stubLineItemRepo) InsertForOrder(ctx context.Context, orderID string, lines []domain.LineItem) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, orderID, lines)
	}
	return nil
}

func (s *stubLineItemRepo) ReplaceForOrder(ctx context.Context, orderID string, lines []domain.LineItem) error {
	if s.replaceFn != nil {
		return s.replaceFn(ctx, orderID, lines)
	}
	return nil
}

func (s *stubLineItemRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	if s.listByOrderFn != nil {
		return s.listByOrderFn(ctx, orderID)
	}
	return nil, nil
}

func (s *stubLineItemRepo) ListByOrders(ctx context.Context, orderIDs []string) (map[string][]domain.LineItem, error) {
	if s.listByOrdersFn != nil {
		return s.listByOrdersFn(ctx, orderIDs)
	}
	return nil, nil
}

type stubTicketRepo struct {
	insertFn    func(context.Context, domain.Ticket) error
	updateFn    func(context.Context, domain.Ticket) error
	deleteFn    func(context.Context, string) error
	findFn      func(context.Context, string) (domain.Ticket, error)
	findByIDsFn func(context.Context, []string) ([]domain.Ticket, error)
	listFn      func(context.Context, repositories.TicketListFilter) (domain.CursorPage[domain.Ticket], error)
}

func (s *stubTicketRepo) Insert(ctx context.Context, ticket domain.Ticket) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, ticket)
	}
	return nil
}

func (s *stubTicketRepo) Update(ctx context.Context, ticket domain.Ticket) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, ticket)
	}
	return nil
}

func (s *stubTicketRepo) Delete(ctx context.Context, ticketID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, ticketID)
	}
	return nil
}

func (s *stubTicketRepo) FindByID(ctx context.Context, ticketID string) (domain.Ticket, error) {
	if s.findFn != nil {
		return s.findFn(ctx, ticketID)
	}
	return domain.Ticket{}, errors.New("not implemented")
}

func (s *stubTicketRepo) FindByIDs(ctx context.Context, ticketIDs []string) ([]domain.Ticket, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, ticketIDs)
	}
	return nil, nil
}

func (s *stubTicketRepo) List(ctx context.Context, filter repositories.TicketListFilter) (domain.CursorPage[domain.Ticket], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Ticket]{}, nil
}

type stubCustomerRepo struct {
	insertFn    func(context.Context, domain.Customer) error
	updateFn    func(context.Context, domain.Customer) error
	deleteFn    func(context.Context, string) error
	findFn      func(context.Context, string) (domain.Customer, error)
	findByIDsFn func(context.Context, []string) ([]domain.Customer, error)
	listFn      func(context.Context, repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

func (s *stubCustomerRepo) Insert(ctx context.Context, customer domain.Customer) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepo) Update(ctx context.Context, customer domain.Customer) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepo) Delete(ctx context.Context, customerID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, customerID)
	}
	return nil
}

func (s *stubCustomerRepo) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	if s.findFn != nil {
		return s.findFn(ctx, customerID)
	}
	return domain.Customer{ID: customerID}, nil
}

func (s *stubCustomerRepo) FindByIDs(ctx context.Context, customerIDs []string) ([]domain.Customer, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, customerIDs)
	}
	return nil, nil
}

func (s *stubCustomerRepo) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Customer]{}, nil
}

type stubCatalogItemRepo struct {
	insertFn    func(context.Context, domain.CatalogItem) error
	updateFn    func(context.Context, domain.CatalogItem) error
	deleteFn    func(context.Context, string) error
	findFn      func(context.Context, string) (domain.CatalogItem, error)
	findByIDsFn func(context.Context, []string) ([]domain.CatalogItem, error)
	listFn      func(context.Context, repositories.CatalogItemListFilter) (domain.CursorPage[domain.CatalogItem], error)
}

func (s *stubCatalogItemRepo) Insert(ctx context.Context, item domain.CatalogItem) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, item)
	}
	return nil
}

func (s *stubCatalogItemRepo) Update(ctx context.Context, item domain.CatalogItem) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, item)
	}
	return nil
}

func (s *stubCatalogItemRepo) Delete(ctx context.Context, itemID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, itemID)
	}
	return nil
}

func (s *stubCatalogItemRepo) FindByID(ctx context.Context, itemID string) (domain.CatalogItem, error) {
	if s.findFn != nil {
		return s.findFn(ctx, itemID)
	}
	return domain.CatalogItem{}, errors.New("not implemented")
}

func (s *stubCatalogItemRepo) FindByIDs(ctx context.Context, itemIDs []string) ([]domain.CatalogItem, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, itemIDs)
	}
	return nil, nil
}

func (s *stubCatalogItemRepo) List(ctx context.Context, filter repositories.CatalogItemListFilter) (domain.CursorPage[domain.CatalogItem], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.CatalogItem]{}, nil
}

type stubTaxRateRepo struct {
	insertFn    func(context.Context, domain.TaxRate) error
	updateFn    func(context.Context, domain.TaxRate) error
	deleteFn    func(context.Context, string) error
	findFn      func(context.Context, string) (domain.TaxRate, error)
	findByIDsFn func(context.Context, []string) ([]domain.TaxRate, error)
	listFn      func(context.Context, domain.Pagination) (domain.CursorPage[domain.TaxRate], error)
}

func (s *stubTaxRateRepo) Insert(ctx context.Context, rate domain.TaxRate) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, rate)
	}
	return nil
}

func (s *stubTaxRateRepo) Update(ctx context.Context, rate domain.TaxRate) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, rate)
	}
	return nil
}

func (s *stubTaxRateRepo) Delete(ctx context.Context, rateID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, rateID)
	}
	return nil
}

func (s *stubTaxRateRepo) FindByID(ctx context.Context, rateID string) (domain.TaxRate, error) {
	if s.findFn != nil {
		return s.findFn(ctx, rateID)
	}
	return domain.TaxRate{}, errors.New("not implemented")
}

func (s *stubTaxRateRepo) FindByIDs(ctx context.Context, rateIDs []string) ([]domain.TaxRate, error) {
	if s.findByIDsFn != nil {
		return s.findByIDsFn(ctx, rateIDs)
	}
	return nil, nil
}

func (s *stubTaxRateRepo) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.TaxRate], error) {
	if s.listFn != nil {
		return s.listFn(ctx, pager)
	}
	return domain.CursorPage[domain.TaxRate]{}, nil
}

type stubAuditLogRepo struct {
	appendFn func(context.Context, domain.AuditLogEntry) error
	listFn   func(context.Context, string, string, domain.Pagination) (domain.CursorPage[domain.AuditLogEntry], error)
}

func (s *stubAuditLogRepo) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	if s.appendFn != nil {
		return s.appendFn(ctx, entry)
	}
	return nil
}

func (s *stubAuditLogRepo) ListByTarget(ctx context.Context, targetType, targetID string, pager domain.Pagination) (domain.CursorPage[domain.AuditLogEntry], error) {
	if s.listFn != nil {
		return s.listFn(ctx, targetType, targetID, pager)
	}
	return domain.CursorPage[domain.AuditLogEntry]{}, nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, key string) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, key)
	}
	return 1, nil
}

type stubCounterService struct {
	nextFn func(context.Context, string) (string, error)
}

func (s *stubCounterService) NextNumber(ctx context.Context, kind string) (string, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, kind)
	}
	return "WO-2026-000001", nil
}

type stubEventPublisher struct {
	publishFn func(context.Context, Event) error
	events    []Event
}

func (s *stubEventPublisher) Publish(ctx context.Context, event Event) error {
	s.events = append(s.events, event)
	if s.publishFn != nil {
		return s.publishFn(ctx, event)
	}
	return nil
}

type stubPaymentProvider struct {
	createFn func(context.Context, PaymentIntentRequest) (PaymentIntentResult, error)
}

func (s *stubPaymentProvider) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (PaymentIntentResult, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return PaymentIntentResult{ProviderID: "pi_test", ClientSecret: "secret_test"}, nil
}

type stubAuditService struct {
	recordFn func(context.Context, string, string, string, string, map[string]any) error
}

func (s *stubAuditService) Record(ctx context.Context, actor, action, targetType, targetID string, metadata map[string]any) error {
	if s.recordFn != nil {
		return s.recordFn(ctx, actor, action, targetType, targetID, metadata)
	}
	return nil
}

func (s *stubAuditService) ListByTarget(ctx context.Context, targetType, targetID string, pager Pagination) (domain.CursorPage[AuditLogEntry], error) {
	return domain.CursorPage[AuditLogEntry]{}, nil
}
