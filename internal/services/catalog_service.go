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
	catalogItemIDPrefix = "itm_"
	taxRateIDPrefix     = "tax_"
	catalogItemEntity   = "catalog item"
	taxRateEntity       = "tax rate"

	// Above this the percentage is almost certainly a data entry slip.
	maxTaxRateBps = 10000
)

var (
	// ErrCatalogInvalidInput signals the caller provided invalid data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the requested record could not be located.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogConflict indicates the record is still referenced elsewhere.
	ErrCatalogConflict = errors.New("catalog: conflict")
	// ErrCatalogUnavailable indicates the backing store rejected the request transiently.
	ErrCatalogUnavailable = errors.New("catalog: storage unavailable")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Items       repositories.CatalogItemRepository
	TaxRates    repositories.TaxRateRepository
	Audit       AuditLogService
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	items    repositories.CatalogItemRepository
	taxRates repositories.TaxRateRepository
	audit    AuditLogService
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Items == nil {
		return nil, errors.New("catalog service: catalog item repository is required")
	}
	if deps.TaxRates == nil {
		return nil, errors.New("catalog service: tax rate repository is required")
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

	return &catalogService{
		items:    deps.Items,
		taxRates: deps.TaxRates,
		audit:    deps.Audit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *catalogService) CreateItem(ctx context.Context, input CatalogItemInput, actor string) (CatalogItem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return CatalogItem{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if input.Kind != domain.CatalogItemKindService && input.Kind != domain.CatalogItemKindPart {
		return CatalogItem{}, fmt.Errorf("%w: unknown kind %q", ErrCatalogInvalidInput, input.Kind)
	}
	if input.UnitPrice < 0 {
		return CatalogItem{}, fmt.Errorf("%w: unit price cannot be negative", ErrCatalogInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if len(currency) != 3 {
		return CatalogItem{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrCatalogInvalidInput)
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	now := s.now()
	item := CatalogItem{
		ID:        catalogItemIDPrefix + s.newID(),
		Name:      name,
		Kind:      input.Kind,
		UnitPrice: input.UnitPrice,
		Currency:  currency,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.items.Insert(ctx, item); err != nil {
		return CatalogItem{}, s.mapErr(err)
	}

	s.recordAudit(ctx, actor, "create", "catalog_item", item.ID, map[string]any{"name": item.Name})
	return s.GetItem(ctx, item.ID)
}

func (s *catalogService) GetItem(ctx context.Context, itemID string) (CatalogItem, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return CatalogItem{}, fmt.Errorf("%w: item id is required", ErrCatalogInvalidInput)
	}
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return CatalogItem{}, s.mapErr(err)
	}
	return item, nil
}

func (s *catalogService) ListItems(ctx context.Context, filter CatalogItemListFilter) (domain.CursorPage[CatalogItem], error) {
	page, err := s.items.List(ctx, repositories.CatalogItemListFilter{
		Kind:       filter.Kind,
		ActiveOnly: filter.ActiveOnly,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[CatalogItem]{}, s.mapErr(err)
	}
	return page, nil
}

func (s *catalogService) UpdateItem(ctx context.Context, itemID string, patch CatalogItemPatch, actor string) (CatalogItem, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return CatalogItem{}, fmt.Errorf("%w: item id is required", ErrCatalogInvalidInput)
	}

	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return CatalogItem{}, s.mapErr(err)
	}

	merged, err := mergeCatalogItemPatch(item, patch)
	if err != nil {
		return CatalogItem{}, err
	}
	merged.UpdatedAt = s.now()

	if err := s.items.Update(ctx, merged); err != nil {
		return CatalogItem{}, s.mapErr(err)
	}

	s.recordAudit(ctx, actor, "update", "catalog_item", id, nil)
	return s.GetItem(ctx, id)
}

func (s *catalogService) DeleteItem(ctx context.Context, itemID, actor string) error {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return fmt.Errorf("%w: item id is required", ErrCatalogInvalidInput)
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return s.mapErr(err)
	}
	s.recordAudit(ctx, actor, "delete", "catalog_item", id, nil)
	return nil
}

func (s *catalogService) BulkUpdateItems(ctx context.Context, ids []string, patch CatalogItemPatch, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, catalogItemEntity,
		s.items.FindByIDs,
		func(item CatalogItem) string { return item.ID },
		func(opCtx context.Context, record CatalogItem) error {
			_, err := s.UpdateItem(opCtx, record.ID, patch, actor)
			return s.bulkReason(err, catalogItemEntity)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.recordAudit(ctx, actor, "bulk_update", "catalog_item", "", bulkAuditFields(ids, result))
	return result, nil
}

func (s *catalogService) BulkDeleteItems(ctx context.Context, ids []string, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, catalogItemEntity,
		s.items.FindByIDs,
		func(item CatalogItem) string { return item.ID },
		func(opCtx context.Context, record CatalogItem) error {
			return s.bulkReason(s.DeleteItem(opCtx, record.ID, actor), catalogItemEntity)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.recordAudit(ctx, actor, "bulk_delete", "catalog_item", "", bulkAuditFields(ids, result))
	return result, nil
}

func (s *catalogService) CreateTaxRate(ctx context.Context, input TaxRateInput, actor string) (TaxRate, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TaxRate{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if input.RateBps < 0 || input.RateBps > maxTaxRateBps {
		return TaxRate{}, fmt.Errorf("%w: rate must be between 0 and %d basis points", ErrCatalogInvalidInput, maxTaxRateBps)
	}

	now := s.now()
	rate := TaxRate{
		ID:        taxRateIDPrefix + s.newID(),
		Name:      name,
		RateBps:   input.RateBps,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.taxRates.Insert(ctx, rate); err != nil {
		return TaxRate{}, s.mapErr(err)
	}

	s.recordAudit(ctx, actor, "create", "tax_rate", rate.ID, map[string]any{"rateBps": rate.RateBps})
	return s.GetTaxRate(ctx, rate.ID)
}

func (s *catalogService) GetTaxRate(ctx context.Context, rateID string) (TaxRate, error) {
	id := strings.TrimSpace(rateID)
	if id == "" {
		return TaxRate{}, fmt.Errorf("%w: tax rate id is required", ErrCatalogInvalidInput)
	}
	rate, err := s.taxRates.FindByID(ctx, id)
	if err != nil {
		return TaxRate{}, s.mapErr(err)
	}
	return rate, nil
}

func (s *catalogService) ListTaxRates(ctx context.Context, pager domain.Pagination) (domain.CursorPage[TaxRate], error) {
	page, err := s.taxRates.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[TaxRate]{}, s.mapErr(err)
	}
	return page, nil
}

func (s *catalogService) UpdateTaxRate(ctx context.Context, rateID string, patch TaxRatePatch, actor string) (TaxRate, error) {
	id := strings.TrimSpace(rateID)
	if id == "" {
		return TaxRate{}, fmt.Errorf("%w: tax rate id is required", ErrCatalogInvalidInput)
	}

	rate, err := s.taxRates.FindByID(ctx, id)
	if err != nil {
		return TaxRate{}, s.mapErr(err)
	}

	merged, err := mergeTaxRatePatch(rate, patch)
	if err != nil {
		return TaxRate{}, err
	}
	merged.UpdatedAt = s.now()

	if err := s.taxRates.Update(ctx, merged); err != nil {
		return TaxRate{}, s.mapErr(err)
	}

	s.recordAudit(ctx, actor, "update", "tax_rate", id, nil)
	return s.GetTaxRate(ctx, id)
}

func (s *catalogService) DeleteTaxRate(ctx context.Context, rateID, actor string) error {
	id := strings.TrimSpace(rateID)
	if id == "" {
		return fmt.Errorf("%w: tax rate id is required", ErrCatalogInvalidInput)
	}
	if err := s.taxRates.Delete(ctx, id); err != nil {
		return s.mapErr(err)
	}
	s.recordAudit(ctx, actor, "delete", "tax_rate", id, nil)
	return nil
}

func (s *catalogService) BulkUpdateTaxRates(ctx context.Context, ids []string, patch TaxRatePatch, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, taxRateEntity,
		s.taxRates.FindByIDs,
		func(rate TaxRate) string { return rate.ID },
		func(opCtx context.Context, record TaxRate) error {
			_, err := s.UpdateTaxRate(opCtx, record.ID, patch, actor)
			return s.bulkReason(err, taxRateEntity)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.recordAudit(ctx, actor, "bulk_update", "tax_rate", "", bulkAuditFields(ids, result))
	return result, nil
}

func (s *catalogService) BulkDeleteTaxRates(ctx context.Context, ids []string, actor string) (BulkResult, error) {
	result, err := BulkApply(ctx, ids, taxRateEntity,
		s.taxRates.FindByIDs,
		func(rate TaxRate) string { return rate.ID },
		func(opCtx context.Context, record TaxRate) error {
			return s.bulkReason(s.DeleteTaxRate(opCtx, record.ID, actor), taxRateEntity)
		},
	)
	if err != nil {
		return BulkResult{}, s.mapErr(err)
	}
	s.recordAudit(ctx, actor, "bulk_delete", "tax_rate", "", bulkAuditFields(ids, result))
	return result, nil
}

func mergeCatalogItemPatch(item CatalogItem, patch CatalogItemPatch) (CatalogItem, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return CatalogItem{}, fmt.Errorf("%w: name cannot be cleared", ErrCatalogInvalidInput)
		}
		item.Name = name
	}
	if patch.UnitPrice != nil {
		if *patch.UnitPrice < 0 {
			return CatalogItem{}, fmt.Errorf("%w: unit price cannot be negative", ErrCatalogInvalidInput)
		}
		item.UnitPrice = *patch.UnitPrice
	}
	if patch.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*patch.Currency))
		if len(currency) != 3 {
			return CatalogItem{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrCatalogInvalidInput)
		}
		item.Currency = currency
	}
	if patch.Active != nil {
		item.Active = *patch.Active
	}
	return item, nil
}

func mergeTaxRatePatch(rate TaxRate, patch TaxRatePatch) (TaxRate, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return TaxRate{}, fmt.Errorf("%w: name cannot be cleared", ErrCatalogInvalidInput)
		}
		rate.Name = name
	}
	if patch.RateBps != nil {
		if *patch.RateBps < 0 || *patch.RateBps > maxTaxRateBps {
			return TaxRate{}, fmt.Errorf("%w: rate must be between 0 and %d basis points", ErrCatalogInvalidInput, maxTaxRateBps)
		}
		rate.RateBps = *patch.RateBps
	}
	return rate, nil
}

func bulkAuditFields(ids []string, result BulkResult) map[string]any {
	return map[string]any{
		"requested": len(ids),
		"processed": result.Processed,
		"failed":    result.Failed(),
	}
}

func (s *catalogService) bulkReason(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCatalogNotFound):
		return errors.New(entity + " not found")
	case errors.Is(err, ErrCatalogConflict):
		return errors.New(entity + " is referenced by existing lines")
	default:
		return err
	}
}

func (s *catalogService) mapErr(err error) error {
	return mapRepositoryError(err, ErrCatalogNotFound, ErrCatalogConflict, ErrCatalogUnavailable)
}

func (s *catalogService) now() time.Time {
	return s.clock()
}

func (s *catalogService) recordAudit(ctx context.Context, actor, action, targetType, targetID string, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, actor, action, targetType, targetID, metadata); err != nil {
		s.logger(ctx, "catalog.audit.failed", map[string]any{
			"action": action,
			"target": targetID,
			"error":  err.Error(),
		})
	}
}
