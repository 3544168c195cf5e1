package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/services"
)

type stubCatalogService struct {
	createItemFn      func(ctx context.Context, input services.CatalogItemInput, actor string) (services.CatalogItem, error)
	getItemFn         func(ctx context.Context, itemID string) (services.CatalogItem, error)
	listItemsFn       func(ctx context.Context, filter services.CatalogItemListFilter) (domain.CursorPage[services.CatalogItem], error)
	updateItemFn      func(ctx context.Context, itemID string, patch services.CatalogItemPatch, actor string) (services.CatalogItem, error)
	deleteItemFn      func(ctx context.Context, itemID, actor string) error
	bulkUpdateItemsFn func(ctx context.Context, ids []string, patch services.CatalogItemPatch, actor string) (services.BulkResult, error)
	bulkDeleteItemsFn func(ctx context.Context, ids []string, actor string) (services.BulkResult, error)

	createTaxRateFn   func(ctx context.Context, input services.TaxRateInput, actor string) (services.TaxRate, error)
	getTaxRateFn      func(ctx context.Context, rateID string) (services.TaxRate, error)
	listTaxRatesFn    func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.TaxRate], error)
	updateTaxRateFn   func(ctx context.Context, rateID string, patch services.TaxRatePatch, actor string) (services.TaxRate, error)
	deleteTaxRateFn   func(ctx context.Context, rateID, actor string) error
	bulkUpdateRatesFn func(ctx context.Context, ids []string, patch services.TaxRatePatch, actor string) (services.BulkResult, error)
	bulkDeleteRatesFn func(ctx context.Context, ids []string, actor string) (services.BulkResult, error)
}

func (s *stubCatalogService) CreateItem(ctx context.Context, input services.CatalogItemInput, actor string) (services.CatalogItem, error) {
	return s.createItemFn(ctx, input, actor)
}

func (s *stubCatalogService) GetItem(ctx context.Context, itemID string) (services.CatalogItem, error) {
	return s.getItemFn(ctx, itemID)
}

func (s *stubCatalogService) ListItems(ctx context.Context, filter services.CatalogItemListFilter) (domain.CursorPage[services.CatalogItem], error) {
	return s.listItemsFn(ctx, filter)
}

func (s *stubCatalogService) UpdateItem(ctx context.Context, itemID string, patch services.CatalogItemPatch, actor string) (services.CatalogItem, error) {
	return s.updateItemFn(ctx, itemID, patch, actor)
}

func (s *stubCatalogService) DeleteItem(ctx context.Context, itemID, actor string) error {
	return s.deleteItemFn(ctx, itemID, actor)
}

func (s *stubCatalogService) BulkUpdateItems(ctx context.Context, ids []string, patch services.CatalogItemPatch, actor string) (services.BulkResult, error) {
	return s.bulkUpdateItemsFn(ctx, ids, patch, actor)
}

func (s *stubCatalogService) BulkDeleteItems(ctx context.Context, ids []string, actor string) (services.BulkResult, error) {
	return s.bulkDeleteItemsFn(ctx, ids, actor)
}

func (s *stubCatalogService) CreateTaxRate(ctx context.Context, input services.TaxRateInput, actor string) (services.TaxRate, error) {
	return s.createTaxRateFn(ctx, input, actor)
}

func (s *stubCatalogService) GetTaxRate(ctx context.Context, rateID string) (services.TaxRate, error) {
	return s.getTaxRateFn(ctx, rateID)
}

func (s *stubCatalogService) ListTaxRates(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.TaxRate], error) {
	return s.listTaxRatesFn(ctx, pager)
}

func (s *stubCatalogService) UpdateTaxRate(ctx context.Context, rateID string, patch services.TaxRatePatch, actor string) (services.TaxRate, error) {
	return s.updateTaxRateFn(ctx, rateID, patch, actor)
}

func (s *stubCatalogService) DeleteTaxRate(ctx context.Context, rateID, actor string) error {
	return s.deleteTaxRateFn(ctx, rateID, actor)
}

func (s *stubCatalogService) BulkUpdateTaxRates(ctx context.Context, ids []string, patch services.TaxRatePatch, actor string) (services.BulkResult, error) {
	return s.bulkUpdateRatesFn(ctx, ids, patch, actor)
}

func (s *stubCatalogService) BulkDeleteTaxRates(ctx context.Context, ids []string, actor string) (services.BulkResult, error) {
	return s.bulkDeleteRatesFn(ctx, ids, actor)
}

var _ services.CatalogService = (*stubCatalogService)(nil)

func newCatalogRouter(svc services.CatalogService) http.Handler {
	return NewRouter(WithAdminRoutes(NewAdminCatalogHandlers(nil, svc).Routes))
}

func TestAdminCatalogHandlersCreateItem(t *testing.T) {
	created := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	var captured services.CatalogItemInput
	svc := &stubCatalogService{
		createItemFn: func(_ context.Context, input services.CatalogItemInput, actor string) (services.CatalogItem, error) {
			captured = input
			if actor != "usr_admin" {
				t.Fatalf("expected admin actor, got %q", actor)
			}
			return services.CatalogItem{
				ID:        "itm_01ABC",
				Name:      input.Name,
				Kind:      input.Kind,
				UnitPrice: input.UnitPrice,
				Currency:  "USD",
				Active:    true,
				CreatedAt: created,
				UpdatedAt: created,
			}, nil
		},
	}
	router := newCatalogRouter(svc)

	body := `{"name":"Bench diagnosis","kind":"SERVICE","unitPrice":4500,"currency":"usd"}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/admin/catalog/items", body, "usr_admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body %s", rr.Code, rr.Body.String())
	}
	if captured.Kind != domain.CatalogItemKindService {
		t.Fatalf("expected lowercased kind, got %q", captured.Kind)
	}

	var payload catalogItemPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.ID != "itm_01ABC" || payload.UnitPrice != 4500 {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestAdminCatalogHandlersListItemsActiveOnly(t *testing.T) {
	var captured services.CatalogItemListFilter
	svc := &stubCatalogService{
		listItemsFn: func(_ context.Context, filter services.CatalogItemListFilter) (domain.CursorPage[services.CatalogItem], error) {
			captured = filter
			return domain.CursorPage[services.CatalogItem]{}, nil
		},
	}
	router := newCatalogRouter(svc)

	req := requestWithIdentity(http.MethodGet, "/api/v1/admin/catalog/items?kind=part&active_only=true", "", "usr_admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if captured.Kind != "part" || !captured.ActiveOnly {
		t.Fatalf("unexpected filter %#v", captured)
	}
}

func TestAdminCatalogHandlersBulkUpdateItems(t *testing.T) {
	svc := &stubCatalogService{
		bulkUpdateItemsFn: func(_ context.Context, ids []string, patch services.CatalogItemPatch, _ string) (services.BulkResult, error) {
			if patch.Active == nil || *patch.Active {
				t.Fatalf("expected active=false patch, got %#v", patch.Active)
			}
			return services.BulkResult{
				Processed: 1,
				Failures:  []services.BulkFailure{{ID: "itm_gone", Reason: "catalog item not found"}},
			}, nil
		},
	}
	router := newCatalogRouter(svc)

	body := `{"ids":["itm_1","itm_gone"],"patch":{"active":false}}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/admin/catalog/items:bulkUpdate", body, "usr_admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
	var payload bulkResultResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.ProcessedCount != 1 || len(payload.FailedItems) != 1 {
		t.Fatalf("unexpected bulk result %#v", payload)
	}
}

func TestAdminCatalogHandlersCreateTaxRate(t *testing.T) {
	created := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	svc := &stubCatalogService{
		createTaxRateFn: func(_ context.Context, input services.TaxRateInput, _ string) (services.TaxRate, error) {
			if input.RateBps != 825 {
				t.Fatalf("expected 825 bps, got %d", input.RateBps)
			}
			return services.TaxRate{
				ID:        "tax_01ABC",
				Name:      input.Name,
				RateBps:   input.RateBps,
				CreatedAt: created,
				UpdatedAt: created,
			}, nil
		},
	}
	router := newCatalogRouter(svc)

	body := `{"name":"State sales tax","rateBps":825}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/admin/catalog/tax-rates", body, "usr_admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body %s", rr.Code, rr.Body.String())
	}
	var payload taxRatePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.RateBps != 825 {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestAdminCatalogHandlersBulkUpdateTaxRates(t *testing.T) {
	var capturedIDs []string
	svc := &stubCatalogService{
		bulkUpdateRatesFn: func(_ context.Context, ids []string, patch services.TaxRatePatch, actor string) (services.BulkResult, error) {
			capturedIDs = ids
			if actor != "usr_admin" {
				t.Fatalf("expected admin actor, got %q", actor)
			}
			if patch.RateBps == nil || *patch.RateBps != 900 {
				t.Fatalf("expected rateBps patch, got %#v", patch.RateBps)
			}
			return services.BulkResult{
				Processed: 1,
				Failures:  []services.BulkFailure{{ID: "tax_gone", Reason: "tax rate not found"}},
			}, nil
		},
	}
	router := newCatalogRouter(svc)

	body := `{"ids":["tax_1","tax_gone"],"patch":{"rateBps":900}}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/admin/catalog/tax-rates:bulkUpdate", body, "usr_admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
	if len(capturedIDs) != 2 {
		t.Fatalf("unexpected ids %#v", capturedIDs)
	}
	var payload bulkResultResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.ProcessedCount != 1 || len(payload.FailedItems) != 1 {
		t.Fatalf("unexpected bulk result %#v", payload)
	}
}

func TestAdminCatalogHandlersDeleteTaxRateConflict(t *testing.T) {
	svc := &stubCatalogService{
		deleteTaxRateFn: func(context.Context, string, string) error {
			return services.ErrCatalogConflict
		},
	}
	router := newCatalogRouter(svc)

	req := requestWithIdentity(http.MethodDelete, "/api/v1/admin/catalog/tax-rates/tax_01ABC", "", "usr_admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}
