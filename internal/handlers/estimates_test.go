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

type stubEstimateService struct {
	createFn     func(ctx context.Context, cmd services.CreateEstimateCommand) (services.Estimate, error)
	getFn        func(ctx context.Context, estimateID string) (services.Estimate, error)
	listFn       func(ctx context.Context, filter services.EstimateListFilter) (domain.CursorPage[services.Estimate], error)
	updateFn     func(ctx context.Context, cmd services.UpdateEstimateCommand) (services.Estimate, error)
	deleteFn     func(ctx context.Context, estimateID, actor string) error
	approveFn    func(ctx context.Context, estimateID, actor string) (services.Estimate, error)
	rejectFn     func(ctx context.Context, estimateID, actor string) (services.Estimate, error)
	bulkUpdateFn func(ctx context.Context, ids []string, patch services.EstimatePatch, actor string) (services.BulkResult, error)
	bulkDeleteFn func(ctx context.Context, ids []string, actor string) (services.BulkResult, error)
}

func (s *stubEstimateService) Create(ctx context.Context, cmd services.CreateEstimateCommand) (services.Estimate, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubEstimateService) Get(ctx context.Context, estimateID string) (services.Estimate, error) {
	return s.getFn(ctx, estimateID)
}

func (s *stubEstimateService) List(ctx context.Context, filter services.EstimateListFilter) (domain.CursorPage[services.Estimate], error) {
	return s.listFn(ctx, filter)
}

func (s *stubEstimateService) Update(ctx context.Context, cmd services.UpdateEstimateCommand) (services.Estimate, error) {
	return s.updateFn(ctx, cmd)
}

func (s *stubEstimateService) Delete(ctx context.Context, estimateID, actor string) error {
	return s.deleteFn(ctx, estimateID, actor)
}

func (s *stubEstimateService) Approve(ctx context.Context, estimateID, actor string) (services.Estimate, error) {
	return s.approveFn(ctx, estimateID, actor)
}

func (s *stubEstimateService) Reject(ctx context.Context, estimateID, actor string) (services.Estimate, error) {
	return s.rejectFn(ctx, estimateID, actor)
}

func (s *stubEstimateService) BulkUpdate(ctx context.Context, ids []string, patch services.EstimatePatch, actor string) (services.BulkResult, error) {
	return s.bulkUpdateFn(ctx, ids, patch, actor)
}

func (s *stubEstimateService) BulkDelete(ctx context.Context, ids []string, actor string) (services.BulkResult, error) {
	return s.bulkDeleteFn(ctx, ids, actor)
}

var _ services.EstimateService = (*stubEstimateService)(nil)

func newEstimateRouter(svc services.EstimateService) http.Handler {
	return NewRouter(WithEstimateRoutes(NewEstimateHandlers(nil, svc).Routes))
}

func sampleEstimate(status services.EstimateStatus) services.Estimate {
	created := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	return services.Estimate{
		ID:         "est_01ABC",
		Number:     "EST-2026-000007",
		CustomerID: "cus_01DEF",
		Currency:   "USD",
		Status:     status,
		Lines: []services.LineItem{
			{OrderID: "est_01ABC", CatalogItemID: "itm_1", Kind: domain.CatalogItemKindPart, Quantity: 2, UnitAmount: 2500, Position: 0},
		},
		Totals: services.OrderTotals{
			PartsSubtotal: 5000,
			GrandTotal:    5000,
			Lines:         []services.LineTotals{{CatalogItemID: "itm_1", ItemTotal: 5000}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestEstimateHandlersCreateParsesExpiry(t *testing.T) {
	var captured services.CreateEstimateCommand
	svc := &stubEstimateService{
		createFn: func(_ context.Context, cmd services.CreateEstimateCommand) (services.Estimate, error) {
			captured = cmd
			return sampleEstimate(domain.EstimateStatusPending), nil
		},
	}
	router := newEstimateRouter(svc)

	body := `{"customerId":"cus_01DEF","currency":"usd","expiresAt":"2026-04-01T00:00:00Z","lines":[{"catalogItemId":"itm_1","quantity":2}]}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/estimates", body, "usr_staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body %s", rr.Code, rr.Body.String())
	}
	if captured.ExpiresAt == nil || !captured.ExpiresAt.Equal(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected parsed expiry, got %v", captured.ExpiresAt)
	}
}

func TestEstimateHandlersCreateRejectsBadExpiry(t *testing.T) {
	svc := &stubEstimateService{
		createFn: func(context.Context, services.CreateEstimateCommand) (services.Estimate, error) {
			t.Fatal("service should not be called")
			return services.Estimate{}, nil
		},
	}
	router := newEstimateRouter(svc)

	body := `{"customerId":"cus_01DEF","currency":"usd","expiresAt":"next tuesday"}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/estimates", body, "usr_staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestEstimateHandlersApprove(t *testing.T) {
	workOrderID := "wo_01NEW"
	svc := &stubEstimateService{
		approveFn: func(_ context.Context, estimateID, actor string) (services.Estimate, error) {
			if estimateID != "est_01ABC" {
				t.Fatalf("unexpected estimate id %q", estimateID)
			}
			if actor != "usr_manager" {
				t.Fatalf("unexpected actor %q", actor)
			}
			approved := sampleEstimate(domain.EstimateStatusApproved)
			approved.WorkOrderID = &workOrderID
			return approved, nil
		},
	}
	router := newEstimateRouter(svc)

	req := requestWithIdentity(http.MethodPost, "/api/v1/estimates/est_01ABC:approve", "{}", "usr_manager")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
	var payload estimatePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Status != string(domain.EstimateStatusApproved) {
		t.Fatalf("expected approved status, got %s", payload.Status)
	}
	if payload.WorkOrderID == nil || *payload.WorkOrderID != workOrderID {
		t.Fatalf("expected work order ref, got %v", payload.WorkOrderID)
	}
}

func TestEstimateHandlersApproveInvalidState(t *testing.T) {
	svc := &stubEstimateService{
		approveFn: func(context.Context, string, string) (services.Estimate, error) {
			return services.Estimate{}, services.ErrEstimateInvalidState
		},
	}
	router := newEstimateRouter(svc)

	req := requestWithIdentity(http.MethodPost, "/api/v1/estimates/est_01ABC:approve", "{}", "usr_manager")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if body["error"] != "estimate_invalid_state" {
		t.Fatalf("expected estimate_invalid_state, got %v", body["error"])
	}
}

func TestEstimateHandlersBulkUpdateForwardsPatch(t *testing.T) {
	svc := &stubEstimateService{
		bulkUpdateFn: func(_ context.Context, ids []string, patch services.EstimatePatch, _ string) (services.BulkResult, error) {
			if len(ids) != 2 {
				t.Fatalf("expected 2 ids, got %#v", ids)
			}
			if patch.Status == nil || *patch.Status != domain.EstimateStatusExpired {
				t.Fatalf("expected expired status patch, got %#v", patch.Status)
			}
			return services.BulkResult{Processed: 2}, nil
		},
	}
	router := newEstimateRouter(svc)

	body := `{"ids":["est_1","est_2"],"patch":{"status":"expired"}}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/estimates:bulkUpdate", body, "usr_staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rr.Code, rr.Body.String())
	}
}
