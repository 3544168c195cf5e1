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

type stubTicketService struct {
	createFn     func(ctx context.Context, cmd services.CreateTicketCommand) (services.Ticket, error)
	getFn        func(ctx context.Context, ticketID string) (services.Ticket, error)
	listFn       func(ctx context.Context, filter services.TicketListFilter) (domain.CursorPage[services.Ticket], error)
	updateFn     func(ctx context.Context, cmd services.UpdateTicketCommand) (services.Ticket, error)
	deleteFn     func(ctx context.Context, ticketID string) error
	bulkUpdateFn func(ctx context.Context, ids []string, patch services.TicketPatch) (services.BulkResult, error)
	bulkDeleteFn func(ctx context.Context, ids []string) (services.BulkResult, error)
}

func (s *stubTicketService) Create(ctx context.Context, cmd services.CreateTicketCommand) (services.Ticket, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubTicketService) Get(ctx context.Context, ticketID string) (services.Ticket, error) {
	return s.getFn(ctx, ticketID)
}

func (s *stubTicketService) List(ctx context.Context, filter services.TicketListFilter) (domain.CursorPage[services.Ticket], error) {
	return s.listFn(ctx, filter)
}

func (s *stubTicketService) Update(ctx context.Context, cmd services.UpdateTicketCommand) (services.Ticket, error) {
	return s.updateFn(ctx, cmd)
}

func (s *stubTicketService) Delete(ctx context.Context, ticketID string) error {
	return s.deleteFn(ctx, ticketID)
}

func (s *stubTicketService) BulkUpdate(ctx context.Context, ids []string, patch services.TicketPatch) (services.BulkResult, error) {
	return s.bulkUpdateFn(ctx, ids, patch)
}

func (s *stubTicketService) BulkDelete(ctx context.Context, ids []string) (services.BulkResult, error) {
	return s.bulkDeleteFn(ctx, ids)
}

var _ services.TicketService = (*stubTicketService)(nil)

func newTicketRouter(svc services.TicketService) http.Handler {
	return NewRouter(WithTicketRoutes(NewTicketHandlers(nil, svc).Routes))
}

func TestTicketHandlersCreateDefaultsRequester(t *testing.T) {
	created := time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
	var captured services.CreateTicketCommand
	svc := &stubTicketService{
		createFn: func(_ context.Context, cmd services.CreateTicketCommand) (services.Ticket, error) {
			captured = cmd
			return services.Ticket{
				ID:          "tck_01ABC",
				Subject:     cmd.Subject,
				Status:      domain.TicketStatusOpen,
				Priority:    domain.TicketPriorityHigh,
				RequesterID: cmd.RequesterID,
				CreatedAt:   created,
				UpdatedAt:   created,
			}, nil
		},
	}
	router := newTicketRouter(svc)

	body := `{"subject":"printer down","body":"<p>it smokes</p>","priority":"HIGH"}`
	req := requestWithIdentity(http.MethodPost, "/api/v1/tickets", body, "usr_staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body %s", rr.Code, rr.Body.String())
	}
	if captured.RequesterID != "usr_staff" {
		t.Fatalf("expected requester to default to actor, got %q", captured.RequesterID)
	}
	if captured.Priority != domain.TicketPriorityHigh {
		t.Fatalf("expected lowercased priority, got %q", captured.Priority)
	}
}

func TestTicketHandlersListForwardsFilters(t *testing.T) {
	var captured services.TicketListFilter
	svc := &stubTicketService{
		listFn: func(_ context.Context, filter services.TicketListFilter) (domain.CursorPage[services.Ticket], error) {
			captured = filter
			return domain.CursorPage[services.Ticket]{}, nil
		},
	}
	router := newTicketRouter(svc)

	req := requestWithIdentity(http.MethodGet, "/api/v1/tickets?status=open,pending&priority=urgent&assignee_id=usr_42", "", "usr_staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(captured.Status) != 2 || len(captured.Priority) != 1 {
		t.Fatalf("unexpected filters %#v", captured)
	}
	if captured.AssigneeID != "usr_42" {
		t.Fatalf("unexpected assignee filter %q", captured.AssigneeID)
	}
}

func TestTicketHandlersBulkDeleteRetryReportsNotFound(t *testing.T) {
	svc := &stubTicketService{
		bulkDeleteFn: func(_ context.Context, ids []string) (services.BulkResult, error) {
			failures := make([]services.BulkFailure, 0, len(ids))
			for _, id := range ids {
				failures = append(failures, services.BulkFailure{ID: id, Reason: "ticket not found"})
			}
			return services.BulkResult{Processed: 0, Failures: failures}, nil
		},
	}
	router := newTicketRouter(svc)

	req := requestWithIdentity(http.MethodPost, "/api/v1/tickets:bulkDelete", `{"ids":["tck_1","tck_2"]}`, "usr_staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload bulkResultResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.ProcessedCount != 0 || len(payload.FailedItems) != 2 {
		t.Fatalf("unexpected bulk result %#v", payload)
	}
}

func TestTicketHandlersUpdateConflict(t *testing.T) {
	svc := &stubTicketService{
		updateFn: func(context.Context, services.UpdateTicketCommand) (services.Ticket, error) {
			return services.Ticket{}, services.ErrTicketConflict
		},
	}
	router := newTicketRouter(svc)

	req := requestWithIdentity(http.MethodPatch, "/api/v1/tickets/tck_01ABC", `{"status":"closed"}`, "usr_staff")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}
