package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/deskforge/api/internal/platform/auth"
	"github.com/deskforge/api/internal/platform/httpx"
	"github.com/deskforge/api/internal/services"
)

// WorkOrderHandlers exposes the work order aggregate endpoints.
type WorkOrderHandlers struct {
	authn      *auth.Authenticator
	workOrders services.WorkOrderService
}

// NewWorkOrderHandlers constructs a new WorkOrderHandlers instance.
func NewWorkOrderHandlers(authn *auth.Authenticator, workOrders services.WorkOrderService) *WorkOrderHandlers {
	return &WorkOrderHandlers{
		authn:      authn,
		workOrders: workOrders,
	}
}

// Routes registers the /work-orders endpoints.
func (h *WorkOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(group chi.Router) {
		if h.authn != nil {
			group.Use(h.authn.RequireAuth(auth.RoleStaff, auth.RoleManager, auth.RoleAdmin))
		}
		group.Route("/work-orders", func(sub chi.Router) {
			sub.Post("/", h.create)
			sub.Get("/", h.list)
			sub.Get("/{workOrderID}", h.get)
			sub.Patch("/{workOrderID}", h.update)
			sub.Delete("/{workOrderID}", h.delete)
			sub.Post("/{workOrderID}:invoice", h.requestInvoice)
		})
		group.Post("/work-orders:bulkUpdate", h.bulkUpdate)
		group.Post("/work-orders:bulkDelete", h.bulkDelete)
	})
}

type createWorkOrderRequest struct {
	CustomerID  string        `json:"customerId"`
	TicketID    *string       `json:"ticketId"`
	ParentID    *string       `json:"parentId"`
	SourceRef   *string       `json:"sourceRef"`
	Currency    string        `json:"currency"`
	Description string        `json:"description"`
	Lines       []lineRequest `json:"lines"`
}

type workOrderPatchRequest struct {
	CustomerID    *string        `json:"customerId"`
	TicketID      *string        `json:"ticketId"`
	Description   *string        `json:"description"`
	BillingStatus *string        `json:"billingStatus"`
	Lines         *[]lineRequest `json:"lines"`
}

type bulkUpdateWorkOrdersRequest struct {
	IDs   []string              `json:"ids"`
	Patch workOrderPatchRequest `json:"patch"`
}

type workOrderListResponse struct {
	Items         []workOrderPayload `json:"items"`
	NextPageToken string             `json:"nextPageToken,omitempty"`
}

type workOrderPayload struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	CustomerID    string        `json:"customerId"`
	TicketID      *string       `json:"ticketId,omitempty"`
	ParentID      *string       `json:"parentId,omitempty"`
	SourceRef     *string       `json:"sourceRef,omitempty"`
	Currency      string        `json:"currency"`
	BillingStatus string        `json:"billingStatus"`
	Description   string        `json:"description,omitempty"`
	Lines         []linePayload `json:"lines"`
	Totals        totalsPayload `json:"totals"`
	CreatedAt     string        `json:"createdAt"`
	UpdatedAt     string        `json:"updatedAt,omitempty"`
}

type invoiceIntentPayload struct {
	WorkOrderID  string `json:"workOrderId"`
	ProviderID   string `json:"providerId"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	CreatedAt    string `json:"createdAt"`
}

func (h *WorkOrderHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	var req createWorkOrderRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	order, err := h.workOrders.Create(ctx, services.CreateWorkOrderCommand{
		CustomerID:  strings.TrimSpace(req.CustomerID),
		TicketID:    trimmedPointer(req.TicketID),
		ParentID:    trimmedPointer(req.ParentID),
		SourceRef:   trimmedPointer(req.SourceRef),
		Currency:    strings.TrimSpace(req.Currency),
		Description: strings.TrimSpace(req.Description),
		Lines:       buildLineInputs(req.Lines),
		Actor:       actorFromContext(r),
	})
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildWorkOrderPayload(order))
}

func (h *WorkOrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "workOrderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "work order id is required"))
		return
	}

	order, err := h.workOrders.Get(ctx, orderID)
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildWorkOrderPayload(order))
}

func (h *WorkOrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	query := r.URL.Query()
	filter := services.WorkOrderListFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		TicketID:   strings.TrimSpace(query.Get("ticket_id")),
	}

	for _, raw := range parseFilterValues(query["billing_status"]) {
		filter.BillingStatus = append(filter.BillingStatus, services.BillingStatus(raw))
	}

	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "created_after must be a valid RFC3339 timestamp"))
			return
		}
		filter.CreatedFrom = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "created_before must be a valid RFC3339 timestamp"))
			return
		}
		filter.CreatedTo = &ts
	}

	pager, err := parsePagination(query)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}
	filter.Pagination = pager

	order, ok := parseSortOrder(query.Get("order"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "order must be asc or desc"))
		return
	}
	filter.Order = order

	page, err := h.workOrders.List(ctx, filter)
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}

	items := make([]workOrderPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildWorkOrderPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, workOrderListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *WorkOrderHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "workOrderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "work order id is required"))
		return
	}

	var req workOrderPatchRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	order, err := h.workOrders.Update(ctx, services.UpdateWorkOrderCommand{
		OrderID: orderID,
		Patch:   buildWorkOrderPatch(req),
		Actor:   actorFromContext(r),
	})
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildWorkOrderPayload(order))
}

func (h *WorkOrderHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "workOrderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "work order id is required"))
		return
	}

	if err := h.workOrders.Delete(ctx, orderID, actorFromContext(r)); err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkOrderHandlers) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	var req bulkUpdateWorkOrdersRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.workOrders.BulkUpdate(ctx, cleanIDList(req.IDs), buildWorkOrderPatch(req.Patch), actorFromContext(r))
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *WorkOrderHandlers) bulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	var req bulkDeleteRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.workOrders.BulkDelete(ctx, cleanIDList(req.IDs), actorFromContext(r))
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *WorkOrderHandlers) requestInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "workOrderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "work order id is required"))
		return
	}

	intent, err := h.workOrders.RequestInvoice(ctx, services.RequestWorkOrderInvoiceCommand{
		OrderID: orderID,
		Actor:   actorFromContext(r),
	})
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, invoiceIntentPayload{
		WorkOrderID:  intent.WorkOrderID,
		ProviderID:   intent.ProviderID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		CreatedAt:    formatTime(intent.CreatedAt),
	})
}

func buildWorkOrderPatch(req workOrderPatchRequest) services.WorkOrderPatch {
	patch := services.WorkOrderPatch{
		CustomerID:  trimmedPointer(req.CustomerID),
		TicketID:    trimmedPointer(req.TicketID),
		Description: trimmedPointer(req.Description),
	}
	if req.BillingStatus != nil {
		status := services.BillingStatus(strings.ToLower(strings.TrimSpace(*req.BillingStatus)))
		patch.BillingStatus = &status
	}
	if req.Lines != nil {
		lines := buildLineInputs(*req.Lines)
		patch.Lines = &lines
	}
	return patch
}

func buildWorkOrderPayload(order services.WorkOrder) workOrderPayload {
	return workOrderPayload{
		ID:            order.ID,
		Number:        order.Number,
		CustomerID:    order.CustomerID,
		TicketID:      cloneStringPointer(order.TicketID),
		ParentID:      cloneStringPointer(order.ParentID),
		SourceRef:     cloneStringPointer(order.SourceRef),
		Currency:      strings.ToUpper(order.Currency),
		BillingStatus: string(order.BillingStatus),
		Description:   order.Description,
		Lines:         buildLinePayloads(order.Lines),
		Totals:        buildTotalsPayload(order.Totals),
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
	}
}

func writeWorkOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrWorkOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrWorkOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("work_order_not_found", "work order not found"))
	case errors.Is(err, services.ErrWorkOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.Conflict("work_order_invalid_state", err.Error()))
	case errors.Is(err, services.ErrWorkOrderConflict):
		httpx.WriteError(ctx, w, httpx.Conflict("work_order_conflict", err.Error()))
	case errors.Is(err, services.ErrWorkOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("work_order_unavailable", "work order storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("work_order_error", "failed to process work order request"))
	}
}

func writeServiceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

func decodeMutationBody(ctx context.Context, w http.ResponseWriter, r *http.Request, limit int64, dest any) bool {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "request body is required"))
		default:
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		}
		return false
	}
	if err := json.Unmarshal(body, dest); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "invalid JSON body"))
		return false
	}
	return true
}
