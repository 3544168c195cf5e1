package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deskforge/api/internal/platform/auth"
	"github.com/deskforge/api/internal/platform/httpx"
	"github.com/deskforge/api/internal/services"
)

// EstimateHandlers exposes the estimate aggregate endpoints.
type EstimateHandlers struct {
	authn     *auth.Authenticator
	estimates services.EstimateService
}

// NewEstimateHandlers constructs a new EstimateHandlers instance.
func NewEstimateHandlers(authn *auth.Authenticator, estimates services.EstimateService) *EstimateHandlers {
	return &EstimateHandlers{
		authn:     authn,
		estimates: estimates,
	}
}

// Routes registers the /estimates endpoints.
func (h *EstimateHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(group chi.Router) {
		if h.authn != nil {
			group.Use(h.authn.RequireAuth(auth.RoleStaff, auth.RoleManager, auth.RoleAdmin))
		}
		group.Route("/estimates", func(sub chi.Router) {
			sub.Post("/", h.create)
			sub.Get("/", h.list)
			sub.Get("/{estimateID}", h.get)
			sub.Patch("/{estimateID}", h.update)
			sub.Delete("/{estimateID}", h.delete)
			sub.Post("/{estimateID}:approve", h.approve)
			sub.Post("/{estimateID}:reject", h.reject)
		})
		group.Post("/estimates:bulkUpdate", h.bulkUpdate)
		group.Post("/estimates:bulkDelete", h.bulkDelete)
	})
}

type createEstimateRequest struct {
	CustomerID  string        `json:"customerId"`
	TicketID    *string       `json:"ticketId"`
	Currency    string        `json:"currency"`
	Description string        `json:"description"`
	ExpiresAt   *string       `json:"expiresAt"`
	Lines       []lineRequest `json:"lines"`
}

type estimatePatchRequest struct {
	CustomerID  *string        `json:"customerId"`
	TicketID    *string        `json:"ticketId"`
	Description *string        `json:"description"`
	Status      *string        `json:"status"`
	ExpiresAt   *string        `json:"expiresAt"`
	Lines       *[]lineRequest `json:"lines"`
}

type bulkUpdateEstimatesRequest struct {
	IDs   []string             `json:"ids"`
	Patch estimatePatchRequest `json:"patch"`
}

type estimateListResponse struct {
	Items         []estimatePayload `json:"items"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

type estimatePayload struct {
	ID          string        `json:"id"`
	Number      string        `json:"number"`
	CustomerID  string        `json:"customerId"`
	TicketID    *string       `json:"ticketId,omitempty"`
	Currency    string        `json:"currency"`
	Status      string        `json:"status"`
	Description string        `json:"description,omitempty"`
	WorkOrderID *string       `json:"workOrderId,omitempty"`
	ExpiresAt   string        `json:"expiresAt,omitempty"`
	Lines       []linePayload `json:"lines"`
	Totals      totalsPayload `json:"totals"`
	CreatedAt   string        `json:"createdAt"`
	UpdatedAt   string        `json:"updatedAt,omitempty"`
}

func (h *EstimateHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.estimates == nil {
		writeServiceUnavailable(ctx, w, "estimate")
		return
	}

	var req createEstimateRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	expiresAt, ok := parseOptionalTime(ctx, w, req.ExpiresAt, "expiresAt")
	if !ok {
		return
	}

	estimate, err := h.estimates.Create(ctx, services.CreateEstimateCommand{
		CustomerID:  strings.TrimSpace(req.CustomerID),
		TicketID:    trimmedPointer(req.TicketID),
		Currency:    strings.TrimSpace(req.Currency),
		Description: strings.TrimSpace(req.Description),
		ExpiresAt:   expiresAt,
		Lines:       buildLineInputs(req.Lines),
		Actor:       actorFromContext(r),
	})
	if err != nil {
		writeEstimateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildEstimatePayload(estimate))
}

func (h *EstimateHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.estimates == nil {
		writeServiceUnavailable(ctx, w, "estimate")
		return
	}

	estimateID := strings.TrimSpace(chi.URLParam(r, "estimateID"))
	if estimateID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "estimate id is required"))
		return
	}

	estimate, err := h.estimates.Get(ctx, estimateID)
	if err != nil {
		writeEstimateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildEstimatePayload(estimate))
}

func (h *EstimateHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.estimates == nil {
		writeServiceUnavailable(ctx, w, "estimate")
		return
	}

	query := r.URL.Query()
	filter := services.EstimateListFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
	}
	for _, raw := range parseFilterValues(query["status"]) {
		filter.Status = append(filter.Status, services.EstimateStatus(raw))
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

	page, err := h.estimates.List(ctx, filter)
	if err != nil {
		writeEstimateError(ctx, w, err)
		return
	}

	items := make([]estimatePayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildEstimatePayload(item))
	}
	writeJSONResponse(w, http.StatusOK, estimateListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *EstimateHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.estimates == nil {
		writeServiceUnavailable(ctx, w, "estimate")
		return
	}

	estimateID := strings.TrimSpace(chi.URLParam(r, "estimateID"))
	if estimateID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "estimate id is required"))
		return
	}

	var req estimatePatchRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	patch, ok := buildEstimatePatch(ctx, w, req)
	if !ok {
		return
	}

	estimate, err := h.estimates.Update(ctx, services.UpdateEstimateCommand{
		EstimateID: estimateID,
		Patch:      patch,
		Actor:      actorFromContext(r),
	})
	if err != nil {
		writeEstimateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildEstimatePayload(estimate))
}

func (h *EstimateHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.estimates == nil {
		writeServiceUnavailable(ctx, w, "estimate")
		return
	}

	estimateID := strings.TrimSpace(chi.URLParam(r, "estimateID"))
	if estimateID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "estimate id is required"))
		return
	}

	if err := h.estimates.Delete(ctx, estimateID, actorFromContext(r)); err != nil {
		writeEstimateError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EstimateHandlers) approve(w http.ResponseWriter, r *http.Request) {
	if h.estimates == nil {
		writeServiceUnavailable(r.Context(), w, "estimate")
		return
	}
	h.transition(w, r, h.estimates.Approve)
}

func (h *EstimateHandlers) reject(w http.ResponseWriter, r *http.Request) {
	if h.estimates == nil {
		writeServiceUnavailable(r.Context(), w, "estimate")
		return
	}
	h.transition(w, r, h.estimates.Reject)
}

func (h *EstimateHandlers) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, string) (services.Estimate, error)) {
	ctx := r.Context()

	estimateID := strings.TrimSpace(chi.URLParam(r, "estimateID"))
	if estimateID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "estimate id is required"))
		return
	}

	estimate, err := apply(ctx, estimateID, actorFromContext(r))
	if err != nil {
		writeEstimateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildEstimatePayload(estimate))
}

func (h *EstimateHandlers) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.estimates == nil {
		writeServiceUnavailable(ctx, w, "estimate")
		return
	}

	var req bulkUpdateEstimatesRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	patch, ok := buildEstimatePatch(ctx, w, req.Patch)
	if !ok {
		return
	}

	result, err := h.estimates.BulkUpdate(ctx, cleanIDList(req.IDs), patch, actorFromContext(r))
	if err != nil {
		writeEstimateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *EstimateHandlers) bulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.estimates == nil {
		writeServiceUnavailable(ctx, w, "estimate")
		return
	}

	var req bulkDeleteRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.estimates.BulkDelete(ctx, cleanIDList(req.IDs), actorFromContext(r))
	if err != nil {
		writeEstimateError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func buildEstimatePatch(ctx context.Context, w http.ResponseWriter, req estimatePatchRequest) (services.EstimatePatch, bool) {
	patch := services.EstimatePatch{
		CustomerID:  trimmedPointer(req.CustomerID),
		TicketID:    trimmedPointer(req.TicketID),
		Description: trimmedPointer(req.Description),
	}
	if req.Status != nil {
		status := services.EstimateStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		patch.Status = &status
	}
	expiresAt, ok := parseOptionalTime(ctx, w, req.ExpiresAt, "expiresAt")
	if !ok {
		return services.EstimatePatch{}, false
	}
	patch.ExpiresAt = expiresAt
	if req.Lines != nil {
		lines := buildLineInputs(*req.Lines)
		patch.Lines = &lines
	}
	return patch, true
}

func buildEstimatePayload(estimate services.Estimate) estimatePayload {
	return estimatePayload{
		ID:          estimate.ID,
		Number:      estimate.Number,
		CustomerID:  estimate.CustomerID,
		TicketID:    cloneStringPointer(estimate.TicketID),
		Currency:    strings.ToUpper(estimate.Currency),
		Status:      string(estimate.Status),
		Description: estimate.Description,
		WorkOrderID: cloneStringPointer(estimate.WorkOrderID),
		ExpiresAt:   formatTime(pointerTime(estimate.ExpiresAt)),
		Lines:       buildLinePayloads(estimate.Lines),
		Totals:      buildTotalsPayload(estimate.Totals),
		CreatedAt:   formatTime(estimate.CreatedAt),
		UpdatedAt:   formatTime(estimate.UpdatedAt),
	}
}

func parseOptionalTime(ctx context.Context, w http.ResponseWriter, raw *string, field string) (*time.Time, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, true
	}
	ts, err := parseTimeParam(strings.TrimSpace(*raw))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", field+" must be a valid RFC3339 timestamp"))
		return nil, false
	}
	return &ts, true
}

func writeEstimateError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrEstimateInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrEstimateNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("estimate_not_found", "estimate not found"))
	case errors.Is(err, services.ErrEstimateInvalidState):
		httpx.WriteError(ctx, w, httpx.Conflict("estimate_invalid_state", err.Error()))
	case errors.Is(err, services.ErrEstimateConflict):
		httpx.WriteError(ctx, w, httpx.Conflict("estimate_conflict", err.Error()))
	case errors.Is(err, services.ErrEstimateUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("estimate_unavailable", "estimate storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("estimate_error", "failed to process estimate request"))
	}
}
