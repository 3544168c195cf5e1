package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/deskforge/api/internal/platform/auth"
	"github.com/deskforge/api/internal/platform/httpx"
	"github.com/deskforge/api/internal/services"
)

// TicketHandlers exposes the support ticket endpoints.
type TicketHandlers struct {
	authn   *auth.Authenticator
	tickets services.TicketService
}

// NewTicketHandlers constructs a new TicketHandlers instance.
func NewTicketHandlers(authn *auth.Authenticator, tickets services.TicketService) *TicketHandlers {
	return &TicketHandlers{
		authn:   authn,
		tickets: tickets,
	}
}

// Routes registers the /tickets endpoints.
func (h *TicketHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(group chi.Router) {
		if h.authn != nil {
			group.Use(h.authn.RequireAuth(auth.RoleStaff, auth.RoleManager, auth.RoleAdmin))
		}
		group.Route("/tickets", func(sub chi.Router) {
			sub.Post("/", h.create)
			sub.Get("/", h.list)
			sub.Get("/{ticketID}", h.get)
			sub.Patch("/{ticketID}", h.update)
			sub.Delete("/{ticketID}", h.delete)
		})
		group.Post("/tickets:bulkUpdate", h.bulkUpdate)
		group.Post("/tickets:bulkDelete", h.bulkDelete)
	})
}

type createTicketRequest struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Priority    string   `json:"priority"`
	RequesterID string   `json:"requesterId"`
	AssigneeID  *string  `json:"assigneeId"`
	Labels      []string `json:"labels"`
}

type ticketPatchRequest struct {
	Subject    *string   `json:"subject"`
	Body       *string   `json:"body"`
	Status     *string   `json:"status"`
	Priority   *string   `json:"priority"`
	AssigneeID *string   `json:"assigneeId"`
	Labels     *[]string `json:"labels"`
}

type bulkUpdateTicketsRequest struct {
	IDs   []string           `json:"ids"`
	Patch ticketPatchRequest `json:"patch"`
}

type ticketListResponse struct {
	Items         []ticketPayload `json:"items"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

type ticketPayload struct {
	ID          string   `json:"id"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body,omitempty"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	RequesterID string   `json:"requesterId"`
	AssigneeID  *string  `json:"assigneeId,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

func (h *TicketHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tickets == nil {
		writeServiceUnavailable(ctx, w, "ticket")
		return
	}

	var req createTicketRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	requesterID := strings.TrimSpace(req.RequesterID)
	if requesterID == "" {
		requesterID = actorFromContext(r)
	}

	ticket, err := h.tickets.Create(ctx, services.CreateTicketCommand{
		Subject:     strings.TrimSpace(req.Subject),
		Body:        req.Body,
		Priority:    services.TicketPriority(strings.ToLower(strings.TrimSpace(req.Priority))),
		RequesterID: requesterID,
		AssigneeID:  trimmedPointer(req.AssigneeID),
		Labels:      req.Labels,
	})
	if err != nil {
		writeTicketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildTicketPayload(ticket))
}

func (h *TicketHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tickets == nil {
		writeServiceUnavailable(ctx, w, "ticket")
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "ticket id is required"))
		return
	}

	ticket, err := h.tickets.Get(ctx, ticketID)
	if err != nil {
		writeTicketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTicketPayload(ticket))
}

func (h *TicketHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tickets == nil {
		writeServiceUnavailable(ctx, w, "ticket")
		return
	}

	query := r.URL.Query()
	filter := services.TicketListFilter{
		AssigneeID: strings.TrimSpace(query.Get("assignee_id")),
	}
	for _, raw := range parseFilterValues(query["status"]) {
		filter.Status = append(filter.Status, services.TicketStatus(raw))
	}
	for _, raw := range parseFilterValues(query["priority"]) {
		filter.Priority = append(filter.Priority, services.TicketPriority(raw))
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

	page, err := h.tickets.List(ctx, filter)
	if err != nil {
		writeTicketError(ctx, w, err)
		return
	}

	items := make([]ticketPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildTicketPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, ticketListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *TicketHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tickets == nil {
		writeServiceUnavailable(ctx, w, "ticket")
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "ticket id is required"))
		return
	}

	var req ticketPatchRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	ticket, err := h.tickets.Update(ctx, services.UpdateTicketCommand{
		TicketID: ticketID,
		Patch:    buildTicketPatch(req),
	})
	if err != nil {
		writeTicketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTicketPayload(ticket))
}

func (h *TicketHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tickets == nil {
		writeServiceUnavailable(ctx, w, "ticket")
		return
	}

	ticketID := strings.TrimSpace(chi.URLParam(r, "ticketID"))
	if ticketID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "ticket id is required"))
		return
	}

	if err := h.tickets.Delete(ctx, ticketID); err != nil {
		writeTicketError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TicketHandlers) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tickets == nil {
		writeServiceUnavailable(ctx, w, "ticket")
		return
	}

	var req bulkUpdateTicketsRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.tickets.BulkUpdate(ctx, cleanIDList(req.IDs), buildTicketPatch(req.Patch))
	if err != nil {
		writeTicketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *TicketHandlers) bulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.tickets == nil {
		writeServiceUnavailable(ctx, w, "ticket")
		return
	}

	var req bulkDeleteRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.tickets.BulkDelete(ctx, cleanIDList(req.IDs))
	if err != nil {
		writeTicketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func buildTicketPatch(req ticketPatchRequest) services.TicketPatch {
	patch := services.TicketPatch{
		Subject:    trimmedPointer(req.Subject),
		Body:       req.Body,
		AssigneeID: trimmedPointer(req.AssigneeID),
		Labels:     req.Labels,
	}
	if req.Status != nil {
		status := services.TicketStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := services.TicketPriority(strings.ToLower(strings.TrimSpace(*req.Priority)))
		patch.Priority = &priority
	}
	return patch
}

func buildTicketPayload(ticket services.Ticket) ticketPayload {
	return ticketPayload{
		ID:          ticket.ID,
		Subject:     ticket.Subject,
		Body:        ticket.Body,
		Status:      string(ticket.Status),
		Priority:    string(ticket.Priority),
		RequesterID: ticket.RequesterID,
		AssigneeID:  cloneStringPointer(ticket.AssigneeID),
		Labels:      ticket.Labels,
		CreatedAt:   formatTime(ticket.CreatedAt),
		UpdatedAt:   formatTime(ticket.UpdatedAt),
	}
}

func writeTicketError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrTicketInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrTicketNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("ticket_not_found", "ticket not found"))
	case errors.Is(err, services.ErrTicketConflict):
		httpx.WriteError(ctx, w, httpx.Conflict("ticket_conflict", err.Error()))
	case errors.Is(err, services.ErrTicketUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("ticket_unavailable", "ticket storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("ticket_error", "failed to process ticket request"))
	}
}
