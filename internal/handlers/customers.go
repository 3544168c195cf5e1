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

// CustomerHandlers exposes the CRM customer endpoints.
type CustomerHandlers struct {
	authn     *auth.Authenticator
	customers services.CustomerService
}

// NewCustomerHandlers constructs a new CustomerHandlers instance.
func NewCustomerHandlers(authn *auth.Authenticator, customers services.CustomerService) *CustomerHandlers {
	return &CustomerHandlers{
		authn:     authn,
		customers: customers,
	}
}

// Routes registers the /customers endpoints.
func (h *CustomerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(group chi.Router) {
		if h.authn != nil {
			group.Use(h.authn.RequireAuth(auth.RoleStaff, auth.RoleManager, auth.RoleAdmin))
		}
		group.Route("/customers", func(sub chi.Router) {
			sub.Post("/", h.create)
			sub.Get("/", h.list)
			sub.Get("/{customerID}", h.get)
			sub.Patch("/{customerID}", h.update)
			sub.Delete("/{customerID}", h.delete)
		})
		group.Post("/customers:bulkUpdate", h.bulkUpdate)
		group.Post("/customers:bulkDelete", h.bulkDelete)
	})
}

type createCustomerRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

type customerPatchRequest struct {
	Code        *string `json:"code"`
	DisplayName *string `json:"displayName"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
}

type bulkUpdateCustomersRequest struct {
	IDs   []string             `json:"ids"`
	Patch customerPatchRequest `json:"patch"`
}

type customerListResponse struct {
	Items         []customerPayload `json:"items"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

type customerPayload struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

func (h *CustomerHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeServiceUnavailable(ctx, w, "customer")
		return
	}

	var req createCustomerRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	customer, err := h.customers.Create(ctx, services.CreateCustomerCommand{
		Code:        strings.TrimSpace(req.Code),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeServiceUnavailable(ctx, w, "customer")
		return
	}

	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "customer id is required"))
		return
	}

	customer, err := h.customers.Get(ctx, customerID)
	if err != nil {
		writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeServiceUnavailable(ctx, w, "customer")
		return
	}

	query := r.URL.Query()
	filter := services.CustomerListFilter{
		Search: strings.TrimSpace(query.Get("q")),
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

	page, err := h.customers.List(ctx, filter)
	if err != nil {
		writeCustomerError(ctx, w, err)
		return
	}

	items := make([]customerPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildCustomerPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, customerListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *CustomerHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeServiceUnavailable(ctx, w, "customer")
		return
	}

	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "customer id is required"))
		return
	}

	var req customerPatchRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	customer, err := h.customers.Update(ctx, services.UpdateCustomerCommand{
		CustomerID: customerID,
		Patch:      buildCustomerPatch(req),
	})
	if err != nil {
		writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeServiceUnavailable(ctx, w, "customer")
		return
	}

	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "customer id is required"))
		return
	}

	if err := h.customers.Delete(ctx, customerID); err != nil {
		writeCustomerError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CustomerHandlers) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeServiceUnavailable(ctx, w, "customer")
		return
	}

	var req bulkUpdateCustomersRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.customers.BulkUpdate(ctx, cleanIDList(req.IDs), buildCustomerPatch(req.Patch))
	if err != nil {
		writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *CustomerHandlers) bulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeServiceUnavailable(ctx, w, "customer")
		return
	}

	var req bulkDeleteRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.customers.BulkDelete(ctx, cleanIDList(req.IDs))
	if err != nil {
		writeCustomerError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func buildCustomerPatch(req customerPatchRequest) services.CustomerPatch {
	return services.CustomerPatch{
		Code:        trimmedPointer(req.Code),
		DisplayName: trimmedPointer(req.DisplayName),
		Email:       trimmedPointer(req.Email),
		Phone:       trimmedPointer(req.Phone),
	}
}

func buildCustomerPayload(customer services.Customer) customerPayload {
	return customerPayload{
		ID:          customer.ID,
		Code:        customer.Code,
		DisplayName: customer.DisplayName,
		Email:       customer.Email,
		Phone:       customer.Phone,
		CreatedAt:   formatTime(customer.CreatedAt),
		UpdatedAt:   formatTime(customer.UpdatedAt),
	}
}

func writeCustomerError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCustomerInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("customer_not_found", "customer not found"))
	case errors.Is(err, services.ErrCustomerConflict):
		httpx.WriteError(ctx, w, httpx.Conflict("customer_conflict", err.Error()))
	case errors.Is(err, services.ErrCustomerUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("customer_unavailable", "customer storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("customer_error", "failed to process customer request"))
	}
}
