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

// AdminCatalogHandlers exposes the admin catalog item and tax rate endpoints.
type AdminCatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewAdminCatalogHandlers constructs a new AdminCatalogHandlers instance.
func NewAdminCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the /admin/catalog endpoints. All routes require the admin role.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(group chi.Router) {
		if h.authn != nil {
			group.Use(h.authn.RequireAuth(auth.RoleAdmin))
		}
		group.Route("/admin/catalog", func(catalog chi.Router) {
			catalog.Route("/items", func(sub chi.Router) {
				sub.Post("/", h.createItem)
				sub.Get("/", h.listItems)
				sub.Get("/{itemID}", h.getItem)
				sub.Patch("/{itemID}", h.updateItem)
				sub.Delete("/{itemID}", h.deleteItem)
			})
			catalog.Post("/items:bulkUpdate", h.bulkUpdateItems)
			catalog.Post("/items:bulkDelete", h.bulkDeleteItems)

			catalog.Route("/tax-rates", func(sub chi.Router) {
				sub.Post("/", h.createTaxRate)
				sub.Get("/", h.listTaxRates)
				sub.Get("/{rateID}", h.getTaxRate)
				sub.Patch("/{rateID}", h.updateTaxRate)
				sub.Delete("/{rateID}", h.deleteTaxRate)
			})
			catalog.Post("/tax-rates:bulkUpdate", h.bulkUpdateTaxRates)
			catalog.Post("/tax-rates:bulkDelete", h.bulkDeleteTaxRates)
		})
	})
}

type catalogItemRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	UnitPrice int64  `json:"unitPrice"`
	Currency  string `json:"currency"`
	Active    *bool  `json:"active"`
}

type catalogItemPatchRequest struct {
	Name      *string `json:"name"`
	UnitPrice *int64  `json:"unitPrice"`
	Currency  *string `json:"currency"`
	Active    *bool   `json:"active"`
}

type bulkUpdateCatalogItemsRequest struct {
	IDs   []string                `json:"ids"`
	Patch catalogItemPatchRequest `json:"patch"`
}

type catalogItemListResponse struct {
	Items         []catalogItemPayload `json:"items"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

type catalogItemPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	UnitPrice int64  `json:"unitPrice"`
	Currency  string `json:"currency"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type taxRateRequest struct {
	Name    string `json:"name"`
	RateBps int64  `json:"rateBps"`
}

type taxRatePatchRequest struct {
	Name    *string `json:"name"`
	RateBps *int64  `json:"rateBps"`
}

type bulkUpdateTaxRatesRequest struct {
	IDs   []string            `json:"ids"`
	Patch taxRatePatchRequest `json:"patch"`
}

type taxRateListResponse struct {
	Items         []taxRatePayload `json:"items"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

type taxRatePayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RateBps   int64  `json:"rateBps"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (h *AdminCatalogHandlers) createItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	var req catalogItemRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	item, err := h.catalog.CreateItem(ctx, services.CatalogItemInput{
		Name:      strings.TrimSpace(req.Name),
		Kind:      services.CatalogItemKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		UnitPrice: req.UnitPrice,
		Currency:  strings.TrimSpace(req.Currency),
		Active:    req.Active,
	}, actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCatalogItemPayload(item))
}

func (h *AdminCatalogHandlers) getItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "catalog item id is required"))
		return
	}

	item, err := h.catalog.GetItem(ctx, itemID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCatalogItemPayload(item))
}

func (h *AdminCatalogHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	query := r.URL.Query()
	filter := services.CatalogItemListFilter{
		Kind:       strings.ToLower(strings.TrimSpace(query.Get("kind"))),
		ActiveOnly: strings.EqualFold(strings.TrimSpace(query.Get("active_only")), "true"),
	}

	pager, err := parsePagination(query)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}
	filter.Pagination = pager

	page, err := h.catalog.ListItems(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]catalogItemPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildCatalogItemPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, catalogItemListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminCatalogHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "catalog item id is required"))
		return
	}

	var req catalogItemPatchRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	item, err := h.catalog.UpdateItem(ctx, itemID, buildCatalogItemPatch(req), actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCatalogItemPayload(item))
}

func (h *AdminCatalogHandlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "catalog item id is required"))
		return
	}

	if err := h.catalog.DeleteItem(ctx, itemID, actorFromContext(r)); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) bulkUpdateItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	var req bulkUpdateCatalogItemsRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.catalog.BulkUpdateItems(ctx, cleanIDList(req.IDs), buildCatalogItemPatch(req.Patch), actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *AdminCatalogHandlers) bulkDeleteItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	var req bulkDeleteRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.catalog.BulkDeleteItems(ctx, cleanIDList(req.IDs), actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *AdminCatalogHandlers) createTaxRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	var req taxRateRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	rate, err := h.catalog.CreateTaxRate(ctx, services.TaxRateInput{
		Name:    strings.TrimSpace(req.Name),
		RateBps: req.RateBps,
	}, actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildTaxRatePayload(rate))
}

func (h *AdminCatalogHandlers) getTaxRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	rateID := strings.TrimSpace(chi.URLParam(r, "rateID"))
	if rateID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "tax rate id is required"))
		return
	}

	rate, err := h.catalog.GetTaxRate(ctx, rateID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTaxRatePayload(rate))
}

func (h *AdminCatalogHandlers) listTaxRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	pager, err := parsePagination(r.URL.Query())
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	page, err := h.catalog.ListTaxRates(ctx, pager)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]taxRatePayload, 0, len(page.Items))
	for _, rate := range page.Items {
		items = append(items, buildTaxRatePayload(rate))
	}
	writeJSONResponse(w, http.StatusOK, taxRateListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminCatalogHandlers) updateTaxRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	rateID := strings.TrimSpace(chi.URLParam(r, "rateID"))
	if rateID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "tax rate id is required"))
		return
	}

	var req taxRatePatchRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &req) {
		return
	}

	rate, err := h.catalog.UpdateTaxRate(ctx, rateID, services.TaxRatePatch{
		Name:    trimmedPointer(req.Name),
		RateBps: req.RateBps,
	}, actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTaxRatePayload(rate))
}

func (h *AdminCatalogHandlers) deleteTaxRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	rateID := strings.TrimSpace(chi.URLParam(r, "rateID"))
	if rateID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "tax rate id is required"))
		return
	}

	if err := h.catalog.DeleteTaxRate(ctx, rateID, actorFromContext(r)); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) bulkUpdateTaxRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	var req bulkUpdateTaxRatesRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.catalog.BulkUpdateTaxRates(ctx, cleanIDList(req.IDs), services.TaxRatePatch{
		Name:    trimmedPointer(req.Patch.Name),
		RateBps: req.Patch.RateBps,
	}, actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func (h *AdminCatalogHandlers) bulkDeleteTaxRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeServiceUnavailable(ctx, w, "catalog")
		return
	}

	var req bulkDeleteRequest
	if !decodeMutationBody(ctx, w, r, maxBulkRequestBody, &req) {
		return
	}

	result, err := h.catalog.BulkDeleteTaxRates(ctx, cleanIDList(req.IDs), actorFromContext(r))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBulkResult(result))
}

func buildCatalogItemPatch(req catalogItemPatchRequest) services.CatalogItemPatch {
	return services.CatalogItemPatch{
		Name:      trimmedPointer(req.Name),
		UnitPrice: req.UnitPrice,
		Currency:  trimmedPointer(req.Currency),
		Active:    req.Active,
	}
}

func buildCatalogItemPayload(item services.CatalogItem) catalogItemPayload {
	return catalogItemPayload{
		ID:        item.ID,
		Name:      item.Name,
		Kind:      string(item.Kind),
		UnitPrice: item.UnitPrice,
		Currency:  strings.ToUpper(item.Currency),
		Active:    item.Active,
		CreatedAt: formatTime(item.CreatedAt),
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

func buildTaxRatePayload(rate services.TaxRate) taxRatePayload {
	return taxRatePayload{
		ID:        rate.ID,
		Name:      rate.Name,
		RateBps:   rate.RateBps,
		CreatedAt: formatTime(rate.CreatedAt),
		UpdatedAt: formatTime(rate.UpdatedAt),
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("catalog_not_found", "catalog entry not found"))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.Conflict("catalog_conflict", err.Error()))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.Internal("catalog_error", "failed to process catalog request"))
	}
}
