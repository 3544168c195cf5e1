package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/deskforge/api/internal/domain"
	"github.com/deskforge/api/internal/platform/httpx"
	"github.com/deskforge/api/internal/services"
)

const eventPaymentIntentSucceeded = "payment_intent.succeeded"

// PaymentWebhookHandlers consumes payment provider callbacks. The HMAC
// middleware on the webhook group authenticates callers before these run.
type PaymentWebhookHandlers struct {
	workOrders services.WorkOrderService
}

// NewPaymentWebhookHandlers constructs a new PaymentWebhookHandlers instance.
func NewPaymentWebhookHandlers(workOrders services.WorkOrderService) *PaymentWebhookHandlers {
	return &PaymentWebhookHandlers{workOrders: workOrders}
}

// Routes registers the /webhooks endpoints on the given group.
func (h *PaymentWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments", h.handlePaymentEvent)
}

type paymentEventRequest struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type paymentEventResponse struct {
	Received    bool   `json:"received"`
	WorkOrderID string `json:"workOrderId,omitempty"`
}

// handlePaymentEvent marks the referenced work order as paid when the provider
// reports a successful payment intent. Unknown event types are acknowledged so
// the provider does not retry them.
func (h *PaymentWebhookHandlers) handlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.workOrders == nil {
		writeServiceUnavailable(ctx, w, "work order")
		return
	}

	var event paymentEventRequest
	if !decodeMutationBody(ctx, w, r, maxMutationBody, &event) {
		return
	}

	if !strings.EqualFold(strings.TrimSpace(event.Type), eventPaymentIntentSucceeded) {
		writeJSONResponse(w, http.StatusOK, paymentEventResponse{Received: true})
		return
	}

	workOrderID := strings.TrimSpace(event.Data.Object.Metadata["workOrderId"])
	if workOrderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "event metadata is missing workOrderId"))
		return
	}

	paid := domain.BillingStatusPaid
	_, err := h.workOrders.Update(ctx, services.UpdateWorkOrderCommand{
		OrderID: workOrderID,
		Patch:   services.WorkOrderPatch{BillingStatus: &paid},
		Actor:   "webhook:payments",
	})
	if err != nil {
		writeWorkOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentEventResponse{
		Received:    true,
		WorkOrderID: workOrderID,
	})
}
