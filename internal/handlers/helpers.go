package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deskforge/api/internal/platform/auth"
	"github.com/deskforge/api/internal/services"
)

const (
	defaultPageSize    = 20
	maxPageSize        = 100
	maxMutationBody    = 64 * 1024
	maxBulkRequestBody = 256 * 1024
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxMutationBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func pointerTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("must be RFC3339 timestamp")
}

func parsePageSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultPageSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("page_size must be an integer")
	}
	switch {
	case size <= 0:
		return defaultPageSize, nil
	case size > maxPageSize:
		return maxPageSize, nil
	default:
		return size, nil
	}
}

func parsePagination(query map[string][]string) (services.Pagination, error) {
	first := func(key string) string {
		values := query[key]
		if len(values) == 0 {
			return ""
		}
		return strings.TrimSpace(values[0])
	}
	size, err := parsePageSize(first("page_size"))
	if err != nil {
		return services.Pagination{}, err
	}
	return services.Pagination{
		PageSize:  size,
		PageToken: first("page_token"),
	}, nil
}

func parseSortOrder(raw string) (services.SortOrder, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", true
	case "asc":
		return services.SortAsc, true
	case "desc":
		return services.SortDesc, true
	default:
		return "", false
	}
}

func actorFromContext(r *http.Request) string {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil {
		return ""
	}
	return strings.TrimSpace(identity.Subject)
}

// Bulk request and response envelopes shared by every resource.

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type bulkFailurePayload struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type bulkResultResponse struct {
	ProcessedCount int                  `json:"processedCount"`
	FailedItems    []bulkFailurePayload `json:"failedItems,omitempty"`
}

func buildBulkResult(result services.BulkResult) bulkResultResponse {
	response := bulkResultResponse{ProcessedCount: result.Processed}
	if len(result.Failures) == 0 {
		return response
	}
	response.FailedItems = make([]bulkFailurePayload, 0, len(result.Failures))
	for _, failure := range result.Failures {
		response.FailedItems = append(response.FailedItems, bulkFailurePayload{
			ID:    failure.ID,
			Error: failure.Reason,
		})
	}
	return response
}

func cleanIDList(ids []string) []string {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

// Line item request and response shapes shared by work orders and estimates.

type lineRequest struct {
	CatalogItemID  string  `json:"catalogItemId"`
	Quantity       int     `json:"quantity"`
	DiscountAmount int64   `json:"discountAmount"`
	TaxRateID      *string `json:"taxRateId"`
}

func buildLineInputs(lines []lineRequest) []services.LineInput {
	inputs := make([]services.LineInput, 0, len(lines))
	for _, line := range lines {
		inputs = append(inputs, services.LineInput{
			CatalogItemID:  strings.TrimSpace(line.CatalogItemID),
			Quantity:       line.Quantity,
			DiscountAmount: line.DiscountAmount,
			TaxRateID:      cloneStringPointer(line.TaxRateID),
		})
	}
	return inputs
}

type linePayload struct {
	CatalogItemID  string  `json:"catalogItemId"`
	Kind           string  `json:"kind"`
	Quantity       int     `json:"quantity"`
	UnitAmount     int64   `json:"unitAmount"`
	DiscountAmount int64   `json:"discountAmount"`
	TaxRateID      *string `json:"taxRateId,omitempty"`
	Position       int     `json:"position"`
}

type lineTotalsPayload struct {
	CatalogItemID string `json:"catalogItemId"`
	ItemTotal     int64  `json:"itemTotal"`
	TaxAmount     int64  `json:"taxAmount"`
	Discount      int64  `json:"discount"`
}

type totalsPayload struct {
	ServicesSubtotal int64               `json:"servicesSubtotal"`
	PartsSubtotal    int64               `json:"partsSubtotal"`
	TotalTax         int64               `json:"totalTax"`
	TotalDiscount    int64               `json:"totalDiscount"`
	GrandTotal       int64               `json:"grandTotal"`
	Lines            []lineTotalsPayload `json:"lines"`
}

func buildLinePayloads(lines []services.LineItem) []linePayload {
	payloads := make([]linePayload, 0, len(lines))
	for _, line := range lines {
		payloads = append(payloads, linePayload{
			CatalogItemID:  line.CatalogItemID,
			Kind:           string(line.Kind),
			Quantity:       line.Quantity,
			UnitAmount:     line.UnitAmount,
			DiscountAmount: line.DiscountAmount,
			TaxRateID:      cloneStringPointer(line.TaxRateID),
			Position:       line.Position,
		})
	}
	return payloads
}

func buildTotalsPayload(totals services.OrderTotals) totalsPayload {
	payload := totalsPayload{
		ServicesSubtotal: totals.ServicesSubtotal,
		PartsSubtotal:    totals.PartsSubtotal,
		TotalTax:         totals.TotalTax,
		TotalDiscount:    totals.TotalDiscount,
		GrandTotal:       totals.GrandTotal,
		Lines:            make([]lineTotalsPayload, 0, len(totals.Lines)),
	}
	for _, line := range totals.Lines {
		payload.Lines = append(payload.Lines, lineTotalsPayload{
			CatalogItemID: line.CatalogItemID,
			ItemTotal:     line.ItemTotal,
			TaxAmount:     line.TaxAmount,
			Discount:      line.Discount,
		})
	}
	return payload
}

func trimmedPointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
