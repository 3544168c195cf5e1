package services

import (
	"testing"

	domain "github.com/deskforge/api/internal/domain"
)

func TestComputeOrderTotalsEmptyLines(t *testing.T) {
	totals := ComputeOrderTotals(nil, nil)
	if totals.GrandTotal != 0 || totals.ServicesSubtotal != 0 || totals.PartsSubtotal != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
	if totals.Lines != nil {
		t.Fatalf("expected nil line totals, got %v", totals.Lines)
	}
}

func TestComputeOrderTotalsWorkedExample(t *testing.T) {
	rates := map[string]domain.TaxRate{
		"tax_20": {ID: "tax_20", RateBps: 2000},
	}
	lines := []domain.LineItem{
		{
			CatalogItemID:  "itm_labor",
			Kind:           domain.CatalogItemKindService,
			Quantity:       1,
			UnitAmount:     10000,
			DiscountAmount: 1000,
			TaxRateID:      valuePtr("tax_20"),
		},
	}

	totals := ComputeOrderTotals(lines, rates)

	if totals.ServicesSubtotal != 10000 {
		t.Fatalf("services subtotal = %d, want 10000", totals.ServicesSubtotal)
	}
	// Tax applies to the pre-discount item total: 20% of 10000.
	if totals.TotalTax != 2000 {
		t.Fatalf("total tax = %d, want 2000", totals.TotalTax)
	}
	if totals.TotalDiscount != 1000 {
		t.Fatalf("total discount = %d, want 1000", totals.TotalDiscount)
	}
	if totals.GrandTotal != 11000 {
		t.Fatalf("grand total = %d, want 11000", totals.GrandTotal)
	}
	if len(totals.Lines) != 1 {
		t.Fatalf("expected 1 line total, got %d", len(totals.Lines))
	}
	line := totals.Lines[0]
	if line.ItemTotal != 10000 || line.TaxAmount != 2000 || line.Discount != 1000 {
		t.Fatalf("unexpected line totals %+v", line)
	}
}

func TestComputeOrderTotalsSplitsSubtotalsByKind(t *testing.T) {
	lines := []domain.LineItem{
		{CatalogItemID: "itm_svc", Kind: domain.CatalogItemKindService, Quantity: 2, UnitAmount: 2500},
		{CatalogItemID: "itm_part", Kind: domain.CatalogItemKindPart, Quantity: 3, UnitAmount: 400},
	}

	totals := ComputeOrderTotals(lines, nil)

	if totals.ServicesSubtotal != 5000 {
		t.Fatalf("services subtotal = %d, want 5000", totals.ServicesSubtotal)
	}
	if totals.PartsSubtotal != 1200 {
		t.Fatalf("parts subtotal = %d, want 1200", totals.PartsSubtotal)
	}
	if totals.GrandTotal != 6200 {
		t.Fatalf("grand total = %d, want 6200", totals.GrandTotal)
	}
}

func TestComputeOrderTotalsUnknownRateTaxesNothing(t *testing.T) {
	lines := []domain.LineItem{
		{CatalogItemID: "itm_a", Kind: domain.CatalogItemKindService, Quantity: 1, UnitAmount: 9999, TaxRateID: valuePtr("tax_missing")},
	}

	totals := ComputeOrderTotals(lines, map[string]domain.TaxRate{})

	if totals.TotalTax != 0 {
		t.Fatalf("total tax = %d, want 0 for unknown rate", totals.TotalTax)
	}
	if totals.GrandTotal != 9999 {
		t.Fatalf("grand total = %d, want 9999", totals.GrandTotal)
	}
}

func TestComputeOrderTotalsIsDeterministic(t *testing.T) {
	rates := map[string]domain.TaxRate{
		"tax_825": {ID: "tax_825", RateBps: 825},
	}
	lines := []domain.LineItem{
		{CatalogItemID: "itm_a", Kind: domain.CatalogItemKindService, Quantity: 3, UnitAmount: 3333, DiscountAmount: 500, TaxRateID: valuePtr("tax_825")},
		{CatalogItemID: "itm_b", Kind: domain.CatalogItemKindPart, Quantity: 7, UnitAmount: 149, TaxRateID: valuePtr("tax_825")},
	}

	first := ComputeOrderTotals(lines, rates)
	for i := 0; i < 100; i++ {
		next := ComputeOrderTotals(lines, rates)
		if next.GrandTotal != first.GrandTotal || next.TotalTax != first.TotalTax {
			t.Fatalf("run %d produced %+v, want %+v", i, next, first)
		}
	}
}

func TestApplyRateBpsRoundsHalfUp(t *testing.T) {
	cases := []struct {
		name    string
		amount  int64
		rateBps int64
		want    int64
	}{
		{"exact", 10000, 825, 825},
		{"roundsDown", 99, 825, 8},     // 8.1675
		{"belowHalf", 103, 825, 8},     // 8.4975
		{"halfRoundsUp", 200, 25, 1},   // 0.5
		{"justBelowHalf", 199, 25, 0},  // 0.4975
		{"zeroRate", 10000, 0, 0},
		{"zeroAmount", 0, 825, 0},
		{"negativeHalf", -200, 25, -1}, // -0.5 rounds away from zero
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := applyRateBps(tc.amount, tc.rateBps); got != tc.want {
				t.Fatalf("applyRateBps(%d, %d) = %d, want %d", tc.amount, tc.rateBps, got, tc.want)
			}
		})
	}
}
