package services

import (
	domain "github.com/deskforge/api/internal/domain"
)

// ComputeOrderTotals derives the money breakdown for an aggregate's line set.
// It is pure: no storage access, no error paths. Amounts are minor currency
// units; rates is keyed by tax rate id and lines referencing an unknown rate
// are taxed at zero.
//
// Tax is computed per line on the pre-discount item total. The flat line
// discount is subtracted from the grand total afterwards and never shrinks
// the taxable base. Changing that ordering changes every invoiced amount, so
// it stays as is until finance decides otherwise.
func ComputeOrderTotals(lines []LineItem, rates map[string]TaxRate) OrderTotals {
	totals := OrderTotals{}
	if len(lines) > 0 {
		totals.Lines = make([]LineTotals, 0, len(lines))
	}

	for _, line := range lines {
		itemTotal := line.UnitAmount * int64(line.Quantity)

		switch line.Kind {
		case domain.CatalogItemKindService:
			totals.ServicesSubtotal += itemTotal
		case domain.CatalogItemKindPart:
			totals.PartsSubtotal += itemTotal
		}

		var tax int64
		if line.TaxRateID != nil {
			if rate, ok := rates[*line.TaxRateID]; ok {
				tax = applyRateBps(itemTotal, rate.RateBps)
			}
		}

		totals.TotalTax += tax
		totals.TotalDiscount += line.DiscountAmount
		totals.Lines = append(totals.Lines, LineTotals{
			CatalogItemID: line.CatalogItemID,
			ItemTotal:     itemTotal,
			TaxAmount:     tax,
			Discount:      line.DiscountAmount,
		})
	}

	totals.GrandTotal = totals.ServicesSubtotal + totals.PartsSubtotal + totals.TotalTax - totals.TotalDiscount
	return totals
}

// applyRateBps multiplies a minor-unit amount by a basis-point rate and
// rounds half up. 825 bps on 10000 yields 825; 825 bps on 99 yields 8.
func applyRateBps(amount, rateBps int64) int64 {
	product := amount * rateBps
	quotient := product / 10000
	remainder := product % 10000
	if remainder < 0 {
		remainder = -remainder
	}
	if remainder*2 >= 10000 {
		if product < 0 {
			quotient--
		} else {
			quotient++
		}
	}
	return quotient
}
