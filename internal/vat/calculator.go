// Package vat computes per-line VAT amounts. Rounding happens at the line
// level before any summation, matching the authority's reconciliation rule:
// invoice totals are sums of already-rounded line values.
package vat

import (
	"github.com/shopspring/decimal"

	"github.com/mikaelarth/fnev4/internal/money"
)

// LineAmounts holds the three computed amounts of one invoice line.
type LineAmounts struct {
	HT  decimal.Decimal
	Vat decimal.Decimal
	TTC decimal.Decimal
}

// ComputeLine computes the line amounts for a unit price, quantity, line
// discount percentage and VAT rate percentage. Each amount is rounded
// half-up to two decimals before the next is derived.
func ComputeLine(unitPrice, quantity, discountPct, ratePct decimal.Decimal) LineAmounts {
	gross := unitPrice.Mul(quantity)
	if discountPct.IsPositive() {
		gross = gross.Sub(money.Percent(gross, discountPct))
	}
	ht := money.Round(gross)
	vatAmt := money.Percent(ht, ratePct)
	ttc := money.Round(ht.Add(vatAmt))
	return LineAmounts{HT: ht, Vat: vatAmt, TTC: ttc}
}

// Totals sums already-rounded line amounts into invoice totals.
type Totals struct {
	HT  decimal.Decimal
	Vat decimal.Decimal
	TTC decimal.Decimal
}

// SumLines folds per-line amounts into invoice totals. No re-rounding is
// applied; the inputs are line-level rounded already.
func SumLines(lines []LineAmounts) Totals {
	t := Totals{HT: money.Zero, Vat: money.Zero, TTC: money.Zero}
	for _, l := range lines {
		t.HT = t.HT.Add(l.HT)
		t.Vat = t.Vat.Add(l.Vat)
		t.TTC = t.TTC.Add(l.TTC)
	}
	return t
}
