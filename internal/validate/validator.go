// Package validate aggregates structural and business-rule checks over an
// extracted candidate into one report. Checks never short-circuit: a single
// report surfaces every problem the sheet has.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/money"
	"github.com/mikaelarth/fnev4/internal/resolve"
	"github.com/mikaelarth/fnev4/internal/vat"
)

// TotalsTolerance is the accepted absolute gap between recomputed and
// source-provided totals before a warning is raised.
var TotalsTolerance = money.MustFromString("0.01")

// Report is the aggregated outcome of validating one candidate.
// Warnings alone do not block import.
type Report struct {
	Errors   []*model.FieldError
	Warnings []model.Warning
}

// IsValid reports whether the candidate may be persisted.
func (r *Report) IsValid() bool {
	return len(r.Errors) == 0
}

// AddErrors merges upstream (extraction, resolution) field errors into the
// report so one document covers the whole sheet.
func (r *Report) AddErrors(errs ...*model.FieldError) {
	r.Errors = append(r.Errors, errs...)
}

// Validator runs the business-rule checks. The VAT reference set is fixed
// at construction; every line's code must be a member.
type Validator struct {
	rates map[model.VatCode]decimal.Decimal
}

// NewValidator creates a validator over the given VAT reference set.
func NewValidator(vatTypes []model.VatType) *Validator {
	rates := make(map[model.VatCode]decimal.Decimal, len(vatTypes))
	for _, vt := range vatTypes {
		rates[vt.Code] = vt.Rate
	}
	return &Validator{rates: rates}
}

// Rate returns the rate for a known VAT code.
func (v *Validator) Rate(code model.VatCode) (decimal.Decimal, bool) {
	r, ok := v.rates[code]
	return r, ok
}

// Validate checks the candidate against every rule and returns the full
// report. identity may be nil when resolution already failed.
func (v *Validator) Validate(cand *model.InvoiceCandidate, identity *resolve.Identity) *Report {
	report := &Report{}

	if cand.Number == "" {
		report.Errors = append(report.Errors,
			model.NewFieldError(cand.Sheet, "invoice_number", "", nil, "invoice number is required"))
	}
	if cand.Date.IsZero() {
		report.Errors = append(report.Errors,
			model.NewFieldError(cand.Sheet, "invoice_date", "", nil, "invoice date is required"))
	}
	if len(cand.Lines) == 0 {
		report.Errors = append(report.Errors,
			model.NewFieldError(cand.Sheet, "lines", "", nil, "at least one line item is required"))
	}

	if cand.PaymentMethod == "" {
		report.Errors = append(report.Errors,
			model.NewFieldError(cand.Sheet, "payment_method", "", cand.PaymentRaw,
				fmt.Sprintf("%q is not an accepted payment method", cand.PaymentRaw)))
	}

	v.checkLines(cand, report)
	v.checkTemplate(cand, identity, report)
	v.checkTotals(cand, report)

	return report
}

func (v *Validator) checkLines(cand *model.InvoiceCandidate, report *Report) {
	for _, line := range cand.Lines {
		if _, ok := v.rates[line.VatCode]; !ok {
			report.Errors = append(report.Errors,
				model.NewFieldError(cand.Sheet, fmt.Sprintf("line_%d.vat_code", line.LineNumber), "",
					string(line.VatCode), "VAT code is not in the reference table"))
		}
		if line.Quantity.IsZero() || line.Quantity.IsNegative() {
			report.Errors = append(report.Errors,
				model.NewFieldError(cand.Sheet, fmt.Sprintf("line_%d.quantity", line.LineNumber), "",
					line.Quantity.String(), "quantity must be positive"))
		}
		if line.UnitPrice.IsNegative() {
			report.Errors = append(report.Errors,
				model.NewFieldError(cand.Sheet, fmt.Sprintf("line_%d.unit_price", line.LineNumber), "",
					line.UnitPrice.String(), "unit price must not be negative"))
		}
	}
}

// checkTemplate verifies template category against the resolved client type
// where determinable. A blank template is filled in later from the
// identity, so only explicit contradictions are flagged.
func (v *Validator) checkTemplate(cand *model.InvoiceCandidate, identity *resolve.Identity, report *Report) {
	if identity == nil || cand.Template == "" {
		return
	}

	mismatch := func(expected model.TemplateCategory) {
		report.Errors = append(report.Errors,
			model.NewFieldError(cand.Sheet, "template", "", string(cand.Template),
				fmt.Sprintf("template %s does not match resolved client type %s (expected %s)",
					cand.Template, identity.Kind, expected)))
	}

	switch identity.Kind {
	case model.ClientGovernment:
		if cand.Template != model.TemplateB2G {
			mismatch(model.TemplateB2G)
		}
	case model.ClientForeign:
		if cand.Template != model.TemplateB2F {
			mismatch(model.TemplateB2F)
		}
	case model.ClientCompany:
		if cand.Template != model.TemplateB2B {
			mismatch(model.TemplateB2B)
		}
	}

	if cand.Template == model.TemplateB2B && identity.NCC == "" {
		report.Errors = append(report.Errors,
			model.NewFieldError(cand.Sheet, "client_ncc", "", nil, "B2B invoices require the client NCC"))
	}
}

// checkTotals recomputes line amounts and reconciles against the
// source-provided total. Mismatches beyond tolerance are warnings, not
// errors: the recomputed values are what gets persisted either way.
func (v *Validator) checkTotals(cand *model.InvoiceCandidate, report *Report) {
	if !cand.HasSourceTotal {
		return
	}

	amounts := make([]vat.LineAmounts, 0, len(cand.Lines))
	for _, line := range cand.Lines {
		rate, ok := v.rates[line.VatCode]
		if !ok {
			return // unknown code is already an error; totals are moot
		}
		amounts = append(amounts, vat.ComputeLine(line.UnitPrice, line.Quantity, line.DiscountPct, rate))
	}

	totals := vat.SumLines(amounts)
	if !money.WithinTolerance(totals.TTC, cand.SourceTotalTTC, TotalsTolerance) {
		report.Warnings = append(report.Warnings, model.Warning{
			Field: "total_ttc",
			Message: fmt.Sprintf("recomputed total %s differs from sheet total %s",
				totals.TTC.StringFixed(2), cand.SourceTotalTTC.StringFixed(2)),
		})
	}
}
