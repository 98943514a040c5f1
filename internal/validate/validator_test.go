package validate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/money"
	"github.com/mikaelarth/fnev4/internal/resolve"
	"github.com/mikaelarth/fnev4/internal/validate"
)

func referenceVatTypes() []model.VatType {
	return []model.VatType{
		{Code: model.VatStandard, Rate: money.MustFromString("18")},
		{Code: model.VatReduced, Rate: money.MustFromString("9")},
		{Code: model.VatExoneratedCo, Rate: money.Zero},
		{Code: model.VatExoneratedLe, Rate: money.Zero},
	}
}

func validCandidate() *model.InvoiceCandidate {
	return &model.InvoiceCandidate{
		Sheet:         "Sheet1",
		Number:        "FAC-2026-001",
		ClientCode:    "C0042",
		Date:          time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		PointOfSale:   "POS-01",
		PaymentRaw:    "cash",
		PaymentMethod: model.PaymentCash,
		Lines: []model.LineItem{
			{
				LineNumber: 1,
				UnitPrice:  money.MustFromString("1000"),
				Quantity:   money.MustFromString("2"),
				VatCode:    model.VatReduced,
			},
		},
	}
}

func companyIdentity() *resolve.Identity {
	return &resolve.Identity{Name: "SARL Ivoire", NCC: "9502363N", Kind: model.ClientCompany}
}

func TestValidate_CleanCandidate(t *testing.T) {
	v := validate.NewValidator(referenceVatTypes())

	report := v.Validate(validCandidate(), companyIdentity())
	assert.True(t, report.IsValid())
	assert.Empty(t, report.Warnings)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cand := validCandidate()
	cand.Number = ""
	cand.Date = time.Time{}
	cand.PaymentMethod = ""
	cand.PaymentRaw = "troc"
	cand.Lines[0].VatCode = "TVAX"

	v := validate.NewValidator(referenceVatTypes())
	report := v.Validate(cand, companyIdentity())

	require.False(t, report.IsValid())
	require.Len(t, report.Errors, 4, "every failure must be collected, not just the first")

	fields := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, "invoice_number")
	assert.Contains(t, fields, "invoice_date")
	assert.Contains(t, fields, "payment_method")
	assert.Contains(t, fields, "line_1.vat_code")
}

func TestValidate_PaymentErrorEchoesLiteral(t *testing.T) {
	cand := validCandidate()
	cand.PaymentMethod = ""
	cand.PaymentRaw = "cowrie shells"

	report := validate.NewValidator(referenceVatTypes()).Validate(cand, companyIdentity())

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0].Message, `"cowrie shells"`)
}

func TestValidate_LineQuantityAndPrice(t *testing.T) {
	cand := validCandidate()
	cand.Lines = append(cand.Lines, model.LineItem{
		LineNumber: 2,
		UnitPrice:  money.MustFromString("-5"),
		Quantity:   money.Zero,
		VatCode:    model.VatStandard,
	})

	report := validate.NewValidator(referenceVatTypes()).Validate(cand, companyIdentity())

	require.Len(t, report.Errors, 2)
	fields := []string{report.Errors[0].Field, report.Errors[1].Field}
	assert.Contains(t, fields, "line_2.quantity")
	assert.Contains(t, fields, "line_2.unit_price")
}

func TestValidate_TemplateMismatch(t *testing.T) {
	tests := []struct {
		name     string
		kind     model.ClientKind
		template model.TemplateCategory
		valid    bool
	}{
		{"government requires B2G", model.ClientGovernment, model.TemplateB2C, false},
		{"government with B2G", model.ClientGovernment, model.TemplateB2G, true},
		{"foreign requires B2F", model.ClientForeign, model.TemplateB2B, false},
		{"company requires B2B", model.ClientCompany, model.TemplateB2C, false},
		{"individual accepts B2C", model.ClientIndividual, model.TemplateB2C, true},
	}

	v := validate.NewValidator(referenceVatTypes())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := validCandidate()
			cand.Template = tt.template
			identity := &resolve.Identity{Name: "X", NCC: "123", Kind: tt.kind}

			report := v.Validate(cand, identity)
			assert.Equal(t, tt.valid, report.IsValid())
		})
	}
}

func TestValidate_B2BRequiresNCC(t *testing.T) {
	cand := validCandidate()
	cand.Template = model.TemplateB2B
	identity := &resolve.Identity{Name: "SARL Ivoire", Kind: model.ClientCompany}

	report := validate.NewValidator(referenceVatTypes()).Validate(cand, identity)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "client_ncc", report.Errors[0].Field)
}

func TestValidate_TotalsMismatchIsWarningOnly(t *testing.T) {
	cand := validCandidate()
	// 2 x 1000 at 9% = 2180.00 TTC; sheet claims 2300.
	cand.HasSourceTotal = true
	cand.SourceTotalTTC = money.MustFromString("2300")

	report := validate.NewValidator(referenceVatTypes()).Validate(cand, companyIdentity())

	assert.True(t, report.IsValid(), "a totals mismatch must not block the import")
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "total_ttc", report.Warnings[0].Field)
	assert.Contains(t, report.Warnings[0].Message, "2180.00")
	assert.Contains(t, report.Warnings[0].Message, "2300.00")
}

func TestValidate_TotalsWithinTolerance(t *testing.T) {
	cand := validCandidate()
	cand.HasSourceTotal = true
	cand.SourceTotalTTC = money.MustFromString("2180.01")

	report := validate.NewValidator(referenceVatTypes()).Validate(cand, companyIdentity())
	assert.Empty(t, report.Warnings)
}

func TestReport_AddErrors(t *testing.T) {
	report := &validate.Report{}
	assert.True(t, report.IsValid())

	report.AddErrors(model.NewFieldError("Sheet1", "unit_price", "D20", "douze", "not a number"))
	assert.False(t, report.IsValid())
	assert.Len(t, report.Errors, 1)
}
