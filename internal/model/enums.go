package model

import (
	"fmt"
	"strings"
)

// Status is the certification lifecycle state of a persisted invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusValidated Status = "validated"
	StatusCertified Status = "certified"
	StatusError     Status = "error"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusValidated, StatusCertified, StatusError:
		return true
	}
	return false
}

// PaymentMethod is the closed set of payment methods accepted by the DGI.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentMobileMoney  PaymentMethod = "mobile-money"
	PaymentBankTransfer PaymentMethod = "bank-transfer"
	PaymentCheck        PaymentMethod = "check"
	PaymentCredit       PaymentMethod = "credit"
)

// paymentAliases maps the labels found in legacy Sage exports (French,
// inconsistent casing) onto the canonical enumeration.
var paymentAliases = map[string]PaymentMethod{
	"cash":          PaymentCash,
	"especes":       PaymentCash,
	"espèces":       PaymentCash,
	"card":          PaymentCard,
	"carte":         PaymentCard,
	"mobile-money":  PaymentMobileMoney,
	"mobile money":  PaymentMobileMoney,
	"bank-transfer": PaymentBankTransfer,
	"virement":      PaymentBankTransfer,
	"check":         PaymentCheck,
	"cheque":        PaymentCheck,
	"chèque":        PaymentCheck,
	"credit":        PaymentCredit,
	"crédit":        PaymentCredit,
	"a credit":      PaymentCredit,
}

// ParsePaymentMethod maps a raw spreadsheet label to a PaymentMethod.
// The offending literal is echoed back on failure so the import report can
// show exactly what the sheet contained.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if m, ok := paymentAliases[key]; ok {
		return m, nil
	}
	return "", fmt.Errorf("unknown payment method %q", raw)
}

// VatCode identifies one of the VAT categories issued by the authority.
type VatCode string

const (
	VatStandard     VatCode = "TVA"  // 18%
	VatReduced      VatCode = "TVAB" // 9%
	VatExoneratedCo VatCode = "TVAC" // 0%, conventional exoneration
	VatExoneratedLe VatCode = "TVAD" // 0%, legal exoneration
)

// TemplateCategory classifies the invoice counterparty.
type TemplateCategory string

const (
	TemplateB2B TemplateCategory = "B2B"
	TemplateB2C TemplateCategory = "B2C"
	TemplateB2G TemplateCategory = "B2G"
	TemplateB2F TemplateCategory = "B2F"
)

// ParseTemplateCategory maps a raw label to a TemplateCategory.
func ParseTemplateCategory(raw string) (TemplateCategory, error) {
	switch TemplateCategory(strings.ToUpper(strings.TrimSpace(raw))) {
	case TemplateB2B:
		return TemplateB2B, nil
	case TemplateB2C:
		return TemplateB2C, nil
	case TemplateB2G:
		return TemplateB2G, nil
	case TemplateB2F:
		return TemplateB2F, nil
	}
	return "", fmt.Errorf("unknown template category %q", raw)
}

// ClientKind classifies registry clients; it drives the template-category
// consistency check during validation.
type ClientKind string

const (
	ClientCompany    ClientKind = "company"
	ClientIndividual ClientKind = "individual"
	ClientGovernment ClientKind = "government"
	ClientForeign    ClientKind = "foreign"
)
