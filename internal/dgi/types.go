package dgi

import (
	"github.com/mikaelarth/fnev4/internal/model"
)

// SignRequest is the certification payload sent to the authority.
type SignRequest struct {
	InvoiceNumber string     `json:"invoice_number"`
	InvoiceDate   string     `json:"invoice_date"` // yyyy-MM-dd
	PointOfSale   string     `json:"point_of_sale"`
	Template      string     `json:"template"`
	PaymentMethod string     `json:"payment_method"`
	Client        SignClient `json:"client"`
	Items         []SignItem `json:"items"`
	TotalHT       string     `json:"total_ht"`
	TotalVat      string     `json:"total_vat"`
	TotalTTC      string     `json:"total_ttc"`
}

// SignClient is the counterparty block. NCC is omitted for anonymous
// customers.
type SignClient struct {
	Name string `json:"name"`
	NCC  string `json:"ncc,omitempty"`
}

// SignItem is one typed invoice line.
type SignItem struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	VatCode     string `json:"vat_code"`
	AmountHT    string `json:"amount_ht"`
	VatAmount   string `json:"vat_amount"`
	AmountTTC   string `json:"amount_ttc"`
}

// SignResponse is the success envelope: the reference number, the
// verification token the QR payload is built from, and the remaining
// sticker quota.
type SignResponse struct {
	Reference      string `json:"reference"`
	Token          string `json:"token"`
	BalanceSticker int    `json:"balance_sticker"`
	Warning        string `json:"warning,omitempty"`
}

// errorEnvelope is the error envelope returned on rejection.
type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BuildSignRequest converts a persisted invoice into the wire payload.
// Amounts are serialized with two decimals, the form the authority
// reconciles line by line.
func BuildSignRequest(inv *model.Invoice) *SignRequest {
	req := &SignRequest{
		InvoiceNumber: inv.Number,
		InvoiceDate:   inv.Date.Format("2006-01-02"),
		PointOfSale:   inv.PointOfSale,
		Template:      string(inv.Template),
		PaymentMethod: string(inv.Payment),
		Client: SignClient{
			Name: inv.ClientName,
			NCC:  inv.ClientNCC,
		},
		TotalHT:  inv.TotalHT.StringFixed(2),
		TotalVat: inv.TotalVat.StringFixed(2),
		TotalTTC: inv.TotalTTC.StringFixed(2),
	}
	for _, line := range inv.Lines {
		req.Items = append(req.Items, SignItem{
			Code:        line.ProductCode,
			Description: line.Description,
			Quantity:    line.Quantity.String(),
			UnitPrice:   line.UnitPrice.StringFixed(2),
			VatCode:     string(line.VatCode),
			AmountHT:    line.AmountHT.StringFixed(2),
			VatAmount:   line.VatAmount.StringFixed(2),
			AmountTTC:   line.AmountTTC.StringFixed(2),
		})
	}
	return req
}
