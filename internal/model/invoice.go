// Package model defines the domain types shared by extraction, validation,
// persistence and certification: invoices and their line items, the VAT
// reference table, import sessions and the append-only API audit log.
package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceCandidate is the transient result of extracting one sheet. It is
// never persisted; validation either promotes it into a Draft Invoice or
// reports it as a failed sheet.
type InvoiceCandidate struct {
	Sheet string // source sheet name, for reporting

	Number        string
	ClientCode    string
	ClientName    string // override cell, authoritative on the divers path
	ClientNCC     string // override cell, optional
	Date          time.Time
	PointOfSale   string
	PaymentRaw    string // raw cell content, parsed during validation
	PaymentMethod PaymentMethod
	Template      TemplateCategory
	GlobalDiscPct decimal.Decimal

	Lines []LineItem

	// Source-provided TTC total, when the sheet carries one. Recomputed
	// totals are reconciled against it within a 0.01 tolerance.
	SourceTotalTTC decimal.Decimal
	HasSourceTotal bool
}

// LineItem is one invoice line. Amounts are computed at the line level and
// rounded before any summation.
type LineItem struct {
	ID        uint `gorm:"primarykey" json:"-"`
	InvoiceID uint `gorm:"index" json:"-"`

	LineNumber  int    `json:"line_number"` // stable 1-based order
	ProductCode string `json:"product_code"`
	Description string `json:"description"`

	UnitPrice   decimal.Decimal `gorm:"type:numeric" json:"unit_price"`
	Quantity    decimal.Decimal `gorm:"type:numeric" json:"quantity"`
	VatCode     VatCode         `json:"vat_code"`
	DiscountPct decimal.Decimal `gorm:"type:numeric" json:"discount_pct"`

	AmountHT  decimal.Decimal `gorm:"type:numeric" json:"amount_ht"`
	VatAmount decimal.Decimal `gorm:"type:numeric" json:"vat_amount"`
	AmountTTC decimal.Decimal `gorm:"type:numeric" json:"amount_ttc"`

	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Invoice is the persisted form of a candidate that passed validation.
// The certification orchestrator owns every Status mutation after creation.
type Invoice struct {
	ID uint `gorm:"primarykey" json:"id"`

	Number      string           `gorm:"index" json:"number"`
	ClientCode  string           `json:"client_code"`
	ClientName  string           `json:"client_name"`
	ClientNCC   string           `json:"client_ncc,omitempty"`
	Date        time.Time        `json:"date"`
	PointOfSale string           `json:"point_of_sale"`
	Payment     PaymentMethod    `json:"payment_method"`
	Template    TemplateCategory `json:"template"`

	Status Status `gorm:"index" json:"status"`

	Lines []LineItem `json:"lines"`

	GlobalDiscPct decimal.Decimal `gorm:"type:numeric" json:"global_discount_pct"`
	TotalHT       decimal.Decimal `gorm:"type:numeric" json:"total_ht"`
	TotalVat      decimal.Decimal `gorm:"type:numeric" json:"total_vat"`
	TotalTTC      decimal.Decimal `gorm:"type:numeric" json:"total_ttc"`

	// Certification artifacts, set atomically with StatusCertified.
	FneReference   string     `json:"fne_reference,omitempty"`
	FneToken       string     `json:"fne_token,omitempty"`
	QRPayload      string     `json:"qr_payload,omitempty"`
	StickerBalance int        `json:"sticker_balance,omitempty"`
	CertifiedAt    *time.Time `json:"certified_at,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`

	ImportSessionID *uint `gorm:"index" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Certifiable reports whether the invoice may still be submitted, given the
// configured retry cap. Certified is terminal; Error is retryable only
// below the cap.
func (inv *Invoice) Certifiable(maxRetries int) bool {
	switch inv.Status {
	case StatusDraft, StatusValidated:
		return true
	case StatusError:
		return inv.RetryCount < maxRetries
	}
	return false
}

// VatType is one row of the VAT reference table issued by the authority.
// Rates are immutable once a certified invoice references them.
type VatType struct {
	ID          uint            `gorm:"primarykey" json:"-"`
	Code        VatCode         `gorm:"uniqueIndex" json:"code"`
	Rate        decimal.Decimal `gorm:"type:numeric" json:"rate"` // percent
	Description string          `json:"description"`

	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Client is a registry entry looked up by code during resolution.
type Client struct {
	ID   uint       `gorm:"primarykey" json:"id"`
	Code string     `gorm:"uniqueIndex" json:"code"`
	Name string     `json:"name"`
	NCC  string     `json:"ncc,omitempty"`
	Kind ClientKind `json:"kind"`

	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ImportSession records one import attempt over one workbook. Invoices link
// back to it; deleting a session never cascades into its invoices.
type ImportSession struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	SessionID  string `gorm:"uniqueIndex" json:"session_id"`
	SourceFile string `json:"source_file"`

	SheetsFound int `json:"sheets_found"`
	Imported    int `json:"imported"`
	Failed      int `json:"failed"`

	// Per-sheet failure details, serialized JSON.
	ErrorDetail string `json:"-"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ApiLog is one outbound certification attempt. Rows are append-only audit
// artifacts and are never mutated after write.
type ApiLog struct {
	ID        uint `gorm:"primarykey" json:"id"`
	InvoiceID uint `gorm:"index" json:"invoice_id"`

	Attempt     int    `json:"attempt"`
	RequestBody string `json:"request_body"`
	Response    string `json:"response"`
	StatusCode  int    `json:"status_code"`
	Success     bool   `json:"success"`
	LatencyMS   int64  `json:"latency_ms"`

	CreatedAt time.Time `json:"created_at"`
}
