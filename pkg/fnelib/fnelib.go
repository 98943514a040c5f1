// Package fnelib is the public API surface of the FNE import and
// certification engine. It re-exports the core domain types so embedding
// applications can consume import reports and invoice states without
// reaching into internal packages.
//
// Example usage:
//
//	report, err := imp.ImportFile(ctx, "export.xlsx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Imported, report.Failed)
package fnelib

import (
	"github.com/mikaelarth/fnev4/internal/importer"
	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/resolve"
)

// Re-export core types for the public API
type (
	Invoice          = model.Invoice
	InvoiceCandidate = model.InvoiceCandidate
	LineItem         = model.LineItem
	VatType          = model.VatType
	Client           = model.Client
	ImportSession    = model.ImportSession
	ApiLog           = model.ApiLog
	Status           = model.Status
	PaymentMethod    = model.PaymentMethod
	VatCode          = model.VatCode
	TemplateCategory = model.TemplateCategory
)

// Re-export lifecycle states
const (
	StatusDraft     = model.StatusDraft
	StatusValidated = model.StatusValidated
	StatusCertified = model.StatusCertified
	StatusError     = model.StatusError
)

// Re-export VAT codes
const (
	VatStandard     = model.VatStandard
	VatReduced      = model.VatReduced
	VatExoneratedCo = model.VatExoneratedCo
	VatExoneratedLe = model.VatExoneratedLe
)

// Re-export payment methods
const (
	PaymentCash         = model.PaymentCash
	PaymentCard         = model.PaymentCard
	PaymentMobileMoney  = model.PaymentMobileMoney
	PaymentBankTransfer = model.PaymentBankTransfer
	PaymentCheck        = model.PaymentCheck
	PaymentCredit       = model.PaymentCredit
)

// DiversClientCode is the sentinel code for anonymous walk-in customers.
const DiversClientCode = resolve.DiversClientCode

// Re-export error types
type (
	ExtractionError    = model.ExtractionError
	FieldError         = model.FieldError
	Warning            = model.Warning
	CertificationError = model.CertificationError
)

// Re-export report types
type (
	ImportReport  = importer.Report
	ImportFailure = importer.Failure
)
