// Package importer runs the import pipeline for one workbook: extraction,
// client resolution, validation, and persistence of the invoices that pass,
// all tracked under one import session.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/mikaelarth/fnev4/internal/excel"
	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/resolve"
	"github.com/mikaelarth/fnev4/internal/validate"
	"github.com/mikaelarth/fnev4/internal/vat"
)

// Store is the persistence surface the importer consumes.
type Store interface {
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	InvoiceByNumber(ctx context.Context, number string) (*model.Invoice, error)
	CreateSession(ctx context.Context, session *model.ImportSession) error
	FinishSession(ctx context.Context, id uint, sheetsFound, imported, failed int, errorDetail string) error
}

// Failure describes one failed sheet for the import report.
type Failure struct {
	Sheet  string `json:"sheet"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// Report is the structured outcome of one import, consumed by the
// presentation layer.
type Report struct {
	SessionID      string    `json:"session_id"`
	SourceFile     string    `json:"source_file"`
	TotalProcessed int       `json:"total_processed"`
	Imported       int       `json:"imported"`
	Failed         int       `json:"failed"`
	Failures       []Failure `json:"failures,omitempty"`
	GlobalErrors   []string  `json:"global_errors,omitempty"`
	GlobalWarnings []string  `json:"global_warnings,omitempty"`
}

// Importer wires extractor, resolver and validator over the store. All
// dependencies are explicit; there is no ambient lookup.
type Importer struct {
	store     Store
	extractor *excel.Extractor
	resolver  *resolve.Resolver
	validator *validate.Validator
	log       *logrus.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(im *Importer) {
		im.log = l
	}
}

// New creates an Importer.
func New(st Store, extractor *excel.Extractor, resolver *resolve.Resolver, validator *validate.Validator, opts ...Option) *Importer {
	im := &Importer{
		store:     st,
		extractor: extractor,
		resolver:  resolver,
		validator: validator,
		log:       logrus.New(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile imports one workbook from disk.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Report, error) {
	f, err := excel.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return im.importWorkbook(ctx, f, path)
}

// ImportReader imports one workbook from a stream (HTTP upload path).
func (im *Importer) ImportReader(ctx context.Context, r io.Reader, name string) (*Report, error) {
	f, err := excel.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", name, err)
	}
	defer f.Close()
	return im.importWorkbook(ctx, f, name)
}

func (im *Importer) importWorkbook(ctx context.Context, f *excelize.File, source string) (*Report, error) {
	session := &model.ImportSession{
		SessionID:  uuid.NewString(),
		SourceFile: source,
		StartedAt:  time.Now().UTC(),
	}
	if err := im.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create import session: %w", err)
	}

	report := &Report{
		SessionID:  session.SessionID,
		SourceFile: source,
	}

	sheets := f.GetSheetList()
	report.TotalProcessed = len(sheets)

	for _, sheet := range sheets {
		im.importSheet(ctx, f, sheet, session, report)
	}

	detail, err := json.Marshal(report.Failures)
	if err != nil {
		detail = []byte("[]")
	}
	if err := im.store.FinishSession(ctx, session.ID, len(sheets), report.Imported, report.Failed, string(detail)); err != nil {
		im.log.WithError(err).WithField("session", session.SessionID).Error("failed to finalize import session")
	}

	im.log.WithFields(logrus.Fields{
		"session":  session.SessionID,
		"source":   source,
		"sheets":   len(sheets),
		"imported": report.Imported,
		"failed":   report.Failed,
	}).Info("import finished")

	return report, nil
}

// importSheet carries one sheet through the pipeline. Every failure mode
// ends up in the report; nothing is thrown past this boundary.
func (im *Importer) importSheet(ctx context.Context, f *excelize.File, sheet string, session *model.ImportSession, report *Report) {
	cand, extractErrs, err := im.extractor.ExtractSheet(f, sheet)
	if err != nil {
		report.Failed++
		report.Failures = append(report.Failures, Failure{Sheet: sheet, Reason: err.Error()})
		return
	}

	identity, resolveErrs := im.resolver.Resolve(ctx, cand)

	result := im.validator.Validate(cand, identity)
	result.AddErrors(extractErrs...)
	result.AddErrors(resolveErrs...)

	if result.IsValid() {
		if _, err := im.store.InvoiceByNumber(ctx, cand.Number); err == nil {
			result.AddErrors(model.NewFieldError(sheet, "invoice_number", "", cand.Number,
				"an invoice with this number was already imported"))
		}
	}

	for _, w := range result.Warnings {
		report.GlobalWarnings = append(report.GlobalWarnings, fmt.Sprintf("[%s] %s", sheet, w.String()))
	}

	if !result.IsValid() {
		report.Failed++
		for _, fe := range result.Errors {
			report.Failures = append(report.Failures, Failure{Sheet: sheet, Field: fe.Field, Reason: fe.Message})
		}
		return
	}

	inv, err := im.buildInvoice(cand, identity, session.ID)
	if err != nil {
		report.Failed++
		report.Failures = append(report.Failures, Failure{Sheet: sheet, Reason: err.Error()})
		return
	}

	if err := im.store.CreateInvoice(ctx, inv); err != nil {
		report.Failed++
		report.Failures = append(report.Failures, Failure{Sheet: sheet, Reason: "persist failed: " + err.Error()})
		return
	}

	report.Imported++
}

// buildInvoice promotes a validated candidate into a Draft invoice, always
// recomputing amounts from the line data rather than trusting the sheet.
func (im *Importer) buildInvoice(cand *model.InvoiceCandidate, identity *resolve.Identity, sessionID uint) (*model.Invoice, error) {
	amounts := make([]vat.LineAmounts, len(cand.Lines))
	for i := range cand.Lines {
		rate, ok := im.validator.Rate(cand.Lines[i].VatCode)
		if !ok {
			return nil, fmt.Errorf("line %d: VAT code %s not in reference table", i+1, cand.Lines[i].VatCode)
		}
		amounts[i] = vat.ComputeLine(cand.Lines[i].UnitPrice, cand.Lines[i].Quantity, cand.Lines[i].DiscountPct, rate)
		cand.Lines[i].AmountHT = amounts[i].HT
		cand.Lines[i].VatAmount = amounts[i].Vat
		cand.Lines[i].AmountTTC = amounts[i].TTC
	}
	totals := vat.SumLines(amounts)

	template := cand.Template
	if template == "" {
		template = defaultTemplate(identity)
	}

	return &model.Invoice{
		Number:          cand.Number,
		ClientCode:      cand.ClientCode,
		ClientName:      identity.Name,
		ClientNCC:       identity.NCC,
		Date:            cand.Date,
		PointOfSale:     cand.PointOfSale,
		Payment:         cand.PaymentMethod,
		Template:        template,
		Status:          model.StatusDraft,
		Lines:           cand.Lines,
		GlobalDiscPct:   cand.GlobalDiscPct,
		TotalHT:         totals.HT,
		TotalVat:        totals.Vat,
		TotalTTC:        totals.TTC,
		ImportSessionID: &sessionID,
	}, nil
}

func defaultTemplate(identity *resolve.Identity) model.TemplateCategory {
	switch identity.Kind {
	case model.ClientGovernment:
		return model.TemplateB2G
	case model.ClientForeign:
		return model.TemplateB2F
	case model.ClientCompany:
		return model.TemplateB2B
	}
	return model.TemplateB2C
}
