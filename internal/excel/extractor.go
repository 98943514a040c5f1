package excel

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/mikaelarth/fnev4/internal/model"
	"github.com/mikaelarth/fnev4/internal/money"
)

// Extractor turns one workbook sheet into an invoice candidate or a list of
// field-level extraction errors. Malformed content is data, not a fault:
// the only Go errors returned are structural ("not an invoice sheet").
type Extractor struct {
	cells CellMap
	log   *logrus.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCellMap overrides the default cell layout.
func WithCellMap(m CellMap) Option {
	return func(e *Extractor) {
		e.cells = m
	}
}

// WithLogger sets the logger used for per-sheet diagnostics.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Extractor) {
		e.log = l
	}
}

// NewExtractor creates an extractor with the default legacy layout.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		cells: DefaultCellMap(),
		log:   logrus.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenFile opens a workbook from disk.
func OpenFile(path string) (*excelize.File, error) {
	return excelize.OpenFile(path)
}

// OpenReader opens a workbook from a stream (HTTP upload path).
func OpenReader(r io.Reader) (*excelize.File, error) {
	return excelize.OpenReader(r)
}

// ExtractSheet extracts one sheet. The returned candidate is non-nil unless
// err is set; field errors describe every cell that failed to parse. A
// structural error (missing header anchor, empty line table) rejects the
// sheet wholesale.
func (e *Extractor) ExtractSheet(f *excelize.File, sheet string) (*model.InvoiceCandidate, []*model.FieldError, error) {
	anchor := e.cell(f, sheet, e.cells.InvoiceNumber)
	if anchor == "" {
		return nil, nil, model.NewExtractionError(sheet, e.cells.InvoiceNumber,
			"not a recognized invoice sheet: header anchor is blank", nil)
	}

	cand := &model.InvoiceCandidate{
		Sheet:         sheet,
		Number:        anchor,
		ClientCode:    e.cell(f, sheet, e.cells.ClientCode),
		ClientName:    e.cell(f, sheet, e.cells.ClientName),
		ClientNCC:     e.cell(f, sheet, e.cells.ClientNCC),
		PointOfSale:   e.cell(f, sheet, e.cells.PointOfSale),
		PaymentRaw:    e.cell(f, sheet, e.cells.PaymentMethod),
		GlobalDiscPct: money.Zero,
	}

	var errs []*model.FieldError

	if raw := e.cell(f, sheet, e.cells.InvoiceDate); raw == "" {
		errs = append(errs, model.NewFieldError(sheet, "invoice_date", e.cells.InvoiceDate, nil, "required cell is blank"))
	} else if d, err := parseDate(raw); err != nil {
		errs = append(errs, model.NewFieldError(sheet, "invoice_date", e.cells.InvoiceDate, raw, err.Error()))
	} else {
		cand.Date = d
	}

	if cand.ClientCode == "" {
		errs = append(errs, model.NewFieldError(sheet, "client_code", e.cells.ClientCode, nil, "required cell is blank"))
	}
	if cand.PaymentRaw == "" {
		errs = append(errs, model.NewFieldError(sheet, "payment_method", e.cells.PaymentMethod, nil, "required cell is blank"))
	} else if m, err := model.ParsePaymentMethod(cand.PaymentRaw); err == nil {
		// Membership of the closed enumeration is the validator's rule;
		// extraction only normalizes what it can.
		cand.PaymentMethod = m
	}

	if raw := e.cell(f, sheet, e.cells.Template); raw != "" {
		if tpl, err := model.ParseTemplateCategory(raw); err != nil {
			errs = append(errs, model.NewFieldError(sheet, "template", e.cells.Template, raw, err.Error()))
		} else {
			cand.Template = tpl
		}
	}

	if raw := e.cell(f, sheet, e.cells.GlobalDisc); raw != "" {
		if d, err := parseAmount(raw); err != nil {
			errs = append(errs, model.NewFieldError(sheet, "global_discount", e.cells.GlobalDisc, raw, err.Error()))
		} else {
			cand.GlobalDiscPct = d
		}
	}

	if raw := e.cell(f, sheet, e.cells.TotalTTC); raw != "" {
		if d, err := parseAmount(raw); err != nil {
			errs = append(errs, model.NewFieldError(sheet, "total_ttc", e.cells.TotalTTC, raw, err.Error()))
		} else {
			cand.SourceTotalTTC = d
			cand.HasSourceTotal = true
		}
	}

	lines, lineErrs := e.extractLines(f, sheet)
	errs = append(errs, lineErrs...)
	cand.Lines = lines

	if len(lines) == 0 {
		return nil, nil, model.NewExtractionError(sheet,
			fmt.Sprintf("%s%d", e.cells.ColProduct, e.cells.LineStartRow),
			"no line items found", nil)
	}

	e.log.WithFields(logrus.Fields{
		"sheet":  sheet,
		"number": cand.Number,
		"lines":  len(lines),
		"errors": len(errs),
	}).Debug("sheet extracted")

	return cand, errs, nil
}

// extractLines walks the line table until the blank product-code sentinel.
func (e *Extractor) extractLines(f *excelize.File, sheet string) ([]model.LineItem, []*model.FieldError) {
	var (
		lines []model.LineItem
		errs  []*model.FieldError
	)

	for row := e.cells.LineStartRow; ; row++ {
		product := e.cell(f, sheet, fmt.Sprintf("%s%d", e.cells.ColProduct, row))
		if product == "" {
			break
		}

		item := model.LineItem{
			LineNumber:  len(lines) + 1,
			ProductCode: product,
			Description: e.cell(f, sheet, fmt.Sprintf("%s%d", e.cells.ColDesc, row)),
			VatCode:     model.VatCode(strings.ToUpper(e.cell(f, sheet, fmt.Sprintf("%s%d", e.cells.ColVatCode, row)))),
			DiscountPct: money.Zero,
		}

		priceCell := fmt.Sprintf("%s%d", e.cells.ColUnitPrice, row)
		if raw := e.cell(f, sheet, priceCell); raw == "" {
			errs = append(errs, model.NewFieldError(sheet, "unit_price", priceCell, nil, "required cell is blank"))
		} else if d, err := parseAmount(raw); err != nil {
			errs = append(errs, model.NewFieldError(sheet, "unit_price", priceCell, raw, err.Error()))
		} else {
			item.UnitPrice = d
		}

		qtyCell := fmt.Sprintf("%s%d", e.cells.ColQuantity, row)
		if raw := e.cell(f, sheet, qtyCell); raw == "" {
			errs = append(errs, model.NewFieldError(sheet, "quantity", qtyCell, nil, "required cell is blank"))
		} else if d, err := parseAmount(raw); err != nil {
			errs = append(errs, model.NewFieldError(sheet, "quantity", qtyCell, raw, err.Error()))
		} else {
			item.Quantity = d
		}

		discCell := fmt.Sprintf("%s%d", e.cells.ColDiscount, row)
		if raw := e.cell(f, sheet, discCell); raw != "" {
			if d, err := parseAmount(raw); err != nil {
				errs = append(errs, model.NewFieldError(sheet, "line_discount", discCell, raw, err.Error()))
			} else {
				item.DiscountPct = d
			}
		}

		lines = append(lines, item)
	}

	return lines, errs
}

// cell reads one cell as trimmed text. Coordinates come from the CellMap,
// so an address error means a misconfigured map and reads as blank.
func (e *Extractor) cell(f *excelize.File, sheet, addr string) string {
	v, err := f.GetCellValue(sheet, addr)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}
