// Package excel recovers invoice candidates from the legacy accounting
// package's spreadsheet export: one workbook per import, one sheet per
// invoice, every logical field at a fixed cell.
package excel

// CellMap is the fixed-cell coordinate contract for one sheet. Header
// fields sit at fixed cells; line items start at LineStartRow and run until
// a blank product-code cell.
type CellMap struct {
	InvoiceNumber string
	ClientCode    string
	ClientName    string // override cell, used on the divers path
	ClientNCC     string // override cell, optional
	InvoiceDate   string
	PointOfSale   string
	PaymentMethod string
	Template      string
	GlobalDisc    string
	TotalTTC      string // source-provided total, reconciled as a warning

	LineStartRow int
	ColProduct   string
	ColDesc      string
	ColUnitPrice string
	ColQuantity  string
	ColVatCode   string
	ColDiscount  string
}

// DefaultCellMap returns the layout produced by the legacy export.
func DefaultCellMap() CellMap {
	return CellMap{
		InvoiceNumber: "A3",
		ClientCode:    "A5",
		ClientName:    "A6",
		ClientNCC:     "A7",
		InvoiceDate:   "A8",
		PointOfSale:   "A10",
		PaymentMethod: "A11",
		Template:      "A13",
		GlobalDisc:    "A15",
		TotalTTC:      "A17",

		LineStartRow: 20,
		ColProduct:   "B",
		ColDesc:      "C",
		ColUnitPrice: "D",
		ColQuantity:  "E",
		ColVatCode:   "F",
		ColDiscount:  "G",
	}
}
