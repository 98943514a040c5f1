package excel

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mikaelarth/fnev4/internal/money"
)

// excelEpoch is day zero of the 1900 date system (serial 1 = 1900-01-01,
// with the historical leap-year bug folded in).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"02-01-2006",
	"02/01/06",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// parseAmount parses a numeric cell that may be text-formatted with either
// French or English conventions: "1 234,56", "1.234,56", "1,234.56",
// "1234.56". Grouping spaces include the non-breaking variants the legacy
// export emits.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return money.Zero, fmt.Errorf("empty numeric cell")
	}

	for _, sp := range []string{" ", " ", " "} {
		s = strings.ReplaceAll(s, sp, "")
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		// The later separator is the decimal mark, the other groups.
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return money.Zero, fmt.Errorf("not a number: %q", raw)
	}
	return d, nil
}

// parseDate normalizes a date cell to a calendar date. Cells may hold an
// Excel serial number or text in one of the known layouts.
func parseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date cell")
	}

	// Serial number form. Values below 61 predate the 1900 bug window and
	// never appear in real exports.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 61 {
		days := int(serial)
		return excelEpoch.AddDate(0, 0, days), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}
