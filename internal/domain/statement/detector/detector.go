// Package detector identifies which institution produced a statement so the
// right parsing pattern set can be applied.
package detector

import "strings"

// Format identifies a supported statement layout.
type Format int

const (
	// FormatUnknown means no institution marker was found.
	FormatUnknown Format = iota
	// FormatMeridian is Meridian National Bank's two-column
	// (debit / credit) statement layout.
	FormatMeridian
	// FormatHarborview is Harborview Credit Union's single-amount card
	// statement layout, where every line is a charge.
	FormatHarborview
)

func (f Format) String() string {
	switch f {
	case FormatMeridian:
		return "meridian"
	case FormatHarborview:
		return "harborview"
	default:
		return "unknown"
	}
}

// marker is a literal substring that identifies an institution's statement.
type marker struct {
	substr string
	format Format
}

// markers are checked in declaration order; the first hit wins. Order is
// load-bearing when a statement mentions another institution in its
// transaction descriptions.
var markers = []marker{
	{"MERIDIAN NATIONAL BANK", FormatMeridian},
	{"Meridian National Bank", FormatMeridian},
	{"HARBORVIEW CREDIT UNION", FormatHarborview},
	{"Harborview Credit Union", FormatHarborview},
}

// Detect scans reconstructed statement text for institution markers and
// returns the matching format, or FormatUnknown when none is present.
func Detect(text string) Format {
	for _, m := range markers {
		if strings.Contains(text, m.substr) {
			return m.format
		}
	}
	return FormatUnknown
}
