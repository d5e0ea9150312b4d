// Package extractor reconstructs reading-order text from positioned PDF
// fragments. PDFs carry no line structure, only placed glyph runs; this
// package orders them top-to-bottom, left-to-right so the line parser can
// treat the output as plain statement text.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dslipak/pdf"
)

// ErrNoText is returned when a document decodes but yields no extractable
// text, typically a scanned image statement.
var ErrNoText = errors.New("document contains no extractable text")

// lineTolerance is the vertical distance, in PDF units, within which two
// fragments are considered to sit on the same visual line.
const lineTolerance = 5.0

// TextFragment is a positioned run of text from a document page.
// Coordinates follow PDF convention: Y grows upward, so larger Y means
// nearer the top of the page.
type TextFragment struct {
	Text      string
	X, Y      float64
	LineBreak bool
}

// ReadingOrder arranges fragments top-to-bottom, left-to-right and joins
// them into a single string. Fragments whose Y coordinates differ by less
// than lineTolerance are treated as one visual line and ordered by X.
// A newline is emitted after any fragment flagged LineBreak; otherwise
// fragments are joined with a single space. An empty slice yields "".
func ReadingOrder(fragments []TextFragment) string {
	if len(fragments) == 0 {
		return ""
	}

	ordered := make([]TextFragment, len(fragments))
	copy(ordered, fragments)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		dy := a.Y - b.Y
		if dy > lineTolerance {
			return true
		}
		if dy < -lineTolerance {
			return false
		}
		return a.X < b.X
	})

	var sb strings.Builder
	for i, f := range ordered {
		sb.WriteString(f.Text)
		if i == len(ordered)-1 {
			break
		}
		if f.LineBreak {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// ExtractText decodes a PDF and returns its full reading-order text, pages
// joined by newlines. Returns ErrNoText when the document decodes but has
// no text content, and a descriptive error when the bytes are not a
// readable PDF.
func ExtractText(r io.ReaderAt, size int64) (string, error) {
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("failed to decode document: %w", err)
	}

	var pages []string
	for i := 1; i <= doc.NumPage(); i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}

		fragments, err := pageFragments(page)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		if len(fragments) == 0 {
			continue
		}

		pages = append(pages, ReadingOrder(fragments))
	}

	if len(pages) == 0 {
		return "", ErrNoText
	}
	return strings.Join(pages, "\n"), nil
}

// pageFragments flattens a page's text rows into fragments, flagging the
// last fragment of each visual row as a line break.
func pageFragments(page pdf.Page) ([]TextFragment, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}

	var fragments []TextFragment
	for _, row := range rows {
		start := len(fragments)
		for _, t := range row.Content {
			if t.S == "" {
				continue
			}
			fragments = append(fragments, TextFragment{
				Text: t.S,
				X:    t.X,
				Y:    float64(row.Position),
			})
		}
		if len(fragments) > start {
			fragments[len(fragments)-1].LineBreak = true
		}
	}
	return fragments, nil
}
