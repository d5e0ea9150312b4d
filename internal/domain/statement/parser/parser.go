// Package parser extracts transactions from reading-ordered statement text
// using institution-specific line patterns.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-importer/internal/domain/statement/detector"
)

// TxType is the direction of a parsed transaction.
type TxType int

const (
	Debit TxType = iota
	Credit
)

func (t TxType) String() string {
	if t == Credit {
		return "credit"
	}
	return "debit"
}

// ParsedTransaction is one transaction recovered from statement text.
// AmountCents is always non-negative; Type carries the direction. An empty
// ExternalID means no deterministic identity could be derived and the
// transaction sits in the needs-review set instead.
type ParsedTransaction struct {
	Date        time.Time
	Description string
	AmountCents int64
	ExternalID  string
	Type        TxType
}

// ReviewItem is a line that matched a transaction pattern but could not be
// imported safely.
type ReviewItem struct {
	Line   string
	Reason string
}

// Result holds everything one parsing run produced.
type Result struct {
	Transactions []ParsedTransaction
	NeedsReview  []ReviewItem
}

// Line patterns. The non-greedy description group and the anchored amount
// tail are load-bearing: amounts embedded mid-description must not
// terminate the description early, and trailing whitespace from text
// reconstruction must not break the match.
var (
	// date, description, credit column, debit column. Thousands separators
	// are optional: statements print both "1,000.00" and "1000.00".
	twoColumnRe = regexp.MustCompile(`^(\d{2}/\d{2}(?:/\d{2})?)\s+(.+?)\s+(\d{1,3}(?:,?\d{3})*\.\d{2})\s+(\d{1,3}(?:,?\d{3})*\.\d{2})\s*$`)

	// date, description, one optionally signed amount
	singleAmountRe = regexp.MustCompile(`^(\d{2}/\d{2}(?:/\d{2})?)\s+(.+?)\s+(-?\d{1,3}(?:,?\d{3})*\.\d{2})\s*$`)
)

// Parse extracts transactions from statement text using the pattern passes
// of the detected format. yearHint supplies the calendar year for date
// tokens that omit one; callers with statement-period metadata should pass
// the period's year, others the current year.
func Parse(text string, format detector.Format, yearHint int) Result {
	switch format {
	case detector.FormatMeridian:
		return parseMeridian(text, yearHint)
	case detector.FormatHarborview:
		return parseHarborview(text, yearHint)
	default:
		return Result{}
	}
}

// parseMeridian runs the two-column pass and then a single-amount fallback
// pass over lines the first pass did not consume. The fallback recovers
// single-column sections of the same statement.
func parseMeridian(text string, yearHint int) Result {
	var res Result
	lines := strings.Split(text, "\n")
	consumed := make([]bool, len(lines))

	// (date, normalized description, absolute amount) of every captured
	// transaction, so the fallback pass cannot re-import them.
	seen := make(map[string]struct{})

	for i, line := range lines {
		m := twoColumnRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		consumed[i] = true

		creditCents, err1 := parseAmountCents(m[3])
		debitCents, err2 := parseAmountCents(m[4])
		if err1 != nil || err2 != nil {
			continue
		}

		// Both columns zero is a subtotal or section artifact.
		if creditCents == 0 && debitCents == 0 {
			continue
		}
		if creditCents != 0 && debitCents != 0 {
			res.NeedsReview = append(res.NeedsReview, ReviewItem{
				Line:   line,
				Reason: "both amount columns are non-zero",
			})
			continue
		}

		date, err := parseDate(m[1], yearHint)
		if err != nil {
			res.NeedsReview = append(res.NeedsReview, ReviewItem{
				Line:   line,
				Reason: "unparseable date token",
			})
			continue
		}

		desc := normalizeDescription(m[2])
		amount := creditCents
		txType := Credit
		if debitCents != 0 {
			amount = debitCents
			txType = Debit
		}

		seen[dedupKey(date, desc, amount)] = struct{}{}
		res.Transactions = append(res.Transactions, ParsedTransaction{
			Date:        date,
			Description: desc,
			AmountCents: amount,
			ExternalID:  ExternalID(date, amount, desc),
			Type:        txType,
		})
	}

	for i, line := range lines {
		if consumed[i] {
			continue
		}
		m := singleAmountRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		cents, err := parseAmountCents(m[3])
		if err != nil || cents == 0 {
			continue
		}

		txType := Credit
		if cents < 0 {
			txType = Debit
			cents = -cents
		}

		date, err := parseDate(m[1], yearHint)
		if err != nil {
			res.NeedsReview = append(res.NeedsReview, ReviewItem{
				Line:   line,
				Reason: "unparseable date token",
			})
			continue
		}

		desc := normalizeDescription(m[2])
		key := dedupKey(date, desc, cents)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		res.Transactions = append(res.Transactions, ParsedTransaction{
			Date:        date,
			Description: desc,
			AmountCents: cents,
			ExternalID:  ExternalID(date, cents, desc),
			Type:        txType,
		})
	}

	return res
}

// parseHarborview runs the single-column pass. The format has no credit
// column convention; every captured line is a debit.
func parseHarborview(text string, yearHint int) Result {
	var res Result

	for _, line := range strings.Split(text, "\n") {
		m := singleAmountRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		cents, err := parseAmountCents(m[3])
		if err != nil || cents == 0 {
			continue
		}
		if cents < 0 {
			cents = -cents
		}

		date, err := parseDate(m[1], yearHint)
		if err != nil {
			res.NeedsReview = append(res.NeedsReview, ReviewItem{
				Line:   line,
				Reason: "unparseable date token",
			})
			continue
		}

		desc := normalizeDescription(m[2])
		res.Transactions = append(res.Transactions, ParsedTransaction{
			Date:        date,
			Description: desc,
			AmountCents: cents,
			ExternalID:  ExternalID(date, cents, desc),
			Type:        Debit,
		})
	}

	return res
}

// parseDate converts an MM/DD or MM/DD/YY token to a calendar date. Absent
// years default to yearHint; two-digit years resolve per Go's "06" layout.
func parseDate(token string, yearHint int) (time.Time, error) {
	if len(token) == len("01/02/06") {
		return time.Parse("01/02/06", token)
	}

	t, err := time.Parse("01/02", token)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(yearHint, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// parseAmountCents converts a statement amount token to signed minor units
// via round(value x 100).
func parseAmountCents(token string) (int64, error) {
	token = strings.ReplaceAll(token, ",", "")
	d, err := decimal.NewFromString(token)
	if err != nil {
		return 0, err
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// normalizeDescription collapses internal whitespace runs and trims.
func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupKey(date time.Time, desc string, absCents int64) string {
	return date.Format("2006-01-02") + "|" + strings.ToLower(desc) + "|" + decimal.New(absCents, -2).StringFixed(2)
}
