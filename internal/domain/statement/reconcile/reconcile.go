// Package reconcile cross-checks parsed statement activity against the
// balances the statement itself reports. The result is advisory: a mismatch
// is surfaced to the operator but never blocks categorization or import.
package reconcile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-importer/internal/domain/statement/parser"
	"github.com/FACorreiaa/statement-importer/pkg/money"
)

// toleranceCents absorbs rounding noise: one major currency unit.
const toleranceCents = 100

// Report is the outcome of replaying statement activity against the stated
// ending balance. Difference is always non-negative.
type Report struct {
	Valid         bool
	CalculatedEnd int64
	Difference    int64
}

// Validate replays the transaction list from the stated starting balance
// (credits add, debits subtract) and compares the result with the stated
// ending balance. All amounts are minor units.
func Validate(txs []parser.ParsedTransaction, startCents, endCents int64) Report {
	calculated := startCents
	for _, tx := range txs {
		if tx.Type == parser.Credit {
			calculated += tx.AmountCents
		} else {
			calculated -= tx.AmountCents
		}
	}

	diff := calculated - endCents
	if diff < 0 {
		diff = -diff
	}

	return Report{
		Valid:         diff < toleranceCents,
		CalculatedEnd: calculated,
		Difference:    diff,
	}
}

// Describe renders the report for operator output.
func (r Report) Describe(currencyCode string) string {
	if r.Valid {
		return "balanced"
	}
	return "off by " + money.New(r.Difference, currencyCode).Display()
}

// Stated balance lines as Meridian and Harborview print them.
var (
	beginningBalanceRe = regexp.MustCompile(`(?i)Beginning\s+Balance\s+\$?(-?[\d,]+\.\d{2})`)
	endingBalanceRe    = regexp.MustCompile(`(?i)Ending\s+Balance\s+\$?(-?[\d,]+\.\d{2})`)
	periodYearRe       = regexp.MustCompile(`(?i)Statement\s+Period.*?\b(\d{4})\b`)
)

// StatedBalances pulls the beginning and ending balances a statement
// reports about itself. ok is false when either line is missing, in which
// case no reconciliation is possible.
func StatedBalances(text string) (startCents, endCents int64, ok bool) {
	start, ok1 := matchAmount(beginningBalanceRe, text)
	end, ok2 := matchAmount(endingBalanceRe, text)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return start, end, true
}

// PeriodYear extracts the statement period's calendar year, used as the
// year hint for date tokens that omit one. ok is false when the statement
// does not print a period line with a four-digit year.
func PeriodYear(text string) (int, bool) {
	m := periodYearRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

func matchAmount(re *regexp.Regexp, text string) (int64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), true
}
