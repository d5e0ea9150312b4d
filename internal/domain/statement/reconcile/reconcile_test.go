package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-importer/internal/domain/statement/parser"
)

func tx(cents int64, t parser.TxType) parser.ParsedTransaction {
	return parser.ParsedTransaction{
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Description: "TX",
		AmountCents: cents,
		Type:        t,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		txs        []parser.ParsedTransaction
		start, end int64
		wantValid  bool
		wantCalc   int64
		wantDiff   int64
	}{
		{
			name:      "exact match",
			txs:       []parser.ParsedTransaction{tx(10000, parser.Credit), tx(2500, parser.Debit)},
			start:     50000,
			end:       57500,
			wantValid: true,
			wantCalc:  57500,
			wantDiff:  0,
		},
		{
			name:      "short by 6500",
			txs:       []parser.ParsedTransaction{tx(10000, parser.Credit)},
			start:     50000,
			end:       66500,
			wantValid: false,
			wantCalc:  60000,
			wantDiff:  6500,
		},
		{
			name:      "within tolerance",
			txs:       []parser.ParsedTransaction{tx(10000, parser.Credit)},
			start:     50000,
			end:       60099,
			wantValid: true,
			wantCalc:  60000,
			wantDiff:  99,
		},
		{
			name:      "exactly at tolerance boundary fails",
			txs:       nil,
			start:     50000,
			end:       50100,
			wantValid: false,
			wantCalc:  50000,
			wantDiff:  100,
		},
		{
			name:      "overage is reported as positive difference",
			txs:       []parser.ParsedTransaction{tx(500, parser.Debit)},
			start:     1000,
			end:       1000,
			wantValid: false,
			wantCalc:  500,
			wantDiff:  500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.txs, tt.start, tt.end)
			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.wantCalc, got.CalculatedEnd)
			assert.Equal(t, tt.wantDiff, got.Difference)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "balanced", Report{Valid: true}.Describe("USD"))
	assert.Equal(t, "off by $65.00", Report{Valid: false, Difference: 6500}.Describe("USD"))
}

func TestStatedBalances(t *testing.T) {
	text := "MERIDIAN NATIONAL BANK\n" +
		"Statement Period 03/01/2026 - 03/31/2026\n" +
		"Beginning Balance 1,250.00\n" +
		"Ending Balance $987.65\n"

	start, end, ok := StatedBalances(text)
	require.True(t, ok)
	assert.Equal(t, int64(125000), start)
	assert.Equal(t, int64(98765), end)
}

func TestStatedBalancesMissing(t *testing.T) {
	_, _, ok := StatedBalances("03/14 COFFEE SHOP 4.50")
	assert.False(t, ok)

	_, _, ok = StatedBalances("Beginning Balance 1.00")
	assert.False(t, ok)
}

func TestPeriodYear(t *testing.T) {
	year, ok := PeriodYear("Statement Period 03/01/2026 - 03/31/2026")
	require.True(t, ok)
	assert.Equal(t, 2026, year)

	_, ok = PeriodYear("no period line here")
	assert.False(t, ok)
}
