package service

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// transactionRow is the CSV shape for exported transactions.
type transactionRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Type        string `csv:"type"`
	ExternalID  string `csv:"external_id"`
}

// reviewRow is the CSV shape for exported review items.
type reviewRow struct {
	Document string `csv:"document"`
	Line     string `csv:"line"`
	Reason   string `csv:"reason"`
	AddedAt  string `csv:"added_at"`
}

// WriteTransactionsCSV exports every parsed transaction in the batch.
func WriteTransactionsCSV(w io.Writer, r *BatchResult) error {
	rows := make([]transactionRow, 0)
	for _, d := range r.Documents {
		for _, tx := range d.Transactions {
			rows = append(rows, transactionRow{
				Date:        tx.Date.Format("2006-01-02"),
				Description: tx.Description,
				Amount:      centsToAmount(tx.AmountCents),
				Type:        tx.Type.String(),
				ExternalID:  tx.ExternalID,
			})
		}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write transactions csv: %w", err)
	}
	return nil
}

// WriteReviewCSV exports the needs-review set for offline triage.
func WriteReviewCSV(w io.Writer, r *BatchResult) error {
	items := r.Review.Items()
	rows := make([]reviewRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, reviewRow{
			Document: item.Document,
			Line:     item.Line,
			Reason:   item.Reason,
			AddedAt:  item.AddedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write review csv: %w", err)
	}
	return nil
}

func centsToAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
