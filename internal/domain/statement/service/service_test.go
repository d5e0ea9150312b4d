package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-importer/internal/domain/categorization"
	"github.com/FACorreiaa/statement-importer/internal/domain/ledger"
	"github.com/FACorreiaa/statement-importer/internal/domain/review"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/parser"
	"github.com/FACorreiaa/statement-importer/pkg/config"
)

type fakeRules struct {
	rules []categorization.CategoryRule
	err   error
}

func (f *fakeRules) ListEnabledRules(_ context.Context) ([]categorization.CategoryRule, error) {
	return f.rules, f.err
}

type fakeHistory struct {
	entries []categorization.HistoryEntry
}

func (f *fakeHistory) ListHistory(_ context.Context, _ uuid.UUID, _ int) ([]categorization.HistoryEntry, error) {
	return f.entries, nil
}

// fakeWriter merges rows in memory keyed the same way the ledger table is,
// so repeated imports of the same statement stay idempotent.
type fakeWriter struct {
	rows map[string]ledger.PreparedTransaction
	err  error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{rows: make(map[string]ledger.PreparedTransaction)}
}

func (f *fakeWriter) BulkUpsert(_ context.Context, accountID uuid.UUID, rows []ledger.PreparedTransaction) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	for _, r := range rows {
		f.rows[accountID.String()+"/"+r.Parsed.ExternalID] = r
	}
	return len(rows), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig() config.ImporterConfig {
	return config.ImporterConfig{
		HistoryLimit:      100,
		DebugPreviewBytes: 64,
		CurrencyCode:      "USD",
	}
}

const meridianStatement = `MERIDIAN NATIONAL BANK
Statement Period 03/01/2024 - 03/31/2024
Beginning Balance 1,000.00
03/14 COFFEE SHOP 0.00 4.50
03/15 PAYROLL ACME 500.00 0.00
03/16 ODD ROW 5.00 5.00
Ending Balance 1,495.50`

func coffeeRule(categoryID uuid.UUID) categorization.CategoryRule {
	return categorization.CategoryRule{
		ID:           uuid.New(),
		CategoryID:   categoryID,
		MatchField:   categorization.FieldName,
		MatchType:    categorization.MatchSubstring,
		MatchPattern: "coffee",
		Priority:     10,
		Enabled:      true,
	}
}

func TestImportTextMeridian(t *testing.T) {
	dining := uuid.New()
	rules := &fakeRules{rules: []categorization.CategoryRule{coffeeRule(dining)}}
	writer := newFakeWriter()
	svc := New(rules, &fakeHistory{}, writer, defaultConfig(), testLogger())
	require.NoError(t, svc.RefreshRules(context.Background()))

	accountID := uuid.New()
	in := ImportInput{AccountID: accountID}
	queue := review.NewQueue()
	res := DocumentResult{Document: "march.pdf"}

	svc.importText(context.Background(), in, "march.pdf", meridianStatement, nil, queue, &res)

	require.NoError(t, res.Err)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, 2, res.Imported)

	// Rule tier matched the coffee line with full confidence, so the
	// category persisted.
	coffee := writer.rows[accountID.String()+"/"+res.Transactions[0].ExternalID]
	require.NotNil(t, coffee.Categorization.CategoryID)
	assert.Equal(t, dining, *coffee.Categorization.CategoryID)
	assert.Equal(t, categorization.SourceRule, coffee.Categorization.Source)

	// The both-columns row went to review, not to the ledger.
	require.Equal(t, 1, queue.Len())
	assert.Equal(t, "both amount columns are non-zero", queue.Items()[0].Reason)

	// Stated balances replay cleanly.
	require.NotNil(t, res.Reconciliation)
	assert.True(t, res.Reconciliation.Valid)

	// Period line supplied the year for the MM/DD dates.
	assert.Equal(t, 2024, res.Transactions[0].Date.Year())
}

func TestImportTextIdempotent(t *testing.T) {
	writer := newFakeWriter()
	svc := New(&fakeRules{}, &fakeHistory{}, writer, defaultConfig(), testLogger())
	require.NoError(t, svc.RefreshRules(context.Background()))

	in := ImportInput{AccountID: uuid.New()}
	for i := 0; i < 2; i++ {
		res := DocumentResult{}
		svc.importText(context.Background(), in, "march.pdf", meridianStatement, nil, review.NewQueue(), &res)
		require.NoError(t, res.Err)
	}

	// Re-importing the same statement merges onto the same keys.
	assert.Len(t, writer.rows, 2)
}

func TestImportTextUnknownFormat(t *testing.T) {
	writer := newFakeWriter()
	svc := New(&fakeRules{}, &fakeHistory{}, writer, defaultConfig(), testLogger())
	require.NoError(t, svc.RefreshRules(context.Background()))

	res := DocumentResult{}
	svc.importText(context.Background(), ImportInput{AccountID: uuid.New()}, "mystery.pdf",
		"SOME OTHER BANK\n03/14 COFFEE 0.00 4.50", nil, review.NewQueue(), &res)

	require.NoError(t, res.Err)
	assert.Empty(t, res.Transactions)
	assert.Empty(t, writer.rows)
}

func TestImportTextSuggestBandNotPersisted(t *testing.T) {
	dining := uuid.New()
	groceries := uuid.New()
	history := []categorization.HistoryEntry{
		{ID: uuid.New(), Name: "COFFEE HOUSE #1", AmountCents: -450, CategoryID: &dining},
		{ID: uuid.New(), Name: "COFFEE HOUSE #2", AmountCents: -525, CategoryID: &dining},
		{ID: uuid.New(), Name: "COFFEE BEANS WHOLESALE", AmountCents: -3000, CategoryID: &groceries},
	}

	writer := newFakeWriter()
	svc := New(&fakeRules{}, &fakeHistory{entries: history}, writer, defaultConfig(), testLogger())
	require.NoError(t, svc.RefreshRules(context.Background()))

	accountID := uuid.New()
	res := DocumentResult{}
	text := "MERIDIAN NATIONAL BANK\n03/14 COFFEE HOUSE MAIN ST 0.00 4.50"
	svc.importText(context.Background(), ImportInput{AccountID: accountID}, "march.pdf", text, history, review.NewQueue(), &res)

	require.NoError(t, res.Err)
	require.Len(t, res.Transactions, 1)

	// Two of three candidates voted dining: confidence 0.8 lands in the
	// suggest band, so the operator sees it but nothing persists.
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, dining, res.Suggestions[0].CategoryID)
	assert.InDelta(t, 0.8, res.Suggestions[0].Confidence, 0.001)

	row := writer.rows[accountID.String()+"/"+res.Transactions[0].ExternalID]
	assert.Nil(t, row.Categorization.CategoryID)
}

func TestImportTextManualOverride(t *testing.T) {
	writer := newFakeWriter()
	svc := New(&fakeRules{}, &fakeHistory{}, writer, defaultConfig(), testLogger())
	require.NoError(t, svc.RefreshRules(context.Background()))

	chosen := uuid.New()
	date := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	externalID := parser.ExternalID(date, 450, "COFFEE SHOP")

	accountID := uuid.New()
	res := DocumentResult{}
	svc.importText(context.Background(), ImportInput{
		AccountID: accountID,
		Overrides: map[string]uuid.UUID{externalID: chosen},
	}, "march.pdf", meridianStatement, nil, review.NewQueue(), &res)

	require.NoError(t, res.Err)
	row := writer.rows[accountID.String()+"/"+externalID]
	require.NotNil(t, row.Categorization.CategoryID)
	assert.Equal(t, chosen, *row.Categorization.CategoryID)
	assert.Equal(t, categorization.SourceManual, row.Categorization.Source)
}

func TestImportTextDebugPreview(t *testing.T) {
	cfg := defaultConfig()
	cfg.DebugPreviewBytes = 21
	svc := New(&fakeRules{}, &fakeHistory{}, newFakeWriter(), cfg, testLogger())
	require.NoError(t, svc.RefreshRules(context.Background()))

	res := DocumentResult{}
	svc.importText(context.Background(), ImportInput{AccountID: uuid.New(), Debug: true},
		"march.pdf", meridianStatement, nil, review.NewQueue(), &res)

	assert.Equal(t, "MERIDIAN NATIONAL BAN", res.Preview)
}

func TestImportTextReviewHints(t *testing.T) {
	dining := uuid.New()
	rules := &fakeRules{rules: []categorization.CategoryRule{coffeeRule(dining)}}
	svc := New(rules, &fakeHistory{}, newFakeWriter(), defaultConfig(), testLogger())
	require.NoError(t, svc.RefreshRules(context.Background()))

	res := DocumentResult{}
	text := "MERIDIAN NATIONAL BANK\n03/14 COFFE HUT 5.00 5.00"
	svc.importText(context.Background(), ImportInput{AccountID: uuid.New()}, "march.pdf", text, nil, review.NewQueue(), &res)

	hints, ok := res.ReviewHints["03/14 COFFE HUT 5.00 5.00"]
	require.True(t, ok)
	assert.Equal(t, "coffee", hints[0].Pattern)
}

func TestImportBatchIsolatesDocumentFailures(t *testing.T) {
	svc := New(&fakeRules{}, &fakeHistory{}, newFakeWriter(), defaultConfig(), testLogger())

	in := ImportInput{
		AccountID: uuid.New(),
		Documents: []Document{
			{Name: "bad-one.pdf", Data: []byte("not a document")},
			{Name: "bad-two.pdf", Data: []byte("also not a document")},
		},
	}
	result, err := svc.ImportBatch(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	assert.Error(t, result.Documents[0].Err)
	assert.Error(t, result.Documents[1].Err)
	assert.Equal(t, 0, result.Imported)
}

func TestImportBatchAbortOnError(t *testing.T) {
	cfg := defaultConfig()
	cfg.AbortBatchOnError = true
	svc := New(&fakeRules{}, &fakeHistory{}, newFakeWriter(), cfg, testLogger())

	in := ImportInput{
		AccountID: uuid.New(),
		Documents: []Document{{Name: "bad.pdf", Data: []byte("garbage")}},
	}
	_, err := svc.ImportBatch(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.pdf")
}

func TestImportBatchRuleLoadFailure(t *testing.T) {
	rules := &fakeRules{err: fmt.Errorf("connection refused")}
	svc := New(rules, &fakeHistory{}, newFakeWriter(), defaultConfig(), testLogger())

	_, err := svc.ImportBatch(context.Background(), ImportInput{AccountID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "categorization rules")
}

type fakeSuggester struct {
	suggestion *categorization.Suggestion
	err        error
}

func (f *fakeSuggester) Suggest(_ context.Context, _ categorization.Input) (*categorization.Suggestion, error) {
	return f.suggestion, f.err
}

type fakeCategories struct {
	known map[uuid.UUID]struct{}
}

func (f *fakeCategories) KnownIDs(_ context.Context) (map[uuid.UUID]struct{}, error) {
	return f.known, nil
}

func TestImportTextSuggesterConsulted(t *testing.T) {
	known := uuid.New()
	cfg := defaultConfig()
	cfg.EnableSuggestions = true

	svc := New(&fakeRules{}, &fakeHistory{}, newFakeWriter(), cfg, testLogger()).
		WithSuggester(&fakeSuggester{suggestion: &categorization.Suggestion{
			CategoryID:   known,
			MatchPattern: "payroll",
		}}).
		WithCategorySource(&fakeCategories{known: map[uuid.UUID]struct{}{known: {}}})
	require.NoError(t, svc.RefreshRules(context.Background()))

	res := DocumentResult{}
	text := "MERIDIAN NATIONAL BANK\n03/15 PAYROLL ACME 500.00 0.00"
	svc.importText(context.Background(), ImportInput{AccountID: uuid.New()}, "march.pdf", text, nil, review.NewQueue(), &res)

	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, known, res.Suggestions[0].CategoryID)
	assert.Equal(t, "suggester", res.Suggestions[0].Source)
}

func TestImportTextSuggesterUnknownCategoryRejected(t *testing.T) {
	cfg := defaultConfig()
	cfg.EnableSuggestions = true

	svc := New(&fakeRules{}, &fakeHistory{}, newFakeWriter(), cfg, testLogger()).
		WithSuggester(&fakeSuggester{suggestion: &categorization.Suggestion{
			CategoryID:   uuid.New(),
			MatchPattern: "payroll",
		}}).
		WithCategorySource(&fakeCategories{known: map[uuid.UUID]struct{}{}})
	require.NoError(t, svc.RefreshRules(context.Background()))

	res := DocumentResult{}
	text := "MERIDIAN NATIONAL BANK\n03/15 PAYROLL ACME 500.00 0.00"
	svc.importText(context.Background(), ImportInput{AccountID: uuid.New()}, "march.pdf", text, nil, review.NewQueue(), &res)

	assert.Empty(t, res.Suggestions)
}

func TestBatchSummary(t *testing.T) {
	result := &BatchResult{
		Documents: []DocumentResult{{
			Transactions: []parser.ParsedTransaction{
				{Description: "COFFEE SHOP", AmountCents: 450, Type: parser.Debit},
				{Description: "PAYROLL ACME", AmountCents: 50000, Type: parser.Credit},
			},
		}},
		Imported: 2,
		Review:   review.NewQueue(),
	}

	summary := result.Summary("USD")
	assert.Contains(t, summary, "parsed 2 transactions")
	assert.Contains(t, summary, "credits $500.00")
	assert.Contains(t, summary, "debits $4.50")
	assert.Contains(t, summary, "imported 2")
}
