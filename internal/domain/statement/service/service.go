// Package service orchestrates the statement import pipeline: extraction,
// format detection, parsing, reconciliation, categorization, and the final
// ledger merge.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/statement-importer/internal/domain/categorization"
	"github.com/FACorreiaa/statement-importer/internal/domain/ledger"
	"github.com/FACorreiaa/statement-importer/internal/domain/review"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/detector"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/extractor"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/parser"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/reconcile"
	"github.com/FACorreiaa/statement-importer/pkg/config"
	"github.com/FACorreiaa/statement-importer/pkg/metrics"
	"github.com/FACorreiaa/statement-importer/pkg/money"
	"github.com/FACorreiaa/statement-importer/pkg/storage"
)

// Confidence thresholds interpreted by this caller; the engine itself only
// reports numbers.
const (
	autoAcceptThreshold = 0.85
	suggestThreshold    = 0.6
)

// RuleSource provides the enabled categorization rules.
type RuleSource interface {
	ListEnabledRules(ctx context.Context) ([]categorization.CategoryRule, error)
}

// HistorySource provides prior ledger activity for the similarity tier.
type HistorySource interface {
	ListHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]categorization.HistoryEntry, error)
}

// CategorySource provides the known category set for suggestion validation.
type CategorySource interface {
	KnownIDs(ctx context.Context) (map[uuid.UUID]struct{}, error)
}

// Document is one raw statement handed to the pipeline.
type Document struct {
	Name string
	Data []byte
}

// Suggestion is a category proposal surfaced to the operator instead of
// being persisted.
type Suggestion struct {
	ExternalID string
	CategoryID uuid.UUID
	Confidence float64
	Source     string
}

// DocumentResult is the per-document outcome within a batch.
type DocumentResult struct {
	Document       string
	Format         detector.Format
	Transactions   []parser.ParsedTransaction
	Reconciliation *reconcile.Report
	Suggestions    []Suggestion
	ReviewHints    map[string][]review.RuleHint
	Imported       int
	Preview        string
	Err            error
}

// BatchResult aggregates a multi-document import.
type BatchResult struct {
	Documents []DocumentResult
	Imported  int
	Review    *review.Queue
}

// ImportInput carries one import request.
type ImportInput struct {
	AccountID uuid.UUID
	Documents []Document
	// Debug requests a length-capped preview of the reconstructed text.
	Debug bool
	// Overrides maps external ids to operator-chosen categories, applied
	// after review and before the merge.
	Overrides map[string]uuid.UUID
}

// Service wires the pipeline stages together.
type Service struct {
	rules      RuleSource
	history    HistorySource
	categories CategorySource
	writer     ledger.Writer
	engine     *categorization.Engine
	suggester  categorization.Suggester
	archive    storage.Archive
	cfg        config.ImporterConfig
	logger     *slog.Logger
	tracer     trace.Tracer

	loadedRules []categorization.CategoryRule
}

// New creates the import service. Optional collaborators attach through
// the With* builders.
func New(rules RuleSource, history HistorySource, writer ledger.Writer, cfg config.ImporterConfig, logger *slog.Logger) *Service {
	return &Service{
		rules:   rules,
		history: history,
		writer:  writer,
		engine:  categorization.NewEngine(nil),
		cfg:     cfg,
		logger:  logger,
		tracer:  otel.Tracer("statement-importer"),
	}
}

// WithSuggester attaches the optional last-resort suggestion service.
func (s *Service) WithSuggester(sg categorization.Suggester) *Service {
	s.suggester = sg
	return s
}

// WithCategorySource attaches the category set used to validate external
// suggestions. Required when a suggester is configured.
func (s *Service) WithCategorySource(cs CategorySource) *Service {
	s.categories = cs
	return s
}

// WithArchive attaches document archiving.
func (s *Service) WithArchive(a storage.Archive) *Service {
	s.archive = a
	return s
}

// RefreshRules reloads the rule set into the engine. Called at startup and
// periodically by the scheduler.
func (s *Service) RefreshRules(ctx context.Context) error {
	rules, err := s.rules.ListEnabledRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categorization rules: %w", err)
	}
	s.engine.Build(rules)
	s.loadedRules = rules
	s.logger.Debug("categorization rules loaded", slog.Int("rules", len(rules)))
	return nil
}

// ImportBatch runs the pipeline over every document in the input. Failures
// are isolated per document unless AbortBatchOnError is set.
func (s *Service) ImportBatch(ctx context.Context, in ImportInput) (*BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "statement.ImportBatch",
		trace.WithAttributes(
			attribute.String("account_id", in.AccountID.String()),
			attribute.Int("documents", len(in.Documents)),
		))
	defer span.End()

	if err := s.RefreshRules(ctx); err != nil {
		return nil, err
	}

	history, err := s.history.ListHistory(ctx, in.AccountID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger history: %w", err)
	}

	result := &BatchResult{Review: review.NewQueue()}
	for _, doc := range in.Documents {
		docRes := s.importDocument(ctx, in, doc, history, result.Review)
		if docRes.Err != nil {
			s.logger.Error("document import failed",
				slog.String("document", doc.Name),
				slog.Any("error", docRes.Err),
			)
			metrics.DocumentsProcessed.WithLabelValues("error").Inc()
			if s.cfg.AbortBatchOnError {
				return nil, fmt.Errorf("document %s: %w", doc.Name, docRes.Err)
			}
		} else {
			metrics.DocumentsProcessed.WithLabelValues("ok").Inc()
		}
		result.Documents = append(result.Documents, docRes)
		result.Imported += docRes.Imported
	}

	metrics.ReviewQueueDepth.Set(float64(result.Review.Len()))
	span.SetAttributes(attribute.Int("imported", result.Imported))
	return result, nil
}

func (s *Service) importDocument(ctx context.Context, in ImportInput, doc Document, history []categorization.HistoryEntry, queue *review.Queue) DocumentResult {
	ctx, span := s.tracer.Start(ctx, "statement.importDocument",
		trace.WithAttributes(attribute.String("document", doc.Name)))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	res := DocumentResult{Document: doc.Name}

	if s.archive != nil {
		if _, err := s.archive.Store(ctx, in.AccountID, doc.Name, bytes.NewReader(doc.Data)); err != nil {
			// Archiving is best-effort; the import itself proceeds.
			s.logger.Warn("failed to archive document",
				slog.String("document", doc.Name),
				slog.Any("error", err),
			)
		}
	}

	text, err := extractor.ExtractText(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		res.Err = err
		return res
	}

	s.importText(ctx, in, doc.Name, text, history, queue, &res)
	return res
}

// importText runs every stage after extraction. Split out so tests can
// feed synthetic statement text directly.
func (s *Service) importText(ctx context.Context, in ImportInput, docName, text string, history []categorization.HistoryEntry, queue *review.Queue, res *DocumentResult) {
	if in.Debug {
		res.Preview = preview(text, s.cfg.DebugPreviewBytes)
	}

	res.Format = detector.Detect(text)
	if res.Format == detector.FormatUnknown {
		s.logger.Warn("no institution signature recognized", slog.String("document", docName))
		return
	}

	yearHint, ok := reconcile.PeriodYear(text)
	if !ok {
		yearHint = time.Now().Year()
	}

	parsed := parser.Parse(text, res.Format, yearHint)
	res.Transactions = parsed.Transactions
	metrics.TransactionsParsed.WithLabelValues(res.Format.String()).Add(float64(len(parsed.Transactions)))

	for _, item := range parsed.NeedsReview {
		queue.Add(docName, item.Line, item.Reason)
		if hints := review.RuleHints(item.Line, s.loadedRules, 3); len(hints) > 0 {
			if res.ReviewHints == nil {
				res.ReviewHints = make(map[string][]review.RuleHint)
			}
			res.ReviewHints[item.Line] = hints
		}
	}

	if startCents, endCents, ok := reconcile.StatedBalances(text); ok {
		report := reconcile.Validate(parsed.Transactions, startCents, endCents)
		res.Reconciliation = &report
		if !report.Valid {
			metrics.ReconciliationMismatches.Inc()
			s.logger.Warn("statement does not reconcile",
				slog.String("document", docName),
				slog.Int64("difference_cents", report.Difference),
				slog.String("difference", report.Describe(s.cfg.CurrencyCode)),
			)
		}
	}

	prepared := s.categorizeAll(ctx, in, parsed.Transactions, history, res)

	imported, err := s.writer.BulkUpsert(ctx, in.AccountID, prepared)
	res.Imported = imported
	if err != nil {
		res.Err = fmt.Errorf("failed to merge transactions: %w", err)
	}
}

func (s *Service) categorizeAll(ctx context.Context, in ImportInput, txs []parser.ParsedTransaction, history []categorization.HistoryEntry, res *DocumentResult) []ledger.PreparedTransaction {
	prepared := make([]ledger.PreparedTransaction, 0, len(txs))
	for _, tx := range txs {
		catRes := s.engine.Categorize(categorization.Input{Name: tx.Description}, history)
		metrics.CategorizationOutcomes.WithLabelValues(catRes.Source.String()).Inc()

		if override, ok := in.Overrides[tx.ExternalID]; ok {
			categoryID := override
			catRes = categorization.Result{
				CategoryID:  &categoryID,
				Confidence:  1.0,
				Source:      categorization.SourceManual,
				Explanation: []string{"operator override"},
			}
		} else {
			catRes = s.applyThresholds(ctx, tx, catRes, res)
		}

		prepared = append(prepared, ledger.PreparedTransaction{
			Parsed:         tx,
			Categorization: catRes,
		})
	}
	return prepared
}

// applyThresholds interprets the engine's confidence: auto-accept persists
// the category, the suggest band surfaces it to the operator only, and
// anything lower stays manual. The optional suggester is consulted last.
func (s *Service) applyThresholds(ctx context.Context, tx parser.ParsedTransaction, catRes categorization.Result, res *DocumentResult) categorization.Result {
	if catRes.CategoryID != nil {
		if catRes.Confidence >= autoAcceptThreshold {
			return catRes
		}
		if catRes.Confidence >= suggestThreshold {
			res.Suggestions = append(res.Suggestions, Suggestion{
				ExternalID: tx.ExternalID,
				CategoryID: *catRes.CategoryID,
				Confidence: catRes.Confidence,
				Source:     catRes.Source.String(),
			})
		}
		// Below the auto-accept threshold nothing is persisted.
		catRes.CategoryID = nil
		return catRes
	}

	if s.cfg.EnableSuggestions && s.suggester != nil && s.categories != nil {
		if sg := s.consultSuggester(ctx, tx); sg != nil {
			res.Suggestions = append(res.Suggestions, *sg)
		}
	}
	return catRes
}

func (s *Service) consultSuggester(ctx context.Context, tx parser.ParsedTransaction) *Suggestion {
	suggestion, err := s.suggester.Suggest(ctx, categorization.Input{Name: tx.Description})
	if err != nil {
		s.logger.Warn("suggestion service failed", slog.Any("error", err))
		return nil
	}

	known, err := s.categories.KnownIDs(ctx)
	if err != nil {
		s.logger.Warn("failed to load category set", slog.Any("error", err))
		return nil
	}
	if err := categorization.ValidateSuggestion(suggestion, known); err != nil {
		s.logger.Warn("rejected external suggestion", slog.Any("error", err))
		return nil
	}

	return &Suggestion{
		ExternalID: tx.ExternalID,
		CategoryID: suggestion.CategoryID,
		Source:     "suggester",
	}
}

// Summary renders batch totals for operator output.
func (r *BatchResult) Summary(currencyCode string) string {
	var credits, debits int64
	parsedCount := 0
	for _, d := range r.Documents {
		for _, tx := range d.Transactions {
			parsedCount++
			if tx.Type == parser.Credit {
				credits += tx.AmountCents
			} else {
				debits += tx.AmountCents
			}
		}
	}
	return fmt.Sprintf("parsed %d transactions (credits %s, debits %s), imported %d, %d awaiting review",
		parsedCount,
		money.New(credits, currencyCode).Display(),
		money.New(debits, currencyCode).Display(),
		r.Imported,
		r.Review.Len(),
	)
}

func preview(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	return text[:limit]
}
