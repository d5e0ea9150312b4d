package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/statement-importer/internal/domain/review"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-importer/pkg/config"
)

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(seedCategoriesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(searchCmd)

	importCmd.Flags().StringP("account", "a", "", "Account id to import into (required)")
	importCmd.Flags().Bool("debug", false, "Print a preview of the reconstructed statement text")
	importCmd.Flags().String("csv", "", "Write imported transactions to a CSV file")
	importCmd.Flags().String("review-csv", "", "Write the needs-review set to a CSV file")
	_ = importCmd.MarkFlagRequired("account")

	watchCmd.Flags().StringP("account", "a", "", "Account id to import into (required)")
	watchCmd.Flags().StringP("dir", "d", "", "Inbox directory to watch for statement documents (required)")
	watchCmd.Flags().Duration("interval", 30*time.Second, "Scan interval")
	_ = watchCmd.MarkFlagRequired("account")
	_ = watchCmd.MarkFlagRequired("dir")

	searchCmd.Flags().StringP("account", "a", "", "Account id whose history to search (required)")
	searchCmd.Flags().Int("limit", 10, "Maximum number of hits")
	_ = searchCmd.MarkFlagRequired("account")
}

func setup(ctx context.Context) (*Dependencies, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	deps, err := InitDependencies(cfg, newLogger())
	if err != nil {
		return nil, err
	}
	if err := deps.ImportService.RefreshRules(ctx); err != nil {
		deps.Cleanup()
		return nil, err
	}
	return deps, nil
}

func accountFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("account")
	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid account id %q: %w", raw, err)
	}
	return accountID, nil
}

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Import statement documents into an account's ledger",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	accountID, err := accountFlag(cmd)
	if err != nil {
		return err
	}

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	in := service.ImportInput{AccountID: accountID}
	in.Debug, _ = cmd.Flags().GetBool("debug")
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		in.Documents = append(in.Documents, service.Document{
			Name: filepath.Base(path),
			Data: data,
		})
	}

	result, err := deps.ImportService.ImportBatch(ctx, in)
	if err != nil {
		return err
	}

	printBatch(result, deps.Config.Importer.CurrencyCode, in.Debug)

	if out, _ := cmd.Flags().GetString("csv"); out != "" {
		if err := writeCSV(out, result, service.WriteTransactionsCSV); err != nil {
			return err
		}
	}
	if out, _ := cmd.Flags().GetString("review-csv"); out != "" {
		if err := writeCSV(out, result, service.WriteReviewCSV); err != nil {
			return err
		}
	}
	return nil
}

func printBatch(result *service.BatchResult, currencyCode string, debug bool) {
	for _, doc := range result.Documents {
		if doc.Err != nil {
			fmt.Printf("%s: FAILED: %v\n", doc.Document, doc.Err)
			continue
		}
		fmt.Printf("%s: format=%s transactions=%d imported=%d\n",
			doc.Document, doc.Format, len(doc.Transactions), doc.Imported)
		if doc.Reconciliation != nil {
			fmt.Printf("  reconciliation: %s\n", doc.Reconciliation.Describe(currencyCode))
		}
		for _, s := range doc.Suggestions {
			fmt.Printf("  suggestion: %s -> %s (%.2f, %s)\n",
				s.ExternalID, s.CategoryID, s.Confidence, s.Source)
		}
		for line, hints := range doc.ReviewHints {
			patterns := make([]string, 0, len(hints))
			for _, h := range hints {
				patterns = append(patterns, h.Pattern)
			}
			fmt.Printf("  review hint: %q near rules: %s\n", line, strings.Join(patterns, ", "))
		}
		if debug && doc.Preview != "" {
			fmt.Printf("  preview:\n%s\n", doc.Preview)
		}
	}

	for _, item := range result.Review.Items() {
		fmt.Printf("needs review: %s: %q (%s)\n", item.Document, item.Line, item.Reason)
	}
	fmt.Println(result.Summary(currencyCode))
}

func writeCSV(path string, result *service.BatchResult, write func(w io.Writer, r *service.BatchResult) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f, result); err != nil {
		return err
	}
	return nil
}

var seedCategoriesCmd = &cobra.Command{
	Use:   "seed-categories",
	Short: "Create the default category set if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		deps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		if err := deps.CategoryRepo.EnsureDefaults(ctx); err != nil {
			return err
		}
		fmt.Println("default categories ensured")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an inbox directory and import new statement documents",
	Long: `Scan a directory on an interval, import any statement documents found,
and move processed files into a processed/ subdirectory. Categorization rules
refresh periodically while watching.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accountID, err := accountFlag(cmd)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	interval, _ := cmd.Flags().GetDuration("interval")

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	processedDir := filepath.Join(dir, "processed")
	if err := os.MkdirAll(processedDir, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", processedDir, err)
	}

	if deps.Config.Observability.MetricsEnabled {
		go serveMetrics(ctx, deps)
	}

	if err := deps.Scheduler.Start(); err != nil {
		return err
	}
	defer deps.Scheduler.Stop()

	deps.Logger.Info("watching for statement documents",
		slog.String("dir", dir),
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := importInbox(ctx, deps, accountID, dir, processedDir); err != nil {
			deps.Logger.Error("inbox scan failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func importInbox(ctx context.Context, deps *Dependencies, accountID uuid.UUID, dir, processedDir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	in := service.ImportInput{AccountID: accountID}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			deps.Logger.Error("cannot read inbox file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		in.Documents = append(in.Documents, service.Document{Name: e.Name(), Data: data})
		paths = append(paths, path)
	}
	if len(in.Documents) == 0 {
		return nil
	}

	result, err := deps.ImportService.ImportBatch(ctx, in)
	if err != nil {
		return err
	}
	deps.Logger.Info("inbox batch imported",
		slog.String("summary", result.Summary(deps.Config.Importer.CurrencyCode)))

	for _, path := range paths {
		dest := filepath.Join(processedDir, filepath.Base(path))
		if err := os.Rename(path, dest); err != nil {
			deps.Logger.Error("cannot move processed file", slog.String("path", path), slog.Any("error", err))
		}
	}
	return nil
}

func serveMetrics(ctx context.Context, deps *Dependencies) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", deps.Config.Observability.MetricsPort),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	deps.Logger.Info("metrics endpoint listening", slog.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		deps.Logger.Error("metrics server failed", slog.Any("error", err))
	}
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search an account's ledger history while resolving review items",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	accountID, err := accountFlag(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	history, err := deps.CategorizationRepo.ListHistory(ctx, accountID, deps.Config.Importer.HistoryLimit)
	if err != nil {
		return err
	}

	idx, err := review.NewHistoryIndex("")
	if err != nil {
		return err
	}
	defer idx.Close()
	if err := idx.IndexHistory(history); err != nil {
		return err
	}

	hits, err := idx.Search(args[0], limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, hit := range hits {
		category := "uncategorized"
		if id, ok := idx.CategoryFor(hit); ok {
			category = id.String()
		}
		fmt.Printf("%.3f  %-40s  %s\n", hit.Score, hit.Document.Name, category)
	}
	return nil
}
