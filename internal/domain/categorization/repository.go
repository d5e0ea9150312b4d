package categorization

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/statement-importer/pkg/db"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads categorization rules and ledger history
type Repository struct {
	db DB
}

// NewRepository creates a new categorization repository
func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database.Pool}
}

// NewRepositoryWithDB creates a repository over any DB implementation,
// used by tests.
func NewRepositoryWithDB(d DB) *Repository {
	return &Repository{db: d}
}

// ListEnabledRules fetches all enabled rules ordered by priority
func (r *Repository) ListEnabledRules(ctx context.Context) ([]CategoryRule, error) {
	query := `
		SELECT id, category_id, match_field, match_type, match_pattern, priority, enabled
		FROM category_rules
		WHERE enabled = TRUE
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list category rules: %w", err)
	}
	defer rows.Close()

	var rules []CategoryRule
	for rows.Next() {
		var (
			rule     CategoryRule
			fieldTag string
			typeTag  string
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.CategoryID,
			&fieldTag,
			&typeTag,
			&rule.MatchPattern,
			&rule.Priority,
			&rule.Enabled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category rule: %w", err)
		}

		field, ok := ParseMatchField(fieldTag)
		if !ok {
			continue
		}
		matchType, ok := ParseMatchType(typeTag)
		if !ok {
			continue
		}
		rule.MatchField = field
		rule.MatchType = matchType
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// ListHistory fetches recent categorized transactions for the similarity
// tier, newest first.
func (r *Repository) ListHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]HistoryEntry, error) {
	query := `
		SELECT id, name, merchant_name, amount_cents, category_id
		FROM transactions
		WHERE account_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.MerchantName, &e.AmountCents, &e.CategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
