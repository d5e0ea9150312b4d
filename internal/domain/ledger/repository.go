// Package ledger persists finalized transactions. The upsert keyed on
// (account_id, external_id) is what makes statement re-imports converge
// instead of duplicating rows.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/statement-importer/internal/domain/categorization"
	"github.com/FACorreiaa/statement-importer/internal/domain/statement/parser"
	"github.com/FACorreiaa/statement-importer/pkg/db"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PreparedTransaction pairs a parsed transaction with its categorization,
// the unit handed to the merger.
type PreparedTransaction struct {
	Parsed         parser.ParsedTransaction
	Categorization categorization.Result
	MerchantName   *string
}

// SignedCents returns the ledger representation of the amount: credits
// positive, debits negative.
func (p PreparedTransaction) SignedCents() int64 {
	if p.Parsed.Type == parser.Debit {
		return -p.Parsed.AmountCents
	}
	return p.Parsed.AmountCents
}

// Writer is the upsert surface the import service depends on.
type Writer interface {
	BulkUpsert(ctx context.Context, accountID uuid.UUID, rows []PreparedTransaction) (int, error)
}

// Repository implements Writer over postgres
type Repository struct {
	db DB
}

// NewRepository creates a new ledger repository
func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database.Pool}
}

// NewRepositoryWithDB creates a repository over any DB implementation,
// used by tests.
func NewRepositoryWithDB(d DB) *Repository {
	return &Repository{db: d}
}

const upsertQuery = `
	INSERT INTO transactions (
		id, account_id, external_id, date, name, merchant_name,
		amount_cents, category_id, auto_categorized
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (account_id, external_id) DO UPDATE SET
		amount_cents = EXCLUDED.amount_cents,
		merchant_name = EXCLUDED.merchant_name,
		category_id = EXCLUDED.category_id,
		auto_categorized = EXCLUDED.auto_categorized,
		updated_at = now()
`

// BulkUpsert writes prepared transactions into the ledger. Rows without an
// external id get one recomputed from their content, so nothing is ever
// inserted without a dedup key. Returns the number of rows written.
func (r *Repository) BulkUpsert(ctx context.Context, accountID uuid.UUID, rows []PreparedTransaction) (int, error) {
	imported := 0
	for _, row := range rows {
		externalID := row.Parsed.ExternalID
		if externalID == "" {
			externalID = parser.ExternalID(row.Parsed.Date, row.SignedCents(), row.Parsed.Description)
		}

		autoCategorized := row.Categorization.CategoryID != nil &&
			row.Categorization.Source != categorization.SourceManual

		_, err := r.db.Exec(ctx, upsertQuery,
			uuid.New(),
			accountID,
			externalID,
			row.Parsed.Date,
			row.Parsed.Description,
			row.MerchantName,
			row.SignedCents(),
			row.Categorization.CategoryID,
			autoCategorized,
		)
		if err != nil {
			return imported, fmt.Errorf("failed to upsert transaction %s: %w", externalID, err)
		}
		imported++
	}
	return imported, nil
}
