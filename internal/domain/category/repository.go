package category

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/statement-importer/pkg/db"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies
// it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists the category tree
type Repository struct {
	db DB
}

// NewRepository creates a new category repository
func NewRepository(database *db.DB) *Repository {
	return &Repository{db: database.Pool}
}

// NewRepositoryWithDB creates a repository over any DB implementation,
// used by tests.
func NewRepositoryWithDB(d DB) *Repository {
	return &Repository{db: d}
}

// List returns the full category tree
func (r *Repository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, parent_id FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// KnownIDs returns the set of existing category ids, used to validate
// external suggestions.
func (r *Repository) KnownIDs(ctx context.Context) (map[uuid.UUID]struct{}, error) {
	categories, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[uuid.UUID]struct{}, len(categories))
	for _, c := range categories {
		ids[c.ID] = struct{}{}
	}
	return ids, nil
}

// Create inserts a category under the given parent.
func (r *Repository) Create(ctx context.Context, name string, parentID *uuid.UUID) (*Category, error) {
	if parentID != nil {
		categories, err := r.List(ctx)
		if err != nil {
			return nil, err
		}
		found := false
		for _, c := range categories {
			if c.ID == *parentID {
				found = true
				break
			}
		}
		if !found {
			return nil, ErrUnknownParent
		}
	}

	var c Category
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name, parent_id) VALUES ($1, $2) RETURNING id, name, parent_id`,
		name, parentID,
	).Scan(&c.ID, &c.Name, &c.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &c, nil
}

// SetParent moves a category in the tree. The move is validated against
// the current tree before any write, so the stored data stays acyclic.
func (r *Repository) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	categories, err := r.List(ctx)
	if err != nil {
		return err
	}
	if err := ValidateParent(categories, id, parentID); err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `UPDATE categories SET parent_id = $2 WHERE id = $1`, id, parentID)
	if err != nil {
		return fmt.Errorf("failed to update category parent: %w", err)
	}
	return nil
}

// EnsureDefaults idempotently seeds the default root categories. Safe to
// call on every startup.
func (r *Repository) EnsureDefaults(ctx context.Context) error {
	for _, name := range DefaultNames {
		_, err := r.db.Exec(ctx,
			`INSERT INTO categories (name, parent_id) VALUES ($1, NULL) ON CONFLICT DO NOTHING`,
			name,
		)
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", name, err)
		}
	}
	return nil
}
