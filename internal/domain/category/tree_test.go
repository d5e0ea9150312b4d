package category

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParent(t *testing.T) {
	root := uuid.New()
	mid := uuid.New()
	leaf := uuid.New()
	other := uuid.New()

	// root -> mid -> leaf, other standalone
	tree := []Category{
		{ID: root, Name: "Dining"},
		{ID: mid, Name: "Restaurants", ParentID: &root},
		{ID: leaf, Name: "Fast Food", ParentID: &mid},
		{ID: other, Name: "Travel"},
	}

	t.Run("detach to root is always valid", func(t *testing.T) {
		assert.NoError(t, ValidateParent(tree, leaf, nil))
	})

	t.Run("move to unrelated node", func(t *testing.T) {
		assert.NoError(t, ValidateParent(tree, leaf, &other))
	})

	t.Run("self parent", func(t *testing.T) {
		assert.ErrorIs(t, ValidateParent(tree, mid, &mid), ErrCycle)
	})

	t.Run("direct cycle", func(t *testing.T) {
		// mid under leaf while leaf is under mid
		assert.ErrorIs(t, ValidateParent(tree, mid, &leaf), ErrCycle)
	})

	t.Run("deep cycle", func(t *testing.T) {
		// root under leaf closes a three-level loop
		assert.ErrorIs(t, ValidateParent(tree, root, &leaf), ErrCycle)
	})

	t.Run("unknown parent", func(t *testing.T) {
		bogus := uuid.New()
		assert.ErrorIs(t, ValidateParent(tree, leaf, &bogus), ErrUnknownParent)
	})

	t.Run("pre-existing stored cycle does not loop forever", func(t *testing.T) {
		a, b := uuid.New(), uuid.New()
		broken := []Category{
			{ID: a, Name: "A", ParentID: &b},
			{ID: b, Name: "B", ParentID: &a},
		}
		c := uuid.New()
		brokenPlus := append(broken, Category{ID: c, Name: "C"})
		assert.ErrorIs(t, ValidateParent(brokenPlus, c, &a), ErrCycle)
	})
}

func categoryRows(tree []Category) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "name", "parent_id"})
	for _, c := range tree {
		rows.AddRow(c.ID, c.Name, c.ParentID)
	}
	return rows
}

func TestSetParentRejectsCycleBeforeWriting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	root := uuid.New()
	child := uuid.New()
	tree := []Category{
		{ID: root, Name: "Dining"},
		{ID: child, Name: "Restaurants", ParentID: &root},
	}

	// Only the read is expected; no UPDATE may reach the database.
	mock.ExpectQuery(`SELECT id, name, parent_id FROM categories`).
		WillReturnRows(categoryRows(tree))

	repo := NewRepositoryWithDB(mock)
	err = repo.SetParent(context.Background(), root, &child)
	assert.ErrorIs(t, err, ErrCycle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetParentValidMove(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	root := uuid.New()
	child := uuid.New()
	tree := []Category{
		{ID: root, Name: "Dining"},
		{ID: child, Name: "Restaurants"},
	}

	mock.ExpectQuery(`SELECT id, name, parent_id FROM categories`).
		WillReturnRows(categoryRows(tree))
	mock.ExpectExec(`UPDATE categories SET parent_id`).
		WithArgs(child, &root).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewRepositoryWithDB(mock)
	require.NoError(t, repo.SetParent(context.Background(), child, &root))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefaultsIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	for range DefaultNames {
		mock.ExpectExec(`INSERT INTO categories`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0)) // conflict, no-op
	}

	repo := NewRepositoryWithDB(mock)
	require.NoError(t, repo.EnsureDefaults(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
