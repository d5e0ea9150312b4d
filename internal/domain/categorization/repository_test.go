package categorization

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEnabledRules(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ruleID := uuid.New()
	categoryID := uuid.New()

	mock.ExpectQuery(`SELECT id, category_id, match_field, match_type, match_pattern, priority, enabled`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "category_id", "match_field", "match_type", "match_pattern", "priority", "enabled",
		}).
			AddRow(ruleID, categoryID, "name", "substring", "starbucks", 10, true).
			AddRow(uuid.New(), uuid.New(), "merchant_name", "exact", "netflix", 5, true).
			AddRow(uuid.New(), uuid.New(), "bogus_field", "exact", "x", 1, true))

	repo := NewRepositoryWithDB(mock)
	rules, err := repo.ListEnabledRules(context.Background())
	require.NoError(t, err)

	// The row with an unrecognized field tag is skipped.
	require.Len(t, rules, 2)
	assert.Equal(t, ruleID, rules[0].ID)
	assert.Equal(t, FieldName, rules[0].MatchField)
	assert.Equal(t, MatchSubstring, rules[0].MatchType)
	assert.Equal(t, FieldMerchantName, rules[1].MatchField)
	assert.Equal(t, MatchExact, rules[1].MatchType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	accountID := uuid.New()
	categoryID := uuid.New()
	merchant := "Starbucks"

	mock.ExpectQuery(`SELECT id, name, merchant_name, amount_cents, category_id`).
		WithArgs(accountID, 100).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "merchant_name", "amount_cents", "category_id",
		}).
			AddRow(uuid.New(), "STARBUCKS #123", &merchant, int64(-450), &categoryID).
			AddRow(uuid.New(), "PAYROLL ACME", (*string)(nil), int64(250000), (*uuid.UUID)(nil)))

	repo := NewRepositoryWithDB(mock)
	entries, err := repo.ListHistory(context.Background(), accountID, 100)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "STARBUCKS #123", entries[0].Name)
	require.NotNil(t, entries[0].CategoryID)
	assert.Equal(t, categoryID, *entries[0].CategoryID)
	assert.Nil(t, entries[1].CategoryID)
	assert.Nil(t, entries[1].MerchantName)

	assert.NoError(t, mock.ExpectationsWereMet())
}
