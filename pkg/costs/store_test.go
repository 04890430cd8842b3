package costs

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	on := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	it := &Item{ProjectID: 10, Category: CategoryHard, Description: "Framing", Vendor: "Acme", AmountCents: 500, IncurredOn: on, CreatedBy: 1}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cost_items")).
		WithArgs(int64(10), "hard", "Framing", "Acme", int64(500), on, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(3, now, now))

	require.NoError(t, NewPostgresStore(db).Create(context.Background(), it))
	assert.Equal(t, int64(3), it.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOtherProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND project_id = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	updated, err := NewPostgresStore(db).Update(context.Background(), &Item{ID: 3, ProjectID: 11, Category: CategoryLand, AmountCents: 1})
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Totals(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY category")).WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"category", "sum", "count"}).
			AddRow("land", 700, 1).
			AddRow("soft", 50, 2))

	totals, err := NewPostgresStore(db).Totals(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, CategoryTotal{Category: CategoryLand, TotalCents: 700, Count: 1}, totals[CategoryLand])
	assert.Equal(t, 2, totals[CategorySoft].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewBreakdown(t *testing.T) {
	b := NewBreakdown(1, 100, nil)
	assert.Equal(t, int64(100), b.VarianceCents)
	assert.Len(t, b.ByCategory, 5)
	assert.Equal(t, CategoryLand, b.ByCategory[0].Category)
}
