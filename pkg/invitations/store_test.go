package invitations

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/groundwork/pkg/models"
)

func TestPostgresStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	token := "abc"
	row := &models.ProjectAccess{
		ProjectID: 10, InvitedEmail: "alice@example.com", Permission: models.PermissionRead,
		Token: &token, InvitedBy: 1, InvitedAt: now, ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO project_access")).
		WithArgs(int64(10), "alice@example.com", "read", "abc", int64(1), now, now.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, NewPostgresStore(db).Create(context.Background(), row))
	assert.Equal(t, int64(42), row.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkAccepted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now()
	store := NewPostgresStore(db)
	query := regexp.QuoteMeta("SET user_id = $2, accepted_at = $3, token = NULL")

	mock.ExpectExec(query).WithArgs(int64(5), int64(2), at).WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := store.MarkAccepted(context.Background(), 5, 2, at)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(query).WithArgs(int64(5), int64(2), at).WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = store.MarkAccepted(context.Background(), 5, 2, at)
	require.NoError(t, err)
	assert.False(t, ok, "already accepted")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Reissue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	expires := now.Add(7 * 24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE project_access")).
		WithArgs(int64(5), "new", "write", now, expires).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM invitation_reminders")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := NewPostgresStore(db).Reissue(context.Background(), 5, "new", models.PermissionWrite, now, expires)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReissueAcceptedRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE project_access")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := NewPostgresStore(db).Reissue(context.Background(), 5, "new", models.PermissionRead, now, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByTokenMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM project_access WHERE deleted_at IS NULL AND token = $1")).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	row, err := NewPostgresStore(db).FindByToken(context.Background(), "gone")
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordReminder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (access_id) DO NOTHING")).
		WithArgs(int64(5), at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewPostgresStore(db).RecordReminder(context.Background(), 5, at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
