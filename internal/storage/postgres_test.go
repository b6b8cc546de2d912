package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPgMock(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS client_state").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewPostgres(sqlx.NewDb(db, "sqlmock"))
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mock := newPgMock(t)

	mock.ExpectExec("INSERT INTO client_state").
		WithArgs("session", []byte(`{"accessToken":"t"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Set(ctx, "session", []byte(`{"accessToken":"t"}`)))

	rows := sqlmock.NewRows([]string{"blob"}).AddRow([]byte(`{"accessToken":"t"}`))
	mock.ExpectQuery("SELECT blob FROM client_state").
		WithArgs("session").
		WillReturnRows(rows)
	blob, ok, err := s.Get(ctx, "session")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"accessToken":"t"}`, string(blob))

	mock.ExpectExec("DELETE FROM client_state").
		WithArgs("session").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Remove(ctx, "session"))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MissingRecord(t *testing.T) {
	ctx := context.Background()
	s, mock := newPgMock(t)

	mock.ExpectQuery("SELECT blob FROM client_state").
		WithArgs("wallet").
		WillReturnRows(sqlmock.NewRows([]string{"blob"}))
	blob, ok, err := s.Get(ctx, "wallet")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, blob)

	require.NoError(t, mock.ExpectationsWereMet())
}
