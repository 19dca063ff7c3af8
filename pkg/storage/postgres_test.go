package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStorage(db, "objects"), mock
}

func TestPostgresStorageRead(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM "objects" WHERE path = $1`)).
		WithArgs("skills/a.yaml").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("name: a")))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM "objects" WHERE path = $1`)).
		WithArgs("skills/b.yaml").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	data, err := s.Read(context.Background(), "/skills/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: a", string(data))

	_, err = s.Read(context.Background(), "skills/b.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorageWriteUpserts(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "objects" (path, data, updated_at)`)).
		WithArgs("skills/a.yaml", []byte("x")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Write(context.Background(), "skills/a.yaml", []byte("x")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorageDelete(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "objects" WHERE path = $1`)).
		WithArgs("skills/a.yaml").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "objects" WHERE path = $1`)).
		WithArgs("skills/a.yaml").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), "skills/a.yaml"))
	assert.True(t, errors.Is(s.Delete(context.Background(), "skills/a.yaml"), ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorageList(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT path FROM "objects" WHERE left(path, length($1)) = $1`)).
		WithArgs("skills/").
		WillReturnRows(sqlmock.NewRows([]string{"path"}).AddRow("skills/a.yaml").AddRow("skills/b.yaml"))

	paths, err := s.List(context.Background(), "skills")
	require.NoError(t, err)
	assert.Equal(t, []string{"skills/a.yaml", "skills/b.yaml"}, paths)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorageExistsAndMigrate(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "objects"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("users/u.yaml").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	require.NoError(t, s.Migrate(context.Background()))
	ok, err := s.Exists(context.Background(), "users/u.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
