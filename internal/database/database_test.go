package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{`SELECT "col?" FROM t`, `SELECT "col?" FROM t`},
		{"SELECT 1", "SELECT 1"},
		{"SELECT a -- why?\nFROM t WHERE a = ?", "SELECT a -- why?\nFROM t WHERE a = $1"},
		{"SELECT /* a = ? */ a FROM t WHERE b = ?", "SELECT /* a = ? */ a FROM t WHERE b = $1"},
		{"SELECT a - ? FROM t -- tail?", "SELECT a - $1 FROM t -- tail?"},
		{"SELECT '未闭合 ?", "SELECT '未闭合 ?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Rebind(tt.in))
	}
}

func TestRowAccessors(t *testing.T) {
	r := newRow([]string{"id", "email", "note", "raw"}, []any{int64(7), "a@b.com", nil, []byte("x")})
	id, ok := r.Int64("id")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, "a@b.com", r.String("email"))
	assert.Equal(t, "", r.String("note"))
	assert.Equal(t, "x", r.String("raw"))
	assert.Equal(t, []string{"id", "email", "note", "raw"}, r.Columns)

	_, ok = r.Int64("note")
	assert.False(t, ok)
}

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	db := newTestSQLite(t)

	exists, err := db.TableExists(ctx, "businesses")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = db.TableExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	n, err := db.Query(ctx, "INSERT INTO businesses (name, website, domain) VALUES (?, ?, ?)", "Acme", "https://acme.com", "acme.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, err := db.GetOne(ctx, "SELECT id, name, email FROM businesses WHERE domain = ?", "acme.com")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, []string{"id", "name", "email"}, row.Columns)
	assert.Equal(t, "Acme", row.String("name"))
	assert.Equal(t, "", row.String("email"))
	id, ok := row.Int64("id")
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)

	row, err = db.GetOne(ctx, "SELECT id FROM businesses WHERE domain = ?", "missing.com")
	require.NoError(t, err)
	assert.Nil(t, row)

	_, err = db.Query(ctx, "INSERT INTO nowhere VALUES (1)")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	defer db.Close()

	exists, err := db.TableExists(context.Background(), "businesses")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)
}

func newMockPostgres(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &Postgres{pool: mock}, mock
}

func TestPostgresQuery(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE businesses SET email = \$1 WHERE id = \$2`).
		WithArgs("info@acme.com", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := p.Query(context.Background(), "UPDATE businesses SET email = ? WHERE id = ?", "info@acme.com", int64(3))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetOne(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT id, email FROM businesses WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email"}).AddRow(int64(3), "info@acme.com"))

	row, err := p.GetOne(context.Background(), "SELECT id, email FROM businesses WHERE id = ?", int64(3))
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "info@acme.com", row.String("email"))

	mock.ExpectQuery(`SELECT id FROM businesses`).
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	row, err = p.GetOne(context.Background(), "SELECT id FROM businesses WHERE id = ?", int64(99))
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresErrors(t *testing.T) {
	p, mock := newMockPostgres(t)
	boom := errors.New("connection refused")

	mock.ExpectQuery(`SELECT`).WillReturnError(boom)
	_, err := p.GetMany(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(`DELETE`).WillReturnError(boom)
	_, err = p.Query(context.Background(), "DELETE FROM businesses")
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery(`information_schema.tables`).
		WithArgs("businesses").
		WillReturnRows(pgxmock.NewRows([]string{"table_name"}).AddRow("businesses"))
	exists, err := p.TableExists(context.Background(), "businesses")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.NoError(t, mock.ExpectationsWereMet())
}
