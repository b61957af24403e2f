package database

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite 基于modernc.org/sqlite的实现
type SQLite struct {
	db *sql.DB
}

// NewSQLite 打开SQLite数据库并启用WAL
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = "emailfinder.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLite{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	name             TEXT NOT NULL DEFAULT '',
	website          TEXT NOT NULL DEFAULT '',
	domain           TEXT NOT NULL DEFAULT '',
	email            TEXT,
	email_source     TEXT,
	email_updated_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_businesses_domain ON businesses(domain);
`

// Migrate 创建业务表(供CLI和测试使用)
func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLite) Query(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: exec")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return n, nil
}

func (s *SQLite) GetOne(ctx context.Context, query string, args ...any) (*Row, error) {
	rows, err := s.GetMany(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *SQLite) GetMany(ctx context.Context, query string, args ...any) ([]*Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: columns")
	}

	var out []*Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan")
		}
		out = append(out, newRow(columns, values))
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate")
}

func (s *SQLite) TableExists(ctx context.Context, name string) (bool, error) {
	row, err := s.GetOne(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
