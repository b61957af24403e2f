package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// pgxPool Postgres实现依赖的连接池方法,pgxpool.Pool和pgxmock都满足
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Postgres 基于pgx连接池的实现
type Postgres struct {
	pool pgxPool
}

// NewPostgres 创建连接池并验证连通性
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Query(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := p.pool.Exec(ctx, Rebind(query), args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: exec")
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) GetOne(ctx context.Context, query string, args ...any) (*Row, error) {
	rows, err := p.GetMany(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (p *Postgres) GetMany(ctx context.Context, query string, args ...any) ([]*Row, error) {
	rows, err := p.pool.Query(ctx, Rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var out []*Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: values")
		}
		out = append(out, newRow(columns, values))
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate")
}

func (p *Postgres) TableExists(ctx context.Context, name string) (bool, error) {
	row, err := p.GetOne(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?", name)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
