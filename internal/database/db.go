// Package database 提供业务库的最小访问接口,以及SQLite和PostgreSQL两个实现
//
// SQL统一使用?占位符,PostgreSQL实现会改写为$1..$n。
package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DB 数据库访问接口
type DB interface {
	// Query 执行写语句,返回受影响的行数
	Query(ctx context.Context, sql string, args ...any) (int64, error)

	// GetOne 返回第一行,不存在时返回nil, nil
	GetOne(ctx context.Context, sql string, args ...any) (*Row, error)

	// GetMany 返回所有行
	GetMany(ctx context.Context, sql string, args ...any) ([]*Row, error)

	// TableExists 检查表是否存在
	TableExists(ctx context.Context, name string) (bool, error)

	Close() error
}

// Config 数据库配置
type Config struct {
	Driver   string `mapstructure:"driver"` // sqlite 或 postgres
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Open 根据配置打开数据库
func Open(ctx context.Context, cfg Config) (DB, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite", "sqlite3":
		db, err := NewSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "postgres", "postgresql", "pgx":
		db, err := NewPostgres(ctx, cfg.DSN, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}
}

// Row 一行查询结果,保留列顺序
type Row struct {
	Columns []string
	Values  map[string]any
}

func newRow(columns []string, values []any) *Row {
	r := &Row{Columns: columns, Values: make(map[string]any, len(columns))}
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		r.Values[col] = v
	}
	return r
}

// String 以字符串形式读取列,NULL返回空字符串
func (r *Row) String(col string) string {
	switch v := r.Values[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 以整数形式读取列
func (r *Row) Int64(col string) (int64, bool) {
	switch v := r.Values[col].(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Rebind 把?占位符改写为$1..$n,跳过引号内的内容和 -- 、/* */ 注释
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'' || ch == '"':
			end := strings.IndexByte(query[i+1:], ch)
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+2])
			i += end + 1
		case ch == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+1])
			i += end
		case ch == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				b.WriteString(query[i:])
				return b.String()
			}
			b.WriteString(query[i : i+end+4])
			i += end + 3
		case ch == '?':
			n++
			b.WriteString("$" + strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
