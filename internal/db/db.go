package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wesm/barview/internal/query"
)

// Row is one result row keyed by column name. Text columns are
// returned as string, never []byte.
type Row map[string]any

// Querier executes a statement and returns its rows. An empty
// result is a non-nil empty slice.
type Querier interface {
	Query(ctx context.Context, label string, st query.Statement) ([]Row, error)
}

// DB is a read-only connection pool to a point-of-sale database.
type DB struct {
	x       *sqlx.DB
	dialect query.Dialect
}

var _ Querier = (*DB)(nil)

// Open returns a pool for driver ("mysql" or "sqlite3") and dsn.
// Connections are established lazily; call Ping to verify.
func Open(driver, dsn string) (*DB, error) {
	if driver == "sqlite" {
		driver = "sqlite3"
	}
	dialect, err := query.DialectFor(driver)
	if err != nil {
		return nil, err
	}
	x, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driver, err)
	}
	switch driver {
	case "mysql":
		x.SetMaxOpenConns(8)
		x.SetMaxIdleConns(4)
		x.SetConnMaxLifetime(3 * time.Minute)
	default:
		x.SetMaxOpenConns(4)
	}
	return &DB{x: x, dialect: dialect}, nil
}

// Dialect returns the SQL dialect of the connected engine.
func (db *DB) Dialect() query.Dialect {
	return db.dialect
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.x.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging %s: %w", db.dialect.Name(), err)
	}
	return nil
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.x.Close()
}

// Query binds st's named parameters, runs it and returns every
// row. Failures are wrapped in *QueryError carrying label, SQL
// and params.
func (db *DB) Query(
	ctx context.Context, label string, st query.Statement,
) ([]Row, error) {
	start := time.Now()
	rows, err := db.query(ctx, st)
	observe(label, db.dialect.Name(), start, err)
	if err != nil {
		return nil, &QueryError{
			Context: label,
			SQL:     st.SQL,
			Params:  st.Params,
			Err:     err,
		}
	}
	return rows, nil
}

func (db *DB) query(ctx context.Context, st query.Statement) ([]Row, error) {
	params := st.Params
	if params == nil {
		params = map[string]any{}
	}
	text, args, err := sqlx.Named(st.SQL, params)
	if err != nil {
		return nil, fmt.Errorf("binding params: %w", err)
	}
	rows, err := db.x.QueryxContext(ctx, db.x.Rebind(text), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		r := make(map[string]any)
		if err := rows.MapScan(r); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for k, v := range r {
			if b, ok := v.([]byte); ok {
				r[k] = string(b)
			}
		}
		out = append(out, Row(r))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// Exec runs a statement without results. Only fixtures and
// tooling write; the dashboard itself never does.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := db.x.ExecContext(ctx, sql, args...); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	return nil
}
