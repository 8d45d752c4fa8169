// Package postgres implements the pipeline's repositories on PostgreSQL
// through database/sql with the pgx driver.
package postgres

import (
	"context"
	"database/sql"
)

// Querier is the query surface the repositories need. Both *sql.DB and the
// database circuit breaker satisfy it, so callers choose whether storage
// access runs behind a breaker.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
