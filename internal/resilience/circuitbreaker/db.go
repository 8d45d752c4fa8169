package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"

	obsmetrics "notify-hub/internal/observability/metrics"
)

// DBCircuitBreaker fronts the shared *sql.DB for the repositories and the
// queue transport. When Postgres degrades, the breaker fails fast instead of
// stacking up blocked deliveries, and every call feeds the query duration
// histogram.
type DBCircuitBreaker struct {
	cb  *CircuitBreaker
	db  *sql.DB
	now func() time.Time
}

// DBConfig opens the circuit after 5 consecutive failures and probes again
// after 30 seconds with up to 3 half-open requests.
func DBConfig() Config {
	return Config{
		Name:             "database",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{
		cb:  New(cfg),
		db:  db,
		now: time.Now,
	}
}

// QueryContext runs a query through the breaker. An open circuit returns
// gobreaker.ErrOpenState without touching the database.
func (dcb *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := dcb.now()
	result, err := dcb.cb.Execute(func() (interface{}, error) {
		return dcb.db.QueryContext(ctx, query, args...)
	})
	obsmetrics.RecordDBQuery("query", dcb.now().Sub(start))

	if err != nil {
		return nil, err
	}
	return result.(*sql.Rows), nil
}

// ExecContext runs a statement through the breaker. An open circuit returns
// gobreaker.ErrOpenState without touching the database.
func (dcb *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := dcb.now()
	result, err := dcb.cb.Execute(func() (interface{}, error) {
		return dcb.db.ExecContext(ctx, query, args...)
	})
	obsmetrics.RecordDBQuery("exec", dcb.now().Sub(start))

	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

// QueryRowContext bypasses the breaker: sql.Row defers its error to Scan, so
// there is nothing to classify here. The duration still lands in the
// histogram.
func (dcb *DBCircuitBreaker) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	start := dcb.now()
	row := dcb.db.QueryRowContext(ctx, query, args...)
	obsmetrics.RecordDBQuery("query_row", dcb.now().Sub(start))
	return row
}

// State returns the current breaker state.
func (dcb *DBCircuitBreaker) State() gobreaker.State {
	return dcb.cb.State()
}

// IsOpen reports whether the breaker is open.
func (dcb *DBCircuitBreaker) IsOpen() bool {
	return dcb.cb.IsOpen()
}

// DB exposes the underlying connection for callers that manage their own
// failure handling, like transactional work that must not half-trip the
// breaker.
func (dcb *DBCircuitBreaker) DB() *sql.DB {
	return dcb.db
}
