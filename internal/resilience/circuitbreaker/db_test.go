package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"

	obsmetrics "notify-hub/internal/observability/metrics"
)

func newMockBreaker(t *testing.T) (*DBCircuitBreaker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewDBCircuitBreaker(db), mock
}

func TestNewDBCircuitBreaker(t *testing.T) {
	dcb, _ := newMockBreaker(t)

	if dcb.db == nil || dcb.cb == nil {
		t.Fatal("breaker not fully initialized")
	}
	if dcb.State() != gobreaker.StateClosed {
		t.Errorf("initial state = %s, want Closed", dcb.State())
	}
}

func TestDBCircuitBreaker_QueryContext_Success(t *testing.T) {
	dcb, mock := newMockBreaker(t)

	rows := sqlmock.NewRows([]string{"id", "status"}).
		AddRow(int64(1), "sent")
	mock.ExpectQuery("SELECT (.+) FROM notification_logs").WillReturnRows(rows)

	result, err := dcb.QueryContext(context.Background(),
		"SELECT id, status FROM notification_logs WHERE user_id = $1", "u1")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = result.Close() }()

	if !result.Next() {
		t.Fatal("expected a row")
	}
	var id int64
	var status string
	if err := result.Scan(&id, &status); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if id != 1 || status != "sent" {
		t.Errorf("row = (%d, %s)", id, status)
	}

	if dcb.State() != gobreaker.StateClosed {
		t.Errorf("state after success = %s", dcb.State())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBCircuitBreaker_QueryContext_Failure(t *testing.T) {
	dcb, mock := newMockBreaker(t)

	mock.ExpectQuery("SELECT (.+) FROM notification_logs").
		WillReturnError(errors.New("connection refused"))

	if _, err := dcb.QueryContext(context.Background(),
		"SELECT id FROM notification_logs"); err == nil {
		t.Fatal("expected error")
	}
	if dcb.State() == gobreaker.StateOpen {
		t.Error("circuit must not open after a single failure")
	}
}

func TestDBCircuitBreaker_ExecContext_Success(t *testing.T) {
	dcb, mock := newMockBreaker(t)

	mock.ExpectExec("UPDATE notification_logs SET status").
		WithArgs("sent", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := dcb.ExecContext(context.Background(),
		"UPDATE notification_logs SET status = $1 WHERE id = $2", "sent", int64(1))
	if err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		t.Errorf("rows affected = %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBCircuitBreaker_CircuitOpens_AfterConsecutiveFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	cfg := Config{
		Name:             "test-db",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
	dcb := NewDBCircuitBreakerWithConfig(db, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT (.+)").WillReturnError(errors.New("connection refused"))
	}
	for i := 0; i < 5; i++ {
		if _, err := dcb.QueryContext(ctx, "SELECT id FROM idempotency_keys"); err == nil {
			t.Errorf("attempt %d: expected error", i+1)
		}
	}

	if !dcb.IsOpen() {
		t.Fatalf("circuit should be open after 5 consecutive failures, state: %s", dcb.State())
	}

	// The open circuit rejects without reaching the database; no further mock
	// expectations exist to satisfy.
	_, err = dcb.QueryContext(ctx, "SELECT id FROM idempotency_keys")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBCircuitBreaker_CircuitHalfOpen_AfterTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	cfg := Config{
		Name:             "test-db",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          50 * time.Millisecond,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
	dcb := NewDBCircuitBreakerWithConfig(db, cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT (.+)").WillReturnError(errors.New("connection refused"))
	}
	for i := 0; i < 5; i++ {
		_, _ = dcb.QueryContext(ctx, "SELECT id FROM idempotency_keys")
	}
	if !dcb.IsOpen() {
		t.Fatal("circuit should be open")
	}

	time.Sleep(100 * time.Millisecond)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(1))
	mock.ExpectQuery("SELECT (.+)").WillReturnRows(rows)

	result, err := dcb.QueryContext(ctx, "SELECT id FROM idempotency_keys")
	if err != nil {
		t.Fatalf("half-open probe should pass through, got %v", err)
	}
	_ = result.Close()
}

func TestDBCircuitBreaker_QueryRowContext(t *testing.T) {
	dcb, mock := newMockBreaker(t)

	rows := sqlmock.NewRows([]string{"id", "channel"}).
		AddRow(int64(1), "webhook")
	mock.ExpectQuery("SELECT (.+) FROM user_channel_configs").
		WithArgs("u1").
		WillReturnRows(rows)

	row := dcb.QueryRowContext(context.Background(),
		"SELECT id, channel FROM user_channel_configs WHERE user_id = $1", "u1")

	var id int64
	var channel string
	if err := row.Scan(&id, &channel); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if id != 1 || channel != "webhook" {
		t.Errorf("row = (%d, %s)", id, channel)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestDBCircuitBreaker_RecordsQueryDuration(t *testing.T) {
	dcb, mock := newMockBreaker(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(1))
	mock.ExpectQuery("SELECT (.+)").WillReturnRows(rows)

	result, err := dcb.QueryContext(context.Background(), "SELECT id FROM notification_logs")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	_ = result.Close()

	if got := testutil.CollectAndCount(obsmetrics.DBQueryDuration); got == 0 {
		t.Error("query duration histogram has no samples")
	}
}

func TestDBCircuitBreaker_DB(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer func() { _ = db.Close() }()

	dcb := NewDBCircuitBreaker(db)
	if dcb.DB() != db {
		t.Error("DB() must return the wrapped connection")
	}
}

func TestDBConfig(t *testing.T) {
	cfg := DBConfig()

	if cfg.Name != "database" {
		t.Errorf("name = %q", cfg.Name)
	}
	if cfg.MaxRequests != 3 || cfg.MinRequests != 5 {
		t.Errorf("request limits = (%d, %d)", cfg.MaxRequests, cfg.MinRequests)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.Timeout)
	}
	if cfg.FailureThreshold != 1.0 {
		t.Errorf("failure threshold = %f", cfg.FailureThreshold)
	}
}
