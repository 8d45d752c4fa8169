// Package resilience provides reliability and fault tolerance patterns for
// the delivery pipeline. It includes circuit breakers and retry logic so a
// degraded channel service or database does not cascade into the rest of
// the worker.
//
// The package supports:
//   - Per-channel circuit breakers for outbound sends
//   - A database circuit breaker wrapping the storage layer
//   - Retry logic with exponential backoff and jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.ChannelConfig("slack"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return adapter.Send(ctx, cfg, msg)
//	})
//
//	err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
//	    return repo.UpdateStatus(ctx, id, status, lastError, retries)
//	})
package resilience
