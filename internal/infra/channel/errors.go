package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError represents a 429 response from a channel service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx response other than 429. Not retryable.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx response. Retryable.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// AsRateLimit extracts a rate limit error and its retry_after hint.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// Retryable reports whether a send failure is worth retrying. Server errors,
// rate limits, and transport failures (network, timeout) are retryable;
// other client errors are not.
func Retryable(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}
	return true
}

// classifyResponse maps a non-2xx channel response to a typed error.
// service names the channel for error text.
func classifyResponse(service string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    fmt.Sprintf("%s rate limit exceeded", service),
			RetryAfter: extractRetryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s client error %d: %s", service, resp.StatusCode, string(body)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s server error %d: %s", service, resp.StatusCode, string(body)),
		}
	default:
		return fmt.Errorf("%s unexpected status %d: %s", service, resp.StatusCode, string(body))
	}
}

// retryAfterBody covers the retry hint shapes the channels use: a top-level
// retry_after (Slack style) or nested under parameters (Telegram style).
type retryAfterBody struct {
	RetryAfter float64 `json:"retry_after"`
	Parameters struct {
		RetryAfter float64 `json:"retry_after"`
	} `json:"parameters"`
}

// extractRetryAfter pulls the retry hint from a 429 response, preferring the
// JSON body over the Retry-After header. Falls back to 5 seconds.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var hint retryAfterBody
	if err := json.Unmarshal(body, &hint); err == nil {
		if hint.RetryAfter > 0 {
			return time.Duration(hint.RetryAfter * float64(time.Second))
		}
		if hint.Parameters.RetryAfter > 0 {
			return time.Duration(hint.Parameters.RetryAfter * float64(time.Second))
		}
	}

	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}
