package channel

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SendTimeout bounds a single channel send, including connection setup and
// response read.
const SendTimeout = 30 * time.Second

// maxResponseBody caps how much of an error response is read for error text.
const maxResponseBody = 8 << 10

// newHTTPClient returns the transport shared by all adapters.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = SendTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// postJSON POSTs a JSON body and returns the response with a bounded read of
// its body. The response body is always fully drained and closed here so
// error paths never leak partially-consumed bodies.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute http request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp, respBody, nil
}
