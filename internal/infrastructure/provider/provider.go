// Package provider holds the HTTP clients for the external email, push and
// user-directory services. Send failures are classified so the dispatcher's
// retry policy can tell a flaky provider from a rejected request: 5xx and
// network errors are transient, 4xx are permanent.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskfabric/taskfabric/internal/application/worker"
)

const requestTimeout = 10 * time.Second

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Code, e.Body)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

// doRequest executes the request and classifies the outcome. Network-level
// failures and 5xx (plus 429) come back wrapped as retryable; other non-2xx
// statuses are permanent.
func doRequest(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, worker.Transient(fmt.Errorf("provider request: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()

	statusErr := &StatusError{Code: resp.StatusCode, Body: string(body)}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, worker.Transient(statusErr)
	}
	return nil, statusErr
}

func newJSONRequest(ctx context.Context, method, url string, body io.Reader, apiKey string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
