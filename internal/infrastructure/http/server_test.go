package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskfabric/taskfabric/internal/application/scheduler"
)

type stubRunner struct {
	summary scheduler.Summary
	err     error
	calls   int
}

func (s *stubRunner) RunOnce(context.Context) (scheduler.Summary, error) {
	s.calls++
	return s.summary, s.err
}

func TestHealthEndpoint(t *testing.T) {
	router := NewHealthRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSchedulerRunEndpoint(t *testing.T) {
	runner := &stubRunner{summary: scheduler.Summary{Found: 3, Sent: 2}}
	router := NewSchedulerRouter(runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scheduler/reminders/run", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"completed","reminders_found":3,"reminders_sent":2}`, rec.Body.String())
	assert.Equal(t, 1, runner.calls)
}

func TestSchedulerRunEndpointFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("database down")}
	router := NewSchedulerRouter(runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scheduler/reminders/run", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// No internal detail leaks to the client.
	assert.NotContains(t, rec.Body.String(), "database down")
}

func TestSchedulerRunEndpointRejectsGet(t *testing.T) {
	runner := &stubRunner{}
	router := NewSchedulerRouter(runner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/scheduler/reminders/run", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, runner.calls)
}
