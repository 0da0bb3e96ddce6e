package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskfabric/taskfabric/internal/application/scheduler"
)

// SchedulerRunner triggers one scheduler tick.
type SchedulerRunner interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
}

type runResponse struct {
	Status string `json:"status"`
	scheduler.Summary
}

// NewSchedulerRouter serves the scheduler's cron binding on top of the base
// router. External cron (or an operator) POSTs to trigger a tick; the
// periodic loop runs regardless, so the endpoint is a supplement, not the
// only driver.
func NewSchedulerRouter(runner SchedulerRunner) *chi.Mux {
	r := newRouter()

	r.Post("/v1/scheduler/reminders/run", func(w http.ResponseWriter, req *http.Request) {
		summary, err := runner.RunOnce(req.Context())
		if err != nil {
			internalError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, runResponse{Status: "completed", Summary: summary})
	})

	return r
}
