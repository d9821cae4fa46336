package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"genbroker/internal/queue"
)

// The three callback endpoints are called by GPU agents. They are
// authenticated by job id only: the id in the path must match the id embedded
// in the payload. Replays on jobs that already reached a terminal state get
// the current representation back with 200, so agents may retry safely.

// StatusCallback ingests an intermediate or terminal progress report.
func (a *App) StatusCallback(w http.ResponseWriter, r *http.Request) {
	var cb queue.StatusCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Queue.IngestStatus(r.Context(), chi.URLParam(r, "id"), cb)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewJob(job, "", true))
}

// CompletionCallback ingests a success report with artifact descriptors.
func (a *App) CompletionCallback(w http.ResponseWriter, r *http.Request) {
	var cb queue.CompletionCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Queue.IngestCompletion(r.Context(), chi.URLParam(r, "id"), cb)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewJob(job, "", true))
}

// FailureCallback ingests an error or cancellation report.
func (a *App) FailureCallback(w http.ResponseWriter, r *http.Request) {
	var cb queue.FailureCallback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Queue.IngestFailure(r.Context(), chi.URLParam(r, "id"), cb)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewJob(job, "", true))
}
