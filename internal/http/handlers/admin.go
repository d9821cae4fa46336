package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// PauseQueue stops new submissions and holds pending jobs.
func (a *App) PauseQueue(w http.ResponseWriter, r *http.Request) {
	held, err := a.Queue.PauseQueue(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"paused": true, "held": held})
}

// ResumeQueue reopens the queue and redispatches released jobs.
func (a *App) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Queue.ResumeQueue(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, summary)
}

// RetryQueue releases held jobs and redispatches without resuming.
func (a *App) RetryQueue(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Queue.RetryHeld(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, summary)
}

// ClearQueue cancels every queued-side job.
func (a *App) ClearQueue(w http.ResponseWriter, r *http.Request) {
	cleared, err := a.Queue.ClearQueue(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"cleared": cleared})
}

// GetQueueState returns the queue flags and worker activity snapshot.
func (a *App) GetQueueState(w http.ResponseWriter, r *http.Request) {
	state, err := a.Queue.QueueState(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"is_paused":            state.IsPaused,
		"decline_new_requests": state.DeclineNewRequests,
		"paused_at":            state.PausedAt,
		"activity":             json.RawMessage(state.Activity),
		"activity_updated_at":  state.ActivityUpdatedAt,
	})
}

type blockRequest struct {
	Reason string `json:"reason,omitempty"`
}

// BlockUser suspends a user's ability to submit new jobs.
func (a *App) BlockUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req blockRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}
	if err := a.Queue.BlockUser(r.Context(), userID, req.Reason); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "blocked": true})
}

// UnblockUser lifts a user's submission block.
func (a *App) UnblockUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	existed, err := a.Queue.UnblockUser(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if !existed {
		a.error(w, http.StatusNotFound, "not_found", "no block for user")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "blocked": false})
}
