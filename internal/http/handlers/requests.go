package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"genbroker/internal/domain"
	"genbroker/internal/middleware"
	"genbroker/internal/queue"
)

// redactedReason replaces error details for viewers who are neither the
// owner nor an admin.
const redactedReason = "generation failed; contact an administrator for details"

type submitRequest struct {
	Prompt         string                  `json:"prompt"`
	NegativePrompt string                  `json:"negative_prompt,omitempty"`
	Seed           int64                   `json:"seed"`
	GuidanceScale  float64                 `json:"guidance_scale"`
	Steps          int                     `json:"steps"`
	Width          int                     `json:"width"`
	Height         int                     `json:"height"`
	BaseModels     []domain.ModelSelection `json:"base_models"`
	LoRAs          []domain.LoRASelection  `json:"loras,omitempty"`
}

type jobView struct {
	ID           string                 `json:"id"`
	OwnerID      string                 `json:"owner_id"`
	Status       domain.JobStatus       `json:"status"`
	Prompt       string                 `json:"prompt"`
	ErrorReason  string                 `json:"error_reason,omitempty"`
	OutputBucket string                 `json:"output_bucket"`
	OutputPrefix string                 `json:"output_prefix"`
	BaseModels   []domain.ResolvedModel `json:"base_models"`
	LoRAs        []domain.ResolvedLoRA  `json:"loras,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func viewJob(job *domain.GenerationJob, viewerID string, admin bool) jobView {
	view := jobView{
		ID:           job.ID,
		OwnerID:      job.OwnerID,
		Status:       job.Status,
		Prompt:       job.Prompt,
		ErrorReason:  job.ErrorReason,
		OutputBucket: job.OutputBucket,
		OutputPrefix: job.OutputPrefix,
		BaseModels:   job.BaseModels,
		LoRAs:        job.LoRAs,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
	if job.ErrorReason != "" && !admin && viewerID != job.OwnerID {
		view.ErrorReason = redactedReason
	}
	return view
}

// SubmitRequest creates a generation job and attempts dispatch.
func (a *App) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Queue.Submit(r.Context(), queue.Submitter{
		UserID: userID,
		Admin:  middleware.IsAdminFromContext(r.Context()),
	}, queue.SubmitRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
		GuidanceScale:  req.GuidanceScale,
		Steps:          req.Steps,
		Width:          req.Width,
		Height:         req.Height,
		BaseModels:     req.BaseModels,
		LoRAs:          req.LoRAs,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, viewJob(job, userID, true))
}

// GetRequest returns a job, redacting the error reason for non-owners.
func (a *App) GetRequest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Queue.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewJob(job, userID, middleware.IsAdminFromContext(r.Context())))
}

type artifactView struct {
	ID         string `json:"id"`
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	URI        string `json:"uri"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// ListRequestArtifacts returns the artifacts of a completed job, with
// presigned preview URLs when an object store is configured.
func (a *App) ListRequestArtifacts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "id")
	job, err := a.Queue.GetJob(r.Context(), jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if job.OwnerID != userID && !middleware.IsAdminFromContext(r.Context()) {
		a.error(w, http.StatusForbidden, "forbidden", "not the job owner")
		return
	}

	artifacts, err := a.Queue.ListArtifacts(r.Context(), jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	views := make([]artifactView, 0, len(artifacts))
	for _, artifact := range artifacts {
		view := artifactView{
			ID:     artifact.ID,
			Bucket: artifact.Bucket,
			Key:    artifact.Key,
			URI:    artifact.URI(),
		}
		if a.Store != nil {
			if url, err := a.Store.PresignGet(r.Context(), artifact.Bucket, artifact.Key); err == nil {
				view.PreviewURL = url
			} else {
				a.Logger.Warn().Err(err).Str("job_id", jobID).Msg("presign failed")
			}
		}
		views = append(views, view)
	}
	a.json(w, http.StatusOK, map[string]any{"job_id": jobID, "artifacts": views})
}

// CancelRequest marks a running or uploading job cancelled. A conflict
// responds with the job's authoritative current state.
func (a *App) CancelRequest(w http.ResponseWriter, r *http.Request) {
	job, err := a.Queue.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrConflict) && job != nil {
			a.json(w, http.StatusConflict, errorResponse{
				Error:   "conflict",
				Message: "job is not cancellable in its current state",
				Job:     viewJob(job, "", true),
			})
			return
		}
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, viewJob(job, "", true))
}
