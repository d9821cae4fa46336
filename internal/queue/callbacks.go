package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"genbroker/internal/dispatch"
	"genbroker/internal/domain"
)

// Callback is the envelope shared by all three agent callback payloads. The
// job id in the payload must match the path id; agents convey the job state
// as either a simple status enum or a coarse agent-state enum.
type Callback struct {
	JobID    string          `json:"jobId"`
	Status   string          `json:"status,omitempty"`
	State    string          `json:"state,omitempty"`
	Activity json.RawMessage `json:"activity,omitempty"`
}

// StatusCallback reports intermediate or terminal progress.
type StatusCallback struct {
	Callback
}

// CompletionCallback reports success together with produced artifacts.
type CompletionCallback struct {
	Callback
	Artifacts []json.RawMessage `json:"artifacts"`
}

// FailureCallback reports an error or cancellation with a reason.
type FailureCallback struct {
	Callback
	Reason     string `json:"reason,omitempty"`
	ReasonCode string `json:"reasonCode,omitempty"`
}

// resolveTarget maps the callback's status/state field to a job status.
// Missing or unrecognized values are input errors, surfaced before any state
// is touched.
func resolveTarget(cb Callback) (domain.JobStatus, error) {
	if cb.State != "" {
		status, ok := domain.AgentState(strings.ToUpper(cb.State)).JobStatus()
		if !ok {
			return "", fmt.Errorf("%w: unrecognized agent state %q", domain.ErrInvalidInput, cb.State)
		}
		return status, nil
	}
	if cb.Status != "" {
		status, ok := domain.ParseJobStatus(strings.ToLower(cb.Status))
		if !ok {
			return "", fmt.Errorf("%w: unrecognized status %q", domain.ErrInvalidInput, cb.Status)
		}
		return status, nil
	}
	return "", fmt.Errorf("%w: status or state is required", domain.ErrInvalidInput)
}

func matchJobID(pathID string, cb Callback) error {
	if cb.JobID != pathID {
		return fmt.Errorf("%w: payload job id does not match path", domain.ErrInvalidInput)
	}
	return nil
}

// recordActivity persists a worker activity snapshot best-effort: a store
// failure here must not fail the callback that carried it.
func (s *Service) recordActivity(ctx context.Context, snapshot json.RawMessage) {
	if len(snapshot) == 0 {
		return
	}
	if err := s.queue.SetActivity(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Msg("activity snapshot not persisted")
	}
}

// IngestStatus applies a status callback. Callbacks on jobs that already
// reached a terminal state are replay-tolerant: the current representation
// is returned without mutation.
func (s *Service) IngestStatus(ctx context.Context, pathID string, cb StatusCallback) (*domain.GenerationJob, error) {
	if err := matchJobID(pathID, cb.Callback); err != nil {
		return nil, err
	}
	target, err := resolveTarget(cb.Callback)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetByID(ctx, cb.JobID)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, cb.Activity)

	if job.Status.Terminal() {
		return job, nil
	}

	if target == domain.JobStatusCompleted {
		// A SUCCESS agent state converges with a completion callback that
		// carries no artifacts.
		applied, err := s.artifacts.ReplaceAndComplete(ctx, cb.JobID, nil)
		if err != nil {
			return nil, err
		}
		job, err = s.jobs.GetByID(ctx, cb.JobID)
		if err != nil {
			return nil, err
		}
		if applied {
			s.emit(ctx, job)
		}
		return job, nil
	}

	applied, err := s.jobs.UpdateStatusIf(ctx, cb.JobID, domain.NonTerminalStatuses, target, nil)
	if err != nil {
		return nil, err
	}
	job, err = s.jobs.GetByID(ctx, cb.JobID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.emit(ctx, job)
	}
	return job, nil
}

// IngestCompletion applies a completion callback: resolve the artifact
// descriptors, collapse duplicates, then transactionally replace the job's
// artifacts and mark it completed. The transaction re-reads the status and
// becomes a no-op when the job has since reached a terminal state.
func (s *Service) IngestCompletion(ctx context.Context, pathID string, cb CompletionCallback) (*domain.GenerationJob, error) {
	if err := matchJobID(pathID, cb.Callback); err != nil {
		return nil, err
	}
	target, err := resolveTarget(cb.Callback)
	if err != nil {
		return nil, err
	}
	if target != domain.JobStatusCompleted {
		return nil, fmt.Errorf("%w: completion callback must carry a completed status, got %q", domain.ErrInvalidInput, target)
	}
	job, err := s.jobs.GetByID(ctx, cb.JobID)
	if err != nil {
		return nil, err
	}

	refs, err := resolveArtifactDescriptors(cb.Artifacts, job.OutputBucket)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, cb.Activity)

	if job.Status.Terminal() {
		return job, nil
	}

	artifacts := make([]domain.Artifact, 0, len(refs))
	for _, ref := range refs {
		artifacts = append(artifacts, domain.Artifact{
			ID:     uuid.NewString(),
			JobID:  job.ID,
			Bucket: ref.Bucket,
			Key:    ref.Key,
		})
	}

	applied, err := s.artifacts.ReplaceAndComplete(ctx, job.ID, artifacts)
	if err != nil {
		return nil, err
	}
	job, err = s.jobs.GetByID(ctx, cb.JobID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.emit(ctx, job)
	}
	return job, nil
}

// IngestFailure applies a failure callback, resolving to error or cancelled.
func (s *Service) IngestFailure(ctx context.Context, pathID string, cb FailureCallback) (*domain.GenerationJob, error) {
	if err := matchJobID(pathID, cb.Callback); err != nil {
		return nil, err
	}
	target, err := resolveTarget(cb.Callback)
	if err != nil {
		return nil, err
	}
	if target != domain.JobStatusError && target != domain.JobStatusCancelled {
		return nil, fmt.Errorf("%w: failure callback must resolve to error or cancelled, got %q", domain.ErrInvalidInput, target)
	}
	job, err := s.jobs.GetByID(ctx, cb.JobID)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, cb.Activity)

	if job.Status.Terminal() {
		return job, nil
	}

	reason := dispatch.SanitizeReason(joinReason(cb.Reason, cb.ReasonCode))
	applied, err := s.jobs.UpdateStatusIf(ctx, job.ID, domain.NonTerminalStatuses, target, &reason)
	if err != nil {
		return nil, err
	}
	job, err = s.jobs.GetByID(ctx, cb.JobID)
	if err != nil {
		return nil, err
	}
	if applied {
		s.emit(ctx, job)
	}
	return job, nil
}

func joinReason(reason, code string) string {
	reason = strings.TrimSpace(reason)
	code = strings.TrimSpace(code)
	switch {
	case reason == "":
		return code
	case code == "":
		return reason
	}
	return reason + " (" + code + ")"
}
