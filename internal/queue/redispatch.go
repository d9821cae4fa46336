package queue

import (
	"context"
	"fmt"

	"genbroker/internal/dispatch"
	"genbroker/internal/domain"
)

// RedispatchError records one candidate that could not be dispatched.
type RedispatchError struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// RedispatchSummary aggregates the result of one redispatch sweep.
type RedispatchSummary struct {
	Skipped   bool              `json:"skipped,omitempty"`
	Attempted int               `json:"attempted"`
	Queued    int               `json:"queued"`
	Busy      int               `json:"busy"`
	Errors    []RedispatchError `json:"errors"`
}

// Redispatch re-attempts dispatch for every pending, held or errored job in
// creation order. The sweep is skipped entirely while the queue is paused.
// Candidates are processed independently: one candidate's failure is
// collected in the summary and does not abort the rest. Concurrent sweeps
// are tolerated; the per-candidate compare-and-swap lets only one of them
// claim each job.
func (s *Service) Redispatch(ctx context.Context) (*RedispatchSummary, error) {
	summary := &RedispatchSummary{Errors: []RedispatchError{}}

	state, err := s.queue.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue state: %w", err)
	}
	if state.IsPaused {
		summary.Skipped = true
		return summary, nil
	}

	candidates, err := s.jobs.ListByStatus(ctx, domain.RedispatchableStatuses)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	clear := ""
	for i := range candidates {
		job := candidates[i]
		summary.Attempted++

		applied, err := s.jobs.UpdateStatusIf(ctx, job.ID, domain.RedispatchableStatuses, domain.JobStatusPending, &clear)
		if err != nil {
			summary.Errors = append(summary.Errors, RedispatchError{JobID: job.ID, Message: err.Error()})
			continue
		}
		if !applied {
			// Claimed by a concurrent sweep or already moved on.
			continue
		}
		job.Status = domain.JobStatusPending
		job.ErrorReason = ""
		s.emit(ctx, &job)

		// Artifacts from an earlier completion attempt are stale once the
		// job goes back out.
		if err := s.artifacts.DeleteByJobID(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("stale artifacts not deleted")
		}

		result, err := s.dispatcher.Dispatch(ctx, &job)
		if err != nil {
			summary.Errors = append(summary.Errors, RedispatchError{JobID: job.ID, Message: err.Error()})
			continue
		}
		switch result.Outcome {
		case dispatch.OutcomeQueued:
			summary.Queued++
		case dispatch.OutcomeBusy:
			summary.Busy++
		default:
			summary.Errors = append(summary.Errors, RedispatchError{JobID: job.ID, Message: dispatch.SanitizeReason(result.Message)})
		}
	}

	s.logger.Info().
		Int("attempted", summary.Attempted).
		Int("queued", summary.Queued).
		Int("busy", summary.Busy).
		Int("errors", len(summary.Errors)).
		Msg("redispatch finished")
	return summary, nil
}
