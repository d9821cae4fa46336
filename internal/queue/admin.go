package queue

import (
	"context"
	"fmt"

	"genbroker/internal/domain"
)

// PauseQueue stops accepting submissions and holds every pending job.
// It returns the number of jobs moved to held.
func (s *Service) PauseQueue(ctx context.Context) (int64, error) {
	if err := s.queue.SetPaused(ctx, true); err != nil {
		return 0, fmt.Errorf("pause queue: %w", err)
	}
	held, err := s.jobs.BulkTransition(ctx, []domain.JobStatus{domain.JobStatusPending}, domain.JobStatusHeld, nil)
	if err != nil {
		return 0, fmt.Errorf("hold pending jobs: %w", err)
	}
	s.logger.Info().Int64("held", held).Msg("queue paused")
	return held, nil
}

// ResumeQueue reopens the queue, releases held jobs and redispatches them.
func (s *Service) ResumeQueue(ctx context.Context) (*RedispatchSummary, error) {
	if err := s.queue.SetPaused(ctx, false); err != nil {
		return nil, fmt.Errorf("resume queue: %w", err)
	}
	released, err := s.jobs.BulkTransition(ctx, []domain.JobStatus{domain.JobStatusHeld}, domain.JobStatusPending, nil)
	if err != nil {
		return nil, fmt.Errorf("release held jobs: %w", err)
	}
	s.logger.Info().Int64("released", released).Msg("queue resumed")
	return s.Redispatch(ctx)
}

// RetryHeld releases held jobs and redispatches without touching pause flags.
func (s *Service) RetryHeld(ctx context.Context) (*RedispatchSummary, error) {
	if _, err := s.jobs.BulkTransition(ctx, []domain.JobStatus{domain.JobStatusHeld}, domain.JobStatusPending, nil); err != nil {
		return nil, fmt.Errorf("release held jobs: %w", err)
	}
	return s.Redispatch(ctx)
}

// ClearQueue cancels every queued-side job with a fixed administrative
// reason and returns the count affected.
func (s *Service) ClearQueue(ctx context.Context) (int64, error) {
	reason := ClearReason
	cleared, err := s.jobs.BulkTransition(ctx, domain.ClearableStatuses, domain.JobStatusCancelled, &reason)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	s.logger.Info().Int64("cleared", cleared).Msg("queue cleared")
	return cleared, nil
}

// CancelJob marks a running or uploading job cancelled. The write is a
// compare-and-swap against the cancellable set so a worker completing the job
// in the admin's read-modify window wins; the caller then gets ErrConflict
// together with the authoritative current state.
func (s *Service) CancelJob(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	applied, err := s.jobs.UpdateStatusIf(ctx, jobID, domain.CancellableStatuses, domain.JobStatusCancelled, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return job, domain.ErrConflict
	}
	s.emit(ctx, job)
	return job, nil
}

// BlockUser upserts a submission block for the user. Existing jobs are not
// touched.
func (s *Service) BlockUser(ctx context.Context, userID, reason string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return s.blocks.Upsert(ctx, userID, reason)
}

// UnblockUser removes the user's block, reporting whether one existed.
func (s *Service) UnblockUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return s.blocks.Delete(ctx, userID)
}

// QueueState returns the current queue flags and activity snapshot.
func (s *Service) QueueState(ctx context.Context) (*domain.QueueState, error) {
	return s.queue.Get(ctx)
}
