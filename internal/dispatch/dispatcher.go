package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genbroker/internal/domain"
	"genbroker/internal/events"
)

// maxReasonLen bounds the error reason stored on a job.
const maxReasonLen = 500

const reasonEllipsis = "…"

// Dispatcher hands accepted jobs to the agent pool and reflects the outcome
// on the job record. Dispatch failures are never fatal to the caller: the job
// keeps its own status/errorReason and the submission or redispatch that
// triggered the attempt still succeeds.
type Dispatcher struct {
	agent   AgentClient
	jobs    domain.JobRepository
	emitter events.Emitter
	logger  zerolog.Logger
}

// NewDispatcher wires the agent client to the job store. emitter may be nil.
func NewDispatcher(agent AgentClient, jobs domain.JobRepository, emitter events.Emitter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{agent: agent, jobs: jobs, emitter: emitter, logger: logger}
}

func (d *Dispatcher) emit(ctx context.Context, job *domain.GenerationJob) {
	if d.emitter == nil {
		return
	}
	d.emitter.Emit(ctx, events.Event{
		JobID:   job.ID,
		OwnerID: job.OwnerID,
		Status:  job.Status,
		Reason:  job.ErrorReason,
		At:      time.Now().UTC(),
	})
}

// Dispatch attempts a synchronous handoff of a pending job to the agent pool.
//
// On queued the job advances to queued with its error reason cleared. On busy
// the job stays pending and remains eligible for an admin retry. On a remote
// rejection or a transport fault the job moves to error carrying a sanitized
// reason. The returned error reports store failures only.
func (d *Dispatcher) Dispatch(ctx context.Context, job *domain.GenerationJob) (Result, error) {
	result, err := d.agent.Dispatch(ctx, job)
	if err != nil {
		result = Result{Outcome: OutcomeError, Message: err.Error()}
	}

	clear := ""
	switch result.Outcome {
	case OutcomeQueued:
		applied, err := d.jobs.UpdateStatusIf(ctx, job.ID, []domain.JobStatus{domain.JobStatusPending}, domain.JobStatusQueued, &clear)
		if err != nil {
			return result, err
		}
		job.Status = domain.JobStatusQueued
		job.ErrorReason = ""
		if applied {
			d.emit(ctx, job)
		}
	case OutcomeBusy:
		// Job stays pending; an admin retry or resume picks it up again.
		d.logger.Info().Str("job_id", job.ID).Str("message", result.Message).Msg("agent pool busy")
	default:
		reason := SanitizeReason(result.Message)
		applied, err := d.jobs.UpdateStatusIf(ctx, job.ID, []domain.JobStatus{domain.JobStatusPending}, domain.JobStatusError, &reason)
		if err != nil {
			return result, err
		}
		job.Status = domain.JobStatusError
		job.ErrorReason = reason
		if applied {
			d.emit(ctx, job)
		}
		d.logger.Warn().Str("job_id", job.ID).Str("reason", reason).Msg("dispatch rejected")
	}
	return result, nil
}

// SanitizeReason collapses whitespace and truncates the reason to a bounded
// length, marking overflow with an ellipsis.
func SanitizeReason(raw string) string {
	reason := strings.Join(strings.Fields(raw), " ")
	runes := []rune(reason)
	if len(runes) <= maxReasonLen {
		return reason
	}
	return string(runes[:maxReasonLen-1]) + reasonEllipsis
}
