// Package queue implements the generation request lifecycle: submission,
// dispatch to the GPU agent pool, callback ingestion and administrative
// queue control. Every status write goes through the job repository's
// compare-and-swap helper so concurrent callbacks, cancels and redispatch
// runs stay individually safe without in-process locks.
package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"genbroker/internal/dispatch"
	"genbroker/internal/domain"
	"genbroker/internal/events"
)

// DefaultOutputPrefixTemplate locates job outputs under the owning user.
const DefaultOutputPrefixTemplate = "generations/{user}/{job}"

// ClearReason is stamped on jobs cancelled by a queue clear.
const ClearReason = "cancelled by administrator (queue cleared)"

// Config carries the static settings the service needs.
type Config struct {
	OutputBucket         string
	OutputPrefixTemplate string
	ConfiguredModels     []domain.ConfiguredModel
}

// Service coordinates the job lifecycle against the record store and the
// dispatcher. It is safe for concurrent use; all mutable state lives in the
// store.
type Service struct {
	jobs       domain.JobRepository
	artifacts  domain.ArtifactRepository
	queue      domain.QueueRepository
	blocks     domain.BlockRepository
	catalog    domain.ModelCatalog
	dispatcher *dispatch.Dispatcher
	emitter    events.Emitter
	logger     zerolog.Logger

	outputBucket   string
	prefixTemplate string
	configuredBase map[string]domain.ConfiguredModel
	configuredLoRA map[string]domain.ConfiguredModel
}

// Deps bundles the collaborators injected into the service.
type Deps struct {
	Jobs       domain.JobRepository
	Artifacts  domain.ArtifactRepository
	Queue      domain.QueueRepository
	Blocks     domain.BlockRepository
	Catalog    domain.ModelCatalog
	Dispatcher *dispatch.Dispatcher
	Emitter    events.Emitter
	Logger     zerolog.Logger
}

// NewService wires a lifecycle service.
func NewService(deps Deps, cfg Config) *Service {
	template := cfg.OutputPrefixTemplate
	if template == "" {
		template = DefaultOutputPrefixTemplate
	}
	s := &Service{
		jobs:           deps.Jobs,
		artifacts:      deps.Artifacts,
		queue:          deps.Queue,
		blocks:         deps.Blocks,
		catalog:        deps.Catalog,
		dispatcher:     deps.Dispatcher,
		emitter:        deps.Emitter,
		logger:         deps.Logger,
		outputBucket:   cfg.OutputBucket,
		prefixTemplate: template,
		configuredBase: make(map[string]domain.ConfiguredModel),
		configuredLoRA: make(map[string]domain.ConfiguredModel),
	}
	for _, m := range cfg.ConfiguredModels {
		if m.LoRA {
			s.configuredLoRA[m.ID] = m
		} else {
			s.configuredBase[m.ID] = m
		}
	}
	return s
}

// GetJob loads a job by id.
func (s *Service) GetJob(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListArtifacts loads the artifacts attached to a job.
func (s *Service) ListArtifacts(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	return s.artifacts.ListByJobID(ctx, jobID)
}

func (s *Service) emit(ctx context.Context, job *domain.GenerationJob) {
	if s.emitter == nil || job == nil {
		return
	}
	s.emitter.Emit(ctx, events.Event{
		JobID:   job.ID,
		OwnerID: job.OwnerID,
		Status:  job.Status,
		Reason:  job.ErrorReason,
		At:      time.Now().UTC(),
	})
}
