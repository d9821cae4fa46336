package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"genbroker/internal/domain"
)

// Submitter identifies the authenticated user creating a job.
type Submitter struct {
	UserID string
	Admin  bool
}

// SubmitRequest is a validated generation request payload.
type SubmitRequest struct {
	Prompt         string
	NegativePrompt string
	Seed           int64
	GuidanceScale  float64
	Steps          int
	Width          int
	Height         int
	BaseModels     []domain.ModelSelection
	LoRAs          []domain.LoRASelection
}

// Submit creates a job and attempts a synchronous handoff to the agent pool.
//
// The pause state is checked twice: once before model resolution to avoid
// wasted work, and again right before dispatch to close the race between
// "pause requested" and "job created". A job created in that window is held
// instead of dispatched. Dispatch outcomes never fail the submission; they
// are reflected in the returned job's status.
func (s *Service) Submit(ctx context.Context, submitter Submitter, req SubmitRequest) (*domain.GenerationJob, error) {
	if err := s.checkBlocked(ctx, submitter.UserID); err != nil {
		return nil, err
	}

	state, err := s.queue.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load queue state: %w", err)
	}
	if !state.AcceptingSubmissions() {
		return nil, domain.ErrQueueUnavailable
	}

	if err := validateSubmitRequest(req); err != nil {
		return nil, err
	}

	baseModels, err := s.resolveBaseModels(ctx, submitter, req.BaseModels)
	if err != nil {
		return nil, err
	}
	loras, err := s.resolveLoRAs(ctx, submitter, req.LoRAs)
	if err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	job := &domain.GenerationJob{
		ID:             jobID,
		OwnerID:        submitter.UserID,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Seed:           req.Seed,
		GuidanceScale:  req.GuidanceScale,
		Steps:          req.Steps,
		Width:          req.Width,
		Height:         req.Height,
		BaseModels:     baseModels,
		LoRAs:          loras,
		Status:         domain.JobStatusPending,
		OutputBucket:   s.outputBucket,
		OutputPrefix:   s.resolveOutputPrefix(submitter.UserID, jobID),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.emit(ctx, job)

	// Second pause check: the queue may have been paused while models were
	// being resolved.
	state, err = s.queue.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload queue state: %w", err)
	}
	if state.IsPaused {
		if _, err := s.jobs.UpdateStatusIf(ctx, jobID, []domain.JobStatus{domain.JobStatusPending}, domain.JobStatusHeld, nil); err != nil {
			return nil, fmt.Errorf("hold job: %w", err)
		}
		job.Status = domain.JobStatusHeld
		s.emit(ctx, job)
		return job, nil
	}

	if _, err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("dispatch status write failed")
	}
	return job, nil
}

func (s *Service) checkBlocked(ctx context.Context, userID string) error {
	block, err := s.blocks.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check block: %w", err)
	}
	if block.Reason != "" {
		return fmt.Errorf("%w: %s", domain.ErrBlocked, block.Reason)
	}
	return domain.ErrBlocked
}

func validateSubmitRequest(req SubmitRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	if len(req.BaseModels) == 0 {
		return fmt.Errorf("%w: at least one base model is required", domain.ErrInvalidInput)
	}
	if req.Steps <= 0 || req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("%w: steps, width and height must be positive", domain.ErrInvalidInput)
	}
	for _, l := range req.LoRAs {
		if l.Strength <= 0 {
			return fmt.Errorf("%w: lora %s strength must be positive", domain.ErrInvalidInput, l.ID)
		}
	}
	return nil
}

func (s *Service) resolveBaseModels(ctx context.Context, submitter Submitter, selections []domain.ModelSelection) ([]domain.ResolvedModel, error) {
	resolved := make([]domain.ResolvedModel, 0, len(selections))
	for _, sel := range selections {
		m, err := s.resolveModel(ctx, submitter, sel.ID, sel.Source, false)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, *m)
	}
	if resolved[0].StorageLocation == "" {
		return nil, fmt.Errorf("%w: primary base model %s has no storage location", domain.ErrInvalidInput, resolved[0].ID)
	}
	return resolved, nil
}

func (s *Service) resolveLoRAs(ctx context.Context, submitter Submitter, selections []domain.LoRASelection) ([]domain.ResolvedLoRA, error) {
	resolved := make([]domain.ResolvedLoRA, 0, len(selections))
	for _, sel := range selections {
		m, err := s.resolveModel(ctx, submitter, sel.ID, sel.Source, true)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, domain.ResolvedLoRA{ResolvedModel: *m, Strength: sel.Strength})
	}
	return resolved, nil
}

func (s *Service) resolveModel(ctx context.Context, submitter Submitter, id string, source domain.ModelSource, lora bool) (*domain.ResolvedModel, error) {
	switch source {
	case domain.ModelSourceConfigured:
		table := s.configuredBase
		if lora {
			table = s.configuredLoRA
		}
		m, ok := table[id]
		if !ok {
			return nil, fmt.Errorf("configured model %s: %w", id, domain.ErrNotFound)
		}
		return &domain.ResolvedModel{
			ID:              m.ID,
			Name:            m.Name,
			Source:          domain.ModelSourceConfigured,
			StorageLocation: m.StorageLocation,
		}, nil
	case domain.ModelSourceCatalog:
		var (
			m   *domain.CatalogModel
			err error
		)
		if lora {
			m, err = s.catalog.GetLoRA(ctx, id)
		} else {
			m, err = s.catalog.GetBaseModel(ctx, id)
		}
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("catalog model %s: %w", id, domain.ErrNotFound)
			}
			return nil, fmt.Errorf("resolve catalog model %s: %w", id, err)
		}
		if !m.VisibleTo(submitter.UserID, submitter.Admin) {
			return nil, fmt.Errorf("catalog model %s: %w", id, domain.ErrForbidden)
		}
		return &domain.ResolvedModel{
			ID:              m.ID,
			Name:            m.Name,
			Source:          domain.ModelSourceCatalog,
			StorageLocation: m.StorageLocation,
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown model source %q", domain.ErrInvalidInput, source)
}

func (s *Service) resolveOutputPrefix(userID, jobID string) string {
	return strings.NewReplacer("{user}", userID, "{job}", jobID).Replace(s.prefixTemplate)
}
