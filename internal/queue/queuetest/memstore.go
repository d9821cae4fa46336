// Package queuetest provides in-memory implementations of the domain
// repositories and a scriptable agent client for tests.
package queuetest

import (
	"context"
	"sync"
	"time"

	"genbroker/internal/dispatch"
	"genbroker/internal/domain"
)

// JobStore is an in-memory domain.JobRepository.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.GenerationJob
	seq  int
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.GenerationJob)}
}

func (s *JobStore) Create(ctx context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *job
	s.seq++
	clone.CreatedAt = time.Unix(int64(s.seq), 0)
	clone.UpdatedAt = clone.CreatedAt
	s.jobs[job.ID] = &clone
	return nil
}

func (s *JobStore) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *JobStore) UpdateStatusIf(ctx context.Context, jobID string, expected []domain.JobStatus, next domain.JobStatus, reason *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	if !statusIn(job.Status, expected) {
		return false, nil
	}
	job.Status = next
	if reason != nil {
		job.ErrorReason = *reason
	}
	job.UpdatedAt = time.Now()
	return true, nil
}

func (s *JobStore) BulkTransition(ctx context.Context, from []domain.JobStatus, to domain.JobStatus, reason *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, job := range s.jobs {
		if !statusIn(job.Status, from) {
			continue
		}
		job.Status = to
		if reason != nil {
			job.ErrorReason = *reason
		}
		job.UpdatedAt = time.Now()
		n++
	}
	return n, nil
}

func (s *JobStore) ListByStatus(ctx context.Context, statuses []domain.JobStatus) ([]domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GenerationJob
	for _, job := range s.jobs {
		if statusIn(job.Status, statuses) {
			out = append(out, *job)
		}
	}
	sortByCreation(out)
	return out, nil
}

// Put seeds a job directly, assigning a creation order.
func (s *JobStore) Put(job *domain.GenerationJob) {
	_ = s.Create(context.Background(), job)
}

func statusIn(status domain.JobStatus, set []domain.JobStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func sortByCreation(jobs []domain.GenerationJob) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobs[j].CreatedAt.Before(jobs[j-1].CreatedAt); j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
}

// ArtifactStore is an in-memory domain.ArtifactRepository backed by a JobStore
// so ReplaceAndComplete can honor the in-transaction terminal re-check.
type ArtifactStore struct {
	mu        sync.Mutex
	jobs      *JobStore
	artifacts map[string][]domain.Artifact

	// ReplaceErr, when set, fails the next ReplaceAndComplete call.
	ReplaceErr error
}

// NewArtifactStore creates an artifact store bound to the job store.
func NewArtifactStore(jobs *JobStore) *ArtifactStore {
	return &ArtifactStore{jobs: jobs, artifacts: make(map[string][]domain.Artifact)}
}

func (s *ArtifactStore) ListByJobID(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Artifact(nil), s.artifacts[jobID]...), nil
}

func (s *ArtifactStore) ReplaceAndComplete(ctx context.Context, jobID string, artifacts []domain.Artifact) (bool, error) {
	if s.ReplaceErr != nil {
		err := s.ReplaceErr
		s.ReplaceErr = nil
		return false, err
	}
	s.jobs.mu.Lock()
	job, ok := s.jobs.jobs[jobID]
	if !ok {
		s.jobs.mu.Unlock()
		return false, domain.ErrNotFound
	}
	if job.Status.Terminal() {
		s.jobs.mu.Unlock()
		return false, nil
	}
	job.Status = domain.JobStatusCompleted
	job.ErrorReason = ""
	job.UpdatedAt = time.Now()
	s.jobs.mu.Unlock()

	s.mu.Lock()
	s.artifacts[jobID] = append([]domain.Artifact(nil), artifacts...)
	s.mu.Unlock()
	return true, nil
}

// Seed attaches artifacts to a job directly.
func (s *ArtifactStore) Seed(jobID string, artifacts ...domain.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[jobID] = append(s.artifacts[jobID], artifacts...)
}

func (s *ArtifactStore) DeleteByJobID(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, jobID)
	return nil
}

// QueueStore is an in-memory domain.QueueRepository.
type QueueStore struct {
	mu    sync.Mutex
	state domain.QueueState

	// ActivityErr, when set, fails SetActivity calls.
	ActivityErr error
}

// NewQueueStore creates a queue store in the accepting state.
func NewQueueStore() *QueueStore {
	return &QueueStore{}
}

func (s *QueueStore) Get(ctx context.Context) (*domain.QueueState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := s.state
	return &clone, nil
}

func (s *QueueStore) SetPaused(ctx context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsPaused = paused
	s.state.DeclineNewRequests = paused
	if paused {
		now := time.Now()
		s.state.PausedAt = &now
	} else {
		s.state.PausedAt = nil
	}
	s.state.UpdatedAt = time.Now()
	return nil
}

func (s *QueueStore) SetActivity(ctx context.Context, snapshot []byte) error {
	if s.ActivityErr != nil {
		return s.ActivityErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Activity = append([]byte(nil), snapshot...)
	now := time.Now()
	s.state.ActivityUpdatedAt = &now
	s.state.UpdatedAt = now
	return nil
}

// BlockStore is an in-memory domain.BlockRepository.
type BlockStore struct {
	mu     sync.Mutex
	blocks map[string]domain.QueueBlock
}

// NewBlockStore creates an empty block store.
func NewBlockStore() *BlockStore {
	return &BlockStore{blocks: make(map[string]domain.QueueBlock)}
}

func (s *BlockStore) Get(ctx context.Context, userID string) (*domain.QueueBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.blocks[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &block, nil
}

func (s *BlockStore) Upsert(ctx context.Context, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[userID] = domain.QueueBlock{UserID: userID, Reason: reason, CreatedAt: time.Now()}
	return nil
}

func (s *BlockStore) Delete(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocks[userID]
	delete(s.blocks, userID)
	return ok, nil
}

// Catalog is an in-memory domain.ModelCatalog.
type Catalog struct {
	BaseModels map[string]domain.CatalogModel
	LoRAs      map[string]domain.CatalogModel
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		BaseModels: make(map[string]domain.CatalogModel),
		LoRAs:      make(map[string]domain.CatalogModel),
	}
}

func (c *Catalog) GetBaseModel(ctx context.Context, id string) (*domain.CatalogModel, error) {
	if m, ok := c.BaseModels[id]; ok {
		return &m, nil
	}
	return nil, domain.ErrNotFound
}

func (c *Catalog) GetLoRA(ctx context.Context, id string) (*domain.CatalogModel, error) {
	if m, ok := c.LoRAs[id]; ok {
		return &m, nil
	}
	return nil, domain.ErrNotFound
}

// AgentStub is a scriptable dispatch.AgentClient. Script entries are consumed
// per call; when the script is exhausted the Default result is returned.
type AgentStub struct {
	mu      sync.Mutex
	Script  []func(job *domain.GenerationJob) (dispatch.Result, error)
	Default dispatch.Result
	Calls   []string
}

func (a *AgentStub) Dispatch(ctx context.Context, job *domain.GenerationJob) (dispatch.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, job.ID)
	if len(a.Script) > 0 {
		fn := a.Script[0]
		a.Script = a.Script[1:]
		return fn(job)
	}
	if a.Default.Outcome == "" {
		return dispatch.Result{Outcome: dispatch.OutcomeQueued}, nil
	}
	return a.Default, nil
}
