package domain

import "context"

// JobRepository defines persistence for generation jobs.
//
// UpdateStatusIf is the compare-and-swap primitive every status write goes
// through: the new status is written only when the current status is still a
// member of the expected set, and the returned bool reports whether the write
// was applied. reason semantics: nil leaves error_reason untouched, a pointer
// to "" clears it, any other value replaces it.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	UpdateStatusIf(ctx context.Context, jobID string, expected []JobStatus, next JobStatus, reason *string) (bool, error)
	BulkTransition(ctx context.Context, from []JobStatus, to JobStatus, reason *string) (int64, error)
	ListByStatus(ctx context.Context, statuses []JobStatus) ([]GenerationJob, error)
}

// ArtifactRepository persists artifacts attached to completed jobs.
//
// ReplaceAndComplete applies the completion callback transactionally: re-read
// the job status inside the transaction, no-op (returning false) when it is
// already terminal, otherwise delete every previously attached artifact,
// insert the given set and mark the job completed with its error reason
// cleared.
type ArtifactRepository interface {
	ListByJobID(ctx context.Context, jobID string) ([]Artifact, error)
	ReplaceAndComplete(ctx context.Context, jobID string, artifacts []Artifact) (bool, error)
	DeleteByJobID(ctx context.Context, jobID string) error
}

// QueueRepository manages the singleton queue state row.
type QueueRepository interface {
	Get(ctx context.Context) (*QueueState, error)
	SetPaused(ctx context.Context, paused bool) error
	SetActivity(ctx context.Context, snapshot []byte) error
}

// BlockRepository manages per-user submission blocks.
type BlockRepository interface {
	Get(ctx context.Context, userID string) (*QueueBlock, error)
	Upsert(ctx context.Context, userID, reason string) error
	Delete(ctx context.Context, userID string) (bool, error)
}

// ModelCatalog resolves catalog-sourced base models and LoRAs.
type ModelCatalog interface {
	GetBaseModel(ctx context.Context, id string) (*CatalogModel, error)
	GetLoRA(ctx context.Context, id string) (*CatalogModel, error)
}
