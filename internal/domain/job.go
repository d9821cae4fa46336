package domain

import "time"

// JobStatus enumerates generation job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusHeld      JobStatus = "held"
	JobStatusRunning   JobStatus = "running"
	JobStatusUploading JobStatus = "uploading"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// ParseJobStatus recognizes a simple status value reported by an agent.
// pending and held are broker-internal scheduling states an agent can never
// observe, so a callback carrying either is rejected.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch JobStatus(raw) {
	case JobStatusQueued, JobStatusRunning, JobStatusUploading,
		JobStatusCompleted, JobStatusError, JobStatusCancelled:
		return JobStatus(raw), true
	}
	return "", false
}

// Status sets used with the compare-and-swap transition helper.
var (
	// NonTerminalStatuses is the expected-state set for callback-driven writes.
	NonTerminalStatuses = []JobStatus{
		JobStatusPending, JobStatusQueued, JobStatusHeld,
		JobStatusRunning, JobStatusUploading, JobStatusError,
	}

	// CancellableStatuses is the only set admin-cancel may transition from.
	CancellableStatuses = []JobStatus{JobStatusRunning, JobStatusUploading}

	// RedispatchableStatuses are picked up by a redispatch sweep.
	RedispatchableStatuses = []JobStatus{JobStatusPending, JobStatusHeld, JobStatusError}

	// ClearableStatuses are bulk-cancelled when the queue is cleared.
	ClearableStatuses = []JobStatus{JobStatusPending, JobStatusQueued, JobStatusHeld, JobStatusError}
)

// AgentState is the coarse execution state reported by a GPU agent.
type AgentState string

const (
	AgentStateQueued        AgentState = "QUEUED"
	AgentStatePreparing     AgentState = "PREPARING"
	AgentStateMaterializing AgentState = "MATERIALIZING"
	AgentStateSubmitted     AgentState = "SUBMITTED"
	AgentStateRunning       AgentState = "RUNNING"
	AgentStateUploading     AgentState = "UPLOADING"
	AgentStateSuccess       AgentState = "SUCCESS"
	AgentStateFailed        AgentState = "FAILED"
	AgentStateCanceled      AgentState = "CANCELED"
)

// JobStatus maps an agent state onto the job lifecycle.
func (s AgentState) JobStatus() (JobStatus, bool) {
	switch s {
	case AgentStateQueued:
		return JobStatusQueued, true
	case AgentStatePreparing, AgentStateMaterializing, AgentStateSubmitted, AgentStateRunning:
		return JobStatusRunning, true
	case AgentStateUploading:
		return JobStatusUploading, true
	case AgentStateSuccess:
		return JobStatusCompleted, true
	case AgentStateFailed:
		return JobStatusError, true
	case AgentStateCanceled:
		return JobStatusCancelled, true
	}
	return "", false
}

// GenerationJob is one generation request tracked through its lifecycle.
type GenerationJob struct {
	ID             string
	OwnerID        string
	Prompt         string
	NegativePrompt string
	Seed           int64
	GuidanceScale  float64
	Steps          int
	Width          int
	Height         int
	BaseModels     []ResolvedModel
	LoRAs          []ResolvedLoRA
	Status         JobStatus
	ErrorReason    string
	OutputBucket   string
	OutputPrefix   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PrimaryModel returns the first resolved base model.
func (j *GenerationJob) PrimaryModel() *ResolvedModel {
	if len(j.BaseModels) == 0 {
		return nil
	}
	return &j.BaseModels[0]
}
