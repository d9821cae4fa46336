package domain

import "time"

// QueueState is the singleton record of queue-wide flags and worker activity.
type QueueState struct {
	IsPaused           bool
	DeclineNewRequests bool
	PausedAt           *time.Time
	Activity           []byte
	ActivityUpdatedAt  *time.Time
	UpdatedAt          time.Time
}

// AcceptingSubmissions reports whether new jobs may be created.
func (q *QueueState) AcceptingSubmissions() bool {
	return !q.IsPaused && !q.DeclineNewRequests
}

// QueueBlock suspends a single user's ability to submit new jobs.
type QueueBlock struct {
	UserID    string
	Reason    string
	CreatedAt time.Time
}
