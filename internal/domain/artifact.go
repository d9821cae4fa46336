package domain

import "time"

// Artifact is an output object produced by a completed generation job.
type Artifact struct {
	ID        string
	JobID     string
	Bucket    string
	Key       string
	CreatedAt time.Time
}

// URI returns the storage locator derived from bucket and key.
func (a *Artifact) URI() string {
	return "s3://" + a.Bucket + "/" + a.Key
}
