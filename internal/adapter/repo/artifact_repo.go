package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genbroker/internal/domain"
)

// ArtifactRepositoryPG implements domain.ArtifactRepository using PostgreSQL.
type ArtifactRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewArtifactRepository constructs a new artifact repository instance.
func NewArtifactRepository(pool *pgxpool.Pool) *ArtifactRepositoryPG {
	return &ArtifactRepositoryPG{pool: pool}
}

// ListByJobID returns all artifacts belonging to the job.
func (r *ArtifactRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.Artifact, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, job_id, bucket, key, created_at
FROM artifacts
WHERE job_id = $1
ORDER BY created_at ASC, key ASC;
`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.ID, &a.JobID, &a.Bucket, &a.Key, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// ReplaceAndComplete atomically replaces the job's artifacts and marks it completed.
// The job row is locked and its status re-read inside the transaction; a job that
// has already reached a terminal state is left untouched and false is returned.
func (r *ArtifactRepositoryPG) ReplaceAndComplete(ctx context.Context, jobID string, artifacts []domain.Artifact) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin completion tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status domain.JobStatus
	err = tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE;`, jobID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, err
	}
	if status.Terminal() {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM artifacts WHERE job_id = $1;`, jobID); err != nil {
		return false, err
	}
	for _, a := range artifacts {
		if _, err := tx.Exec(ctx, `
INSERT INTO artifacts (id, job_id, bucket, key)
VALUES ($1, $2, $3, $4);
`, a.ID, jobID, a.Bucket, a.Key); err != nil {
			return false, err
		}
	}
	if _, err := tx.Exec(ctx, `
UPDATE jobs SET status = $2, error_reason = NULL, updated_at = NOW() WHERE id = $1;
`, jobID, domain.JobStatusCompleted); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit completion tx: %w", err)
	}
	return true, nil
}

// DeleteByJobID removes every artifact attached to the job.
func (r *ArtifactRepositoryPG) DeleteByJobID(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM artifacts WHERE job_id = $1;`, jobID)
	return err
}
