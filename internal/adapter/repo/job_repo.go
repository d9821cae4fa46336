package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genbroker/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	modelsJSON, err := json.Marshal(job.BaseModels)
	if err != nil {
		return fmt.Errorf("marshal base models: %w", err)
	}
	lorasJSON, err := json.Marshal(job.LoRAs)
	if err != nil {
		return fmt.Errorf("marshal loras: %w", err)
	}

	query := `
INSERT INTO jobs (id, owner_id, prompt, negative_prompt, seed, guidance_scale, steps, width, height,
                  base_models, loras, status, error_reason, output_bucket, output_prefix)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14, $15);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Prompt,
		job.NegativePrompt,
		job.Seed,
		job.GuidanceScale,
		job.Steps,
		job.Width,
		job.Height,
		modelsJSON,
		lorasJSON,
		job.Status,
		job.ErrorReason,
		job.OutputBucket,
		job.OutputPrefix,
	)
	return err
}

const jobColumns = `id, owner_id, prompt, negative_prompt, seed, guidance_scale, steps, width, height,
base_models, loras, status, COALESCE(error_reason, ''), output_bucket, output_prefix, created_at, updated_at`

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1;`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// UpdateStatusIf conditionally advances a job's status; see domain.JobRepository.
func (r *JobRepositoryPG) UpdateStatusIf(ctx context.Context, jobID string, expected []domain.JobStatus, next domain.JobStatus, reason *string) (bool, error) {
	query := `
UPDATE jobs
SET status = $3,
    error_reason = CASE WHEN $4::text IS NULL THEN error_reason ELSE NULLIF($4, '') END,
    updated_at = NOW()
WHERE id = $1 AND status = ANY($2);
`
	tag, err := r.pool.Exec(ctx, query, jobID, statusStrings(expected), next, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// BulkTransition moves every job whose status is in from to the to status.
func (r *JobRepositoryPG) BulkTransition(ctx context.Context, from []domain.JobStatus, to domain.JobStatus, reason *string) (int64, error) {
	query := `
UPDATE jobs
SET status = $2,
    error_reason = CASE WHEN $3::text IS NULL THEN error_reason ELSE NULLIF($3, '') END,
    updated_at = NOW()
WHERE status = ANY($1);
`
	tag, err := r.pool.Exec(ctx, query, statusStrings(from), to, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByStatus returns jobs in the given statuses, oldest first.
func (r *JobRepositoryPG) ListByStatus(ctx context.Context, statuses []domain.JobStatus) ([]domain.GenerationJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ANY($1) ORDER BY created_at ASC;`,
		statusStrings(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var modelsJSON, lorasJSON []byte
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Prompt,
		&job.NegativePrompt,
		&job.Seed,
		&job.GuidanceScale,
		&job.Steps,
		&job.Width,
		&job.Height,
		&modelsJSON,
		&lorasJSON,
		&job.Status,
		&job.ErrorReason,
		&job.OutputBucket,
		&job.OutputPrefix,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(modelsJSON) > 0 {
		if err := json.Unmarshal(modelsJSON, &job.BaseModels); err != nil {
			return nil, fmt.Errorf("unmarshal base models: %w", err)
		}
	}
	if len(lorasJSON) > 0 {
		if err := json.Unmarshal(lorasJSON, &job.LoRAs); err != nil {
			return nil, fmt.Errorf("unmarshal loras: %w", err)
		}
	}
	return &job, nil
}

func statusStrings(statuses []domain.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
