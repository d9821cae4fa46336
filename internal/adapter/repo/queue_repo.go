package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"genbroker/internal/domain"
)

// QueueRepositoryPG stores the singleton queue state row. The row is created
// lazily on first access; all flag updates are single-statement upserts so
// that multiple service instances can share one store without an in-process
// lock.
type QueueRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewQueueRepository constructs a queue state repository.
func NewQueueRepository(pool *pgxpool.Pool) *QueueRepositoryPG {
	return &QueueRepositoryPG{pool: pool}
}

// Get returns the queue state, creating the row if it does not exist yet.
func (r *QueueRepositoryPG) Get(ctx context.Context) (*domain.QueueState, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO queue_state (id) VALUES (1)
ON CONFLICT (id) DO UPDATE SET id = queue_state.id
RETURNING is_paused, decline_new_requests, paused_at, activity, activity_updated_at, updated_at;
`)
	var state domain.QueueState
	if err := row.Scan(
		&state.IsPaused,
		&state.DeclineNewRequests,
		&state.PausedAt,
		&state.Activity,
		&state.ActivityUpdatedAt,
		&state.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("load queue state: %w", err)
	}
	return &state, nil
}

// SetPaused flips both pause flags and stamps or clears paused_at.
func (r *QueueRepositoryPG) SetPaused(ctx context.Context, paused bool) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO queue_state (id, is_paused, decline_new_requests, paused_at)
VALUES (1, $1, $1, CASE WHEN $1 THEN NOW() ELSE NULL END)
ON CONFLICT (id) DO UPDATE SET
	is_paused = EXCLUDED.is_paused,
	decline_new_requests = EXCLUDED.decline_new_requests,
	paused_at = EXCLUDED.paused_at,
	updated_at = NOW();
`, paused)
	return err
}

// SetActivity records the latest worker activity snapshot.
func (r *QueueRepositoryPG) SetActivity(ctx context.Context, snapshot []byte) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO queue_state (id, activity, activity_updated_at)
VALUES (1, $1, NOW())
ON CONFLICT (id) DO UPDATE SET
	activity = EXCLUDED.activity,
	activity_updated_at = NOW(),
	updated_at = NOW();
`, snapshot)
	return err
}
