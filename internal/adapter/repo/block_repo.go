package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genbroker/internal/domain"
)

// BlockRepositoryPG implements domain.BlockRepository.
type BlockRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBlockRepository constructs a block repository.
func NewBlockRepository(pool *pgxpool.Pool) *BlockRepositoryPG {
	return &BlockRepositoryPG{pool: pool}
}

// Get returns the block entry for the user, or domain.ErrNotFound.
func (r *BlockRepositoryPG) Get(ctx context.Context, userID string) (*domain.QueueBlock, error) {
	row := r.pool.QueryRow(ctx, `
SELECT user_id, COALESCE(reason, ''), created_at
FROM queue_blocks
WHERE user_id = $1;
`, userID)
	var block domain.QueueBlock
	if err := row.Scan(&block.UserID, &block.Reason, &block.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &block, nil
}

// Upsert creates or updates a block for the user.
func (r *BlockRepositoryPG) Upsert(ctx context.Context, userID, reason string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO queue_blocks (user_id, reason)
VALUES ($1, NULLIF($2, ''))
ON CONFLICT (user_id) DO UPDATE SET reason = EXCLUDED.reason;
`, userID, reason)
	return err
}

// Delete removes the block for the user, reporting whether one existed.
func (r *BlockRepositoryPG) Delete(ctx context.Context, userID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM queue_blocks WHERE user_id = $1;`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
