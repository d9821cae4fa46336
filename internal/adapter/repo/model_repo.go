package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"genbroker/internal/domain"
)

// ModelCatalogPG resolves base models and LoRAs from the asset catalog tables.
type ModelCatalogPG struct {
	pool *pgxpool.Pool
}

// NewModelCatalog constructs a catalog reader.
func NewModelCatalog(pool *pgxpool.Pool) *ModelCatalogPG {
	return &ModelCatalogPG{pool: pool}
}

// GetBaseModel fetches a base model catalog entry.
func (r *ModelCatalogPG) GetBaseModel(ctx context.Context, id string) (*domain.CatalogModel, error) {
	return r.get(ctx, "base_models", id)
}

// GetLoRA fetches a LoRA catalog entry.
func (r *ModelCatalogPG) GetLoRA(ctx context.Context, id string) (*domain.CatalogModel, error) {
	return r.get(ctx, "loras", id)
}

func (r *ModelCatalogPG) get(ctx context.Context, table, id string) (*domain.CatalogModel, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, name, owner_id, is_public, COALESCE(storage_location, ''), created_at
FROM `+table+`
WHERE id = $1;
`, id)
	var m domain.CatalogModel
	if err := row.Scan(&m.ID, &m.Name, &m.OwnerID, &m.Public, &m.StorageLocation, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
