package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/ReviewPulse/pkg/database"
	"github.com/utafrali/ReviewPulse/services/review/internal/domain"
)

// StoreDirectory implements repository.StoreDirectory on the stores table.
type StoreDirectory struct {
	pool database.DBTX
}

// NewStoreDirectory creates a PostgreSQL-backed store directory.
func NewStoreDirectory(pool database.DBTX) *StoreDirectory {
	return &StoreDirectory{pool: pool}
}

const listStoresByOwner = `
		SELECT id, owner_id, display_name, COALESCE(external_location_id, ''), created_at
		FROM stores
		WHERE owner_id = $1
		ORDER BY created_at ASC, id ASC`

// ListByOwner returns the owner's stores, oldest first.
func (d *StoreDirectory) ListByOwner(ctx context.Context, ownerID string) (stores []domain.Store, err error) {
	ctx, end := database.TraceQuery(ctx, "ListStoresByOwner", listStoresByOwner)
	defer func() { end(err) }()

	rows, err := d.pool.Query(ctx, listStoresByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list stores by owner: %w", err)
	}
	defer rows.Close()

	stores = make([]domain.Store, 0)
	for rows.Next() {
		var s domain.Store
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.DisplayName, &s.ExternalLocationID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}

	return stores, nil
}
