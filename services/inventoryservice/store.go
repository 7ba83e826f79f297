package inventoryservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradecore/platform/pkg/contract"
)

const assetColumns = `asset_id, category, name, unit_price, quantity, updated_at`

// Store provides read-only database operations for the public inventory
// catalog. The inventoryservice owns no write path; catalog curation
// happens out of band (see internal/seed for the dev baseline).
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an inventory Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanAssetRow(row pgx.Row) (contract.Asset, error) {
	var a contract.Asset
	err := row.Scan(&a.AssetID, &a.Category, &a.Name, &a.UnitPrice, &a.Quantity, &a.UpdatedAt)
	return a, err
}

// Get returns a single asset by ID.
func (s *Store) Get(ctx context.Context, assetID string) (contract.Asset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE asset_id = $1`, assetID)
	a, err := scanAssetRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.Asset{}, contract.ErrAssetNotFound
	}
	if err != nil {
		return contract.Asset{}, fmt.Errorf("loading asset %s: %w", assetID, err)
	}
	return a, nil
}

// List returns one page of assets ordered by asset_id, optionally filtered
// by category.
func (s *Store) List(ctx context.Context, category string, limit, offset int) ([]contract.Asset, error) {
	var rows pgx.Rows
	var err error
	if category != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT `+assetColumns+` FROM assets WHERE category = $1 ORDER BY asset_id LIMIT $2 OFFSET $3`,
			category, limit, offset,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+assetColumns+` FROM assets ORDER BY asset_id LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	var out []contract.Asset
	for rows.Next() {
		var a contract.Asset
		if err := rows.Scan(&a.AssetID, &a.Category, &a.Name, &a.UnitPrice, &a.Quantity, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning asset row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating asset rows: %w", err)
	}
	return out, nil
}

// Count returns the number of assets matching the category filter, for the
// listing's page envelope.
func (s *Store) Count(ctx context.Context, category string) (int, error) {
	var n int
	var err error
	if category != "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assets WHERE category = $1`, category).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assets`).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting assets: %w", err)
	}
	return n, nil
}
