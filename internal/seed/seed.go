// Package seed provisions development data: a handful of demo inventory
// assets so the public GET /inventory/assets routes have something to
// return on a freshly migrated database. Seeding is idempotent, so it is
// safe to run on every deploy.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// demoAsset is a baseline inventory row seeded for local development.
type demoAsset struct {
	assetID   string
	category  string
	name      string
	unitPrice int64
	quantity  int64
}

var demoAssets = []demoAsset{
	{assetID: "AAPL", category: "equity", name: "Apple Inc.", unitPrice: 19_250, quantity: 1_000_000},
	{assetID: "MSFT", category: "equity", name: "Microsoft Corp.", unitPrice: 41_800, quantity: 1_000_000},
	{assetID: "BTC", category: "crypto", name: "Bitcoin", unitPrice: 6_420_000, quantity: 10_000},
	{assetID: "ETH", category: "crypto", name: "Ethereum", unitPrice: 345_000, quantity: 100_000},
	{assetID: "GOLD", category: "commodity", name: "Gold (oz)", unitPrice: 238_000, quantity: 50_000},
}

// RunDemo inserts the baseline asset catalog if it is not already present.
// It is idempotent: an asset_id that already exists is left untouched.
func RunDemo(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	var inserted int
	for _, a := range demoAssets {
		tag, err := pool.Exec(ctx,
			`INSERT INTO assets (asset_id, category, name, unit_price, quantity, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())
			 ON CONFLICT (asset_id) DO NOTHING`,
			a.assetID, a.category, a.name, a.unitPrice, a.quantity,
		)
		if err != nil {
			return fmt.Errorf("seeding asset %s: %w", a.assetID, err)
		}
		inserted += int(tag.RowsAffected())
	}

	logger.Info("seed: demo asset catalog applied", "assets_inserted", inserted, "assets_total", len(demoAssets))
	return nil
}
