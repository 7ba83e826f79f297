package orderservice

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradecore/platform/pkg/contract"
	"github.com/tradecore/platform/pkg/orders"
)

// Service adapts pkg/orders to the orderservice wire shapes and adds
// the portfolio aggregation read model.
type Service struct {
	pool  *pgxpool.Pool
	order *orders.Service
}

// NewService creates an order Service.
func NewService(pool *pgxpool.Pool, order *orders.Service) *Service {
	return &Service{pool: pool, order: order}
}

// Create validates and commits a new order under the subject's lock.
func (s *Service) Create(ctx context.Context, subject string, req CreateOrderRequest) (contract.Order, error) {
	return s.order.Create(ctx, subject, orders.Request{
		AssetID:  req.AssetID,
		Side:     contract.OrderSide(req.Side),
		Type:     contract.OrderType(req.Type),
		Quantity: req.Quantity,
	})
}

// Get returns a subject's order by ID.
func (s *Service) Get(ctx context.Context, subject, orderID string) (contract.Order, error) {
	return s.order.Get(ctx, subject, orderID)
}

// List returns a subject's orders, most recent first, starting below the
// optional cursor instant.
func (s *Service) List(ctx context.Context, subject string, limit int, before *time.Time) ([]contract.Order, error) {
	return s.order.List(ctx, subject, limit, before)
}

// Portfolio aggregates a subject's completed orders into net per-asset
// holdings (buys add, sells subtract), per the GET /portfolio/{subject}
// route's read-only aggregation contract.
func (s *Service) Portfolio(ctx context.Context, subject string) (PortfolioResponse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT asset_id,
		       SUM(CASE WHEN side = 'buy' THEN quantity ELSE -quantity END) AS net_quantity,
		       COUNT(*) AS orders_filled
		FROM orders
		WHERE subject = $1 AND status = $2
		GROUP BY asset_id
		ORDER BY asset_id`,
		subject, contract.OrderCompleted,
	)
	if err != nil {
		return PortfolioResponse{}, fmt.Errorf("aggregating portfolio for %s: %w", subject, err)
	}
	defer rows.Close()

	holdings := []Holding{}
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.AssetID, &h.NetQuantity, &h.OrdersFilled); err != nil {
			return PortfolioResponse{}, fmt.Errorf("scanning portfolio row: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return PortfolioResponse{}, fmt.Errorf("iterating portfolio rows: %w", err)
	}

	return PortfolioResponse{Subject: subject, Holdings: holdings}, nil
}
