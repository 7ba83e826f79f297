// Package orders implements order commit: validate, acquire the
// per-subject lock, move funds and inventory, and record the order.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tradecore/platform/internal/lock"
	"github.com/tradecore/platform/internal/telemetry"
	"github.com/tradecore/platform/pkg/contract"
	"github.com/tradecore/platform/pkg/ledger"
)

const (
	lockTTL     = 30 * time.Second
	lockWaitMax = 5 * time.Second
)

// MaxOrderTotal bounds quantity*unit_price for a single order.
const MaxOrderTotal = 100_000_000_00 // 100M major units, in minor units

// Request is the caller-supplied order intent, pre-validation.
type Request struct {
	AssetID  string
	Side     contract.OrderSide
	Type     contract.OrderType
	Quantity int64
}

// Service orchestrates order commit over the ledger, inventory, and the
// per-subject distributed lock.
type Service struct {
	pool   ledger.DB
	locks  *lock.Manager
	ledger *ledger.Ledger
}

// New creates an order Service.
func New(pool ledger.DB, locks *lock.Manager, led *ledger.Ledger) *Service {
	return &Service{pool: pool, locks: locks, ledger: led}
}

// ErrLockBusy signals the caller should return 503: lock contention is a
// normal, retryable outcome, not an error.
var ErrLockBusy = errors.New("orders: lock wait exhausted")

// Create validates req, serializes the commit under user:<subject>, and
// returns the persisted Order. Concurrent buys on the same subject are
// either both serialized to completion or the loser returns ErrLockBusy;
// they never both debit.
func (s *Service) Create(ctx context.Context, subject string, req Request) (contract.Order, error) {
	asset, err := s.loadAsset(ctx, req.AssetID)
	if err != nil {
		return contract.Order{}, err
	}
	if err := validate(req, asset); err != nil {
		return contract.Order{}, err
	}

	owner, err := s.locks.Acquire(ctx, "user:"+subject, lockTTL, lockWaitMax)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return contract.Order{}, ErrLockBusy
		}
		return contract.Order{}, fmt.Errorf("acquiring order lock for %s: %w", subject, err)
	}
	defer func() { _ = s.locks.Release(ctx, owner) }()

	return s.commitLocked(ctx, subject, req, asset)
}

func validate(req Request, asset contract.Asset) error {
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", contract.ErrInvalidOrder)
	}
	if asset.UnitPrice <= 0 {
		return fmt.Errorf("%w: asset unit price must be positive", contract.ErrInvalidOrder)
	}
	if req.Side != contract.OrderSideBuy && req.Side != contract.OrderSideSell {
		return fmt.Errorf("%w: side must be buy or sell", contract.ErrInvalidOrder)
	}
	total := req.Quantity * asset.UnitPrice
	if total > MaxOrderTotal {
		return fmt.Errorf("%w: total %d exceeds ceiling %d", contract.ErrInvalidOrder, total, MaxOrderTotal)
	}
	return nil
}

func (s *Service) loadAsset(ctx context.Context, assetID string) (contract.Asset, error) {
	var a contract.Asset
	err := s.pool.QueryRow(ctx, `SELECT asset_id, category, name, unit_price, quantity, updated_at FROM assets WHERE asset_id = $1`, assetID).
		Scan(&a.AssetID, &a.Category, &a.Name, &a.UnitPrice, &a.Quantity, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.Asset{}, contract.ErrAssetNotFound
	}
	if err != nil {
		return contract.Asset{}, fmt.Errorf("loading asset %s: %w", assetID, err)
	}
	return a, nil
}

// commitLocked settles and records the order. A buy debits cash from
// the subject and transfers the traded quantity out of the shared
// inventory pool; a sell returns quantity to the pool and credits cash.
// If the inventory-side mutation lands but the ledger call fails, the
// order is recorded failed and the inventory mutation is undone with its
// inverse before returning.
func (s *Service) commitLocked(ctx context.Context, subject string, req Request, asset contract.Asset) (contract.Order, error) {
	orderID := uuid.NewString()
	total := req.Quantity * asset.UnitPrice

	order := contract.Order{
		OrderID:   orderID,
		Subject:   subject,
		AssetID:   asset.AssetID,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		UnitPrice: asset.UnitPrice,
		CreatedAt: time.Now(),
	}

	var inventoryDelta int64
	if req.Side == contract.OrderSideSell {
		inventoryDelta = req.Quantity
	} else {
		inventoryDelta = -req.Quantity
	}

	if err := s.adjustInventory(ctx, asset.AssetID, inventoryDelta); err != nil {
		order.Status = contract.OrderFailed
		_ = s.insertOrder(ctx, order)
		return contract.Order{}, fmt.Errorf("adjusting inventory for %s: %w", asset.AssetID, err)
	}

	// The caller already holds the user:<subject> lock (Create, above);
	// use the *Locked variants so the ledger doesn't try to re-acquire it
	// and deadlock against itself.
	var ledgerErr error
	if req.Side == contract.OrderSideBuy {
		_, ledgerErr = s.ledger.DebitLocked(ctx, subject, total, "order_debit", &orderID)
	} else {
		_, ledgerErr = s.ledger.CreditLocked(ctx, subject, total, "order_credit", &orderID)
	}

	if ledgerErr != nil {
		_ = s.adjustInventory(ctx, asset.AssetID, -inventoryDelta)
		order.Status = contract.OrderFailed
		_ = s.insertOrder(ctx, order)
		if errors.Is(ledgerErr, contract.ErrInsufficientFunds) {
			return contract.Order{}, contract.ErrInsufficientFunds
		}
		return contract.Order{}, fmt.Errorf("settling order %s: %w", orderID, ledgerErr)
	}

	order.Status = contract.OrderCompleted
	if err := s.insertOrder(ctx, order); err != nil {
		return contract.Order{}, fmt.Errorf("recording order %s: %w", orderID, err)
	}
	return order, nil
}

func (s *Service) adjustInventory(ctx context.Context, assetID string, delta int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET quantity = quantity + $1, updated_at = now() WHERE asset_id = $2 AND quantity + $1 >= 0`,
		delta, assetID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", assetID, contract.ErrAssetOutOfStock)
	}
	return nil
}

func (s *Service) insertOrder(ctx context.Context, o contract.Order) error {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (order_id, subject, asset_id, side, type, quantity, unit_price, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.OrderID, o.Subject, o.AssetID, o.Side, o.Type, o.Quantity, o.UnitPrice, o.Status, createdAt,
	)
	if err == nil {
		telemetry.OrdersCommittedTotal.WithLabelValues(string(o.Status)).Inc()
	}
	return err
}

// Get returns a subject's order by ID.
func (s *Service) Get(ctx context.Context, subject, orderID string) (contract.Order, error) {
	var o contract.Order
	err := s.pool.QueryRow(ctx,
		`SELECT order_id, subject, asset_id, side, type, quantity, unit_price, status, created_at
		 FROM orders WHERE order_id = $1 AND subject = $2`,
		orderID, subject,
	).Scan(&o.OrderID, &o.Subject, &o.AssetID, &o.Side, &o.Type, &o.Quantity, &o.UnitPrice, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.Order{}, contract.ErrOrderNotFound
	}
	if err != nil {
		return contract.Order{}, fmt.Errorf("loading order %s: %w", orderID, err)
	}
	return o, nil
}

// List returns a subject's orders, most recent first. A non-nil before
// restricts the page to orders older than that instant.
func (s *Service) List(ctx context.Context, subject string, limit int, before *time.Time) ([]contract.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT order_id, subject, asset_id, side, type, quantity, unit_price, status, created_at
		 FROM orders WHERE subject = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		 ORDER BY created_at DESC LIMIT $3`,
		subject, before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %s: %w", subject, err)
	}
	defer rows.Close()

	var out []contract.Order
	for rows.Next() {
		var o contract.Order
		if err := rows.Scan(&o.OrderID, &o.Subject, &o.AssetID, &o.Side, &o.Type, &o.Quantity, &o.UnitPrice, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}
	return out, nil
}
