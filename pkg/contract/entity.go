// Package contract holds the entity schemas and error codes shared between
// the gateway and the downstream services, so both sides agree on wire and
// storage shapes without depending on each other's internals.
package contract

import "time"

// BalanceAccount is one per subject; its amount never goes negative.
type BalanceAccount struct {
	Subject       string    `json:"subject"`
	CurrentAmount int64     `json:"current_amount"` // minor units (cents), fixed-point
	UpdatedAt     time.Time `json:"updated_at"`
}

// TransactionKind enumerates BalanceTransaction.kind.
type TransactionKind string

const (
	TransactionDeposit     TransactionKind = "deposit"
	TransactionWithdraw    TransactionKind = "withdraw"
	TransactionOrderDebit  TransactionKind = "order_debit"
	TransactionOrderCredit TransactionKind = "order_credit"
)

// TransactionStatus enumerates BalanceTransaction.status.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// BalanceTransaction is an append-only ledger entry.
type BalanceTransaction struct {
	TransactionID string            `json:"transaction_id"`
	Subject       string            `json:"subject"`
	Kind          TransactionKind   `json:"kind"`
	Amount        int64             `json:"amount"` // always positive; Kind carries the sign
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	LinkedOrderID *string           `json:"linked_order_id,omitempty"`
	Reason        string            `json:"reason,omitempty"`
}

// Sign returns +1 for kinds that increase current_amount and -1 for kinds
// that decrease it.
func (k TransactionKind) Sign() int64 {
	switch k {
	case TransactionDeposit, TransactionOrderCredit:
		return 1
	case TransactionWithdraw, TransactionOrderDebit:
		return -1
	default:
		return 0
	}
}

// OrderSide enumerates Order.side.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType enumerates Order.type.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus enumerates Order.status.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is append-only; status mutates only through the order-commit
// flow in pkg/orders.
type Order struct {
	OrderID   string      `json:"order_id"`
	Subject   string      `json:"subject"`
	AssetID   string      `json:"asset_id"`
	Side      OrderSide   `json:"side"`
	Type      OrderType   `json:"type"`
	Quantity  int64       `json:"quantity"`   // fixed-point, smallest unit
	UnitPrice int64       `json:"unit_price"` // minor units
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Total returns quantity * unit_price in minor units.
func (o Order) Total() int64 {
	return o.Quantity * o.UnitPrice
}

// User is the minimal identity record the userservice owns; it backs
// Identity issuance and is not otherwise part of the core's data model.
type User struct {
	Subject      string    `json:"subject"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Asset is the minimal inventory record the inventoryservice owns.
type Asset struct {
	AssetID   string    `json:"asset_id"`
	Category  string    `json:"category"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Quantity  int64     `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}
