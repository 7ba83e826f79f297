package contract

import "errors"

// Sentinel errors the ledger and order services return; handlers translate
// these to the RFC-7807 envelope (internal/apierror) at the HTTP edge.
var (
	ErrInsufficientFunds = errors.New("contract: insufficient funds")
	ErrAssetOutOfStock   = errors.New("contract: asset out of stock")
	ErrAssetNotFound     = errors.New("contract: asset not found")
	ErrOrderNotFound     = errors.New("contract: order not found")
	ErrUserNotFound      = errors.New("contract: user not found")
	ErrDuplicateEmail    = errors.New("contract: email already registered")
	ErrLockContention    = errors.New("contract: lock wait exhausted")
	ErrInvalidOrder      = errors.New("contract: order fields invalid")
)
