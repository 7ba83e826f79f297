// Package ledger implements the balance ledger: debit/credit with an
// append-only transaction log under a per-subject lock.
package ledger

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
)

// Default per-call lock bounds. The TTL must exceed the longest expected
// critical section for a single debit/credit call.
const (
	defaultLockTTL     = 5 * time.Second
	defaultLockWaitMax = 2 * time.Second
)

// Ledger is the service-side balance ledger, guarded by the distributed
// lock manager.
type Ledger struct {
	pool        DB
	locks       *lock.Manager
	lockTTL     time.Duration
	lockWaitMax time.Duration
}

// New creates a Ledger backed by pool and guarded by locks.
func New(pool DB, locks *lock.Manager) *Ledger {
	return &Ledger{pool: pool, locks: locks, lockTTL: defaultLockTTL, lockWaitMax: defaultLockWaitMax}
}

// WithLockTimeouts overrides the per-call lock TTL and wait bound (the
// LOCK_TTL / LOCK_WAIT_MAX configuration keys). Zero values keep the
// defaults.
func (l *Ledger) WithLockTimeouts(ttl, waitMax time.Duration) *Ledger {
	if ttl > 0 {
		l.lockTTL = ttl
	}
	if waitMax > 0 {
		l.lockWaitMax = waitMax
	}
	return l
}

// Result is the outcome of a ledger operation.
type Result struct {
	TransactionID string
	NewBalance    int64
}

// Debit subtracts amount from subject's balance, failing with
// contract.ErrInsufficientFunds (no ledger write) if the balance is
// insufficient. Acquires the per-subject lock internally unless called from
// within an already-held lock via DebitLocked.
func (l *Ledger) Debit(ctx context.Context, subject string, amount int64, reason string, linkedOrderID *string) (Result, error) {
	owner, err := l.locks.Acquire(ctx, "user:"+subject, l.lockTTL, l.lockWaitMax)
	if err != nil {
		return Result{}, fmt.Errorf("acquiring balance lock for %s: %w", subject, err)
	}
	defer func() { _ = l.locks.Release(ctx, owner) }()

	return l.debitLocked(ctx, subject, amount, reason, linkedOrderID)
}

// Credit adds amount to subject's balance, creating the account if absent.
func (l *Ledger) Credit(ctx context.Context, subject string, amount int64, reason string, linkedOrderID *string) (Result, error) {
	owner, err := l.locks.Acquire(ctx, "user:"+subject, l.lockTTL, l.lockWaitMax)
	if err != nil {
		return Result{}, fmt.Errorf("acquiring balance lock for %s: %w", subject, err)
	}
	defer func() { _ = l.locks.Release(ctx, owner) }()

	return l.creditLocked(ctx, subject, amount, reason, linkedOrderID)
}

// DebitLocked performs a debit assuming the caller already holds
// user:<subject> (used by pkg/orders, which acquires the lock once and
// drives both the debit/credit and the order insert under it).
func (l *Ledger) DebitLocked(ctx context.Context, subject string, amount int64, reason string, linkedOrderID *string) (Result, error) {
	return l.debitLocked(ctx, subject, amount, reason, linkedOrderID)
}

// CreditLocked is the credit-side counterpart of DebitLocked.
func (l *Ledger) CreditLocked(ctx context.Context, subject string, amount int64, reason string, linkedOrderID *string) (Result, error) {
	return l.creditLocked(ctx, subject, amount, reason, linkedOrderID)
}

func (l *Ledger) debitLocked(ctx context.Context, subject string, amount int64, reason string, linkedOrderID *string) (Result, error) {
	kind := contract.TransactionWithdraw
	if linkedOrderID != nil {
		kind = contract.TransactionOrderDebit
	}
	return l.mutate(ctx, subject, kind, amount, reason, linkedOrderID)
}

func (l *Ledger) creditLocked(ctx context.Context, subject string, amount int64, reason string, linkedOrderID *string) (Result, error) {
	kind := contract.TransactionDeposit
	if linkedOrderID != nil {
		kind = contract.TransactionOrderCredit
	}
	return l.mutate(ctx, subject, kind, amount, reason, linkedOrderID)
}

// mutate runs one balance change inside a single transaction: read the
// account (row-locked), reject insufficient-funds debits before
// any write, append a pending BalanceTransaction, apply the signed delta
// with a conditional write on updated_at, then mark the transaction
// completed (or failed, leaving the account untouched, on any failure
// from step 3 onward).
func (l *Ledger) mutate(ctx context.Context, subject string, kind contract.TransactionKind, amount int64, reason string, linkedOrderID *string) (Result, error) {
	if amount <= 0 {
		return Result{}, fmt.Errorf("ledger: amount must be positive, got %d", amount)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("beginning ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int64
	var updatedAt time.Time
	err = tx.QueryRow(ctx, `SELECT current_amount, updated_at FROM balance_accounts WHERE subject = $1 FOR UPDATE`, subject).
		Scan(&current, &updatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// RETURNING feeds the freshly stamped updated_at into the
		// conditional write below; a NULL expectation would never match
		// the row this same transaction just created.
		err = tx.QueryRow(ctx,
			`INSERT INTO balance_accounts (subject, current_amount, updated_at) VALUES ($1, 0, now()) RETURNING current_amount, updated_at`,
			subject,
		).Scan(&current, &updatedAt)
		if err != nil {
			return Result{}, fmt.Errorf("creating balance account for %s: %w", subject, err)
		}
	case err != nil:
		return Result{}, fmt.Errorf("reading balance account for %s: %w", subject, err)
	}

	delta := amount * kind.Sign()
	if delta < 0 && current+delta < 0 {
		return Result{}, contract.ErrInsufficientFunds
	}

	txID := uuid.NewString()
	if _, err := tx.Exec(ctx,
		`INSERT INTO balance_transactions (transaction_id, subject, kind, amount, status, created_at, linked_order_id, reason)
		 VALUES ($1, $2, $3, $4, $5, now(), $6, $7)`,
		txID, subject, kind, amount, contract.TransactionPending, linkedOrderID, reason,
	); err != nil {
		l.recordFailed(ctx, tx, txID, subject, kind, amount, reason, linkedOrderID)
		return Result{}, fmt.Errorf("recording pending transaction: %w", err)
	}

	newBalance := current + delta
	tag, err := tx.Exec(ctx,
		`UPDATE balance_accounts SET current_amount = $1, updated_at = now() WHERE subject = $2 AND updated_at IS NOT DISTINCT FROM $3`,
		newBalance, subject, nullableTime(updatedAt),
	)
	if err != nil {
		l.recordFailed(ctx, tx, txID, subject, kind, amount, reason, linkedOrderID)
		return Result{}, fmt.Errorf("updating balance account for %s: %w", subject, err)
	}
	if tag.RowsAffected() == 0 {
		l.recordFailed(ctx, tx, txID, subject, kind, amount, reason, linkedOrderID)
		return Result{}, fmt.Errorf("ledger: lost update detected on balance account for %s", subject)
	}

	if _, err := tx.Exec(ctx, `UPDATE balance_transactions SET status = $1 WHERE transaction_id = $2`, contract.TransactionCompleted, txID); err != nil {
		l.recordFailed(ctx, tx, txID, subject, kind, amount, reason, linkedOrderID)
		return Result{}, fmt.Errorf("completing transaction %s: %w", txID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("committing ledger transaction: %w", err)
	}

	telemetry.LedgerTransactionsTotal.WithLabelValues(string(kind), string(contract.TransactionCompleted)).Inc()
	return Result{TransactionID: txID, NewBalance: newBalance}, nil
}

// recordFailed keeps the failed attempt visible in the append-only log.
// The pending insert dies with tx's rollback, so the row is re-inserted
// with status=failed on a fresh connection. The rollback must happen
// first: a PK wait on the still-uncommitted pending row would wedge both
// connections.
func (l *Ledger) recordFailed(ctx context.Context, tx Tx, txID, subject string, kind contract.TransactionKind, amount int64, reason string, linkedOrderID *string) {
	_ = tx.Rollback(ctx)
	_, _ = l.pool.Exec(ctx,
		`INSERT INTO balance_transactions (transaction_id, subject, kind, amount, status, created_at, linked_order_id, reason)
		 VALUES ($1, $2, $3, $4, $5, now(), $6, $7)
		 ON CONFLICT (transaction_id) DO UPDATE SET status = EXCLUDED.status`,
		txID, subject, kind, amount, contract.TransactionFailed, linkedOrderID, reason)
	telemetry.LedgerTransactionsTotal.WithLabelValues(string(kind), string(contract.TransactionFailed)).Inc()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// Balance returns the current balance for subject, or zero if no account
// exists yet.
func (l *Ledger) Balance(ctx context.Context, subject string) (contract.BalanceAccount, error) {
	var acct contract.BalanceAccount
	acct.Subject = subject
	err := l.pool.QueryRow(ctx, `SELECT current_amount, updated_at FROM balance_accounts WHERE subject = $1`, subject).
		Scan(&acct.CurrentAmount, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return acct, nil
	}
	if err != nil {
		return contract.BalanceAccount{}, fmt.Errorf("reading balance for %s: %w", subject, err)
	}
	return acct, nil
}

// Transactions returns subject's ledger entries, most recent first. A
// non-nil before restricts the page to entries older than that instant
// (keyset pagination on the (subject, created_at) index).
func (l *Ledger) Transactions(ctx context.Context, subject string, limit int, before *time.Time) ([]contract.BalanceTransaction, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT transaction_id, subject, kind, amount, status, created_at, linked_order_id, reason
		 FROM balance_transactions WHERE subject = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		 ORDER BY created_at DESC LIMIT $3`,
		subject, before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for %s: %w", subject, err)
	}
	defer rows.Close()

	var out []contract.BalanceTransaction
	for rows.Next() {
		var t contract.BalanceTransaction
		if err := rows.Scan(&t.TransactionID, &t.Subject, &t.Kind, &t.Amount, &t.Status, &t.CreatedAt, &t.LinkedOrderID, &t.Reason); err != nil {
			return nil, fmt.Errorf("scanning transaction row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}
	return out, nil
}
