// Package ledgertest provides an in-memory stand-in for the subset of
// Postgres pkg/ledger and pkg/orders drive through ledger.DB, so their
// business logic can be exercised without a live database. It follows the
// same "hand-rolled fake over mocking framework" approach as
// internal/coordination/coordinationtest: rather than simulating a SQL
// engine, it recognizes the handful of query shapes those two packages
// actually issue, by substring match on the statement text.
package ledgertest

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tradecore/platform/pkg/contract"
	"github.com/tradecore/platform/pkg/ledger"
)

type account struct {
	balance   int64
	updatedAt time.Time
	exists    bool
}

type transaction struct {
	id, subject   string
	kind          contract.TransactionKind
	amount        int64
	status        contract.TransactionStatus
	createdAt     time.Time
	linkedOrderID *string
	reason        string
}

type asset struct {
	assetID, category, name string
	unitPrice, quantity     int64
	updatedAt               time.Time
}

type order struct {
	orderID, subject, assetID string
	side                      contract.OrderSide
	typ                       contract.OrderType
	quantity, unitPrice       int64
	status                    contract.OrderStatus
	createdAt                 time.Time
}

// Fake is an in-memory ledger.DB. The zero value is not usable; build one
// with New.
type Fake struct {
	mu           sync.Mutex
	accounts     map[string]*account
	transactions map[string]*transaction
	assets       map[string]*asset
	orders       map[string]*order

	// BeforeConditionalUpdate, if set, runs just before the conditional
	// balance_accounts update evaluates its WHERE clause. Tests use it to
	// simulate a write racing the read that already happened inside the
	// same mutate call, to exercise the lost-update path deterministically.
	BeforeConditionalUpdate func()
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		accounts:     make(map[string]*account),
		transactions: make(map[string]*transaction),
		assets:       make(map[string]*asset),
		orders:       make(map[string]*order),
	}
}

// SeedAsset inserts a an asset row directly, bypassing SQL.
func (f *Fake) SeedAsset(a contract.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[a.AssetID] = &asset{
		assetID:   a.AssetID,
		category:  a.Category,
		name:      a.Name,
		unitPrice: a.UnitPrice,
		quantity:  a.Quantity,
		updatedAt: a.UpdatedAt,
	}
}

// SeedAccount sets subject's balance directly, bypassing SQL.
func (f *Fake) SeedAccount(subject string, balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[subject] = &account{balance: balance, updatedAt: time.Now(), exists: true}
}

// Account returns subject's current in-memory balance, for assertions.
func (f *Fake) Account(subject string) (balance int64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[subject]
	if !ok {
		return 0, false
	}
	return a.balance, true
}

// TransactionStatus returns the recorded status of a transaction, for
// assertions.
func (f *Fake) TransactionStatus(txID string) (contract.TransactionStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[txID]
	if !ok {
		return "", false
	}
	return t.status, true
}

// AssetQuantity returns an asset's current in-memory quantity, for
// assertions.
func (f *Fake) AssetQuantity(assetID string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[assetID]
	if !ok {
		return 0, false
	}
	return a.quantity, true
}

var _ ledger.DB = (*Fake)(nil)

// Begin starts a no-isolation transaction: writes land in the same maps
// immediately, and Commit/Rollback are no-ops. That's enough to exercise
// the business logic in pkg/ledger's mutate, which is what these fakes are
// for, without reimplementing Postgres MVCC.
func (f *Fake) Begin(ctx context.Context) (ledger.Tx, error) {
	return fakeTx{f: f}, nil
}

func (f *Fake) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.exec(sql, args)
}

func (f *Fake) QueryRow(ctx context.Context, sql string, args ...any) ledger.Row {
	return f.queryRow(sql, args)
}

func (f *Fake) Query(ctx context.Context, sql string, args ...any) (ledger.Rows, error) {
	return f.query(sql, args)
}

var _ ledger.Tx = fakeTx{}

type fakeTx struct {
	f *Fake
}

func (t fakeTx) QueryRow(ctx context.Context, sql string, args ...any) ledger.Row {
	return t.f.queryRow(sql, args)
}

func (t fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.f.exec(sql, args)
}

func (t fakeTx) Commit(ctx context.Context) error   { return nil }
func (t fakeTx) Rollback(ctx context.Context) error { return nil }

func (f *Fake) exec(sql string, args []any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO balance_transactions"):
		return f.insertBalanceTransaction(args)
	case strings.Contains(sql, "UPDATE balance_accounts"):
		return f.updateBalanceAccount(args)
	case strings.Contains(sql, "UPDATE balance_transactions"):
		return f.updateBalanceTransactionStatus(args)
	case strings.Contains(sql, "UPDATE assets"):
		return f.updateAssetQuantity(args)
	case strings.Contains(sql, "INSERT INTO orders"):
		return f.insertOrder(args)
	default:
		return pgconn.CommandTag{}, fmt.Errorf("ledgertest: unrecognized exec: %s", sql)
	}
}

func (f *Fake) queryRow(sql string, args []any) ledger.Row {
	switch {
	case strings.Contains(sql, "INSERT INTO balance_accounts"):
		return f.insertBalanceAccountReturning(args)
	case strings.Contains(sql, "FROM balance_accounts"):
		// No real row locking is modeled; FOR UPDATE and plain reads both
		// resolve against the same in-memory map.
		return f.selectBalanceAccount(args)
	case strings.Contains(sql, "FROM assets"):
		return f.selectAsset(args)
	case strings.Contains(sql, "FROM orders"):
		return f.selectOrder(args)
	default:
		return fakeRow{err: fmt.Errorf("ledgertest: unrecognized query row: %s", sql)}
	}
}

func (f *Fake) query(sql string, args []any) (ledger.Rows, error) {
	switch {
	case strings.Contains(sql, "FROM balance_transactions"):
		return f.selectTransactions(args), nil
	case strings.Contains(sql, "FROM orders"):
		return f.selectOrders(args), nil
	default:
		return nil, fmt.Errorf("ledgertest: unrecognized query: %s", sql)
	}
}

func (f *Fake) insertBalanceAccountReturning(args []any) ledger.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	subject := args[0].(string)
	now := time.Now()
	f.accounts[subject] = &account{balance: 0, updatedAt: now, exists: true}
	return fakeRow{vals: []any{int64(0), now}}
}

func (f *Fake) insertBalanceTransaction(args []any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txID := args[0].(string)
	f.transactions[txID] = &transaction{
		id:            txID,
		subject:       args[1].(string),
		kind:          args[2].(contract.TransactionKind),
		amount:        args[3].(int64),
		status:        args[4].(contract.TransactionStatus),
		createdAt:     time.Now(),
		linkedOrderID: args[5].(*string),
		reason:        args[6].(string),
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *Fake) updateBalanceAccount(args []any) (pgconn.CommandTag, error) {
	if f.BeforeConditionalUpdate != nil {
		f.BeforeConditionalUpdate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	newBalance := args[0].(int64)
	subject := args[1].(string)
	expected := args[2] // nil or time.Time, from nullableTime(updatedAt)

	acc, ok := f.accounts[subject]
	if !ok {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	if !matchesExpectedUpdatedAt(acc.updatedAt, expected) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	acc.balance = newBalance
	acc.updatedAt = time.Now()
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func matchesExpectedUpdatedAt(current time.Time, expected any) bool {
	if expected == nil {
		return current.IsZero()
	}
	t, ok := expected.(time.Time)
	if !ok {
		return false
	}
	return current.Equal(t)
}

func (f *Fake) updateBalanceTransactionStatus(args []any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := args[0].(contract.TransactionStatus)
	txID := args[1].(string)
	t, ok := f.transactions[txID]
	if !ok {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	t.status = status
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *Fake) updateAssetQuantity(args []any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delta := args[0].(int64)
	assetID := args[1].(string)
	a, ok := f.assets[assetID]
	if !ok || a.quantity+delta < 0 {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	a.quantity += delta
	a.updatedAt = time.Now()
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *Fake) insertOrder(args []any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	createdAt, _ := args[8].(time.Time)
	f.orders[args[0].(string)] = &order{
		orderID:   args[0].(string),
		subject:   args[1].(string),
		assetID:   args[2].(string),
		side:      args[3].(contract.OrderSide),
		typ:       args[4].(contract.OrderType),
		quantity:  args[5].(int64),
		unitPrice: args[6].(int64),
		status:    args[7].(contract.OrderStatus),
		createdAt: createdAt,
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *Fake) selectBalanceAccount(args []any) ledger.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	subject := args[0].(string)
	a, ok := f.accounts[subject]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: []any{a.balance, a.updatedAt}}
}

func (f *Fake) selectAsset(args []any) ledger.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	assetID := args[0].(string)
	a, ok := f.assets[assetID]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: []any{a.assetID, a.category, a.name, a.unitPrice, a.quantity, a.updatedAt}}
}

func (f *Fake) selectOrder(args []any) ledger.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	orderID := args[0].(string)
	subject := args[1].(string)
	o, ok := f.orders[orderID]
	if !ok || o.subject != subject {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{vals: []any{o.orderID, o.subject, o.assetID, o.side, o.typ, o.quantity, o.unitPrice, o.status, o.createdAt}}
}

func (f *Fake) selectTransactions(args []any) *fakeRows {
	f.mu.Lock()
	defer f.mu.Unlock()
	subject := args[0].(string)
	before := asBeforeTime(args[1])
	limit := args[2].(int)

	var matched []*transaction
	for _, t := range f.transactions {
		if t.subject == subject && (before == nil || t.createdAt.Before(*before)) {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].createdAt.After(matched[j].createdAt) })
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	data := make([][]any, len(matched))
	for i, t := range matched {
		data[i] = []any{t.id, t.subject, t.kind, t.amount, t.status, t.createdAt, t.linkedOrderID, t.reason}
	}
	return &fakeRows{data: data}
}

func (f *Fake) selectOrders(args []any) *fakeRows {
	f.mu.Lock()
	defer f.mu.Unlock()
	subject := args[0].(string)
	before := asBeforeTime(args[1])
	limit := args[2].(int)

	var matched []*order
	for _, o := range f.orders {
		if o.subject == subject && (before == nil || o.createdAt.Before(*before)) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].createdAt.After(matched[j].createdAt) })
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	data := make([][]any, len(matched))
	for i, o := range matched {
		data[i] = []any{o.orderID, o.subject, o.assetID, o.side, o.typ, o.quantity, o.unitPrice, o.status, o.createdAt}
	}
	return &fakeRows{data: data}
}

// asBeforeTime normalizes the keyset-pagination cursor argument, which
// callers pass as either a nil *time.Time or a concrete one.
func asBeforeTime(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case *time.Time:
		return t
	case time.Time:
		return &t
	default:
		return nil
	}
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(dest, r.vals)
}

type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("ledgertest: Scan called without Next")
	}
	return scanInto(dest, r.data[r.idx-1])
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

// scanInto assigns vals into dest positionally via reflection, so the fake
// doesn't need a type-switch case per named contract.* string type.
func scanInto(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("ledgertest: scan mismatch: %d destinations, %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		rv := reflect.ValueOf(d)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return fmt.Errorf("ledgertest: scan destination %d is not a non-nil pointer", i)
		}
		elem := rv.Elem()
		v := vals[i]
		if v == nil {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		vv := reflect.ValueOf(v)
		if !vv.Type().ConvertibleTo(elem.Type()) {
			return fmt.Errorf("ledgertest: cannot scan %T into %T", v, d)
		}
		elem.Set(vv.Convert(elem.Type()))
	}
	return nil
}
