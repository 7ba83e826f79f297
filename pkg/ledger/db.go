package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is the single-row result of a QueryRow call. *pgxpool.Pool and pgx.Tx
// both satisfy it through their own (wider) pgx.Row return type.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a multi-row result set, narrowed to the methods this package and
// pkg/orders actually drive.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Tx is the subset of pgx.Tx a ledger mutation drives a transaction
// through.
type Tx interface {
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB is the subset of *pgxpool.Pool that pkg/ledger and pkg/orders need.
// Narrowing it to an interface (rather than depending on *pgxpool.Pool
// directly) lets tests substitute an in-memory fake for a live Postgres
// connection.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// pgxDB adapts *pgxpool.Pool to DB. pgx.Tx's fuller method set is a
// superset of Tx's, and pgx.Row/pgx.Rows are likewise supersets of Row/
// Rows, so the only wrapping this adapter needs to do is around Begin's
// returned transaction, to narrow its QueryRow's return type to Row.
type pgxDB struct {
	pool *pgxpool.Pool
}

// NewPgxDB wraps a live pool as a DB, for production wiring.
func NewPgxDB(pool *pgxpool.Pool) DB {
	return pgxDB{pool: pool}
}

func (d pgxDB) Begin(ctx context.Context) (Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return pgxTx{tx: tx}, nil
}

func (d pgxDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return d.pool.Exec(ctx, sql, args...)
}

func (d pgxDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return d.pool.QueryRow(ctx, sql, args...)
}

func (d pgxDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return d.pool.Query(ctx, sql, args...)
}

type pgxTx struct {
	tx pgx.Tx
}

func (t pgxTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t pgxTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t pgxTx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }

func (t pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }
