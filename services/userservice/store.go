package userservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradecore/platform/pkg/contract"
)

const userColumns = `subject, email, password_hash, role, created_at`

// Store provides database operations for users, backed by the global pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a user Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanUserRow(row pgx.Row) (contract.User, error) {
	var u contract.User
	err := row.Scan(&u.Subject, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

// Create inserts a new user. Returns contract.ErrDuplicateEmail on a unique
// violation.
func (s *Store) Create(ctx context.Context, u contract.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		u.Subject, u.Email, u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return contract.ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetByEmail looks up a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (contract.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.User{}, contract.ErrUserNotFound
	}
	if err != nil {
		return contract.User{}, fmt.Errorf("loading user by email: %w", err)
	}
	return u, nil
}

// GetBySubject looks up a user by subject.
func (s *Store) GetBySubject(ctx context.Context, subject string) (contract.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE subject = $1`, subject)
	u, err := scanUserRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return contract.User{}, contract.ErrUserNotFound
	}
	if err != nil {
		return contract.User{}, fmt.Errorf("loading user by subject: %w", err)
	}
	return u, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505), without pulling in the pgconn error type for
// just this one check.
func isUniqueViolation(err error) bool {
	type sqlStater interface{ SQLState() string }
	var se sqlStater
	if errors.As(err, &se) {
		return se.SQLState() == "23505"
	}
	return false
}
