package userservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/pkg/contract"
	"github.com/tradecore/platform/pkg/ledger"
)

// Service implements register/login/logout/me and the balance endpoints.
type Service struct {
	store    *Store
	ledger   *ledger.Ledger
	verifier *auth.TokenVerifier
	tokenTTL time.Duration
}

// NewService creates a user Service.
func NewService(store *Store, led *ledger.Ledger, verifier *auth.TokenVerifier, tokenTTL time.Duration) *Service {
	return &Service{store: store, ledger: led, verifier: verifier, tokenTTL: tokenTTL}
}

// Register creates a new customer account and returns a signed token, same
// as Login would for the new account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("hashing password: %w", err)
	}

	u := contract.User{
		Subject:      uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         auth.RoleCustomer,
		CreatedAt:    time.Now(),
	}
	if err := s.store.Create(ctx, u); err != nil {
		return AuthResponse{}, err
	}

	return s.issueToken(u)
}

// Login verifies credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	u, err := s.store.GetByEmail(ctx, req.Email)
	if err != nil {
		return AuthResponse{}, contract.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return AuthResponse{}, contract.ErrUserNotFound
	}

	return s.issueToken(u)
}

func (s *Service) issueToken(u contract.User) (AuthResponse, error) {
	raw, expiresAt, err := s.verifier.Issue(u.Subject, u.Role, s.tokenTTL)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("issuing token: %w", err)
	}
	return AuthResponse{Token: raw, ExpiresAt: expiresAt, Subject: u.Subject, Role: u.Role}, nil
}

// Logout revokes the presented bearer token for its remaining lifetime.
func (s *Service) Logout(ctx context.Context, bearer string, expiresAt time.Time) error {
	remaining := time.Until(expiresAt)
	return s.verifier.RevokeToken(ctx, bearer, remaining)
}

// Me returns the caller's profile.
func (s *Service) Me(ctx context.Context, subject string) (MeResponse, error) {
	u, err := s.store.GetBySubject(ctx, subject)
	if err != nil {
		return MeResponse{}, err
	}
	return MeResponse{Subject: u.Subject, Email: u.Email, Role: u.Role}, nil
}

// Balance returns the caller's current balance.
func (s *Service) Balance(ctx context.Context, subject string) (BalanceResponse, error) {
	acct, err := s.ledger.Balance(ctx, subject)
	if err != nil {
		return BalanceResponse{}, err
	}
	return BalanceResponse{Subject: acct.Subject, CurrentAmount: acct.CurrentAmount, UpdatedAt: acct.UpdatedAt}, nil
}

// Deposit credits the caller's balance.
func (s *Service) Deposit(ctx context.Context, subject string, amount int64) (TransactionResult, error) {
	res, err := s.ledger.Credit(ctx, subject, amount, "deposit", nil)
	if err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{TransactionID: res.TransactionID, NewBalance: res.NewBalance}, nil
}

// Withdraw debits the caller's balance.
func (s *Service) Withdraw(ctx context.Context, subject string, amount int64) (TransactionResult, error) {
	res, err := s.ledger.Debit(ctx, subject, amount, "withdraw", nil)
	if err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{TransactionID: res.TransactionID, NewBalance: res.NewBalance}, nil
}

// Transactions lists the caller's ledger history, most recent first,
// starting below the optional cursor instant.
func (s *Service) Transactions(ctx context.Context, subject string, limit int, before *time.Time) ([]contract.BalanceTransaction, error) {
	return s.ledger.Transactions(ctx, subject, limit, before)
}
