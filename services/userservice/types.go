package userservice

import "time"

// RegisterRequest is the register_user wire shape.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the login wire shape.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
}

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// BalanceResponse is returned by GET /balance.
type BalanceResponse struct {
	Subject       string    `json:"subject"`
	CurrentAmount int64     `json:"current_amount"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AmountRequest is the deposit/withdraw wire shape.
type AmountRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// TransactionResult is returned by deposit/withdraw.
type TransactionResult struct {
	TransactionID string `json:"transaction_id"`
	NewBalance    int64  `json:"new_balance"`
}
