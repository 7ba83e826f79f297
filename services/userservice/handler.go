package userservice

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tradecore/platform/internal/apierror"
	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/internal/httpserver"
	"github.com/tradecore/platform/internal/lock"
	"github.com/tradecore/platform/pkg/contract"
)

// Handler provides HTTP handlers for registration, login, and balance
// endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a user Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with every userservice route mounted. The
// gateway strips the /api/v1 prefix before forwarding, so routes here are
// mounted without it.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	// The gateway already enforces per-route auth; these guards keep the
	// service safe when addressed directly.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireAuth)
		pr.Post("/auth/logout", h.handleLogout)
		pr.Get("/auth/me", h.handleMe)
	})
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireMinRole(auth.RoleCustomer))
		pr.Get("/balance", h.handleBalance)
		pr.Post("/balance/deposit", h.handleDeposit)
		pr.Post("/balance/withdraw", h.handleWithdraw)
		pr.Get("/balance/transactions", h.handleTransactions)
	})
	return r
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, contract.ErrDuplicateEmail) {
			apierror.Write(w, r, apierror.Conflict("an account with this email already exists"))
			return
		}
		h.logger.Error("registering user", "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		apierror.Write(w, r, apierror.AuthInvalid("email or password is incorrect"))
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	bearer := r.Header.Get("Authorization")
	if err := h.service.Logout(r.Context(), bearer, id.ExpiresAt); err != nil {
		h.logger.Error("revoking token", "subject", id.Subject, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusNoContent, nil)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	resp, err := h.service.Me(r.Context(), id.Subject)
	if err != nil {
		apierror.Write(w, r, apierror.NotFound("user not found"))
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	resp, err := h.service.Balance(r.Context(), id.Subject)
	if err != nil {
		h.logger.Error("loading balance", "subject", id.Subject, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	var req AmountRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Deposit(r.Context(), id.Subject, req.Amount)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			apierror.Write(w, r, apierror.ServiceUnavailable("balance is busy, retry shortly"))
			return
		}
		h.logger.Error("depositing", "subject", id.Subject, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	var req AmountRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Withdraw(r.Context(), id.Subject, req.Amount)
	if err != nil {
		if errors.Is(err, contract.ErrInsufficientFunds) {
			apierror.Write(w, r, apierror.InsufficientFunds())
			return
		}
		if errors.Is(err, lock.ErrTimeout) {
			apierror.Write(w, r, apierror.ServiceUnavailable("balance is busy, retry shortly"))
			return
		}
		h.logger.Error("withdrawing", "subject", id.Subject, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusOK, resp)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	params, err := httpserver.ParseCursorParams(r)
	if err != nil {
		apierror.Write(w, r, apierror.BadRequest(err.Error()))
		return
	}
	var before *time.Time
	if params.After != nil {
		before = &params.After.CreatedAt
	}

	// Fetch one extra row so the page envelope can tell whether more exist.
	items, err := h.service.Transactions(r.Context(), id.Subject, params.Limit+1, before)
	if err != nil {
		h.logger.Error("listing transactions", "subject", id.Subject, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	page := httpserver.NewCursorPage(items, params.Limit, func(t contract.BalanceTransaction) httpserver.Cursor {
		txID, _ := uuid.Parse(t.TransactionID)
		return httpserver.Cursor{CreatedAt: t.CreatedAt, ID: txID}
	})
	httpserver.Respond(w, http.StatusOK, page)
}
