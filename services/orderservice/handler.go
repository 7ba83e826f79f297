package orderservice

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
	"github.com/tradecore/platform/pkg/contract"
	"github.com/tradecore/platform/pkg/orders"
)

// Handler provides HTTP handlers for order commit, lookup, listing, and the
// portfolio aggregation endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an order Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with every orderservice route mounted. The
// gateway strips the /api/v1 prefix before forwarding, so routes here are
// mounted without it.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// The gateway already enforces per-route auth; these guards keep the
	// service safe when addressed directly.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireRole(auth.RoleCustomer, auth.RoleVIP, auth.RoleAdmin))
		pr.Post("/orders", h.handleCreate)
		pr.Get("/orders/{id}", h.handleGet)
		pr.Get("/orders", h.handleList)
	})
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireOwnerOrAdmin(func(r *http.Request) string {
			return chi.URLParam(r, "subject")
		}))
		pr.Get("/portfolio/{subject}", h.handlePortfolio)
	})
	return r
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	var req CreateOrderRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	order, err := h.service.Create(r.Context(), id.Subject, req)
	if err != nil {
		h.writeCreateError(w, r, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, orders.ErrLockBusy):
		apierror.Write(w, r, apierror.ServiceUnavailable("order lock contention, retry shortly"))
	case errors.Is(err, contract.ErrInsufficientFunds):
		apierror.Write(w, r, apierror.InsufficientFunds())
	case errors.Is(err, contract.ErrAssetOutOfStock):
		apierror.Write(w, r, apierror.OutOfStock("the asset's available quantity cannot cover this order"))
	case errors.Is(err, contract.ErrAssetNotFound):
		apierror.Write(w, r, apierror.NotFound("asset does not exist"))
	case errors.Is(err, contract.ErrInvalidOrder):
		apierror.Write(w, r, apierror.Validation([]apierror.FieldError{{Field: "order", Message: err.Error()}}))
	default:
		h.logger.Error("creating order", "error", err)
		apierror.Write(w, r, apierror.Internal())
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		apierror.Write(w, r, apierror.AuthMissing())
		return
	}

	orderID := chi.URLParam(r, "id")
	order, err := h.service.Get(r.Context(), id.Subject, orderID)
	if err != nil {
		if errors.Is(err, contract.ErrOrderNotFound) {
			apierror.Write(w, r, apierror.NotFound("order not found"))
			return
		}
		h.logger.Error("loading order", "order_id", orderID, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.service.List(r.Context(), id.Subject, params.Limit+1, before)
	if err != nil {
		h.logger.Error("listing orders", "subject", id.Subject, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	out := make([]OrderResponse, len(list))
	for i, o := range list {
		out[i] = toOrderResponse(o)
	}

	page := httpserver.NewCursorPage(out, params.Limit, func(o OrderResponse) httpserver.Cursor {
		orderID, _ := uuid.Parse(o.OrderID)
		return httpserver.Cursor{CreatedAt: o.CreatedAt, ID: orderID}
	})
	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	// Ownership is enforced by the RequireOwnerOrAdmin guard on this route.
	subject := chi.URLParam(r, "subject")

	portfolio, err := h.service.Portfolio(r.Context(), subject)
	if err != nil {
		h.logger.Error("loading portfolio", "subject", subject, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusOK, portfolio)
}
