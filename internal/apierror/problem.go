// Package apierror implements the RFC-7807 error envelope, plus the
// machine-readable error codes every component in the coordination core
// surfaces.
package apierror

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tradecore/platform/internal/httpserver/reqid"
)

const problemBase = "https://errors.tradecore.dev"

// FieldError describes a single validation failure, one entry of the
// envelope's errors list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Problem is the RFC-7807 error envelope.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Code     string       `json:"code"`
	Errors   []FieldError `json:"errors,omitempty"`
}

func problem(status int, kind, code, title, detail string) *Problem {
	return &Problem{
		Type:   problemBase + "/" + kind,
		Title:  title,
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

// AuthMissing: 401, missing or malformed Authorization header.
func AuthMissing() *Problem {
	return problem(http.StatusUnauthorized, "authentication-error", "AUTH_MISSING",
		"Authentication required", "no valid Authorization header was presented")
}

// AuthExpired: 401, token past expires_at.
func AuthExpired() *Problem {
	return problem(http.StatusUnauthorized, "authentication-error", "AUTH_EXPIRED",
		"Token expired", "the bearer token has expired")
}

// AuthRevoked: 401, token fingerprint present in the denylist.
func AuthRevoked() *Problem {
	return problem(http.StatusUnauthorized, "authentication-error", "AUTH_REVOKED",
		"Token revoked", "the bearer token was revoked by logout")
}

// AuthInvalid: 401, malformed/bad-signature token.
func AuthInvalid(detail string) *Problem {
	return problem(http.StatusUnauthorized, "authentication-error", "AUTH_INVALID",
		"Invalid token", detail)
}

// Forbidden: 403, role mismatch.
func Forbidden(detail string) *Problem {
	return problem(http.StatusForbidden, "permission-error", "PERM_FORBIDDEN",
		"Forbidden", detail)
}

// IPBlocked: 403, source address blocked by the IP block guard.
func IPBlocked(detail string) *Problem {
	return problem(http.StatusForbidden, "authentication-error", "IP_BLOCKED",
		"Source blocked", detail)
}

// Validation: 422, field-level validation failures.
func Validation(errs []FieldError) *Problem {
	p := problem(http.StatusUnprocessableEntity, "validation-error", "VALIDATION_FAILED",
		"Validation failed", "one or more fields failed validation")
	p.Errors = errs
	return p
}

// NotFound: 404, unmatched route or missing entity.
func NotFound(detail string) *Problem {
	return problem(http.StatusNotFound, "not-found", "NOT_FOUND", "Not found", detail)
}

// Conflict: 409, duplicate create.
func Conflict(detail string) *Problem {
	return problem(http.StatusConflict, "conflict", "CONFLICT", "Conflict", detail)
}

// RateLimited: 429, budget exceeded (headers are set separately by the caller).
func RateLimited() *Problem {
	return problem(http.StatusTooManyRequests, "rate-limited", "RATE_LIMITED",
		"Too many requests", "the request rate limit was exceeded")
}

// InsufficientFunds: 422, balance too low for a debit.
func InsufficientFunds() *Problem {
	return problem(http.StatusUnprocessableEntity, "insufficient-funds", "INSUFFICIENT_FUNDS",
		"Insufficient funds", "the account balance is insufficient for this transaction")
}

// OutOfStock: 409, the asset's available quantity cannot cover the order.
// Distinct from InsufficientFunds: the buyer's balance is fine, the stock
// is not, and retrying after a top-up would not help.
func OutOfStock(detail string) *Problem {
	return problem(http.StatusConflict, "out-of-stock", "ASSET_OUT_OF_STOCK",
		"Asset out of stock", detail)
}

// ServiceUnavailable: 503, breaker open / lock wait exhausted / transient 5xx.
func ServiceUnavailable(detail string) *Problem {
	return problem(http.StatusServiceUnavailable, "service-unavailable", "SERVICE_UNAVAILABLE",
		"Service unavailable", detail)
}

// BadGateway: 502, proxy-level network failure.
func BadGateway(detail string) *Problem {
	return problem(http.StatusBadGateway, "gateway-error", "BAD_GATEWAY", "Bad gateway", detail)
}

// GatewayTimeout: 504, downstream did not respond within budget.
func GatewayTimeout(detail string) *Problem {
	return problem(http.StatusGatewayTimeout, "gateway-error", "GATEWAY_TIMEOUT", "Gateway timeout", detail)
}

// BadRequest: 400, malformed request body.
func BadRequest(detail string) *Problem {
	return problem(http.StatusBadRequest, "bad-request", "BAD_REQUEST", "Bad request", detail)
}

// Internal: 500, unexpected failure; detail is never leaked to the client.
func Internal() *Problem {
	return problem(http.StatusInternalServerError, "internal-error", "INTERNAL_ERROR",
		"Internal server error", "an unexpected error occurred")
}

// Write encodes p as the HTTP response body with Content-Type
// application/problem+json, per RFC-7807.
func Write(w http.ResponseWriter, r *http.Request, p *Problem) {
	if r != nil {
		p.Instance = reqid.FromContext(r.Context())
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("encoding problem response", "error", err)
	}
}
