package httpserver

import (
	"encoding/json"
	"net/http"
)

// Respond writes v as a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the shape written by RespondError, kept distinct from
// internal/apierror.Problem: RespondError is used only by gateway-local
// endpoints (health, readiness) that precede routing and so have no
// RFC-7807 instance/request-id context to stamp.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondError writes a simple {error, message} JSON body. Domain handlers
// under /api/v1 use internal/apierror.Write for the RFC-7807 envelope
// instead; this is reserved for gateway-local endpoints.
func RespondError(w http.ResponseWriter, status int, errCode, message string) {
	Respond(w, status, errorBody{Error: errCode, Message: message})
}
