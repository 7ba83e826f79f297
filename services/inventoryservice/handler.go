package inventoryservice

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradecore/platform/internal/apierror"
	"github.com/tradecore/platform/internal/httpserver"
	"github.com/tradecore/platform/pkg/contract"
)

// Handler provides the public, unauthenticated inventory read endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates an inventory Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes returns a chi.Router with every inventoryservice route mounted.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/inventory/assets", h.handleList)
	r.Get("/inventory/assets/{id}", h.handleGet)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		apierror.Write(w, r, apierror.BadRequest(err.Error()))
		return
	}
	category := r.URL.Query().Get("category")

	assets, total, err := h.service.List(r.Context(), category, params.PageSize, params.Offset)
	if err != nil {
		h.logger.Error("listing assets", "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	out := make([]AssetResponse, len(assets))
	for i, a := range assets {
		out[i] = toAssetResponse(a)
	}

	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(out, params, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "id")

	asset, err := h.service.Get(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, contract.ErrAssetNotFound) {
			apierror.Write(w, r, apierror.NotFound("asset not found"))
			return
		}
		h.logger.Error("loading asset", "asset_id", assetID, "error", err)
		apierror.Write(w, r, apierror.Internal())
		return
	}

	httpserver.Respond(w, http.StatusOK, toAssetResponse(asset))
}
