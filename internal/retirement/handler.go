// internal/retirement/handler.go
package retirement

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"prestalib/internal/httpx"
)

// Handler exposes retirement and the history trail over HTTP.
type Handler struct {
	service Service
	logger  zerolog.Logger
}

func NewHandler(service Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("handler", "retirement").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Delete("/api/libros/{id}", h.retire)
	r.Get("/api/historial", h.listHistory)
	r.Get("/api/historial/{id}", h.getHistory)
}

func (h *Handler) retire(w http.ResponseWriter, r *http.Request) {
	// The body is optional; a bare DELETE retires with no audit fields.
	var input RetireInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := httpx.Decode(r, &input); err != nil {
			httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	record, err := h.service.Retire(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		h.logger.Error().Err(err).Msg("retire failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": record.ID, "historial": record})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListHistory(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list history failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, records)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, record)
}
