// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"prestalib/internal/httpx"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	service Service
	logger  zerolog.Logger
}

func NewHandler(service Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("handler", "catalog").Logger(),
	}
}

// RegisterRoutes mounts the catalog endpoints. Copy deletion is owned by the
// retirement handler.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/libros", h.createCopy)
	r.Get("/api/libros", h.listCopies)
	r.Get("/api/libros/{id}", h.getCopy)
	r.Put("/api/libros/{id}", h.updateCopy)
	r.Get("/api/libros/{id}/logico", h.getLogicalItem)
	r.Get("/api/logicos", h.listLogicalItems)
	r.Get("/api/inventario/resumen", h.categorySummary)
}

func (h *Handler) createCopy(w http.ResponseWriter, r *http.Request) {
	var input CopyInput
	if err := httpx.Decode(r, &input); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.service.CreateCopy(r.Context(), input)
	if err != nil {
		h.logger.Error().Err(err).Msg("create copy failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": rec.ID, "libro": rec})
}

func (h *Handler) listCopies(w http.ResponseWriter, r *http.Request) {
	recs, err := h.service.ListCopies(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list copies failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, recs)
}

func (h *Handler) getCopy(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetCopy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, rec)
}

func (h *Handler) updateCopy(w http.ResponseWriter, r *http.Request) {
	var patch CopyPatch
	if err := httpx.Decode(r, &patch); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.UpdateCopy(r.Context(), id, patch); err != nil {
		h.logger.Error().Err(err).Str("copy_id", id).Msg("update copy failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}

func (h *Handler) getLogicalItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.ResolveLogicalItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, item)
}

func (h *Handler) listLogicalItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLogicalItems(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list logical items failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) categorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CategorySummary(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("category summary failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, summary)
}
