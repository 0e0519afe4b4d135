// internal/waitlist/handler.go
package waitlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"prestalib/internal/httpx"
	"prestalib/internal/resolver"
)

// Handler exposes the waitlist over HTTP.
type Handler struct {
	service  Service
	resolver *resolver.Resolver
	logger   zerolog.Logger
}

func NewHandler(service Service, res *resolver.Resolver, logger zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		resolver: res,
		logger:   logger.With().Str("handler", "waitlist").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/espera", h.enqueue)
	r.Get("/api/espera", h.list)
	r.Post("/api/espera/{id}/notificar", h.notify)
}

type enqueueRequest struct {
	Element string `json:"elemento"`
	UserRef string `json:"id_usuario"`
	Contact string `json:"contacto"`
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	copyID, err := h.resolver.ResolveCopyID(r.Context(), req.Element)
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	userRef, err := h.resolver.ResolveBorrower(r.Context(), req.UserRef)
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}

	entry, err := h.service.Enqueue(r.Context(), copyID, userRef, req.Contact)
	if err != nil {
		h.logger.Error().Err(err).Msg("enqueue failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": entry.ID, "entrada": entry})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	copyID := ""
	if ref := r.URL.Query().Get("elemento"); ref != "" {
		resolved, err := h.resolver.ResolveCopyID(r.Context(), ref)
		if err != nil {
			httpx.RespondServiceError(w, err)
			return
		}
		copyID = resolved
	}

	entries, err := h.service.List(r.Context(), copyID)
	if err != nil {
		h.logger.Error().Err(err).Msg("list waitlist failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.MarkNotified(r.Context(), id); err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": id})
}
