// internal/members/handler.go
package members

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"prestalib/internal/httpx"
)

// Handler exposes the membership registry over HTTP.
type Handler struct {
	service Service
	logger  zerolog.Logger
}

func NewHandler(service Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("handler", "members").Logger(),
	}
}

// RegisterRoutes mounts the membership endpoints. The {ref} segment accepts
// an id, document number or username.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/usuarios", h.registerMember)
	r.Get("/api/usuarios", h.listMembers)
	r.Get("/api/usuarios/{ref}", h.getMember)
	r.Put("/api/usuarios/{ref}", h.updateMember)
	r.Delete("/api/usuarios/{ref}", h.deleteMember)
}

func (h *Handler) registerMember(w http.ResponseWriter, r *http.Request) {
	var input MemberInput
	if err := httpx.Decode(r, &input); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.service.RegisterMember(r.Context(), input)
	if err != nil {
		h.logger.Error().Err(err).Msg("register member failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": member.ID, "usuario": member})
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list members failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, list)
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.GetMember(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, member)
}

func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	var patch MemberPatch
	if err := httpx.Decode(r, &patch); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member, err := h.service.UpdateMember(r.Context(), chi.URLParam(r, "ref"), patch)
	if err != nil {
		h.logger.Error().Err(err).Msg("update member failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": member.ID, "usuario": member})
}

func (h *Handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if err := h.service.DeleteMember(r.Context(), ref); err != nil {
		h.logger.Error().Err(err).Msg("delete member failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
