// internal/favorites/handler.go
package favorites

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"prestalib/internal/httpx"
)

// Handler exposes favorites over HTTP.
type Handler struct {
	service Service
	logger  zerolog.Logger
}

func NewHandler(service Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("handler", "favorites").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/favoritos", h.addFavorite)
	r.Get("/api/favoritos", h.listFavorites)
	r.Delete("/api/favoritos/{id_elemento}", h.removeFavorite)
}

func (h *Handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	var input FavoriteInput
	if err := httpx.Decode(r, &input); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fav, err := h.service.AddFavorite(r.Context(), input)
	if err != nil {
		h.logger.Error().Err(err).Msg("add favorite failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": fav.ID, "favorito": fav})
}

func (h *Handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.service.ListFavorites(r.Context(), r.URL.Query().Get("usuario"))
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, favs)
}

func (h *Handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	element := chi.URLParam(r, "id_elemento")
	user := r.URL.Query().Get("usuario")
	if err := h.service.RemoveFavorite(r.Context(), user, element); err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id_elemento": element})
}
