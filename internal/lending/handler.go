// internal/lending/handler.go
package lending

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"prestalib/internal/httpx"
)

// Handler exposes the loan state machine over HTTP.
type Handler struct {
	service Service
	logger  zerolog.Logger
}

func NewHandler(service Service, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With().Str("handler", "lending").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/prestamos", h.requestLoan)
	r.Post("/api/prestamos/manual", h.manualLoan)
	r.Get("/api/prestamos", h.listLoans)
	r.Get("/api/prestamos/{id}", h.getLoan)
	r.Post("/api/prestamos/{id}/aprobar", h.approve)
	r.Post("/api/prestamos/{id}/rechazar", h.reject)
	r.Post("/api/prestamos/{id}/devolver", h.returnLoan)
}

func (h *Handler) requestLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.service.RequestLoan(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("loan request failed")
		httpx.RespondServiceError(w, err)
		return
	}

	if outcome.Waitlisted != nil {
		httpx.RespondJSON(w, http.StatusAccepted, map[string]interface{}{
			"ok": true, "en_espera": true, "id": outcome.Waitlisted.ID, "entrada": outcome.Waitlisted,
		})
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"ok": true, "id": outcome.Loan.ID, "prestamo": outcome.Loan,
	})
}

func (h *Handler) manualLoan(w http.ResponseWriter, r *http.Request) {
	var req LoanRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.service.CreateManualLoan(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("manual loan failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusCreated, map[string]interface{}{"ok": true, "id": loan.ID, "prestamo": loan})
}

func (h *Handler) listLoans(w http.ResponseWriter, r *http.Request) {
	filter := LoanFilter{
		Status:   r.URL.Query().Get("estado"),
		CopyID:   r.URL.Query().Get("elemento"),
		Borrower: r.URL.Query().Get("usuario"),
	}
	loans, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("list loans failed")
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, loans)
}

func (h *Handler) getLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, loan)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(string) (*LoanRecord, error)) {
	id := chi.URLParam(r, "id")
	loan, err := op(id)
	if err != nil {
		httpx.RespondServiceError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "id": loan.ID, "prestamo": loan})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id string) (*LoanRecord, error) { return h.service.Approve(r.Context(), id) })
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id string) (*LoanRecord, error) { return h.service.Reject(r.Context(), id) })
}

func (h *Handler) returnLoan(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id string) (*LoanRecord, error) { return h.service.Return(r.Context(), id) })
}
