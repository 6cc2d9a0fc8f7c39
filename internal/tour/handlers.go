package tour

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/store"
)

// Queries lists the store operations the tour endpoints read from.
type Queries interface {
	ListTours(ctx context.Context, limit, offset int32) ([]store.Tour, error)
	GetTourByID(ctx context.Context, id uuid.UUID) (store.Tour, error)
	ListTourSessions(ctx context.Context, tourID uuid.UUID) ([]store.TourSession, error)
}

// Handler exposes the tour catalogue and the booking endpoint.
type Handler struct {
	Q        Queries
	Svc      *Service
	Validate *validator.Validate
}

// List returns active tours.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	tours, err := h.Q.ListTours(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(tours))
	for _, t := range tours {
		out = append(out, map[string]any{
			"id":          t.ID.String(),
			"slug":        t.Slug,
			"title":       t.Title,
			"description": t.Description,
			"price":       t.Price,
		})
	}
	common.JSONData(w, http.StatusOK, out)
}

// Sessions returns the upcoming sessions of one tour with remaining
// capacity.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tour id", nil)
		return
	}
	if _, err := h.Q.GetTourByID(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "tour not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	sessions, err := h.Q.ListTourSessions(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, map[string]any{
			"id":        s.ID.String(),
			"startsAt":  s.StartsAt,
			"capacity":  s.Capacity,
			"remaining": s.Capacity - s.BookedCount,
		})
	}
	common.JSONData(w, http.StatusOK, out)
}

// Book reserves spots on a session.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tour service not configured", nil)
		return
	}
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid session id", nil)
		return
	}
	var payload BookInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
	}
	booking, err := h.Svc.Book(r.Context(), sessionID, payload)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		case errors.Is(err, ErrInsufficientSpots):
			common.JSONError(w, http.StatusUnprocessableEntity, "INSUFFICIENT_SPOTS", err.Error(), nil)
		case errors.Is(err, ErrInvalidInput):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		}
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"bookingId": booking.ID.String(),
		"sessionId": booking.SessionID.String(),
		"spots":     booking.Spots,
		"status":    booking.Status,
	})
}
