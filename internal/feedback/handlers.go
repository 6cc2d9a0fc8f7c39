package feedback

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/store"
)

// Handler wires the review flow to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// Submit records one review for an ended event.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p := common.PrincipalFrom(r.Context())
	if p.Email == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to leave a review", nil)
		return
	}
	var payload SubmitInput
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
	review, err := h.Svc.Submit(r.Context(), p.Email, payload)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		case errors.Is(err, ErrAlreadyReviewed):
			common.JSONError(w, http.StatusConflict, "ALREADY_REVIEWED", err.Error(), nil)
		case errors.Is(err, ErrNotAttendee), errors.Is(err, ErrEventNotEnded):
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		case errors.Is(err, ErrInvalidInput):
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		}
		return
	}
	common.JSONData(w, http.StatusCreated, presentReview(review))
}

// List returns an event's reviews with the aggregate stats.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	event, err := h.Svc.Q.GetEventBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "event not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	reviews, err := h.Svc.Q.ListReviewsByEvent(r.Context(), event.ID, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	stats, err := h.Svc.Q.GetReviewStats(r.Context(), event.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, presentReview(rv))
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"reviews": out,
		"stats": map[string]any{
			"count":   stats.Count,
			"average": stats.Average,
		},
	})
}

func presentReview(r store.Review) map[string]any {
	return map[string]any{
		"id":        r.ID.String(),
		"rating":    r.Rating,
		"comment":   r.Comment,
		"createdAt": r.CreatedAt,
	}
}
