package venue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/store"
)

// Queries lists the store operations the venue endpoints depend on.
type Queries interface {
	CreateVenueBooking(ctx context.Context, v store.VenueBooking) (store.VenueBooking, error)
	GetVenueBooking(ctx context.Context, id uuid.UUID) (store.VenueBooking, error)
	ListVenueBookings(ctx context.Context, status *string, limit, offset int32) ([]store.VenueBooking, error)
	UpdateVenueBooking(ctx context.Context, v store.VenueBooking) (store.VenueBooking, error)
}

// Handler takes venue-rental requests in and lets admins work them.
type Handler struct {
	Q        Queries
	Events   *events.Bus
	Validate *validator.Validate
}

type intakePayload struct {
	ContactName string `json:"contactName" validate:"required,min=2,max=128"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,max=32"`
	Date        string `json:"date" validate:"required"`
	Headcount   int32  `json:"headcount" validate:"required,gt=0,lte=500"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// Intake accepts the public booking-request form.
func (h *Handler) Intake(w http.ResponseWriter, r *http.Request) {
	var payload intakePayload
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
	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
		return
	}
	booking, err := h.Q.CreateVenueBooking(r.Context(), store.VenueBooking{
		ContactName: strings.TrimSpace(payload.ContactName),
		Email:       strings.ToLower(strings.TrimSpace(payload.Email)),
		Phone:       strings.TrimSpace(payload.Phone),
		Date:        date,
		Headcount:   payload.Headcount,
		Notes:       payload.Notes,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.TopicVenueBookingCreated, booking.ID, map[string]any{
			"bookingId":   booking.ID.String(),
			"contactName": booking.ContactName,
			"email":       booking.Email,
			"date":        booking.Date.Format("2006-01-02"),
			"headcount":   booking.Headcount,
		})
	}
	common.JSONData(w, http.StatusCreated, present(booking))
}

// List returns requests for the admin screen, optionally filtered by
// ?status=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	var status *string
	if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw != "" {
		if !validStatus(raw) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
			return
		}
		status = &raw
	}
	bookings, err := h.Q.ListVenueBookings(r.Context(), status, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, present(b))
	}
	common.JSONData(w, http.StatusOK, out)
}

// Get returns one request.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid booking id", nil)
		return
	}
	booking, err := h.Q.GetVenueBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "booking not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, present(booking))
}

type updatePayload struct {
	ContactName *string `json:"contactName" validate:"omitempty,min=2,max=128"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	Date        *string `json:"date"`
	Headcount   *int32  `json:"headcount" validate:"omitempty,gt=0,lte=500"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
	Status      *string `json:"status"`
}

// Update applies field edits and status moves from the admin screen.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid booking id", nil)
		return
	}
	var payload updatePayload
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
	booking, err := h.Q.GetVenueBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "booking not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	if payload.ContactName != nil {
		booking.ContactName = strings.TrimSpace(*payload.ContactName)
	}
	if payload.Email != nil {
		booking.Email = strings.ToLower(strings.TrimSpace(*payload.Email))
	}
	if payload.Phone != nil {
		booking.Phone = strings.TrimSpace(*payload.Phone)
	}
	if payload.Date != nil {
		date, err := time.Parse("2006-01-02", *payload.Date)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
			return
		}
		booking.Date = date
	}
	if payload.Headcount != nil {
		booking.Headcount = *payload.Headcount
	}
	if payload.Notes != nil {
		booking.Notes = *payload.Notes
	}
	if payload.Status != nil {
		next := strings.ToUpper(strings.TrimSpace(*payload.Status))
		if !allowedMove(booking.Status, next) {
			common.JSONError(w, http.StatusConflict, "CONFLICT",
				"cannot move booking from "+booking.Status+" to "+next, nil)
			return
		}
		booking.Status = next
	}
	updated, err := h.Q.UpdateVenueBooking(r.Context(), booking)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, present(updated))
}

func validStatus(s string) bool {
	switch s {
	case store.VenueBookingStatusNew, store.VenueBookingStatusReviewed,
		store.VenueBookingStatusConfirmed, store.VenueBookingStatusDeclined:
		return true
	}
	return false
}

// allowedMove encodes the intake workflow: NEW is triaged to REVIEWED,
// a reviewed request is settled as CONFIRMED or DECLINED.
func allowedMove(current, next string) bool {
	if current == next {
		return true
	}
	switch next {
	case store.VenueBookingStatusReviewed:
		return current == store.VenueBookingStatusNew
	case store.VenueBookingStatusConfirmed, store.VenueBookingStatusDeclined:
		return current == store.VenueBookingStatusNew || current == store.VenueBookingStatusReviewed
	}
	return false
}

func present(b store.VenueBooking) map[string]any {
	return map[string]any{
		"id":          b.ID.String(),
		"contactName": b.ContactName,
		"email":       b.Email,
		"phone":       b.Phone,
		"date":        b.Date.Format("2006-01-02"),
		"headcount":   b.Headcount,
		"notes":       b.Notes,
		"status":      b.Status,
		"createdAt":   b.CreatedAt,
		"updatedAt":   b.UpdatedAt,
	}
}
