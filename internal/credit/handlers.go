package credit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/notify"
	"github.com/solvieth/verslun-api/internal/store"
)

// Handler exposes the work-credit ledger and auto-credit subscription
// admin screens.
type Handler struct {
	Svc      *Service
	Queue    notify.Enqueuer
	Validate *validator.Validate
}

type addCreditPayload struct {
	UserEmail string `json:"userEmail" validate:"required,email"`
	Amount    int64  `json:"amount" validate:"required"`
	Reason    string `json:"reason" validate:"required,min=2,max=256"`
}

// AddEntry appends a ledger row for a user.
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var payload addCreditPayload
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
	entry, balance, err := h.Svc.AddEntry(r.Context(), payload.UserEmail, payload.Amount, payload.Reason)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"id":        entry.ID.String(),
		"userEmail": entry.UserEmail,
		"amount":    entry.Amount,
		"reason":    entry.Reason,
		"balance":   balance,
		"createdAt": entry.CreatedAt,
	})
}

// Ledger returns a user's ledger rows plus the running balance.
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("userEmail")))
	if email == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "userEmail query parameter is required", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	entries, err := h.Svc.Q.ListCreditEntries(r.Context(), email, int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	balance, err := h.Svc.Q.CreditBalance(r.Context(), email)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":        e.ID.String(),
			"amount":    e.Amount,
			"reason":    e.Reason,
			"createdAt": e.CreatedAt,
		})
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"userEmail": email,
		"balance":   balance,
		"entries":   out,
	})
}

type subscriptionPayload struct {
	UserEmail string `json:"userEmail" validate:"required,email"`
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Active    *bool  `json:"active"`
}

// CreateSubscription registers a monthly auto-credit grant.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var payload subscriptionPayload
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
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	sub, err := h.Svc.Q.CreateCreditSubscription(r.Context(), store.CreditSubscription{
		UserEmail: strings.ToLower(strings.TrimSpace(payload.UserEmail)),
		Amount:    payload.Amount,
		Active:    active,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusCreated, presentSubscription(sub))
}

type subscriptionUpdatePayload struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
	Active bool  `json:"active"`
}

// UpdateSubscription overwrites the grant amount and active flag.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid subscription id", nil)
		return
	}
	var payload subscriptionUpdatePayload
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
	sub, err := h.Svc.Q.UpdateCreditSubscription(r.Context(), id, payload.Amount, payload.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "subscription not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, presentSubscription(sub))
}

// DeleteSubscription removes a subscription.
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid subscription id", nil)
		return
	}
	if err := h.Svc.Q.DeleteCreditSubscription(r.Context(), id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions returns all subscriptions for the admin screen.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	subs, err := h.Svc.Q.ListCreditSubscriptions(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	out := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		out = append(out, presentSubscription(sub))
	}
	common.JSONData(w, http.StatusOK, out)
}

// TriggerBatch enqueues the monthly run out of band so the admin call
// returns immediately.
func (h *Handler) TriggerBatch(w http.ResponseWriter, r *http.Request) {
	if h.Queue == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "task queue not configured", nil)
		return
	}
	if _, err := h.Queue.Enqueue(notify.NewCreditRunTask(), asynq.Unique(10*time.Minute)); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusAccepted, map[string]any{"status": "queued"})
}

func presentSubscription(sub store.CreditSubscription) map[string]any {
	return map[string]any{
		"id":        sub.ID.String(),
		"userEmail": sub.UserEmail,
		"amount":    sub.Amount,
		"active":    sub.Active,
		"createdAt": sub.CreatedAt,
		"updatedAt": sub.UpdatedAt,
	}
}
