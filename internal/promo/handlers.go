package promo

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
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/store"
)

// AdminQueries lists the store operations used by the admin screens.
type AdminQueries interface {
	CreatePromo(ctx context.Context, p store.PromoCode) (store.PromoCode, error)
	UpdatePromo(ctx context.Context, p store.PromoCode) (store.PromoCode, error)
	DeletePromo(ctx context.Context, code string) error
	ListPromos(ctx context.Context, limit, offset int32) ([]store.PromoCode, error)
	GetPromoByCode(ctx context.Context, code string) (store.PromoCode, error)
}

// Handler exposes administrative promo-code management endpoints.
type Handler struct {
	Q        AdminQueries
	Svc      *Service
	Validate *validator.Validate
}

type promoPayload struct {
	Code         string     `json:"code" validate:"required,min=2,max=64"`
	Kind         string     `json:"kind" validate:"required,oneof=percent fixed"`
	Value        int64      `json:"value" validate:"required,gt=0"`
	MinCartTotal int64      `json:"minCartTotal" validate:"gte=0"`
	MaxUses      *int32     `json:"maxUses"`
	PerUserLimit *int32     `json:"perUserLimit"`
	ValidFrom    *time.Time `json:"validFrom"`
	ValidTo      *time.Time `json:"validTo"`
	EventIDs     []string   `json:"eventIds"`
}

func (p promoPayload) toRecord() (store.PromoCode, error) {
	rec := store.PromoCode{
		Code:         NormalizeCode(p.Code),
		Kind:         strings.ToLower(p.Kind),
		Value:        p.Value,
		MinCartTotal: p.MinCartTotal,
		MaxUses:      p.MaxUses,
		PerUserLimit: p.PerUserLimit,
		ValidFrom:    p.ValidFrom,
		ValidTo:      p.ValidTo,
	}
	if rec.Kind == KindPercent && p.Value > 100 {
		return rec, errors.New("percent value cannot exceed 100")
	}
	for _, raw := range p.EventIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return rec, errors.New("invalid event id: " + raw)
		}
		rec.EventIDs = append(rec.EventIDs, id)
	}
	return rec, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (store.PromoCode, bool) {
	var payload promoPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return store.PromoCode{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return store.PromoCode{}, false
		}
	}
	rec, err := payload.toRecord()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return store.PromoCode{}, false
	}
	return rec, true
}

// Create inserts a new promo code.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.Q.CreatePromo(r.Context(), rec)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "promo code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create promo code", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, presentPromo(created))
}

// Update mutates an existing promo code identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	rec.Code = code
	updated, err := h.Q.UpdatePromo(r.Context(), rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promo code not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update promo code", nil)
		return
	}
	common.JSONData(w, http.StatusOK, presentPromo(updated))
}

// Delete removes a promo code.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	if err := h.Q.DeletePromo(r.Context(), code); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete promo code", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns promo codes for the admin screen.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	promos, err := h.Q.ListPromos(r.Context(), int32(perPage), int32((page-1)*perPage))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list promo codes", nil)
		return
	}
	out := make([]map[string]any, 0, len(promos))
	for _, p := range promos {
		out = append(out, presentPromo(p))
	}
	common.JSONData(w, http.StatusOK, out)
}

// Get returns a single promo code.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(chi.URLParam(r, "code"))
	rec, err := h.Q.GetPromoByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promo code not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load promo code", nil)
		return
	}
	common.JSONData(w, http.StatusOK, presentPromo(rec))
}

type previewRequest struct {
	Code      string  `json:"code" validate:"required"`
	CartTotal int64   `json:"cartTotal" validate:"gte=0"`
	Owner     string  `json:"owner"`
	EventID   *string `json:"eventId"`
}

// Preview returns the simulated discount for a promo code without
// persisting state.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	var eventID *uuid.UUID
	if req.EventID != nil && *req.EventID != "" {
		parsed, err := uuid.Parse(*req.EventID)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid event id", nil)
			return
		}
		eventID = &parsed
	}
	discount, rule, err := h.Svc.Evaluate(r.Context(), req.Code, req.Owner, req.CartTotal, eventID)
	if err != nil {
		status, code := rejectionStatus(err)
		common.JSONError(w, status, code, err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"code":     rule.Code,
		"kind":     rule.Kind,
		"discount": discount,
	})
}

// rejectionStatus maps promo validation errors to HTTP statuses. Every
// rejection keeps its reason; the discount is never silently zeroed.
func rejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrExpired), errors.Is(err, ErrInactive),
		errors.Is(err, ErrUsageLimitReached), errors.Is(err, ErrPerUserLimitReached),
		errors.Is(err, ErrMinimumSpendUnmet), errors.Is(err, ErrWrongEvent):
		return http.StatusUnprocessableEntity, "PROMO_REJECTED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func presentPromo(p store.PromoCode) map[string]any {
	eventIDs := make([]string, 0, len(p.EventIDs))
	for _, id := range p.EventIDs {
		eventIDs = append(eventIDs, id.String())
	}
	return map[string]any{
		"code":         p.Code,
		"kind":         p.Kind,
		"value":        p.Value,
		"minCartTotal": p.MinCartTotal,
		"maxUses":      p.MaxUses,
		"usedCount":    p.UsedCount,
		"perUserLimit": p.PerUserLimit,
		"validFrom":    p.ValidFrom,
		"validTo":      p.ValidTo,
		"eventIds":     eventIDs,
		"createdAt":    p.CreatedAt,
	}
}
