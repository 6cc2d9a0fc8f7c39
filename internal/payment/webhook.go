package payment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/events"
	"github.com/solvieth/verslun-api/internal/obs"
	"github.com/solvieth/verslun-api/internal/store"
)

// Webhook handles payment provider callbacks, including signature
// verification and settlement.
type Webhook struct {
	Store     *store.Store
	Pool      *pgxpool.Pool
	Providers map[string]Provider
	Replay    *redis.Client
	ReplayTTL time.Duration
	Events    *events.Bus
}

// Handle processes webhook callbacks for the configured payment
// provider(s). Settlement transitions the order exactly once; replayed
// or re-sent notifications are rejected before touching the database.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	if h.Store == nil || h.Providers == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	outcome := "error"
	defer func() {
		if obs.PaymentWebhookTotal != nil {
			obs.PaymentWebhookTotal.WithLabelValues(providerKey, outcome).Inc()
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !result.Valid {
		outcome = "rejected"
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:%s:%s", providerKey, common.Sha256Hex(string(body)))
		fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !fresh {
			outcome = "replay"
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}
	orderID, err := uuid.Parse(result.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
		return
	}

	ctx := r.Context()
	q := h.Store
	var tx pgx.Tx
	if h.Pool != nil {
		tx, err = h.Pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "TX_ERROR", err.Error(), nil)
			return
		}
		defer func() { _ = tx.Rollback(ctx) }()
		q = h.Store.WithTx(tx)
	}

	payment, err := q.GetLatestPaymentByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_FETCH_ERROR", err.Error(), nil)
		return
	}
	if result.Amount > 0 && payment.Amount != result.Amount {
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	}
	order, err := q.GetOrderByID(ctx, orderID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "ORDER_FETCH_ERROR", err.Error(), nil)
		return
	}

	newStatus := normaliseWebhookStatus(result.Status)
	if err := q.UpdatePaymentStatus(ctx, payment.ID, newStatus); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_UPDATE_ERROR", err.Error(), nil)
		return
	}

	settled := false
	orderCanceled := false
	var ticketsIssued int64
	switch newStatus {
	case store.PaymentStatusPaid:
		settled, err = q.UpdateOrderStatusIfCurrent(ctx, order.ID, store.OrderStatusPaid,
			[]string{store.OrderStatusPendingPayment})
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "ORDER_UPDATE_ERROR", err.Error(), nil)
			return
		}
		if settled {
			if order.CartID != nil {
				if _, err := q.MarkCartPaid(ctx, *order.CartID); err != nil {
					common.JSONError(w, http.StatusInternalServerError, "CART_UPDATE_ERROR", err.Error(), nil)
					return
				}
			}
			if order.PromoCode != nil && *order.PromoCode != "" {
				if err := q.RecordPromoRedemption(ctx, *order.PromoCode, order.OwnerEmail, order.ID); err != nil {
					common.JSONError(w, http.StatusInternalServerError, "PROMO_SETTLEMENT_FAILED", err.Error(), nil)
					return
				}
			}
			ticketsIssued, err = q.MarkTicketsIssuedByOrder(ctx, order.ID)
			if err != nil {
				common.JSONError(w, http.StatusInternalServerError, "TICKET_UPDATE_ERROR", err.Error(), nil)
				return
			}
		}
	case store.PaymentStatusFailed, store.PaymentStatusExpired:
		orderCanceled, err = q.UpdateOrderStatusIfCurrent(ctx, order.ID, store.OrderStatusCanceled,
			[]string{store.OrderStatusPendingPayment})
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "ORDER_UPDATE_ERROR", err.Error(), nil)
			return
		}
		if orderCanceled {
			if err := releaseTickets(ctx, q, order.ID); err != nil {
				common.JSONError(w, http.StatusInternalServerError, "TICKET_RELEASE_ERROR", err.Error(), nil)
				return
			}
		}
	}

	if tx != nil {
		if err := tx.Commit(ctx); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "TX_COMMIT_ERROR", err.Error(), nil)
			return
		}
	}
	outcome = strings.ToLower(newStatus)

	if h.Events != nil {
		payload := map[string]any{
			"orderId":   order.ID.String(),
			"paymentId": payment.ID.String(),
			"status":    newStatus,
			"email":     order.OwnerEmail,
			"name":      order.BuyerName,
			"total":     order.Total,
		}
		switch {
		case newStatus == store.PaymentStatusPaid && settled:
			_, _ = h.Events.Emit(ctx, events.TopicOrderPaid, order.ID, payload)
			if ticketsIssued > 0 {
				_, _ = h.Events.Emit(ctx, events.TopicTicketIssued, order.ID, payload)
			}
		case newStatus == store.PaymentStatusFailed || newStatus == store.PaymentStatusExpired:
			_, _ = h.Events.Emit(ctx, events.TopicPaymentFailed, order.ID, payload)
			if orderCanceled {
				_, _ = h.Events.Emit(ctx, events.TopicOrderCanceled, order.ID, payload)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// releaseTickets removes reserved tickets for a canceled order and
// returns their capacity to the event.
func releaseTickets(ctx context.Context, q *store.Store, orderID uuid.UUID) error {
	tickets, err := q.ListTicketsByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return nil
	}
	perEvent := make(map[uuid.UUID]int32, 1)
	for _, t := range tickets {
		perEvent[t.EventID]++
	}
	if _, err := q.DeleteTicketsByOrder(ctx, orderID); err != nil {
		return err
	}
	for eventID, n := range perEvent {
		if err := q.ReleaseEventCapacity(ctx, eventID, n); err != nil {
			return err
		}
	}
	return nil
}

func normaliseWebhookStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "PAID", "SUCCESS", "SETTLED":
		return store.PaymentStatusPaid
	case "FAILED", "CANCELED", "DECLINED":
		return store.PaymentStatusFailed
	case "EXPIRED":
		return store.PaymentStatusExpired
	default:
		return store.PaymentStatusPending
	}
}
