package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/common"
	"github.com/solvieth/verslun-api/internal/store"
)

type stubOrders struct {
	orders map[uuid.UUID]store.Order
	items  map[uuid.UUID][]store.OrderItem
	moved  []string
}

func (s *stubOrders) GetOrderByID(_ context.Context, id uuid.UUID) (store.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return store.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (s *stubOrders) ListOrdersByOwner(_ context.Context, email string, _, _ int32) ([]store.Order, error) {
	var out []store.Order
	for _, o := range s.orders {
		if o.OwnerEmail == email {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubOrders) ListOrderItems(_ context.Context, orderID uuid.UUID) ([]store.OrderItem, error) {
	return s.items[orderID], nil
}

func (s *stubOrders) UpdateOrderStatusIfCurrent(_ context.Context, id uuid.UUID, next string, current []string) (bool, error) {
	o, ok := s.orders[id]
	if !ok {
		return false, nil
	}
	for _, c := range current {
		if o.Status == c {
			o.Status = next
			s.orders[id] = o
			s.moved = append(s.moved, next)
			return true, nil
		}
	}
	return false, nil
}

func doRequest(t *testing.T, h http.HandlerFunc, method, target, body string, p common.Principal, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := common.WithPrincipal(req.Context(), p)
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	rec := httptest.NewRecorder()
	h(rec, req.WithContext(ctx))
	return rec
}

func TestGetHidesForeignOrders(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	s := &stubOrders{orders: map[uuid.UUID]store.Order{
		id: {ID: id, OwnerEmail: "owner@example.is", Status: store.OrderStatusPaid},
	}}
	h := &Handler{Q: s}

	rec := doRequest(t, h.Get, http.MethodGet, "/orders/"+id.String(), "",
		common.Principal{Email: "intruder@example.is"}, map[string]string{"id": id.String()})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, h.Get, http.MethodGet, "/orders/"+id.String(), "",
		common.Principal{Email: "owner@example.is"}, map[string]string{"id": id.String()})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPatchStatusEnforcesTransitions(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	s := &stubOrders{orders: map[uuid.UUID]store.Order{
		id: {ID: id, OwnerEmail: "owner@example.is", Status: store.OrderStatusCanceled},
	}}
	h := &AdminHandler{Q: s}

	rec := doRequest(t, h.PatchStatus, http.MethodPatch, "/admin/orders/"+id.String(),
		`{"status":"PAID"}`, common.Principal{Email: "staff@example.is", Admin: true},
		map[string]string{"id": id.String()})
	require.Equal(t, http.StatusConflict, rec.Code)

	s.orders[id] = store.Order{ID: id, OwnerEmail: "owner@example.is", Status: store.OrderStatusReserved}
	rec = doRequest(t, h.PatchStatus, http.MethodPatch, "/admin/orders/"+id.String(),
		`{"status":"PAID"}`, common.Principal{Email: "staff@example.is", Admin: true},
		map[string]string{"id": id.String()})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, store.OrderStatusPaid, body.Data.Status)
}

func TestPatchStatusRejectsUnknownTarget(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	s := &stubOrders{orders: map[uuid.UUID]store.Order{
		id: {ID: id, Status: store.OrderStatusPaid},
	}}
	h := &AdminHandler{Q: s}

	rec := doRequest(t, h.PatchStatus, http.MethodPatch, "/admin/orders/"+id.String(),
		`{"status":"SHIPPED"}`, common.Principal{Admin: true}, map[string]string{"id": id.String()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
