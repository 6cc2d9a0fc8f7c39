package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/store"
)

type stubVenues struct {
	bookings map[uuid.UUID]store.VenueBooking
}

func newStubVenues() *stubVenues {
	return &stubVenues{bookings: map[uuid.UUID]store.VenueBooking{}}
}

func (s *stubVenues) CreateVenueBooking(_ context.Context, v store.VenueBooking) (store.VenueBooking, error) {
	v.ID = uuid.New()
	v.Status = store.VenueBookingStatusNew
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	s.bookings[v.ID] = v
	return v, nil
}

func (s *stubVenues) GetVenueBooking(_ context.Context, id uuid.UUID) (store.VenueBooking, error) {
	v, ok := s.bookings[id]
	if !ok {
		return store.VenueBooking{}, pgx.ErrNoRows
	}
	return v, nil
}

func (s *stubVenues) ListVenueBookings(_ context.Context, status *string, _, _ int32) ([]store.VenueBooking, error) {
	var out []store.VenueBooking
	for _, v := range s.bookings {
		if status == nil || v.Status == *status {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubVenues) UpdateVenueBooking(_ context.Context, v store.VenueBooking) (store.VenueBooking, error) {
	if _, ok := s.bookings[v.ID]; !ok {
		return store.VenueBooking{}, pgx.ErrNoRows
	}
	v.UpdatedAt = time.Now()
	s.bookings[v.ID] = v
	return v, nil
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body any, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestIntakeCreatesNewRequest(t *testing.T) {
	t.Parallel()
	stub := newStubVenues()
	h := &Handler{Q: stub, Validate: validator.New()}

	rec := doJSON(t, h.Intake, http.MethodPost, "/venue-bookings", map[string]any{
		"contactName": "Guðrún Jónsdóttir",
		"email":       "gudrun@example.is",
		"phone":       "+354 555 1234",
		"date":        "2025-09-20",
		"headcount":   45,
		"notes":       "Árshátíð",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, store.VenueBookingStatusNew, body.Data.Status)
	require.Len(t, stub.bookings, 1)
}

func TestIntakeRejectsBadDate(t *testing.T) {
	t.Parallel()
	h := &Handler{Q: newStubVenues(), Validate: validator.New()}
	rec := doJSON(t, h.Intake, http.MethodPost, "/venue-bookings", map[string]any{
		"contactName": "Jón",
		"email":       "jon@example.is",
		"date":        "20.09.2025",
		"headcount":   10,
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateGuardsStatusMoves(t *testing.T) {
	t.Parallel()
	stub := newStubVenues()
	created, err := stub.CreateVenueBooking(context.Background(), store.VenueBooking{
		ContactName: "Anna", Email: "anna@example.is", Date: time.Now().AddDate(0, 1, 0), Headcount: 30,
	})
	require.NoError(t, err)
	h := &Handler{Q: stub, Validate: validator.New()}
	params := map[string]string{"id": created.ID.String()}

	rec := doJSON(t, h.Update, http.MethodPatch, "/admin/venue-bookings/"+created.ID.String(),
		map[string]any{"status": "REVIEWED"}, params)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h.Update, http.MethodPatch, "/admin/venue-bookings/"+created.ID.String(),
		map[string]any{"status": "NEW"}, params)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h.Update, http.MethodPatch, "/admin/venue-bookings/"+created.ID.String(),
		map[string]any{"status": "CONFIRMED"}, params)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, store.VenueBookingStatusConfirmed, stub.bookings[created.ID].Status)
}
