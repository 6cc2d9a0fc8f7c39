package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solvieth/verslun-api/internal/resilience"
)

func saltPayClient(baseURL string) SaltPay {
	return SaltPay{
		APIKey:    "pk_test",
		SecretKey: "sk_test",
		BaseURL:   baseURL,
		HTTP:      resilience.HTTPClient{Client: &http.Client{Timeout: time.Second}},
	}
}

func TestSaltPayCreateIntentPostsItemizedRequest(t *testing.T) {
	t.Parallel()

	var captured saltPayIntentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments", r.URL.Path)
		require.Equal(t, "Bearer pk_test", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"reference":"sp-123","url":"https://checkout.saltpay.is/sp-123"}`))
	}))
	defer srv.Close()

	resp, err := saltPayClient(srv.URL).CreateIntent(context.Background(), IntentRequest{
		OrderID:    "ord-1",
		Amount:     11350,
		Currency:   "ISK",
		BuyerName:  "Jón Jónsson",
		BuyerEmail: "jon@example.is",
		Lines: []Line{
			{Description: "Skál", Count: 2, UnitPrice: 5000, TotalPrice: 10000},
			{Description: "Sendingarkostnaður", Count: 1, UnitPrice: 1350, TotalPrice: 1350},
		},
		ExpiresIn: 15 * time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, "saltpay", resp.Provider)
	require.Equal(t, "sp-123", resp.Reference)
	require.Equal(t, "https://checkout.saltpay.is/sp-123", resp.RedirectURL)

	require.Equal(t, int64(11350), captured.Amount)
	require.Equal(t, "ISK", captured.Currency)
	require.Equal(t, "jon@example.is", captured.BuyerEmail)
	require.Equal(t, "ord-1", captured.OrderReference)
	require.Len(t, captured.Items, 2)
}

func TestSaltPayCreateIntentSurfacesGatewayMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Kortinu var hafnað"}`))
	}))
	defer srv.Close()

	_, err := saltPayClient(srv.URL).CreateIntent(context.Background(), IntentRequest{
		OrderID: "ord-2",
		Amount:  5000,
	})
	require.Error(t, err)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, "Kortinu var hafnað", gwErr.Message)
}

func TestSaltPayVerifyWebhook(t *testing.T) {
	t.Parallel()

	client := saltPayClient("")
	body := []byte(`{"order_reference":"11111111-2222-3333-4444-555555555555","amount":11350,"status":"paid"}`)
	mac := hmac.New(sha256.New, []byte("sk_test"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/saltpay", strings.NewReader(string(body)))
	req.Header.Set(saltPaySignatureHeader, sig)

	result, err := client.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Equal(t, "11111111-2222-3333-4444-555555555555", result.OrderID)
	require.Equal(t, int64(11350), result.Amount)
	require.Equal(t, "PAID", result.Status)
}

func TestSaltPayVerifyWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	client := saltPayClient("")
	body := []byte(`{"order_reference":"x","amount":1,"status":"paid"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments/saltpay", strings.NewReader(string(body)))
	req.Header.Set(saltPaySignatureHeader, "deadbeef")

	result, err := client.VerifyWebhook(req, body)
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestLinesIncludeDiscountAndShipping(t *testing.T) {
	t.Parallel()

	lines := Lines(nil, 1000, 790)
	require.Len(t, lines, 2)
	require.Equal(t, int64(-1000), lines[0].TotalPrice)
	require.Equal(t, int64(790), lines[1].TotalPrice)

	// Zero amounts contribute no lines.
	require.Empty(t, Lines(nil, 0, 0))
}
