package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/solvieth/verslun-api/internal/resilience"
)

// GatewayError carries the message returned by the gateway. It is shown
// to the buyer verbatim, so the gateway's own wording wins over any
// local phrasing.
type GatewayError struct {
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("payment gateway returned status %d", e.Status)
}

// SaltPay implements the Provider interface against the SaltPay
// hosted-checkout API.
type SaltPay struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	HTTP      resilience.HTTPClient
}

const saltPaySignatureHeader = "Saltpay-Signature"

type saltPayIntentRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	BuyerEmail     string `json:"buyer_email"`
	BuyerName      string `json:"buyer_name"`
	OrderReference string `json:"order_reference"`
	SuccessURL     string `json:"success_url,omitempty"`
	CancelURL      string `json:"cancel_url,omitempty"`
	ExpiresInSec   int64  `json:"expires_in_sec,omitempty"`
	Items          []Line `json:"items"`
}

type saltPayIntentResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"url"`
	Message     string `json:"message"`
}

// CreateIntent posts the itemized payment request and returns the hosted
// checkout URL the buyer is redirected to.
func (s SaltPay) CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return IntentResponse{}, errors.New("order id is required")
	}
	if req.Amount <= 0 {
		return IntentResponse{}, errors.New("amount must be positive")
	}
	payload := saltPayIntentRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		BuyerEmail:     req.BuyerEmail,
		BuyerName:      req.BuyerName,
		OrderReference: req.OrderID,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		Items:          req.Lines,
	}
	if req.ExpiresIn > 0 {
		payload.ExpiresInSec = int64(req.ExpiresIn / time.Second)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return IntentResponse{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint("/payments"), bytes.NewReader(body))
	if err != nil {
		return IntentResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(s.APIKey))

	resp, err := s.HTTP.Do(ctx, httpReq)
	if err != nil {
		return IntentResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return IntentResponse{}, err
	}
	var decoded saltPayIntentResponse
	_ = json.Unmarshal(respBody, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return IntentResponse{}, &GatewayError{Status: resp.StatusCode, Message: decoded.Message}
	}
	if decoded.RedirectURL == "" {
		return IntentResponse{}, &GatewayError{Status: resp.StatusCode, Message: "gateway response missing redirect url"}
	}
	out := IntentResponse{
		Provider:    "saltpay",
		Reference:   decoded.Reference,
		RedirectURL: decoded.RedirectURL,
	}
	if req.ExpiresIn > 0 {
		out.ExpiresAt = time.Now().Add(req.ExpiresIn)
	}
	return out, nil
}

func (s SaltPay) endpoint(path string) string {
	host := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if host == "" {
		host = "https://api.saltpay.is"
	}
	return host + path
}

// VerifyWebhook validates the callback signature and normalises the
// payload.
func (s SaltPay) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	expected := s.computeSignature(body)
	provided := strings.TrimSpace(r.Header.Get(saltPaySignatureHeader))
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	var payload struct {
		OrderReference string      `json:"order_reference"`
		Amount         json.Number `json:"amount"`
		Status         string      `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	if payload.OrderReference == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing order reference")}, nil
	}

	amount, _ := payload.Amount.Int64()
	if amount == 0 {
		if f, err := payload.Amount.Float64(); err == nil {
			amount = int64(f)
		}
	}

	return WebhookVerifyResult{
		Valid:           true,
		OrderID:         payload.OrderReference,
		Amount:          amount,
		Status:          normaliseSaltPayStatus(payload.Status),
		ProviderPayload: body,
	}, nil
}

func (s SaltPay) computeSignature(body []byte) string {
	key := strings.TrimSpace(s.SecretKey)
	if key == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func normaliseSaltPayStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "settled", "authorized", "captured":
		return "PAID"
	case "pending", "created":
		return "PENDING"
	case "expired":
		return "EXPIRED"
	case "failed", "declined", "canceled", "cancelled":
		return "FAILED"
	default:
		return "PENDING"
	}
}
