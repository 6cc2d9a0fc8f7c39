package payment

import (
	"context"
	"net/http"
	"time"
)

// Line is a single row in the itemized payment request. Discounts travel
// as a negative line so the gateway receipt mirrors the order breakdown.
type Line struct {
	Description string `json:"description"`
	Count       int32  `json:"count"`
	UnitPrice   int64  `json:"unitPrice"`
	TotalPrice  int64  `json:"totalPrice"`
}

// IntentRequest captures the information required to open a payment
// intent with a provider.
type IntentRequest struct {
	OrderID    string
	Amount     int64
	Currency   string
	BuyerName  string
	BuyerEmail string
	Lines      []Line
	SuccessURL string
	CancelURL  string
	ExpiresIn  time.Duration
}

// IntentResponse represents the minimal information returned by a
// provider when creating an intent.
type IntentResponse struct {
	Provider    string
	Reference   string
	RedirectURL string
	ExpiresAt   time.Time
}

// WebhookVerifyResult contains the normalised data extracted from a
// webhook notification after signature verification.
type WebhookVerifyResult struct {
	Valid           bool
	OrderID         string
	Amount          int64
	Status          string
	ProviderPayload []byte
	Err             error
}

// Provider abstracts the operations required from an upstream payment
// provider.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}
