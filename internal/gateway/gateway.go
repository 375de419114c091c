// Package gateway talks to the card payment provider: outbound intent
// creation and verification of signed webhook events.
package gateway

import (
	"context"
	"time"

	"marketplace-service/internal/models"
)

// EventPaymentSucceeded is the only event type that settles an order.
const EventPaymentSucceeded = "payment_intent.succeeded"

// Intent is a payment the buyer completes client-side with ClientSecret.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// Event is a verified webhook notification.
type Event struct {
	ID       string
	Type     string
	IntentID string
	Amount   int64
	Currency string
	OrderID  string
}

// Gateway creates intents and authenticates webhook events.
type Gateway interface {
	CreateIntent(ctx context.Context, order *models.Order) (*Intent, error)
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}

// Options configures both gateway modes.
type Options struct {
	BaseURL        string
	SecretKey      string
	WebhookSecret  string
	Tolerance      time.Duration
	Currency       string
	RequestTimeout time.Duration
	Sandbox        bool
}

// New returns the sandbox gateway when opts.Sandbox is set, else the HTTP client.
func New(opts Options) Gateway {
	verifier := NewVerifier(opts.WebhookSecret, opts.Tolerance)
	if opts.Sandbox {
		return NewSandbox(verifier)
	}
	return NewHTTPClient(opts, verifier)
}
