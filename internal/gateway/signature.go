package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-service/internal/apperr"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// DefaultTolerance bounds how old a signed event may be.
const DefaultTolerance = 5 * time.Minute

// Verifier checks `t=<unix>,v1=<hex>` signature headers.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Verify authenticates payload against header and decodes the event.
// Every failure is a SignatureInvalid error.
func (v *Verifier) Verify(payload []byte, header string) (*Event, error) {
	if v.secret == "" {
		return nil, apperr.SignatureInvalid("webhook secret not configured")
	}

	evt, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, signatureError(err)
	}
	return toEvent(evt)
}

func signatureError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrNotSigned):
		return apperr.SignatureInvalid("missing signature header")
	case errors.Is(err, webhook.ErrInvalidHeader):
		return apperr.SignatureInvalid("malformed signature header")
	case errors.Is(err, webhook.ErrTooOld):
		return apperr.SignatureInvalid("timestamp outside tolerance")
	case errors.Is(err, webhook.ErrNoValidSignature):
		return apperr.SignatureInvalid("signature mismatch")
	default:
		return apperr.SignatureInvalid("unparsable event body")
	}
}

func toEvent(e stripe.Event) (*Event, error) {
	if e.Type == "" {
		return nil, apperr.SignatureInvalid("event type missing")
	}
	out := &Event{ID: e.ID, Type: string(e.Type)}
	if out.Type != EventPaymentSucceeded {
		return out, nil
	}

	var intent stripe.PaymentIntent
	if e.Data == nil || len(e.Data.Raw) == 0 {
		return nil, apperr.SignatureInvalid("payment intent id missing")
	}
	if err := json.Unmarshal(e.Data.Raw, &intent); err != nil {
		return nil, apperr.SignatureInvalid("unparsable payment intent")
	}
	if intent.ID == "" {
		return nil, apperr.SignatureInvalid("payment intent id missing")
	}

	out.IntentID = intent.ID
	out.Amount = intent.Amount
	out.Currency = string(intent.Currency)
	out.OrderID = intent.Metadata["order_id"]
	return out, nil
}

// SignHeader builds a header the Verifier accepts. Used by tests and local tooling.
func SignHeader(secret string, payload []byte, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}
