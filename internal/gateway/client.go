package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

const maxNetworkRetries = 2

// HTTPClient creates intents through the provider's REST API.
type HTTPClient struct {
	intents  *paymentintent.Client
	currency string
	verifier *Verifier
}

func NewHTTPClient(opts Options, verifier *Verifier) *HTTPClient {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	currency := opts.Currency
	if currency == "" {
		currency = "usd"
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(maxNetworkRetries),
		LeveledLogger:     util.GetLogger().Sugar(),
	}
	if opts.BaseURL != "" {
		cfg.URL = stripe.String(strings.TrimRight(opts.BaseURL, "/"))
	}

	return &HTTPClient{
		intents: &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Key: opts.SecretKey,
		},
		currency: currency,
		verifier: verifier,
	}
}

// CreateIntent creates a payment intent for the order total, keyed
// idempotently on the order id.
func (c *HTTPClient) CreateIntent(ctx context.Context, order *models.Order) (*Intent, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.CreateIntent", "order_id", order.ID.String())
	defer span.End()

	start := time.Now()
	defer func() {
		util.PaymentIntentLatency.Observe(time.Since(start).Seconds())
	}()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(util.ToMinorUnits(order.Total)),
		Currency: stripe.String(c.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", order.ID.String())
	params.SetIdempotencyKey("intent-" + order.ID.String())

	pi, err := c.intents.New(params)
	if err != nil {
		util.SpanError(span, err)
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			util.PaymentIntentsTotal.WithLabelValues("rejected").Inc()
			msg := stripeErr.Msg
			if msg == "" {
				msg = http.StatusText(stripeErr.HTTPStatusCode)
			}
			return nil, fmt.Errorf("payment gateway rejected intent: %s", msg)
		}
		util.PaymentIntentsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("payment gateway request failed: %w", err)
	}

	util.PaymentIntentsTotal.WithLabelValues("created").Inc()
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (c *HTTPClient) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	return c.verifier.Verify(payload, signatureHeader)
}
