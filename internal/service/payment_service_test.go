package service

import (
	"context"
	"testing"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/gateway"
	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSettlesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, "25", 3, nil)
	order, intent := f.checkout(t, uuid.New(), p.ID, 1, "")

	payload := f.webhookPayload("evt_1", gateway.EventPaymentSucceeded, intent)
	header := gateway.SignHeader(testWebhookSecret, payload, time.Now())

	result, err := f.payments.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)
	require.NotNil(t, result.OrderID)
	assert.Equal(t, order.ID, *result.OrderID)
	assert.False(t, result.AlreadySettled)

	payment, err := f.payments.GetPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, payment.Status)
}

func TestWebhookBadSignatureTouchesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, "25", 3, nil)
	order, intent := f.checkout(t, uuid.New(), p.ID, 1, "")

	payload := f.webhookPayload("evt_2", gateway.EventPaymentSucceeded, intent)
	before := f.store.Mutations()

	cases := map[string]string{
		"wrong secret": gateway.SignHeader("whsec_other", payload, time.Now()),
		"stale":        gateway.SignHeader(testWebhookSecret, payload, time.Now().Add(-time.Hour)),
		"missing":      "",
		"garbage":      "t=abc,v1=zz",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.payments.HandleWebhook(ctx, payload, header)
			require.Error(t, err)
			assert.Equal(t, apperr.KindSignatureInvalid, apperr.KindOf(err))
		})
	}

	tampered := f.webhookPayload("evt_2", gateway.EventPaymentSucceeded, "pi_other")
	_, err := f.payments.HandleWebhook(ctx, tampered, gateway.SignHeader(testWebhookSecret, payload, time.Now()))
	assert.Equal(t, apperr.KindSignatureInvalid, apperr.KindOf(err))

	assert.Equal(t, before, f.store.Mutations())

	payment, err := f.store.GetPaymentByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)

	payload := f.webhookPayload("evt_3", "payment_intent.created", "pi_123")
	before := f.store.Mutations()

	result, err := f.payments.HandleWebhook(context.Background(), payload,
		gateway.SignHeader(testWebhookSecret, payload, time.Now()))
	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Equal(t, before, f.store.Mutations())
}

func TestWebhookUnknownIntent(t *testing.T) {
	f := newFixture(t)

	payload := f.webhookPayload("evt_4", gateway.EventPaymentSucceeded, "pi_unknown")
	_, err := f.payments.HandleWebhook(context.Background(), payload,
		gateway.SignHeader(testWebhookSecret, payload, time.Now()))
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestWebhookReplayShortCircuits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	marker := newMemoryKV()
	payments := NewPaymentService(f.store, f.gateway, f.settlement, marker, Timeouts{})

	p := f.product(t, "25", 3, nil)
	_, intent := f.checkout(t, uuid.New(), p.ID, 1, "")

	payload := f.webhookPayload("evt_5", gateway.EventPaymentSucceeded, intent)
	header := gateway.SignHeader(testWebhookSecret, payload, time.Now())

	_, err := payments.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)

	before := f.store.Mutations()
	result, err := payments.HandleWebhook(ctx, payload, header)
	require.NoError(t, err)
	assert.True(t, result.AlreadySettled)
	assert.Equal(t, before, f.store.Mutations())

	stored, err := f.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)
}
