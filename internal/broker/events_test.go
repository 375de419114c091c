package broker

import (
	"context"
	"encoding/json"
	"testing"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatchRoutesByType(t *testing.T) {
	h := NewEventHandler(zap.NewNop())

	var paid *models.OrderPaidEvent
	var payouts []string
	h.OnOrderPaid(func(_ context.Context, e *models.OrderPaidEvent) error {
		paid = e
		return nil
	})
	h.OnPayout(func(_ context.Context, e *models.PayoutEvent) error {
		payouts = append(payouts, e.EventType)
		return nil
	})

	orderID := uuid.New()
	raw, err := json.Marshal(models.OrderPaidEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:   orderID,
		Total:     decimal.RequireFromString("12.50"),
	})
	require.NoError(t, err)
	require.NoError(t, h.Dispatch(context.Background(), raw))
	require.NotNil(t, paid)
	assert.Equal(t, orderID, paid.OrderID)
	assert.Equal(t, "12.5", paid.Total.String())

	for _, typ := range []string{models.EventTypePayoutRequested, models.EventTypePayoutProcessed} {
		raw, err := json.Marshal(models.PayoutEvent{BaseEvent: models.NewBaseEvent(typ)})
		require.NoError(t, err)
		require.NoError(t, h.Dispatch(context.Background(), raw))
	}
	assert.Equal(t, []string{models.EventTypePayoutRequested, models.EventTypePayoutProcessed}, payouts)
}

func TestDispatchIgnoresUnregisteredAndUnknown(t *testing.T) {
	h := NewEventHandler(zap.NewNop())

	raw, _ := json.Marshal(models.BaseEvent{EventType: models.EventTypeVendorStatusChanged})
	assert.NoError(t, h.Dispatch(context.Background(), raw))

	raw, _ = json.Marshal(models.BaseEvent{EventType: "SOMETHING_ELSE"})
	assert.NoError(t, h.Dispatch(context.Background(), raw))
}

func TestDispatchRejectsGarbage(t *testing.T) {
	h := NewEventHandler(zap.NewNop())
	assert.Error(t, h.Dispatch(context.Background(), []byte("{not json")))
}
