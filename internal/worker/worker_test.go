package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"marketplace-service/internal/models"
	"marketplace-service/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, email notify.Email) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockMailer) Close() error {
	return m.Called().Error(0)
}

func encode(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestOrderPaidEmailsBuyer(t *testing.T) {
	mailer := &mockMailer{}
	w := NewNotificationWorker(nil, mailer, "ops@example.com")

	event := models.OrderPaidEvent{
		BaseEvent:  models.NewBaseEvent(models.EventTypeOrderPaid),
		OrderID:    uuid.New(),
		BuyerEmail: "ada@example.com",
		BuyerName:  "Ada",
		Total:      decimal.RequireFromString("42.5"),
	}

	mailer.On("Send", mock.Anything, mock.MatchedBy(func(e notify.Email) bool {
		return e.To == "ada@example.com" && e.Template == TemplateOrderPaid && e.Data["total"] == "42.50"
	})).Return(nil).Once()

	require.NoError(t, w.handler.Dispatch(context.Background(), encode(t, event)))
	mailer.AssertExpectations(t)
}

func TestReconciliationGoesToOps(t *testing.T) {
	mailer := &mockMailer{}
	w := NewNotificationWorker(nil, mailer, "ops@example.com")

	event := models.ReconciliationRaisedEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeReconciliationRaised),
		ItemID:    uuid.New(),
		Kind:      models.ReconcileStockShortfall,
		OrderID:   uuid.New(),
		Detail:    "Mug: requested 2, available 1",
	}

	mailer.On("Send", mock.Anything, mock.MatchedBy(func(e notify.Email) bool {
		return e.To == "ops@example.com" && e.Data["kind"] == models.ReconcileStockShortfall
	})).Return(nil).Once()

	require.NoError(t, w.handler.Dispatch(context.Background(), encode(t, event)))
	mailer.AssertExpectations(t)
}

func TestPayoutTemplates(t *testing.T) {
	tests := []struct {
		eventType string
		template  string
	}{
		{models.EventTypePayoutRequested, TemplatePayoutRequested},
		{models.EventTypePayoutProcessed, TemplatePayoutProcessed},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			mailer := &mockMailer{}
			w := NewNotificationWorker(nil, mailer, "ops@example.com")

			event := models.PayoutEvent{
				BaseEvent:   models.NewBaseEvent(tt.eventType),
				PayoutID:    uuid.New(),
				VendorEmail: "shop@example.com",
				Amount:      decimal.NewFromInt(100),
				Status:      models.PayoutStatusCompleted,
			}

			mailer.On("Send", mock.Anything, mock.MatchedBy(func(e notify.Email) bool {
				return e.Template == tt.template && e.Data["amount"] == "100.00"
			})).Return(nil).Once()

			require.NoError(t, w.handler.Dispatch(context.Background(), encode(t, event)))
			mailer.AssertExpectations(t)
		})
	}
}

func TestSendFailureIsReturned(t *testing.T) {
	mailer := &mockMailer{}
	w := NewNotificationWorker(nil, mailer, "ops@example.com")

	event := models.VendorStatusChangedEvent{
		BaseEvent:   models.NewBaseEvent(models.EventTypeVendorStatusChanged),
		VendorID:    uuid.New(),
		VendorEmail: "shop@example.com",
		Status:      models.VendorStatusActive,
	}
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("channel closed")).Once()

	err := w.handler.Dispatch(context.Background(), encode(t, event))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestOrderPaidWithoutEmailIsSkipped(t *testing.T) {
	mailer := &mockMailer{}
	w := NewNotificationWorker(nil, mailer, "ops@example.com")

	event := models.OrderPaidEvent{BaseEvent: models.NewBaseEvent(models.EventTypeOrderPaid), OrderID: uuid.New()}
	require.NoError(t, w.handler.Dispatch(context.Background(), encode(t, event)))
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
