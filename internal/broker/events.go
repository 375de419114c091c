package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"marketplace-service/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID.String(), event)
}

// PublishOrderPaid publishes OrderPaid event
func (ep *EventPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID.String(), event)
}

// PublishReconciliationRaised publishes a settlement anomaly
func (ep *EventPublisher) PublishReconciliationRaised(ctx context.Context, event *models.ReconciliationRaisedEvent) error {
	return ep.producer.PublishEvent(ctx, "order-"+event.OrderID.String(), event)
}

// PublishPayout publishes a payout request or outcome
func (ep *EventPublisher) PublishPayout(ctx context.Context, event *models.PayoutEvent) error {
	return ep.producer.PublishEvent(ctx, "vendor-"+event.VendorID.String(), event)
}

// PublishVendorStatusChanged publishes a vendor status change
func (ep *EventPublisher) PublishVendorStatusChanged(ctx context.Context, event *models.VendorStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, "vendor-"+event.VendorID.String(), event)
}

// EventHandler decodes incoming events and routes them by type
type EventHandler struct {
	onOrderPaid           func(context.Context, *models.OrderPaidEvent) error
	onReconciliation      func(context.Context, *models.ReconciliationRaisedEvent) error
	onPayout              func(context.Context, *models.PayoutEvent) error
	onVendorStatusChanged func(context.Context, *models.VendorStatusChangedEvent) error
	logger                *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(logger *zap.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

// OnOrderPaid registers a handler for ORDER_PAID events
func (eh *EventHandler) OnOrderPaid(handler func(context.Context, *models.OrderPaidEvent) error) {
	eh.onOrderPaid = handler
}

// OnReconciliationRaised registers a handler for RECONCILIATION_RAISED events
func (eh *EventHandler) OnReconciliationRaised(handler func(context.Context, *models.ReconciliationRaisedEvent) error) {
	eh.onReconciliation = handler
}

// OnPayout registers a handler for PAYOUT_REQUESTED and PAYOUT_PROCESSED events
func (eh *EventHandler) OnPayout(handler func(context.Context, *models.PayoutEvent) error) {
	eh.onPayout = handler
}

// OnVendorStatusChanged registers a handler for VENDOR_STATUS_CHANGED events
func (eh *EventHandler) OnVendorStatusChanged(handler func(context.Context, *models.VendorStatusChangedEvent) error) {
	eh.onVendorStatusChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return eh.Dispatch(ctx, msg.Value)
}

// Dispatch decodes one event payload and invokes the registered handler.
// Unknown or unhandled types are dropped.
func (eh *EventHandler) Dispatch(ctx context.Context, payload []byte) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(payload, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID),
	)

	switch baseEvent.EventType {
	case models.EventTypeOrderPaid:
		return route(ctx, payload, eh.onOrderPaid)
	case models.EventTypeReconciliationRaised:
		return route(ctx, payload, eh.onReconciliation)
	case models.EventTypePayoutRequested, models.EventTypePayoutProcessed:
		return route(ctx, payload, eh.onPayout)
	case models.EventTypeVendorStatusChanged:
		return route(ctx, payload, eh.onVendorStatusChanged)
	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

func route[T any](ctx context.Context, payload []byte, handler func(context.Context, *T) error) error {
	if handler == nil {
		return nil
	}
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", event, err)
	}
	return handler(ctx, &event)
}
