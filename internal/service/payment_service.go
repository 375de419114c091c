package service

import (
	"context"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/gateway"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventMarkerTTL = 72 * time.Hour

// PaymentService handles gateway webhooks
type PaymentService struct {
	store      store.Store
	gateway    gateway.Gateway
	settlement *SettlementService
	marker     EventMarker
	timeouts   Timeouts
	logger     *zap.Logger
}

// NewPaymentService creates a new payment service. A nil marker disables the
// duplicate-event short circuit; settlement stays idempotent without it.
func NewPaymentService(st store.Store, gw gateway.Gateway, settlement *SettlementService, marker EventMarker, timeouts Timeouts) *PaymentService {
	return &PaymentService{
		store:      st,
		gateway:    gw,
		settlement: settlement,
		marker:     marker,
		timeouts:   timeouts,
		logger:     util.GetLogger(),
	}
}

// WebhookResult is the acknowledgement returned to the gateway
type WebhookResult struct {
	EventID        string     `json:"event_id"`
	EventType      string     `json:"event_type"`
	Ignored        bool       `json:"ignored,omitempty"`
	AlreadySettled bool       `json:"already_settled,omitempty"`
	OrderID        *uuid.UUID `json:"order_id,omitempty"`
}

// HandleWebhook verifies and applies one gateway event. Nothing is read or
// written before the signature checks out.
func (ps *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	event, err := ps.gateway.VerifyEvent(payload, signature)
	if err != nil {
		util.WebhookRejectedTotal.WithLabelValues("signature").Inc()
		util.SpanError(span, err)
		return nil, err
	}

	result := &WebhookResult{EventID: event.ID, EventType: event.Type}
	if event.Type != gateway.EventPaymentSucceeded {
		result.Ignored = true
		ps.logger.Info("Ignoring webhook event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return result, nil
	}

	if ps.marker != nil && event.ID != "" {
		seen, err := ps.marker.EventSeen(ctx, event.ID)
		if err != nil {
			ps.logger.Warn("Event marker unavailable", zap.Error(err))
		} else if seen {
			result.AlreadySettled = true
			return result, nil
		}
	}

	settled, err := ps.settlement.Settle(ctx, event.IntentID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			util.WebhookRejectedTotal.WithLabelValues("unknown_intent").Inc()
		}
		return nil, err
	}

	orderID := settled.OrderID
	result.OrderID = &orderID
	result.AlreadySettled = settled.AlreadySettled

	if ps.marker != nil && event.ID != "" {
		if err := ps.marker.MarkEventSeen(ctx, event.ID, eventMarkerTTL); err != nil {
			ps.logger.Warn("Failed to mark webhook event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	return result, nil
}

// GetPayment retrieves payment for an order
func (ps *PaymentService) GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	ctx, cancel := ps.timeouts.query(ctx)
	defer cancel()
	return ps.store.GetPaymentByOrder(ctx, orderID)
}
