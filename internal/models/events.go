package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated         = "ORDER_CREATED"
	EventTypeOrderPaid            = "ORDER_PAID"
	EventTypeReconciliationRaised = "RECONCILIATION_RAISED"
	EventTypePayoutRequested      = "PAYOUT_REQUESTED"
	EventTypePayoutProcessed      = "PAYOUT_PROCESSED"
	EventTypeVendorStatusChanged  = "VENDOR_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewBaseEvent stamps a fresh event id and time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// OrderCreatedEvent published after checkout commits
type OrderCreatedEvent struct {
	BaseEvent
	OrderID  uuid.UUID       `json:"order_id"`
	BuyerID  uuid.UUID       `json:"buyer_id"`
	Total    decimal.Decimal `json:"total"`
	IntentID string          `json:"intent_id"`
	Items    []OrderItemData `json:"items"`
}

// OrderPaidEvent published after settlement commits
type OrderPaidEvent struct {
	BaseEvent
	OrderID    uuid.UUID       `json:"order_id"`
	BuyerID    uuid.UUID       `json:"buyer_id"`
	BuyerEmail string          `json:"buyer_email"`
	BuyerName  string          `json:"buyer_name"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	IntentID   string          `json:"intent_id"`
	Total      decimal.Decimal `json:"total"`
	PaidAt     time.Time       `json:"paid_at"`
	Items      []OrderItemData `json:"items"`
}

// ReconciliationRaisedEvent announces a settlement anomaly queued for an operator
type ReconciliationRaisedEvent struct {
	BaseEvent
	ItemID  uuid.UUID `json:"item_id"`
	Kind    string    `json:"kind"`
	OrderID uuid.UUID `json:"order_id"`
	Detail  string    `json:"detail"`
}

// PayoutEvent is published when a payout is requested or processed
type PayoutEvent struct {
	BaseEvent
	PayoutID    uuid.UUID       `json:"payout_id"`
	VendorID    uuid.UUID       `json:"vendor_id"`
	VendorEmail string          `json:"vendor_email"`
	StoreName   string          `json:"store_name"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
}

// VendorStatusChangedEvent is published when an admin approves, suspends or rejects a vendor
type VendorStatusChangedEvent struct {
	BaseEvent
	VendorID    uuid.UUID `json:"vendor_id"`
	VendorEmail string    `json:"vendor_email"`
	StoreName   string    `json:"store_name"`
	Status      string    `json:"status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ItemData converts order lines into their event form.
func ItemData(items []OrderItem) []OrderItemData {
	out := make([]OrderItemData, 0, len(items))
	for _, it := range items {
		out = append(out, OrderItemData{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return out
}
