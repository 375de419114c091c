package service

import (
	"context"
	"time"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
)

// EventPublisher emits domain events after a transaction commits.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishReconciliationRaised(ctx context.Context, event *models.ReconciliationRaisedEvent) error
	PublishPayout(ctx context.Context, event *models.PayoutEvent) error
	PublishVendorStatusChanged(ctx context.Context, event *models.VendorStatusChangedEvent) error
}

// ProductCache holds read-through copies of products.
type ProductCache interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, bool, error)
	SetProduct(ctx context.Context, p *models.Product, ttl time.Duration) error
	InvalidateProducts(ctx context.Context, ids ...uuid.UUID) error
}

// IdempotencyStore remembers the order created for a client-supplied key.
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error
}

// EventMarker remembers webhook event ids that already settled.
type EventMarker interface {
	EventSeen(ctx context.Context, eventID string) (bool, error)
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) error
}

// RateLimiter reports whether another hit on key fits in the window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Timeouts bound every store call a service makes.
type Timeouts struct {
	Query time.Duration
	Tx    time.Duration
}

func (t Timeouts) query(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.Query <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.Query)
}

func (t Timeouts) tx(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.Tx <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.Tx)
}

// detached returns a context for post-commit work that must outlive a
// cancelled request.
func detached() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Caller is the authenticated principal behind a request.
type Caller struct {
	UserID uuid.UUID
	Role   string
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}
