package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"marketplace-service/internal/gateway"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

type fixture struct {
	store      *memstore.Store
	gateway    gateway.Gateway
	publisher  *recordingPublisher
	cache      *memoryCache
	coupons    *CouponService
	settlement *SettlementService
	payments   *PaymentService
	orders     *OrderService
	vendors    *VendorService
	catalog    *CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memstore.New()
	gw := gateway.New(gateway.Options{
		WebhookSecret: testWebhookSecret,
		Tolerance:     5 * time.Minute,
		Sandbox:       true,
	})
	pub := &recordingPublisher{}
	cache := newMemoryCache()
	timeouts := Timeouts{Query: time.Second, Tx: 2 * time.Second}

	coupons := NewCouponService(st, nil, 0, timeouts)
	settlement := NewSettlementService(st, pub, cache, timeouts)

	return &fixture{
		store:      st,
		gateway:    gw,
		publisher:  pub,
		cache:      cache,
		coupons:    coupons,
		settlement: settlement,
		payments:   NewPaymentService(st, gw, settlement, nil, timeouts),
		orders: NewOrderService(st, gw, coupons, pub, nil, OrderOptions{
			Currency: "usd",
			Timeouts: timeouts,
		}),
		vendors: NewVendorService(st, pub, decimal.NewFromInt(10), timeouts),
		catalog: NewCatalogService(st, cache, time.Minute, timeouts),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) vendor(t *testing.T, rate string) *models.Vendor {
	t.Helper()
	v := &models.Vendor{
		UserID:         uuid.New(),
		StoreName:      "Vendor " + uuid.NewString()[:6],
		BusinessEmail:  "shop@example.com",
		CommissionRate: dec(rate),
		Status:         models.VendorStatusActive,
	}
	require.NoError(t, f.store.CreateVendor(context.Background(), v))
	return v
}

func (f *fixture) product(t *testing.T, price string, stock int, vendorID *uuid.UUID) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     "Product " + uuid.NewString()[:6],
		Category: "shoes",
		Price:    dec(price),
		Stock:    stock,
		VendorID: vendorID,
	}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) variant(t *testing.T, productID uuid.UUID, price string, stock int) *models.Variant {
	t.Helper()
	v := &models.Variant{
		ProductID: productID,
		SKU:       "SKU-" + uuid.NewString()[:8],
		Size:      "42",
		Color:     "black",
		Price:     dec(price),
		Stock:     stock,
	}
	require.NoError(t, f.store.CreateVariant(context.Background(), v))
	return v
}

func (f *fixture) coupon(t *testing.T, code, kind, value string, limit *int) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:          code,
		DiscountType:  kind,
		DiscountValue: dec(value),
		UsageLimit:    limit,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(24 * time.Hour),
		IsActive:      true,
	}
	require.NoError(t, f.store.CreateCoupon(context.Background(), c))
	return c
}

func shipping() models.ShippingInfo {
	return models.ShippingInfo{
		FullName:   "Ada Buyer",
		Email:      "ada@example.com",
		Phone:      "+100000000",
		Address:    "1 Main St",
		City:       "Springfield",
		Country:    "US",
		PostalCode: "12345",
	}
}

// checkout places a single-line order and returns it with its intent id.
func (f *fixture) checkout(t *testing.T, buyerID uuid.UUID, productID uuid.UUID, qty int, coupon string) (*models.Order, string) {
	t.Helper()
	resp, err := f.orders.Checkout(context.Background(), buyerID, &CheckoutRequest{
		Items:      []CheckoutItem{{ProductID: productID, Quantity: qty}},
		CouponCode: coupon,
		Shipping:   shipping(),
	})
	require.NoError(t, err)
	return resp.Order, resp.Payment.IntentID
}

func (f *fixture) webhookPayload(eventID, eventType, intentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"data":{"object":{"id":%q,"amount":1000,"currency":"usd","metadata":{}}}}`,
		eventID, eventType, intentID))
}

func intPtr(n int) *int { return &n }

type recordingPublisher struct {
	mu             sync.Mutex
	created        []*models.OrderCreatedEvent
	paid           []*models.OrderPaidEvent
	reconciliation []*models.ReconciliationRaisedEvent
	payouts        []*models.PayoutEvent
	vendorStatus   []*models.VendorStatusChangedEvent
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return nil
}

func (p *recordingPublisher) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, e)
	return nil
}

func (p *recordingPublisher) PublishReconciliationRaised(_ context.Context, e *models.ReconciliationRaisedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reconciliation = append(p.reconciliation, e)
	return nil
}

func (p *recordingPublisher) PublishPayout(_ context.Context, e *models.PayoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payouts = append(p.payouts, e)
	return nil
}

func (p *recordingPublisher) PublishVendorStatusChanged(_ context.Context, e *models.VendorStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vendorStatus = append(p.vendorStatus, e)
	return nil
}

type memoryCache struct {
	mu          sync.Mutex
	products    map[uuid.UUID]models.Product
	hits        int
	invalidated []uuid.UUID
}

func newMemoryCache() *memoryCache {
	return &memoryCache{products: map[uuid.UUID]models.Product{}}
}

func (c *memoryCache) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &p, true, nil
}

func (c *memoryCache) SetProduct(_ context.Context, p *models.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = *p
	return nil
}

func (c *memoryCache) InvalidateProducts(_ context.Context, ids ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (m *memoryKV) GetIdempotencyKey(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryKV) SetIdempotencyKey(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryKV) EventSeen(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values["event:"+eventID]
	return ok, nil
}

func (m *memoryKV) MarkEventSeen(_ context.Context, eventID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values["event:"+eventID] = "1"
	return nil
}

var (
	_ EventPublisher   = (*recordingPublisher)(nil)
	_ ProductCache     = (*memoryCache)(nil)
	_ IdempotencyStore = (*memoryKV)(nil)
	_ EventMarker      = (*memoryKV)(nil)
	_ store.Store      = (*memstore.Store)(nil)
)
