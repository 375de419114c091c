package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/gateway"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxCheckoutLines = 50

// OrderService handles checkout and order reads
type OrderService struct {
	store          store.Store
	gateway        gateway.Gateway
	coupons        *CouponService
	eventPublisher EventPublisher
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	currency       string
	timeouts       Timeouts
	logger         *zap.Logger
}

// OrderOptions carries checkout settings
type OrderOptions struct {
	Currency       string
	IdempotencyTTL time.Duration
	Timeouts       Timeouts
}

// NewOrderService creates a new order service
func NewOrderService(
	st store.Store,
	gw gateway.Gateway,
	coupons *CouponService,
	eventPublisher EventPublisher,
	idempotency IdempotencyStore,
	opts OrderOptions,
) *OrderService {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &OrderService{
		store:          st,
		gateway:        gw,
		coupons:        coupons,
		eventPublisher: eventPublisher,
		idempotency:    idempotency,
		idempotencyTTL: opts.IdempotencyTTL,
		currency:       opts.Currency,
		timeouts:       opts.Timeouts,
		logger:         util.GetLogger(),
	}
}

// CheckoutItem is one requested cart line
type CheckoutItem struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" binding:"required,min=1"`
}

// CheckoutRequest represents a request to create an order
type CheckoutRequest struct {
	Items          []CheckoutItem      `json:"items" binding:"required,min=1,max=50,dive"`
	CouponCode     string              `json:"coupon_code"`
	Shipping       models.ShippingInfo `json:"shipping" binding:"required"`
	IdempotencyKey string              `json:"-"`
}

// CheckoutResponse carries the pending order and what the client needs to pay it
type CheckoutResponse struct {
	Order        *models.Order   `json:"order"`
	Payment      *models.Payment `json:"payment"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Replayed     bool            `json:"replayed,omitempty"`
}

type idempotencyRecord struct {
	OrderID      uuid.UUID `json:"order_id"`
	ClientSecret string    `json:"client_secret"`
}

// Checkout prices the cart, opens a payment intent and persists the pending
// order with its payment. Stock is checked but not reserved.
func (s *OrderService) Checkout(ctx context.Context, buyerID uuid.UUID, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout", "buyer_id", buyerID.String())
	defer span.End()

	if resp := s.replay(ctx, buyerID, req.IdempotencyKey); resp != nil {
		return resp, nil
	}

	order, err := s.priceCart(ctx, buyerID, req)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		util.SpanError(span, err)
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, order)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("gateway").Inc()
		util.SpanError(span, err)
		s.logger.Error("Failed to create payment intent",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindInternal, err, "Failed to create payment")
	}

	payment := &models.Payment{
		OrderID:  order.ID,
		IntentID: intent.ID,
		Amount:   order.Total,
		Currency: s.currency,
		Status:   models.PaymentStatusPending,
	}

	txCtx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	err = s.store.WithTx(txCtx, func(q store.Queries) error {
		if err := q.CreateOrder(txCtx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if err := q.CreatePayment(txCtx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		util.SpanError(span, err)
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("intent_id", intent.ID),
		zap.String("total", order.Total.StringFixed(2)))

	s.remember(ctx, buyerID, req.IdempotencyKey, order.ID, intent.ClientSecret)

	if s.eventPublisher != nil {
		event := &models.OrderCreatedEvent{
			BaseEvent: models.NewBaseEvent(models.EventTypeOrderCreated),
			OrderID:   order.ID,
			BuyerID:   order.BuyerID,
			Total:     order.Total,
			IntentID:  intent.ID,
			Items:     models.ItemData(order.Items),
		}
		if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
		}
	}

	return &CheckoutResponse{Order: order, Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// priceCart validates the requested lines and snapshots prices, vendors and
// the coupon discount into an unsaved order.
func (s *OrderService) priceCart(ctx context.Context, buyerID uuid.UUID, req *CheckoutRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("Order must contain at least one item")
	}
	if len(req.Items) > maxCheckoutLines {
		return nil, apperr.Validationf("Order cannot contain more than %d items", maxCheckoutLines)
	}

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, apperr.Validation("Quantity must be at least 1")
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	order := &models.Order{
		ID:           uuid.New(),
		BuyerID:      buyerID,
		ShippingInfo: req.Shipping,
		Subtotal:     decimal.Zero,
		Discount:     decimal.Zero,
	}

	// Several lines may draw on the same stock record.
	wanted := map[string]int{}

	for _, line := range req.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, apperr.NotFoundf("Product %s not found", line.ProductID)
		}

		item := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   product.ID,
			VendorID:    product.VendorID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
		}
		stock := product.Stock
		stockKey := product.ID.String()

		if line.VariantID != nil {
			variant, err := s.store.GetVariant(ctx, *line.VariantID)
			if err != nil {
				return nil, err
			}
			if variant.ProductID != product.ID {
				return nil, apperr.Validationf("Variant %s does not belong to product %s", variant.ID, product.ID)
			}
			item.VariantID = &variant.ID
			item.UnitPrice = variant.Price
			item.ProductName = variantLabel(product.Name, variant)
			stock = variant.Stock
			stockKey = variant.ID.String()
		}

		wanted[stockKey] += line.Quantity
		if stock < wanted[stockKey] {
			return nil, apperr.Conflict(fmt.Sprintf("Insufficient stock for %s", item.ProductName))
		}

		order.Items = append(order.Items, item)
		order.Subtotal = order.Subtotal.Add(item.LineTotal())
	}
	order.Subtotal = util.RoundMoney(order.Subtotal)

	if code := strings.TrimSpace(req.CouponCode); code != "" {
		quote, err := s.coupons.Quote(ctx, s.store, buyerID, code, order.Subtotal)
		if err != nil {
			return nil, err
		}
		order.CouponID = &quote.Coupon.ID
		order.CouponCode = quote.Coupon.Code
		order.Discount = quote.Discount
	}

	order.Total = util.RoundMoney(order.Subtotal.Sub(order.Discount))
	return order, nil
}

func variantLabel(name string, v *models.Variant) string {
	var parts []string
	for _, p := range []string{v.Size, v.Color, v.Material} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return name
	}
	return name + " (" + strings.Join(parts, ", ") + ")"
}

func failureReason(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "invalid_items"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// replay returns the order previously created under key, if any.
func (s *OrderService) replay(ctx context.Context, buyerID uuid.UUID, key string) *CheckoutResponse {
	if key == "" || s.idempotency == nil {
		return nil
	}

	raw, ok, err := s.idempotency.GetIdempotencyKey(ctx, scopedKey(buyerID, key))
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil
	}

	qctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	order, err := s.store.GetOrder(qctx, rec.OrderID)
	if err != nil {
		return nil
	}
	payment, err := s.store.GetPaymentByOrder(qctx, order.ID)
	if err != nil {
		return nil
	}

	s.logger.Info("Duplicate checkout request detected",
		zap.String("idempotency_key", key),
		zap.String("order_id", order.ID.String()))
	return &CheckoutResponse{Order: order, Payment: payment, ClientSecret: rec.ClientSecret, Replayed: true}
}

func (s *OrderService) remember(ctx context.Context, buyerID uuid.UUID, key string, orderID uuid.UUID, clientSecret string) {
	if key == "" || s.idempotency == nil {
		return
	}
	raw, _ := json.Marshal(idempotencyRecord{OrderID: orderID, ClientSecret: clientSecret})
	if err := s.idempotency.SetIdempotencyKey(ctx, scopedKey(buyerID, key), string(raw), s.idempotencyTTL); err != nil {
		s.logger.Warn("Failed to store idempotency key", zap.Error(err))
	}
}

// Keys are scoped per buyer so one client cannot replay another's order.
func scopedKey(buyerID uuid.UUID, key string) string {
	return buyerID.String() + ":" + key
}

// GetOrder retrieves an order visible to the caller. Orders of other buyers
// read as not found.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID, caller Caller) (*models.Order, *models.Payment, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", "order_id", id.String())
	defer span.End()

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if order.BuyerID != caller.UserID && !caller.IsAdmin() {
		return nil, nil, apperr.NotFound("Order not found")
	}

	payment, err := s.store.GetPaymentByOrder(ctx, id)
	if err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return nil, nil, err
	}
	return order, payment, nil
}

// ListMyOrders lists the buyer's orders, newest first
func (s *OrderService) ListMyOrders(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListOrdersByBuyer(ctx, buyerID)
}
