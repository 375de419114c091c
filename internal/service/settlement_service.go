package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementService applies a confirmed payment to the order, stock, vendor
// ledger and coupon in one transaction.
type SettlementService struct {
	store     store.Store
	publisher EventPublisher
	cache     ProductCache
	timeouts  Timeouts
	logger    *zap.Logger
	now       func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(st store.Store, publisher EventPublisher, cache ProductCache, timeouts Timeouts) *SettlementService {
	return &SettlementService{
		store:     st,
		publisher: publisher,
		cache:     cache,
		timeouts:  timeouts,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// SettlementResult describes what a settlement changed
type SettlementResult struct {
	OrderID        uuid.UUID                   `json:"order_id"`
	PaymentID      uuid.UUID                   `json:"payment_id"`
	AlreadySettled bool                        `json:"already_settled"`
	PaidAt         time.Time                   `json:"paid_at"`
	Sales          []models.VendorSale         `json:"sales,omitempty"`
	Reconciliation []models.ReconciliationItem `json:"reconciliation,omitempty"`
	CouponRedeemed bool                        `json:"coupon_redeemed"`

	order *models.Order
}

// Settle marks the payment for intentID paid and applies its effects. A
// payment that is already paid is a no-op; an unknown intent is NotFound.
// Any other failure rolls the whole settlement back.
func (s *SettlementService) Settle(ctx context.Context, intentID string) (*SettlementResult, error) {
	ctx, span := util.StartSpan(ctx, "SettlementService.Settle", "intent_id", intentID)
	defer span.End()

	start := time.Now()
	defer func() {
		util.SettlementLatency.Observe(time.Since(start).Seconds())
	}()

	txCtx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var result *SettlementResult
	unknownIntent := false

	err := s.store.WithTx(txCtx, func(q store.Queries) error {
		payment, err := q.LockPaymentByIntent(txCtx, intentID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				unknownIntent = true
			}
			return err
		}

		result = &SettlementResult{OrderID: payment.OrderID, PaymentID: payment.ID}
		if payment.Status == models.PaymentStatusPaid {
			result.AlreadySettled = true
			return nil
		}

		return s.apply(txCtx, q, payment, result)
	})

	if err != nil {
		util.SpanError(span, err)
		if unknownIntent {
			util.SettlementsTotal.WithLabelValues("unknown_intent").Inc()
			return nil, apperr.NotFoundf("No payment found for intent %s", intentID)
		}
		util.SettlementsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("Settlement rolled back",
			zap.String("intent_id", intentID),
			zap.Error(err))
		return nil, apperr.Settlement(err)
	}

	if result.AlreadySettled {
		util.SettlementsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Payment already settled", zap.String("intent_id", intentID),
			zap.String("order_id", result.OrderID.String()))
		return result, nil
	}

	util.SettlementsTotal.WithLabelValues("settled").Inc()
	util.OrdersPaidTotal.Inc()
	s.logger.Info("Order settled",
		zap.String("order_id", result.OrderID.String()),
		zap.String("intent_id", intentID),
		zap.Int("vendor_sales", len(result.Sales)),
		zap.Int("reconciliation_items", len(result.Reconciliation)))

	s.afterCommit(intentID, result)
	return result, nil
}

func (s *SettlementService) apply(ctx context.Context, q store.Queries, payment *models.Payment, result *SettlementResult) error {
	if err := q.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusPaid); err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}

	order, err := q.LockOrder(ctx, payment.OrderID)
	if err != nil {
		return fmt.Errorf("lock order: %w", err)
	}

	paidAt := s.now().UTC()
	if err := q.MarkOrderPaid(ctx, order.ID, paidAt); err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	order.PaidAt = &paidAt
	result.PaidAt = paidAt
	result.order = order

	items := make([]models.OrderItem, len(order.Items))
	copy(items, order.Items)
	sort.Slice(items, func(i, j int) bool { return lockKey(items[i]) < lockKey(items[j]) })

	for _, item := range items {
		if err := s.decrementStock(ctx, q, order.ID, item, result); err != nil {
			return err
		}
	}

	vendorLines := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if item.VendorID != nil {
			vendorLines = append(vendorLines, item)
		}
	}
	sort.SliceStable(vendorLines, func(i, j int) bool {
		return vendorLines[i].VendorID.String() < vendorLines[j].VendorID.String()
	})

	for _, item := range vendorLines {
		sale, err := s.recordVendorSale(ctx, q, order.ID, item)
		if err != nil {
			return err
		}
		result.Sales = append(result.Sales, *sale)
	}

	if order.CouponID != nil {
		if err := s.redeemCoupon(ctx, q, order, result); err != nil {
			return err
		}
	}

	return nil
}

func lockKey(item models.OrderItem) string {
	key := item.ProductID.String()
	if item.VariantID != nil {
		key += "/" + item.VariantID.String()
	}
	return key
}

// decrementStock takes stock for one line. Stock never goes below zero: a
// shortfall zeroes it and queues a reconciliation item instead.
func (s *SettlementService) decrementStock(ctx context.Context, q store.Queries, orderID uuid.UUID, item models.OrderItem, result *SettlementResult) error {
	var available int
	var missing bool

	if item.VariantID != nil {
		v, err := q.LockVariant(ctx, *item.VariantID)
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			missing = true
		case err != nil:
			return fmt.Errorf("lock variant %s: %w", item.VariantID, err)
		default:
			available = v.Stock
		}
	} else {
		p, err := q.LockProduct(ctx, item.ProductID)
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			missing = true
		case err != nil:
			return fmt.Errorf("lock product %s: %w", item.ProductID, err)
		default:
			available = p.Stock
		}
	}

	if missing || available < item.Quantity {
		detail := fmt.Sprintf("%s: requested %d, available %d", item.ProductName, item.Quantity, available)
		if missing {
			detail = fmt.Sprintf("%s: stock record no longer exists", item.ProductName)
		}
		productID := item.ProductID
		recon := models.ReconciliationItem{
			Kind:      models.ReconcileStockShortfall,
			OrderID:   orderID,
			ProductID: &productID,
			VariantID: item.VariantID,
			Requested: item.Quantity,
			Available: available,
			Detail:    detail,
		}
		if err := q.CreateReconciliationItem(ctx, &recon); err != nil {
			return fmt.Errorf("queue stock shortfall: %w", err)
		}
		result.Reconciliation = append(result.Reconciliation, recon)
		if missing {
			return nil
		}
	}

	remaining := available - item.Quantity
	if remaining < 0 {
		remaining = 0
	}

	if item.VariantID != nil {
		if err := q.SetVariantStock(ctx, *item.VariantID, remaining); err != nil {
			return fmt.Errorf("decrement variant stock: %w", err)
		}
		return nil
	}
	if err := q.SetProductStock(ctx, item.ProductID, remaining); err != nil {
		return fmt.Errorf("decrement product stock: %w", err)
	}
	return nil
}

// recordVendorSale splits a line between vendor and platform at the vendor's
// current commission rate.
func (s *SettlementService) recordVendorSale(ctx context.Context, q store.Queries, orderID uuid.UUID, item models.OrderItem) (*models.VendorSale, error) {
	vendor, err := q.LockVendor(ctx, *item.VendorID)
	if err != nil {
		return nil, fmt.Errorf("lock vendor %s: %w", item.VendorID, err)
	}

	saleAmount := item.LineTotal()
	commission := util.PercentOf(saleAmount, vendor.CommissionRate)
	earnings := util.RoundMoney(saleAmount.Sub(commission))

	sale := &models.VendorSale{
		VendorID:         vendor.ID,
		OrderID:          orderID,
		OrderItemID:      item.ID,
		ProductID:        item.ProductID,
		Quantity:         item.Quantity,
		SaleAmount:       saleAmount,
		CommissionRate:   vendor.CommissionRate,
		CommissionAmount: commission,
		VendorEarnings:   earnings,
		PayoutStatus:     models.SalePayoutPending,
	}
	if err := q.CreateVendorSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("record vendor sale: %w", err)
	}

	if err := q.AdjustVendorBalances(ctx, vendor.ID, store.BalanceDelta{
		Pending:    earnings,
		Sales:      saleAmount,
		Commission: commission,
	}); err != nil {
		return nil, fmt.Errorf("credit vendor balance: %w", err)
	}

	return sale, nil
}

// redeemCoupon finalizes the coupon used at checkout. When the coupon ran out
// or the buyer redeemed it elsewhere meanwhile, the payment still settles and
// the overrun is queued for an operator.
func (s *SettlementService) redeemCoupon(ctx context.Context, q store.Queries, order *models.Order, result *SettlementResult) error {
	couponID := *order.CouponID

	coupon, err := q.LockCoupon(ctx, couponID)
	var reason string
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		reason = "coupon no longer exists"
	case err != nil:
		return fmt.Errorf("lock coupon: %w", err)
	case coupon.Exhausted():
		reason = fmt.Sprintf("usage limit %d reached", *coupon.UsageLimit)
	default:
		redeemed, err := q.HasRedeemedCoupon(ctx, coupon.ID, order.BuyerID)
		if err != nil {
			return fmt.Errorf("check coupon usage: %w", err)
		}
		if redeemed {
			reason = "buyer already redeemed this coupon"
		}
	}

	if reason != "" {
		recon := models.ReconciliationItem{
			Kind:     models.ReconcileCouponLimitExceeded,
			OrderID:  order.ID,
			CouponID: &couponID,
			Detail:   fmt.Sprintf("%s: %s, discount %s honoured", order.CouponCode, reason, order.Discount.StringFixed(2)),
		}
		if err := q.CreateReconciliationItem(ctx, &recon); err != nil {
			return fmt.Errorf("queue coupon overrun: %w", err)
		}
		result.Reconciliation = append(result.Reconciliation, recon)
		return nil
	}

	usage := &models.CouponUsage{
		CouponID:        coupon.ID,
		UserID:          order.BuyerID,
		OrderID:         order.ID,
		DiscountApplied: order.Discount,
	}
	if err := q.CreateCouponUsage(ctx, usage); err != nil {
		return fmt.Errorf("record coupon usage: %w", err)
	}
	if err := q.IncrementCouponUsage(ctx, coupon.ID); err != nil {
		return fmt.Errorf("increment coupon usage: %w", err)
	}
	result.CouponRedeemed = true
	return nil
}

// afterCommit runs the side effects of a committed settlement. Failures are
// logged and never undo the settlement.
func (s *SettlementService) afterCommit(intentID string, result *SettlementResult) {
	ctx, cancel := detached()
	defer cancel()

	order := result.order

	if result.CouponRedeemed {
		util.CouponRedemptionsTotal.Inc()
	}

	for _, r := range result.Reconciliation {
		util.ReconciliationItemsTotal.WithLabelValues(r.Kind).Inc()
		s.logger.Warn("Settlement anomaly queued for reconciliation",
			zap.String("kind", r.Kind),
			zap.String("order_id", r.OrderID.String()),
			zap.String("detail", r.Detail))

		if s.publisher != nil {
			if err := s.publisher.PublishReconciliationRaised(ctx, &models.ReconciliationRaisedEvent{
				BaseEvent: models.NewBaseEvent(models.EventTypeReconciliationRaised),
				ItemID:    r.ID,
				Kind:      r.Kind,
				OrderID:   r.OrderID,
				Detail:    r.Detail,
			}); err != nil {
				s.logger.Error("Failed to publish ReconciliationRaised event", zap.Error(err))
			}
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishOrderPaid(ctx, &models.OrderPaidEvent{
			BaseEvent:  models.NewBaseEvent(models.EventTypeOrderPaid),
			OrderID:    order.ID,
			BuyerID:    order.BuyerID,
			BuyerEmail: order.Email,
			BuyerName:  order.FullName,
			PaymentID:  result.PaymentID,
			IntentID:   intentID,
			Total:      order.Total,
			PaidAt:     result.PaidAt,
			Items:      models.ItemData(order.Items),
		}); err != nil {
			s.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
		}
	}

	if s.cache != nil {
		ids := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
		if err := s.cache.InvalidateProducts(ctx, ids...); err != nil {
			s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
		}
	}
}
