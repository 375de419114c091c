package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// CouponService validates, prices and redeems coupons
type CouponService struct {
	store         store.Store
	limiter       RateLimiter
	validateLimit int
	timeouts      Timeouts
	logger        *zap.Logger
	now           func() time.Time
}

// NewCouponService creates a new coupon service. A nil limiter disables rate limiting.
func NewCouponService(st store.Store, limiter RateLimiter, validateLimit int, timeouts Timeouts) *CouponService {
	return &CouponService{
		store:         st,
		limiter:       limiter,
		validateLimit: validateLimit,
		timeouts:      timeouts,
		logger:        util.GetLogger(),
		now:           time.Now,
	}
}

// CouponQuote is the priced result of applying a coupon to a cart total
type CouponQuote struct {
	Coupon        *models.Coupon  `json:"coupon"`
	Discount      decimal.Decimal `json:"discount"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	FinalTotal    decimal.Decimal `json:"final_total"`
}

// ComputeDiscount prices a coupon against cartTotal. The discount never
// exceeds the cart, so the final total is never negative.
func ComputeDiscount(c *models.Coupon, cartTotal decimal.Decimal) (discount, final decimal.Decimal) {
	cartTotal = util.RoundMoney(cartTotal)

	switch c.DiscountType {
	case models.DiscountPercentage:
		discount = cartTotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount.Valid && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
			discount = c.MaxDiscountAmount.Decimal
		}
	default:
		discount = c.DiscountValue
	}

	if discount.GreaterThan(cartTotal) {
		discount = cartTotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	discount = util.RoundMoney(discount)
	return discount, util.RoundMoney(cartTotal.Sub(discount))
}

// Validate prices a coupon for the caller's cart, subject to the per-user rate limit
func (s *CouponService) Validate(ctx context.Context, userID uuid.UUID, code string, cartTotal decimal.Decimal) (*CouponQuote, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.Validate", "user_id", userID.String())
	defer span.End()

	if s.limiter != nil && s.validateLimit > 0 {
		ok, err := s.limiter.Allow(ctx, "coupon-validate:"+userID.String(), s.validateLimit, time.Minute)
		if err != nil {
			s.logger.Warn("Rate limiter unavailable", zap.Error(err))
		} else if !ok {
			util.CouponValidationsTotal.WithLabelValues("rate_limited").Inc()
			return nil, apperr.RateLimited("Too many coupon attempts, please try again later")
		}
	}

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	quote, err := s.Quote(ctx, s.store, userID, code, cartTotal)
	if err != nil {
		util.CouponValidationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	util.CouponValidationsTotal.WithLabelValues("accepted").Inc()
	return quote, nil
}

// Quote applies the rejection rules in order and prices the coupon. It reads
// through q so checkout can run it against its own queries.
func (s *CouponService) Quote(ctx context.Context, q store.Queries, userID uuid.UUID, code string, cartTotal decimal.Decimal) (*CouponQuote, error) {
	if strings.TrimSpace(code) == "" {
		return nil, apperr.Validation("Coupon code is required")
	}
	if cartTotal.IsNegative() {
		return nil, apperr.Validation("Cart total must not be negative")
	}

	coupon, err := q.GetCouponByCode(ctx, code)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Validation("Invalid or expired coupon code")
		}
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}

	if !coupon.Usable(s.now()) {
		return nil, apperr.Validation("Invalid or expired coupon code")
	}

	if cartTotal.LessThan(coupon.MinPurchaseAmount) {
		return nil, apperr.Validationf("Minimum purchase amount of %s required", coupon.MinPurchaseAmount.StringFixed(2))
	}

	if coupon.Exhausted() {
		return nil, apperr.Conflict("Coupon usage limit reached")
	}

	redeemed, err := q.HasRedeemedCoupon(ctx, coupon.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check coupon usage: %w", err)
	}
	if redeemed {
		return nil, apperr.Conflict("You have already used this coupon")
	}

	discount, final := ComputeDiscount(coupon, cartTotal)
	return &CouponQuote{
		Coupon:        coupon,
		Discount:      discount,
		OriginalTotal: util.RoundMoney(cartTotal),
		FinalTotal:    final,
	}, nil
}

// RecordUsage redeems a coupon against a paid order owned by userID
func (s *CouponService) RecordUsage(ctx context.Context, userID, couponID, orderID uuid.UUID, discount decimal.Decimal) (*models.CouponUsage, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.RecordUsage",
		"coupon_id", couponID.String(), "order_id", orderID.String())
	defer span.End()

	if discount.IsNegative() {
		return nil, apperr.Validation("Discount must not be negative")
	}

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var usage *models.CouponUsage
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		order, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != userID {
			return apperr.Forbidden("Order does not belong to you")
		}
		if order.PaidAt == nil {
			return apperr.Validation("Order has not been paid")
		}

		coupon, err := q.LockCoupon(ctx, couponID)
		if err != nil {
			return err
		}

		redeemed, err := q.HasRedeemedCoupon(ctx, coupon.ID, userID)
		if err != nil {
			return err
		}
		if redeemed {
			return apperr.Conflict("You have already used this coupon")
		}
		if coupon.Exhausted() {
			return apperr.Conflict("Coupon usage limit reached")
		}

		usage = &models.CouponUsage{
			CouponID:        coupon.ID,
			UserID:          userID,
			OrderID:         orderID,
			DiscountApplied: util.RoundMoney(discount),
		}
		if err := q.CreateCouponUsage(ctx, usage); err != nil {
			return err
		}
		return q.IncrementCouponUsage(ctx, coupon.ID)
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	util.CouponRedemptionsTotal.Inc()
	s.logger.Info("Coupon redeemed",
		zap.String("coupon_id", couponID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("user_id", userID.String()))
	return usage, nil
}

// ListAvailable lists coupons a buyer can currently apply
func (s *CouponService) ListAvailable(ctx context.Context) ([]models.Coupon, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListAvailableCoupons(ctx, s.now())
}

// CouponInput is the admin payload for creating a coupon
type CouponInput struct {
	Code              string              `json:"code" binding:"required"`
	Description       string              `json:"description"`
	DiscountType      string              `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue     decimal.Decimal     `json:"discount_value"`
	MinPurchaseAmount decimal.Decimal     `json:"min_purchase_amount"`
	MaxDiscountAmount decimal.NullDecimal `json:"max_discount_amount"`
	UsageLimit        *int                `json:"usage_limit"`
	ValidFrom         *time.Time          `json:"valid_from"`
	ValidUntil        time.Time           `json:"valid_until" binding:"required"`
	IsActive          *bool               `json:"is_active"`
}

// CouponPatch is a partial update. A negative usage limit removes the limit
// and a zero max discount removes the cap.
type CouponPatch struct {
	Code              *string          `json:"code"`
	Description       *string          `json:"description"`
	DiscountType      *string          `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
	DiscountValue     *decimal.Decimal `json:"discount_value"`
	MinPurchaseAmount *decimal.Decimal `json:"min_purchase_amount"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount"`
	UsageLimit        *int             `json:"usage_limit"`
	ValidFrom         *time.Time       `json:"valid_from"`
	ValidUntil        *time.Time       `json:"valid_until"`
	IsActive          *bool            `json:"is_active"`
}

// Create adds a coupon on behalf of an admin
func (s *CouponService) Create(ctx context.Context, adminID uuid.UUID, in CouponInput) (*models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.Create")
	defer span.End()

	c := &models.Coupon{
		Code:              strings.ToUpper(strings.TrimSpace(in.Code)),
		Description:       in.Description,
		DiscountType:      in.DiscountType,
		DiscountValue:     in.DiscountValue,
		MinPurchaseAmount: in.MinPurchaseAmount,
		MaxDiscountAmount: in.MaxDiscountAmount,
		UsageLimit:        in.UsageLimit,
		ValidFrom:         s.now().UTC(),
		ValidUntil:        in.ValidUntil,
		IsActive:          true,
		CreatedBy:         &adminID,
	}
	if in.ValidFrom != nil {
		c.ValidFrom = *in.ValidFrom
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}

	if err := checkCoupon(c); err != nil {
		return nil, err
	}

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if err := s.store.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Coupon created", zap.String("coupon_id", c.ID.String()), zap.String("code", c.Code))
	return c, nil
}

// List returns every coupon
func (s *CouponService) List(ctx context.Context) ([]models.Coupon, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListCoupons(ctx)
}

// Update applies a partial update under the coupon row lock
func (s *CouponService) Update(ctx context.Context, id uuid.UUID, patch CouponPatch) (*models.Coupon, error) {
	ctx, span := util.StartSpan(ctx, "CouponService.Update", "coupon_id", id.String())
	defer span.End()

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var updated *models.Coupon
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		c, err := q.LockCoupon(ctx, id)
		if err != nil {
			return err
		}

		if patch.Code != nil {
			c.Code = strings.ToUpper(strings.TrimSpace(*patch.Code))
		}
		if patch.Description != nil {
			c.Description = *patch.Description
		}
		if patch.DiscountType != nil {
			c.DiscountType = *patch.DiscountType
		}
		if patch.DiscountValue != nil {
			c.DiscountValue = *patch.DiscountValue
		}
		if patch.MinPurchaseAmount != nil {
			c.MinPurchaseAmount = *patch.MinPurchaseAmount
		}
		if patch.MaxDiscountAmount != nil {
			if patch.MaxDiscountAmount.IsZero() {
				c.MaxDiscountAmount = decimal.NullDecimal{}
			} else {
				c.MaxDiscountAmount = decimal.NewNullDecimal(*patch.MaxDiscountAmount)
			}
		}
		if patch.UsageLimit != nil {
			if *patch.UsageLimit < 0 {
				c.UsageLimit = nil
			} else {
				limit := *patch.UsageLimit
				c.UsageLimit = &limit
			}
		}
		if patch.ValidFrom != nil {
			c.ValidFrom = *patch.ValidFrom
		}
		if patch.ValidUntil != nil {
			c.ValidUntil = *patch.ValidUntil
		}
		if patch.IsActive != nil {
			c.IsActive = *patch.IsActive
		}

		if err := checkCoupon(c); err != nil {
			return err
		}
		if c.UsageLimit != nil && *c.UsageLimit < c.UsedCount {
			return apperr.Validationf("Usage limit cannot be below the %d redemptions already made", c.UsedCount)
		}

		if err := q.UpdateCoupon(ctx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a coupon
func (s *CouponService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.DeleteCoupon(ctx, id)
}

func checkCoupon(c *models.Coupon) error {
	if c.Code == "" {
		return apperr.Validation("Coupon code is required")
	}
	if c.DiscountType != models.DiscountPercentage && c.DiscountType != models.DiscountFixed {
		return apperr.Validation("Discount type must be percentage or fixed")
	}
	if !c.DiscountValue.IsPositive() {
		return apperr.Validation("Discount value must be greater than 0")
	}
	if c.DiscountType == models.DiscountPercentage && c.DiscountValue.GreaterThan(hundred) {
		return apperr.Validation("Percentage discount cannot exceed 100")
	}
	if c.MinPurchaseAmount.IsNegative() {
		return apperr.Validation("Minimum purchase amount must not be negative")
	}
	if c.MaxDiscountAmount.Valid {
		if c.DiscountType != models.DiscountPercentage {
			return apperr.Validation("Maximum discount only applies to percentage coupons")
		}
		if !c.MaxDiscountAmount.Decimal.IsPositive() {
			return apperr.Validation("Maximum discount must be greater than 0")
		}
	}
	if c.UsageLimit != nil && *c.UsageLimit < 1 {
		return apperr.Validation("Usage limit must be at least 1")
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		return apperr.Validation("Valid until must be after valid from")
	}
	return nil
}
