package store

import (
	"context"
	"strings"
	"time"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const couponColumns = `id, code, description, discount_type, discount_value, min_purchase_amount,
	max_discount_amount, usage_limit, used_count, valid_from, valid_until, is_active, created_by, created_at`

// CreateCoupon inserts a coupon; codes are stored upper case
func (q *queries) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Code = strings.ToUpper(c.Code)
	query := `
		INSERT INTO coupons (id, code, description, discount_type, discount_value, min_purchase_amount,
			max_discount_amount, usage_limit, used_count, valid_from, valid_until, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`

	err := q.ext.QueryRowxContext(ctx, query,
		c.ID, c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MinPurchaseAmount,
		c.MaxDiscountAmount, c.UsageLimit, c.UsedCount, c.ValidFrom, c.ValidUntil, c.IsActive, c.CreatedBy,
	).Scan(&c.CreatedAt)
	return duplicate(err, "Coupon code already exists")
}

// UpdateCoupon rewrites every editable coupon field
func (q *queries) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	c.Code = strings.ToUpper(c.Code)
	res, err := q.ext.ExecContext(ctx, `
		UPDATE coupons
		SET code = $1, description = $2, discount_type = $3, discount_value = $4, min_purchase_amount = $5,
			max_discount_amount = $6, usage_limit = $7, valid_from = $8, valid_until = $9, is_active = $10
		WHERE id = $11`,
		c.Code, c.Description, c.DiscountType, c.DiscountValue, c.MinPurchaseAmount,
		c.MaxDiscountAmount, c.UsageLimit, c.ValidFrom, c.ValidUntil, c.IsActive, c.ID)
	if err != nil {
		return duplicate(err, "Coupon code already exists")
	}
	return expectOne(res, "Coupon")
}

// DeleteCoupon removes a coupon
func (q *queries) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM coupons WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectOne(res, "Coupon")
}

// GetCoupon retrieves a coupon by ID
func (q *queries) GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var c models.Coupon
	err := sqlx.GetContext(ctx, q.ext, &c, "SELECT "+couponColumns+" FROM coupons WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "Coupon")
	}
	return &c, nil
}

// GetCouponByCode matches the code case-insensitively
func (q *queries) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := sqlx.GetContext(ctx, q.ext, &c,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1", strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, notFound(err, "Coupon")
	}
	return &c, nil
}

// LockCoupon reads a coupon row FOR UPDATE
func (q *queries) LockCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var c models.Coupon
	err := sqlx.GetContext(ctx, q.ext, &c,
		"SELECT "+couponColumns+" FROM coupons WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "Coupon")
	}
	return &c, nil
}

// ListCoupons lists every coupon, newest first
func (q *queries) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	coupons := []models.Coupon{}
	err := sqlx.SelectContext(ctx, q.ext, &coupons,
		"SELECT "+couponColumns+" FROM coupons ORDER BY created_at DESC")
	return coupons, err
}

// ListAvailableCoupons lists active, in-window, non-exhausted coupons
func (q *queries) ListAvailableCoupons(ctx context.Context, at time.Time) ([]models.Coupon, error) {
	coupons := []models.Coupon{}
	err := sqlx.SelectContext(ctx, q.ext, &coupons, `
		SELECT `+couponColumns+` FROM coupons
		WHERE is_active AND valid_from <= $1 AND valid_until >= $1
			AND (usage_limit IS NULL OR used_count < usage_limit)
		ORDER BY valid_until`, at)
	return coupons, err
}

// IncrementCouponUsage bumps used_count by one
func (q *queries) IncrementCouponUsage(ctx context.Context, id uuid.UUID) error {
	res, err := q.ext.ExecContext(ctx, "UPDATE coupons SET used_count = used_count + 1 WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectOne(res, "Coupon")
}

// HasRedeemedCoupon reports whether the user redeemed the coupon on any order
func (q *queries) HasRedeemedCoupon(ctx context.Context, couponID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.ext, &exists,
		"SELECT EXISTS(SELECT 1 FROM coupon_usage WHERE coupon_id = $1 AND user_id = $2)", couponID, userID)
	return exists, err
}

// CreateCouponUsage records a redemption; the (user, coupon, order) triple is unique
func (q *queries) CreateCouponUsage(ctx context.Context, u *models.CouponUsage) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := q.ext.QueryRowxContext(ctx, `
		INSERT INTO coupon_usage (id, coupon_id, user_id, order_id, discount_applied)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING used_at`,
		u.ID, u.CouponID, u.UserID, u.OrderID, u.DiscountApplied,
	).Scan(&u.UsedAt)
	return duplicate(err, "Coupon already used for this order")
}
