package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImageRef is an object-storage reference. Binary content never passes through the service.
type ImageRef struct {
	URL      string `json:"url" binding:"required,url"`
	PublicID string `json:"public_id" binding:"required"`
}

// Images is stored as a JSONB array.
type Images []ImageRef

func (im Images) Value() (driver.Value, error) {
	if im == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(im)
}

func (im *Images) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*im = Images{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("images: unsupported scan type %T", src)
	}
	return json.Unmarshal(raw, im)
}

// NullImage is a single optional image stored as JSONB.
type NullImage struct {
	Image *ImageRef
}

func (n NullImage) Value() (driver.Value, error) {
	if n.Image == nil {
		return nil, nil
	}
	return json.Marshal(n.Image)
}

func (n *NullImage) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		n.Image = nil
		return nil
	case []byte:
		n.Image = &ImageRef{}
		return json.Unmarshal(v, n.Image)
	case string:
		n.Image = &ImageRef{}
		return json.Unmarshal([]byte(v), n.Image)
	default:
		return fmt.Errorf("image: unsupported scan type %T", src)
	}
}

func (n NullImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Image)
}

func (n *NullImage) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		n.Image = nil
		return nil
	}
	n.Image = &ImageRef{}
	return json.Unmarshal(b, n.Image)
}

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Category    string          `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	VendorID    *uuid.UUID      `db:"vendor_id" json:"vendor_id,omitempty"`
	Images      Images          `db:"images" json:"images"`
	Ratings     decimal.Decimal `db:"ratings" json:"ratings"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// ProductSummary is a product with its review and sales counts for the admin listing
type ProductSummary struct {
	Product
	ReviewCount int `db:"review_count" json:"review_count"`
	TotalSold   int `db:"total_sold" json:"total_sold"`
}

// CategoryCount is the number of products in a category
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

// TopProduct is a best seller by quantity over paid orders
type TopProduct struct {
	ID      uuid.UUID       `db:"id" json:"id"`
	Name    string          `db:"name" json:"name"`
	Sold    int             `db:"sold" json:"sold"`
	Revenue decimal.Decimal `db:"revenue" json:"revenue"`
}

// ProductStatistics backs the admin catalog dashboard
type ProductStatistics struct {
	TotalProducts      int             `db:"total_products" json:"total_products"`
	TotalInventory     int             `db:"total_inventory" json:"total_inventory"`
	OutOfStock         int             `db:"out_of_stock" json:"out_of_stock"`
	LowStock           int             `db:"low_stock" json:"low_stock"`
	TotalReviews       int             `db:"total_reviews" json:"total_reviews"`
	AverageRating      decimal.Decimal `db:"average_rating" json:"average_rating"`
	TotalRevenue       decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	ProductsByCategory []CategoryCount `db:"-" json:"products_by_category"`
	TopSoldProducts    []TopProduct    `db:"-" json:"top_sold_products"`
}

// Review is one buyer's rating of a product
type Review struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProductID uuid.UUID `db:"product_id" json:"product_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Variant is a purchasable size/color/material option of a product
type Variant struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ProductID uuid.UUID       `db:"product_id" json:"product_id"`
	SKU       string          `db:"sku" json:"sku"`
	Size      string          `db:"size" json:"size,omitempty"`
	Color     string          `db:"color" json:"color,omitempty"`
	Material  string          `db:"material" json:"material,omitempty"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Stock     int             `db:"stock" json:"stock"`
	Images    Images          `db:"images" json:"images"`
	IsDefault bool            `db:"is_default" json:"is_default"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// VariantListing is a variant with the product it belongs to
type VariantListing struct {
	Variant
	ProductName string `db:"product_name" json:"product_name"`
	Category    string `db:"category" json:"category"`
}

// VariantOption groups a product's variants sharing one size or color
type VariantOption struct {
	Value      string          `db:"value" json:"value"`
	TotalStock int             `db:"total_stock" json:"total_stock"`
	MinPrice   decimal.Decimal `db:"min_price" json:"min_price"`
	MaxPrice   decimal.Decimal `db:"max_price" json:"max_price"`
}

// ShippingInfo is the address snapshot captured at checkout
type ShippingInfo struct {
	FullName   string `db:"ship_full_name" json:"full_name" binding:"required"`
	Email      string `db:"ship_email" json:"email" binding:"required,email"`
	Phone      string `db:"ship_phone" json:"phone" binding:"required"`
	Address    string `db:"ship_address" json:"address" binding:"required"`
	City       string `db:"ship_city" json:"city" binding:"required"`
	State      string `db:"ship_state" json:"state"`
	Country    string `db:"ship_country" json:"country" binding:"required"`
	PostalCode string `db:"ship_postal_code" json:"postal_code" binding:"required"`
}

// Order represents a customer order
type Order struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	BuyerID    uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	CouponID   *uuid.UUID      `db:"coupon_id" json:"coupon_id,omitempty"`
	CouponCode string          `db:"coupon_code" json:"coupon_code,omitempty"`
	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	Total      decimal.Decimal `db:"total" json:"total"`
	PaidAt     *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`

	ShippingInfo `json:"shipping"`

	Items []OrderItem `db:"-" json:"items"`
}

// Status is derived from paid_at; there is no separate status column.
func (o *Order) Status() string {
	if o.PaidAt != nil {
		return OrderStatusPaid
	}
	return OrderStatusPending
}

// OrderItem represents items in an order
type OrderItem struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	OrderID     uuid.UUID       `db:"order_id" json:"order_id"`
	ProductID   uuid.UUID       `db:"product_id" json:"product_id"`
	VariantID   *uuid.UUID      `db:"variant_id" json:"variant_id,omitempty"`
	VendorID    *uuid.UUID      `db:"vendor_id" json:"vendor_id,omitempty"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// LineTotal is unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).RoundBank(2)
}

// Payment represents a payment transaction
type Payment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	OrderID   uuid.UUID       `db:"order_id" json:"order_id"`
	IntentID  string          `db:"intent_id" json:"intent_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Currency  string          `db:"currency" json:"currency"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Coupon is a discount code
type Coupon struct {
	ID                uuid.UUID           `db:"id" json:"id"`
	Code              string              `db:"code" json:"code"`
	Description       string              `db:"description" json:"description"`
	DiscountType      string              `db:"discount_type" json:"discount_type"`
	DiscountValue     decimal.Decimal     `db:"discount_value" json:"discount_value"`
	MinPurchaseAmount decimal.Decimal     `db:"min_purchase_amount" json:"min_purchase_amount"`
	MaxDiscountAmount decimal.NullDecimal `db:"max_discount_amount" json:"max_discount_amount"`
	UsageLimit        *int                `db:"usage_limit" json:"usage_limit"`
	UsedCount         int                 `db:"used_count" json:"used_count"`
	ValidFrom         time.Time           `db:"valid_from" json:"valid_from"`
	ValidUntil        time.Time           `db:"valid_until" json:"valid_until"`
	IsActive          bool                `db:"is_active" json:"is_active"`
	CreatedBy         *uuid.UUID          `db:"created_by" json:"created_by,omitempty"`
	CreatedAt         time.Time           `db:"created_at" json:"created_at"`
}

// Usable reports whether the coupon can be applied at t, ignoring per-user history.
func (c *Coupon) Usable(t time.Time) bool {
	return c.IsActive && !t.Before(c.ValidFrom) && !t.After(c.ValidUntil)
}

// Exhausted reports whether the usage limit has been reached.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// CouponUsage is one redemption of a coupon on a paid order
type CouponUsage struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	CouponID        uuid.UUID       `db:"coupon_id" json:"coupon_id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	OrderID         uuid.UUID       `db:"order_id" json:"order_id"`
	DiscountApplied decimal.Decimal `db:"discount_applied" json:"discount_applied"`
	UsedAt          time.Time       `db:"used_at" json:"used_at"`
}

// Vendor is a marketplace seller and its running ledger
type Vendor struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	UserID           uuid.UUID       `db:"user_id" json:"user_id"`
	StoreName        string          `db:"store_name" json:"store_name"`
	StoreDescription string          `db:"store_description" json:"store_description"`
	StoreLogo        NullImage       `db:"store_logo" json:"store_logo"`
	BusinessEmail    string          `db:"business_email" json:"business_email"`
	BusinessPhone    string          `db:"business_phone" json:"business_phone"`
	BusinessAddress  string          `db:"business_address" json:"business_address"`
	CommissionRate   decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	TotalSales       decimal.Decimal `db:"total_sales" json:"total_sales"`
	TotalCommission  decimal.Decimal `db:"total_commission" json:"total_commission"`
	PendingBalance   decimal.Decimal `db:"pending_balance" json:"pending_balance"`
	PaidBalance      decimal.Decimal `db:"paid_balance" json:"paid_balance"`
	Status           string          `db:"status" json:"status"`
	ApprovedBy       *uuid.UUID      `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// VendorSale is the commission split for one order line
type VendorSale struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	VendorID         uuid.UUID       `db:"vendor_id" json:"vendor_id"`
	OrderID          uuid.UUID       `db:"order_id" json:"order_id"`
	OrderItemID      uuid.UUID       `db:"order_item_id" json:"order_item_id"`
	ProductID        uuid.UUID       `db:"product_id" json:"product_id"`
	Quantity         int             `db:"quantity" json:"quantity"`
	SaleAmount       decimal.Decimal `db:"sale_amount" json:"sale_amount"`
	CommissionRate   decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	CommissionAmount decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	VendorEarnings   decimal.Decimal `db:"vendor_earnings" json:"vendor_earnings"`
	PayoutStatus     string          `db:"payout_status" json:"payout_status"`
	PayoutID         *uuid.UUID      `db:"payout_id" json:"payout_id,omitempty"`
	SaleDate         time.Time       `db:"sale_date" json:"sale_date"`
}

// VendorPayout is a withdrawal against a vendor's pending balance
type VendorPayout struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	VendorID      uuid.UUID       `db:"vendor_id" json:"vendor_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	TransactionID string          `db:"transaction_id" json:"transaction_id,omitempty"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	Status        string          `db:"status" json:"status"`
	RequestedAt   time.Time       `db:"requested_at" json:"requested_at"`
	ProcessedAt   *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy   *uuid.UUID      `db:"processed_by" json:"processed_by,omitempty"`
}

// Terminal reports whether the payout can no longer change.
func (p *VendorPayout) Terminal() bool {
	return p.Status == PayoutStatusCompleted || p.Status == PayoutStatusFailed
}

// VendorStats backs the vendor dashboard
type VendorStats struct {
	TotalProducts  int             `db:"total_products" json:"total_products"`
	TotalOrders    int             `db:"total_orders" json:"total_orders"`
	TotalSales     decimal.Decimal `db:"total_sales" json:"total_sales"`
	PendingBalance decimal.Decimal `db:"pending_balance" json:"pending_balance"`
	PaidBalance    decimal.Decimal `db:"paid_balance" json:"paid_balance"`
	ThisMonthSales decimal.Decimal `db:"this_month_sales" json:"this_month_sales"`
	RecentSales    []VendorSale    `db:"-" json:"recent_sales"`
}

// ReconciliationItem is a settlement anomaly queued for an operator
type ReconciliationItem struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Kind           string     `db:"kind" json:"kind"`
	OrderID        uuid.UUID  `db:"order_id" json:"order_id"`
	ProductID      *uuid.UUID `db:"product_id" json:"product_id,omitempty"`
	VariantID      *uuid.UUID `db:"variant_id" json:"variant_id,omitempty"`
	CouponID       *uuid.UUID `db:"coupon_id" json:"coupon_id,omitempty"`
	Requested      int        `db:"requested" json:"requested"`
	Available      int        `db:"available" json:"available"`
	Detail         string     `db:"detail" json:"detail"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy     *uuid.UUID `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolutionNote string     `db:"resolution_note" json:"resolution_note,omitempty"`
}

// WishlistItem is a product saved by a user
type WishlistItem struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ProductID uuid.UUID `db:"product_id" json:"product_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

// Payment statuses
const (
	PaymentStatusPending = "Pending"
	PaymentStatusPaid    = "Paid"
	PaymentStatusFailed  = "Failed"
)

// Discount types
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Vendor statuses
const (
	VendorStatusPending   = "pending"
	VendorStatusActive    = "active"
	VendorStatusSuspended = "suspended"
	VendorStatusRejected  = "rejected"
)

// Vendor sale payout statuses
const (
	SalePayoutPending = "pending"
	SalePayoutPaid    = "paid"
)

// Payout statuses
const (
	PayoutStatusPending    = "pending"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
)

// Reconciliation kinds
const (
	ReconcileStockShortfall      = "stock_shortfall"
	ReconcileCouponLimitExceeded = "coupon_limit_exceeded"
)

// User roles issued by the identity provider
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)
