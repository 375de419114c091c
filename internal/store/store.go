package store

import (
	"context"
	"time"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogQueries covers products and variants.
type CatalogQueries interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int, error)
	ListCategories(ctx context.Context) ([]string, error)
	// ListFeatured returns in-stock products rated at least minRating, best rated first.
	ListFeatured(ctx context.Context, minRating decimal.Decimal, limit int) ([]models.Product, error)
	ListNewArrivals(ctx context.Context, since time.Time, limit int) ([]models.Product, error)
	// ListRelated returns other products of the category, best rated first.
	ListRelated(ctx context.Context, productID uuid.UUID, category string, limit int) ([]models.Product, error)
	ListProductsAdmin(ctx context.Context, f AdminProductFilter) ([]models.ProductSummary, int, error)
	ProductStatistics(ctx context.Context) (*models.ProductStatistics, error)
	// LockProduct reads a product with a row lock held until the transaction ends.
	LockProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	SetProductStock(ctx context.Context, id uuid.UUID, stock int) error

	CreateVariant(ctx context.Context, v *models.Variant) error
	UpdateVariant(ctx context.Context, v *models.Variant) error
	DeleteVariant(ctx context.Context, id uuid.UUID) error
	GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error)
	ListVariants(ctx context.Context, productID uuid.UUID, f VariantFilter) ([]models.Variant, error)
	ClearDefaultVariants(ctx context.Context, productID, keep uuid.UUID) error
	LockVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error)
	SetVariantStock(ctx context.Context, id uuid.UUID, stock int) error
	ListAllVariants(ctx context.Context) ([]models.VariantListing, error)
	ListVariantOptions(ctx context.Context, productID uuid.UUID, dim VariantDimension) ([]models.VariantOption, error)
}

// ReviewQueries covers product reviews and the rating they feed.
type ReviewQueries interface {
	// UpsertReview writes the user's review of the product, replacing an earlier one.
	UpsertReview(ctx context.Context, r *models.Review) error
	DeleteReview(ctx context.Context, productID, userID uuid.UUID) error
	ListReviews(ctx context.Context, productID uuid.UUID) ([]models.Review, error)
	// RecomputeRating stores the product's average review rating and returns it.
	RecomputeRating(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	// HasPurchased reports whether the user has a paid order containing the product.
	HasPurchased(ctx context.Context, userID, productID uuid.UUID) (bool, error)
}

// OrderQueries covers orders, order lines and payments.
type OrderQueries interface {
	// CreateOrder inserts the order together with its items.
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	// MarkOrderPaid stamps paid_at once; a second call returns a conflict.
	MarkOrderPaid(ctx context.Context, id uuid.UUID, at time.Time) error

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	LockPaymentByIntent(ctx context.Context, intentID string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status string) error
}

// CouponQueries covers coupons and their redemptions.
type CouponQueries interface {
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	UpdateCoupon(ctx context.Context, c *models.Coupon) error
	DeleteCoupon(ctx context.Context, id uuid.UUID) error
	GetCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	LockCoupon(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	ListAvailableCoupons(ctx context.Context, at time.Time) ([]models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, id uuid.UUID) error
	HasRedeemedCoupon(ctx context.Context, couponID, userID uuid.UUID) (bool, error)
	CreateCouponUsage(ctx context.Context, u *models.CouponUsage) error
}

// VendorQueries covers vendors, their sales ledger and payouts.
type VendorQueries interface {
	CreateVendor(ctx context.Context, v *models.Vendor) error
	UpdateVendorProfile(ctx context.Context, v *models.Vendor) error
	UpdateVendorStatus(ctx context.Context, v *models.Vendor) error
	GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	GetVendorByUser(ctx context.Context, userID uuid.UUID) (*models.Vendor, error)
	LockVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	ListVendors(ctx context.Context, status string) ([]models.Vendor, error)
	AdjustVendorBalances(ctx context.Context, id uuid.UUID, d BalanceDelta) error

	CreateVendorSale(ctx context.Context, s *models.VendorSale) error
	// ListPendingSales returns unpaid sales oldest first.
	ListPendingSales(ctx context.Context, vendorID uuid.UUID) ([]models.VendorSale, error)
	ListSalesByOrder(ctx context.Context, orderID uuid.UUID) ([]models.VendorSale, error)
	ListRecentSales(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.VendorSale, error)
	MarkSalesPaid(ctx context.Context, ids []uuid.UUID, payoutID uuid.UUID) error
	VendorStats(ctx context.Context, vendorID uuid.UUID, monthStart time.Time) (*models.VendorStats, error)

	CreatePayout(ctx context.Context, p *models.VendorPayout) error
	GetPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error)
	LockPayout(ctx context.Context, id uuid.UUID) (*models.VendorPayout, error)
	UpdatePayout(ctx context.Context, p *models.VendorPayout) error
	ListPayouts(ctx context.Context, vendorID uuid.UUID) ([]models.VendorPayout, error)
}

// ReconciliationQueries covers the operator reconciliation queue.
type ReconciliationQueries interface {
	CreateReconciliationItem(ctx context.Context, r *models.ReconciliationItem) error
	ListReconciliationItems(ctx context.Context, openOnly bool) ([]models.ReconciliationItem, error)
	LockReconciliationItem(ctx context.Context, id uuid.UUID) (*models.ReconciliationItem, error)
	ResolveReconciliationItem(ctx context.Context, r *models.ReconciliationItem) error
}

// WishlistQueries covers saved products.
type WishlistQueries interface {
	AddWishlistItem(ctx context.Context, w *models.WishlistItem) error
	RemoveWishlistItem(ctx context.Context, userID, productID uuid.UUID) error
	HasWishlistItem(ctx context.Context, userID, productID uuid.UUID) (bool, error)
	ListWishlist(ctx context.Context, userID uuid.UUID) ([]WishlistEntry, error)
	// ClearWishlist removes every saved product of the user and returns how many.
	ClearWishlist(ctx context.Context, userID uuid.UUID) (int, error)
}

// Queries is every read and write the services issue. Implementations run it
// either in autocommit mode or inside a transaction handed out by WithTx.
type Queries interface {
	CatalogQueries
	ReviewQueries
	OrderQueries
	CouponQueries
	VendorQueries
	ReconciliationQueries
	WishlistQueries
}

// Store is the storage capability injected into services.
type Store interface {
	Queries
	// WithTx runs fn in one transaction. A non-nil error from fn, or a
	// cancelled ctx, rolls back every write fn made.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category string
	Search   string
	VendorID *uuid.UUID
	Limit    int
	Offset   int
}

// Normalize applies default and maximum page sizes.
func (f ProductFilter) Normalize() ProductFilter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Sort columns accepted by AdminProductFilter.
var adminSortColumns = map[string]bool{
	"name":       true,
	"price":      true,
	"stock":      true,
	"created_at": true,
	"ratings":    true,
	"total_sold": true,
}

// AdminProductFilter narrows and orders the admin product listing.
type AdminProductFilter struct {
	Search   string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	MinStock *int
	MaxStock *int
	SortBy   string
	Asc      bool
	Page     int
	Limit    int
}

// Normalize applies the default sort, page and page size.
func (f AdminProductFilter) Normalize() AdminProductFilter {
	if !adminSortColumns[f.SortBy] {
		f.SortBy = "created_at"
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

// Offset is the number of rows skipped before the page.
func (f AdminProductFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// VariantDimension is a variant attribute options are grouped by.
type VariantDimension string

const (
	DimensionSize  VariantDimension = "size"
	DimensionColor VariantDimension = "color"
)

// VariantFilter narrows variant listings of a product.
type VariantFilter struct {
	Size  string
	Color string
}

// BalanceDelta is added to a vendor's running totals.
type BalanceDelta struct {
	Pending    decimal.Decimal
	Paid       decimal.Decimal
	Sales      decimal.Decimal
	Commission decimal.Decimal
}

// WishlistEntry is a wishlist row joined with its product.
type WishlistEntry struct {
	WishlistID uuid.UUID      `db:"wishlist_id" json:"wishlist_id"`
	AddedAt    time.Time      `db:"added_at" json:"added_at"`
	Product    models.Product `db:"product" json:"product"`
}
