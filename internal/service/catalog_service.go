package service

import (
	"context"
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

const (
	maxImages = 10

	discoveryLimit   = 8
	newArrivalWindow = 30 * 24 * time.Hour
)

var featuredMinRating = decimal.NewFromInt(4)

// CatalogService manages products, their variants and reviews
type CatalogService struct {
	store    store.Store
	cache    ProductCache
	cacheTTL time.Duration
	timeouts Timeouts
	logger   *zap.Logger
	now      func() time.Time
}

// NewCatalogService creates a new catalog service. A nil cache reads straight from the store.
func NewCatalogService(st store.Store, cache ProductCache, cacheTTL time.Duration, timeouts Timeouts) *CatalogService {
	return &CatalogService{
		store:    st,
		cache:    cache,
		cacheTTL: cacheTTL,
		timeouts: timeouts,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

// ProductInput creates a product
type ProductInput struct {
	Name        string            `json:"name" binding:"required,max=255"`
	Description string            `json:"description"`
	Category    string            `json:"category" binding:"required"`
	Price       decimal.Decimal   `json:"price"`
	Stock       int               `json:"stock" binding:"min=0"`
	VendorID    *uuid.UUID        `json:"vendor_id"`
	Images      []models.ImageRef `json:"images" binding:"omitempty,max=10,dive"`
}

// ProductPatch updates the fields that are set
type ProductPatch struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Category    *string           `json:"category"`
	Price       *decimal.Decimal  `json:"price"`
	Stock       *int              `json:"stock"`
	VendorID    *uuid.UUID        `json:"vendor_id"`
	Images      []models.ImageRef `json:"images" binding:"omitempty,max=10,dive"`
}

// CreateProduct adds a product to the catalog
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	p := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       util.RoundMoney(in.Price),
		Stock:       in.Stock,
		VendorID:    in.VendorID,
		Images:      models.Images(in.Images),
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if err := s.checkVendor(ctx, p.VendorID); err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, p); err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", p.ID.String()), zap.String("name", p.Name))
	return p, nil
}

// UpdateProduct applies a patch to a product
func (s *CatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct", "product_id", id.String())
	defer span.End()

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Price != nil {
		p.Price = util.RoundMoney(*patch.Price)
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.VendorID != nil {
		if err := s.checkVendor(ctx, patch.VendorID); err != nil {
			return nil, err
		}
		p.VendorID = patch.VendorID
	}
	if patch.Images != nil {
		p.Images = models.Images(patch.Images)
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.store.UpdateProduct(ctx, p); err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	s.invalidate(id)
	return p, nil
}

// DeleteProduct removes a product and its variants. Products with order
// history are refused with a conflict.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(id)
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// GetProduct reads a product through the cache
func (s *CatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct", "product_id", id.String())
	defer span.End()

	if s.cache != nil {
		p, ok, err := s.cache.GetProduct(ctx, id)
		if err != nil {
			s.logger.Warn("Product cache read failed", zap.String("product_id", id.String()), zap.Error(err))
		} else if ok {
			return p, nil
		}
	}

	qctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	p, err := s.store.GetProduct(qctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProduct(ctx, p, s.cacheTTL); err != nil {
			s.logger.Warn("Product cache write failed", zap.String("product_id", id.String()), zap.Error(err))
		}
	}
	return p, nil
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []models.Product `json:"products"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListProducts lists products by category and search term
func (s *CatalogService) ListProducts(ctx context.Context, f store.ProductFilter) (*ProductPage, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	f = f.Normalize()
	products, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Products: products, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// ListCategories returns the distinct product categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]string, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListCategories(ctx)
}

// ListFeatured returns in-stock products rated 4 or better
func (s *CatalogService) ListFeatured(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListFeatured(ctx, featuredMinRating, discoveryLimit)
}

// ListNewArrivals returns products added in the last 30 days
func (s *CatalogService) ListNewArrivals(ctx context.Context) ([]models.Product, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListNewArrivals(ctx, s.now().Add(-newArrivalWindow), discoveryLimit)
}

// ListRelated returns other products from the same category
func (s *CatalogService) ListRelated(ctx context.Context, id uuid.UUID) ([]models.Product, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.ListRelated(ctx, p.ID, p.Category, discoveryLimit)
}

// AdminProductPage is one page of the admin product listing
type AdminProductPage struct {
	Products   []models.ProductSummary `json:"products"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
	TotalPages int                     `json:"total_pages"`
}

// ListProductsAdmin lists products with review and sales counts
func (s *CatalogService) ListProductsAdmin(ctx context.Context, f store.AdminProductFilter) (*AdminProductPage, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProductsAdmin")
	defer span.End()

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	f = f.Normalize()
	products, total, err := s.store.ListProductsAdmin(ctx, f)
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	return &AdminProductPage{
		Products:   products,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

// Statistics aggregates inventory, ratings and revenue for the admin dashboard
func (s *CatalogService) Statistics(ctx context.Context) (*models.ProductStatistics, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Statistics")
	defer span.End()

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	stats, err := s.store.ProductStatistics(ctx)
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	return stats, nil
}

// VariantInput creates a variant. A nil price inherits the product price.
type VariantInput struct {
	SKU       string            `json:"sku" binding:"required,max=100"`
	Size      string            `json:"size"`
	Color     string            `json:"color"`
	Material  string            `json:"material"`
	Price     *decimal.Decimal  `json:"price"`
	Stock     int               `json:"stock" binding:"min=0"`
	Images    []models.ImageRef `json:"images" binding:"omitempty,max=10,dive"`
	IsDefault bool              `json:"is_default"`
}

// VariantPatch updates the fields that are set
type VariantPatch struct {
	SKU       *string           `json:"sku"`
	Size      *string           `json:"size"`
	Color     *string           `json:"color"`
	Material  *string           `json:"material"`
	Price     *decimal.Decimal  `json:"price"`
	Stock     *int              `json:"stock"`
	Images    []models.ImageRef `json:"images" binding:"omitempty,max=10,dive"`
	IsDefault *bool             `json:"is_default"`
}

// AddVariant adds a variant to a product. A default variant clears the
// flag on its siblings in the same transaction.
func (s *CatalogService) AddVariant(ctx context.Context, productID uuid.UUID, in VariantInput) (*models.Variant, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddVariant", "product_id", productID.String())
	defer span.End()

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var variant *models.Variant
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		p, err := q.GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		v := &models.Variant{
			ProductID: productID,
			SKU:       strings.TrimSpace(in.SKU),
			Size:      in.Size,
			Color:     in.Color,
			Material:  in.Material,
			Price:     p.Price,
			Stock:     in.Stock,
			Images:    models.Images(in.Images),
			IsDefault: in.IsDefault,
		}
		if in.Price != nil {
			v.Price = util.RoundMoney(*in.Price)
		}
		if err := validateVariant(v); err != nil {
			return err
		}

		if err := q.CreateVariant(ctx, v); err != nil {
			return err
		}
		if v.IsDefault {
			if err := q.ClearDefaultVariants(ctx, productID, v.ID); err != nil {
				return err
			}
		}
		variant = v
		return nil
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	s.logger.Info("Variant added",
		zap.String("variant_id", variant.ID.String()),
		zap.String("product_id", productID.String()),
		zap.String("sku", variant.SKU))
	return variant, nil
}

// UpdateVariant applies a patch to a variant
func (s *CatalogService) UpdateVariant(ctx context.Context, id uuid.UUID, patch VariantPatch) (*models.Variant, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateVariant", "variant_id", id.String())
	defer span.End()

	ctx, cancel := s.timeouts.tx(ctx)
	defer cancel()

	var variant *models.Variant
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		v, err := q.LockVariant(ctx, id)
		if err != nil {
			return err
		}

		if patch.SKU != nil {
			v.SKU = strings.TrimSpace(*patch.SKU)
		}
		if patch.Size != nil {
			v.Size = *patch.Size
		}
		if patch.Color != nil {
			v.Color = *patch.Color
		}
		if patch.Material != nil {
			v.Material = *patch.Material
		}
		if patch.Price != nil {
			v.Price = util.RoundMoney(*patch.Price)
		}
		if patch.Stock != nil {
			v.Stock = *patch.Stock
		}
		if patch.Images != nil {
			v.Images = models.Images(patch.Images)
		}
		if patch.IsDefault != nil {
			v.IsDefault = *patch.IsDefault
		}
		if err := validateVariant(v); err != nil {
			return err
		}

		if err := q.UpdateVariant(ctx, v); err != nil {
			return err
		}
		if v.IsDefault {
			if err := q.ClearDefaultVariants(ctx, v.ProductID, v.ID); err != nil {
				return err
			}
		}
		variant = v
		return nil
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	return variant, nil
}

// DeleteVariant removes a variant
func (s *CatalogService) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.DeleteVariant(ctx, id)
}

// GetVariant returns one variant
func (s *CatalogService) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.GetVariant(ctx, id)
}

// ListVariants lists the variants of an existing product, default first
func (s *CatalogService) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.Variant, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListVariants(ctx, productID, store.VariantFilter{})
}

// FindVariant returns the product's variant with the given size and color
func (s *CatalogService) FindVariant(ctx context.Context, productID uuid.UUID, size, color string) (*models.Variant, error) {
	if size == "" && color == "" {
		return nil, apperr.Validation("Size or color is required")
	}

	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	variants, err := s.store.ListVariants(ctx, productID, store.VariantFilter{Size: size, Color: color})
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, apperr.NotFound("Variant not found")
	}
	return &variants[0], nil
}

// ListAllVariants returns every variant with its product, newest first
func (s *CatalogService) ListAllVariants(ctx context.Context) ([]models.VariantListing, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()
	return s.store.ListAllVariants(ctx)
}

// AvailableOptions groups an existing product's variants by size or color
func (s *CatalogService) AvailableOptions(ctx context.Context, productID uuid.UUID, dim store.VariantDimension) ([]models.VariantOption, error) {
	ctx, cancel := s.timeouts.query(ctx)
	defer cancel()

	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListVariantOptions(ctx, productID, dim)
}

func (s *CatalogService) checkVendor(ctx context.Context, vendorID *uuid.UUID) error {
	if vendorID == nil {
		return nil
	}
	if _, err := s.store.GetVendor(ctx, *vendorID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.Validation("Vendor does not exist")
		}
		return err
	}
	return nil
}

func (s *CatalogService) invalidate(ids ...uuid.UUID) {
	if s.cache == nil {
		return
	}
	ctx, cancel := detached()
	defer cancel()
	if err := s.cache.InvalidateProducts(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}

func validateProduct(p *models.Product) error {
	if p.Name == "" {
		return apperr.Validation("Product name is required")
	}
	if p.Category == "" {
		return apperr.Validation("Category is required")
	}
	if !p.Price.IsPositive() {
		return apperr.Validation("Price must be greater than 0")
	}
	if p.Stock < 0 {
		return apperr.Validation("Stock must not be negative")
	}
	return validateImages(p.Images)
}

func validateVariant(v *models.Variant) error {
	if v.SKU == "" {
		return apperr.Validation("SKU is required")
	}
	if !v.Price.IsPositive() {
		return apperr.Validation("Price must be greater than 0")
	}
	if v.Stock < 0 {
		return apperr.Validation("Stock must not be negative")
	}
	return validateImages(v.Images)
}

func validateImages(images models.Images) error {
	if len(images) > maxImages {
		return apperr.Validation("At most 10 images are allowed")
	}
	for _, img := range images {
		if !strings.HasPrefix(img.URL, "https://") && !strings.HasPrefix(img.URL, "http://") {
			return apperr.Validation("Image url must be an http(s) url")
		}
		if strings.TrimSpace(img.PublicID) == "" {
			return apperr.Validation("Image public_id is required")
		}
	}
	return nil
}
