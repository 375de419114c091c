package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, category, price, stock, vendor_id, images, ratings, created_at, updated_at`

const variantColumns = `id, product_id, sku, size, color, material, price, stock, images, is_default, created_at, updated_at`

// CreateProduct inserts a product
func (q *queries) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO products (id, name, description, category, price, stock, vendor_id, images)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	return q.ext.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.Stock, p.VendorID, p.Images,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct rewrites the mutable product fields
func (q *queries) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, category = $3, price = $4, stock = $5, vendor_id = $6, images = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`

	err := q.ext.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.Category, p.Price, p.Stock, p.VendorID, p.Images, p.ID,
	).Scan(&p.UpdatedAt)
	return notFound(err, "Product")
}

// DeleteProduct removes a product and its variants. Products referenced by
// order history are kept.
func (q *queries) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return referenced(err, "Product has orders")
	}
	return expectOne(res, "Product")
}

// GetProduct retrieves a product by ID
func (q *queries) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, q.ext, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "Product")
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (q *queries) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = q.ext.Rebind(query)

	var products []models.Product
	err = sqlx.SelectContext(ctx, q.ext, &products, query, args...)
	return products, err
}

// ListProducts returns one page of products and the total match count
func (q *queries) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int, error) {
	f = f.Normalize()

	var (
		where []string
		args  []interface{}
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.VendorID != nil {
		args = append(args, *f.VendorID)
		where = append(where, fmt.Sprintf("vendor_id = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, q.ext, &total, "SELECT COUNT(*) FROM products"+clause, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		productColumns, clause, len(args)-1, len(args))

	products := []models.Product{}
	if err := sqlx.SelectContext(ctx, q.ext, &products, query, args...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListCategories returns the distinct product categories
func (q *queries) ListCategories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := sqlx.SelectContext(ctx, q.ext, &categories,
		"SELECT DISTINCT category FROM products ORDER BY category")
	return categories, err
}

// LockProduct reads a product row FOR UPDATE
func (q *queries) LockProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, q.ext, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "Product")
	}
	return &product, nil
}

// SetProductStock writes an absolute stock level
func (q *queries) SetProductStock(ctx context.Context, id uuid.UUID, stock int) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2", stock, id)
	if err != nil {
		return err
	}
	return expectOne(res, "Product")
}

// CreateVariant inserts a product variant
func (q *queries) CreateVariant(ctx context.Context, v *models.Variant) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	query := `
		INSERT INTO product_variants (id, product_id, sku, size, color, material, price, stock, images, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := q.ext.QueryRowxContext(ctx, query,
		v.ID, v.ProductID, v.SKU, v.Size, v.Color, v.Material, v.Price, v.Stock, v.Images, v.IsDefault,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	return duplicate(err, "Variant with this SKU or size/color already exists")
}

// UpdateVariant rewrites the mutable variant fields
func (q *queries) UpdateVariant(ctx context.Context, v *models.Variant) error {
	query := `
		UPDATE product_variants
		SET sku = $1, size = $2, color = $3, material = $4, price = $5, stock = $6, images = $7, is_default = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`

	err := q.ext.QueryRowxContext(ctx, query,
		v.SKU, v.Size, v.Color, v.Material, v.Price, v.Stock, v.Images, v.IsDefault, v.ID,
	).Scan(&v.UpdatedAt)
	return duplicate(notFound(err, "Variant"), "Variant with this SKU or size/color already exists")
}

// DeleteVariant removes a variant
func (q *queries) DeleteVariant(ctx context.Context, id uuid.UUID) error {
	res, err := q.ext.ExecContext(ctx, "DELETE FROM product_variants WHERE id = $1", id)
	if err != nil {
		return referenced(err, "Variant has orders")
	}
	return expectOne(res, "Variant")
}

// GetVariant retrieves a variant by ID
func (q *queries) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := sqlx.GetContext(ctx, q.ext, &variant,
		"SELECT "+variantColumns+" FROM product_variants WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "Variant")
	}
	return &variant, nil
}

// ListVariants lists the variants of a product, default first
func (q *queries) ListVariants(ctx context.Context, productID uuid.UUID, f VariantFilter) ([]models.Variant, error) {
	query := "SELECT " + variantColumns + " FROM product_variants WHERE product_id = $1"
	args := []interface{}{productID}
	if f.Size != "" {
		args = append(args, f.Size)
		query += fmt.Sprintf(" AND size = $%d", len(args))
	}
	if f.Color != "" {
		args = append(args, f.Color)
		query += fmt.Sprintf(" AND color = $%d", len(args))
	}
	query += " ORDER BY is_default DESC, created_at"

	variants := []models.Variant{}
	err := sqlx.SelectContext(ctx, q.ext, &variants, query, args...)
	return variants, err
}

// ClearDefaultVariants unsets is_default on every variant of the product except keep
func (q *queries) ClearDefaultVariants(ctx context.Context, productID, keep uuid.UUID) error {
	_, err := q.ext.ExecContext(ctx,
		"UPDATE product_variants SET is_default = FALSE, updated_at = NOW() WHERE product_id = $1 AND id <> $2 AND is_default",
		productID, keep)
	return err
}

// LockVariant reads a variant row FOR UPDATE
func (q *queries) LockVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := sqlx.GetContext(ctx, q.ext, &variant,
		"SELECT "+variantColumns+" FROM product_variants WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "Variant")
	}
	return &variant, nil
}

// SetVariantStock writes an absolute stock level
func (q *queries) SetVariantStock(ctx context.Context, id uuid.UUID, stock int) error {
	res, err := q.ext.ExecContext(ctx,
		"UPDATE product_variants SET stock = $1, updated_at = NOW() WHERE id = $2", stock, id)
	if err != nil {
		return err
	}
	return expectOne(res, "Variant")
}

// qualify prefixes every column of a column list with alias.
func qualify(columns, alias string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// ListFeatured returns in-stock products rated at least minRating
func (q *queries) ListFeatured(ctx context.Context, minRating decimal.Decimal, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, q.ext, &products,
		"SELECT "+productColumns+` FROM products
		WHERE stock > 0 AND ratings >= $1
		ORDER BY ratings DESC, created_at DESC
		LIMIT $2`, minRating, limit)
	return products, err
}

// ListNewArrivals returns products created since the given time, newest first
func (q *queries) ListNewArrivals(ctx context.Context, since time.Time, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, q.ext, &products,
		"SELECT "+productColumns+` FROM products
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2`, since, limit)
	return products, err
}

// ListRelated returns other products of the category
func (q *queries) ListRelated(ctx context.Context, productID uuid.UUID, category string, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := sqlx.SelectContext(ctx, q.ext, &products,
		"SELECT "+productColumns+` FROM products
		WHERE category = $1 AND id <> $2
		ORDER BY ratings DESC, created_at DESC
		LIMIT $3`, category, productID, limit)
	return products, err
}

// ListProductsAdmin returns one page of products with review and sales counts
func (q *queries) ListProductsAdmin(ctx context.Context, f AdminProductFilter) ([]models.ProductSummary, int, error) {
	f = f.Normalize()

	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if f.Category != "" {
		add("p.category = $%d", f.Category)
	}
	if f.MinPrice != nil {
		add("p.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("p.price <= $%d", *f.MaxPrice)
	}
	if f.MinStock != nil {
		add("p.stock >= $%d", *f.MinStock)
	}
	if f.MaxStock != nil {
		add("p.stock <= $%d", *f.MaxStock)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, q.ext, &total, "SELECT COUNT(*) FROM products p"+clause, args...); err != nil {
		return nil, 0, err
	}

	order := "p." + f.SortBy
	if f.SortBy == "total_sold" {
		order = "total_sold"
	}
	direction := "DESC"
	if f.Asc {
		direction = "ASC"
	}

	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`
		SELECT %s,
			COALESCE(r.review_count, 0) AS review_count,
			COALESCE(s.total_sold, 0) AS total_sold
		FROM products p
		LEFT JOIN (
			SELECT product_id, COUNT(*) AS review_count FROM reviews GROUP BY product_id
		) r ON r.product_id = p.id
		LEFT JOIN (
			SELECT oi.product_id, SUM(oi.quantity) AS total_sold
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.paid_at IS NOT NULL
			GROUP BY oi.product_id
		) s ON s.product_id = p.id%s
		ORDER BY %s %s, p.id
		LIMIT $%d OFFSET $%d`,
		qualify(productColumns, "p"), clause, order, direction, len(args)-1, len(args))

	products := []models.ProductSummary{}
	if err := sqlx.SelectContext(ctx, q.ext, &products, query, args...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ProductStatistics aggregates the catalog for the admin dashboard
func (q *queries) ProductStatistics(ctx context.Context) (*models.ProductStatistics, error) {
	var stats models.ProductStatistics
	err := sqlx.GetContext(ctx, q.ext, &stats, `
		SELECT
			COUNT(*) AS total_products,
			COALESCE(SUM(stock), 0) AS total_inventory,
			COUNT(*) FILTER (WHERE stock = 0) AS out_of_stock,
			COUNT(*) FILTER (WHERE stock BETWEEN 1 AND 5) AS low_stock,
			COALESCE(ROUND(AVG(ratings), 2), 0) AS average_rating,
			(SELECT COUNT(*) FROM reviews) AS total_reviews,
			(SELECT COALESCE(SUM(total), 0) FROM orders WHERE paid_at IS NOT NULL) AS total_revenue
		FROM products`)
	if err != nil {
		return nil, err
	}

	stats.ProductsByCategory = []models.CategoryCount{}
	err = sqlx.SelectContext(ctx, q.ext, &stats.ProductsByCategory, `
		SELECT category, COUNT(*) AS count
		FROM products
		GROUP BY category
		ORDER BY count DESC, category`)
	if err != nil {
		return nil, err
	}

	stats.TopSoldProducts = []models.TopProduct{}
	err = sqlx.SelectContext(ctx, q.ext, &stats.TopSoldProducts, `
		SELECT p.id, p.name,
			SUM(oi.quantity) AS sold,
			SUM(oi.quantity * oi.unit_price) AS revenue
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		JOIN orders o ON o.id = oi.order_id
		WHERE o.paid_at IS NOT NULL
		GROUP BY p.id, p.name
		ORDER BY sold DESC, p.name
		LIMIT 5`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListAllVariants returns every variant with its product, newest first
func (q *queries) ListAllVariants(ctx context.Context) ([]models.VariantListing, error) {
	variants := []models.VariantListing{}
	err := sqlx.SelectContext(ctx, q.ext, &variants, `
		SELECT `+qualify(variantColumns, "v")+`, p.name AS product_name, p.category
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		ORDER BY v.created_at DESC`)
	return variants, err
}

var dimensionColumns = map[VariantDimension]string{
	DimensionSize:  "size",
	DimensionColor: "color",
}

// ListVariantOptions groups the product's variants by size or color
func (q *queries) ListVariantOptions(ctx context.Context, productID uuid.UUID, dim VariantDimension) ([]models.VariantOption, error) {
	col, ok := dimensionColumns[dim]
	if !ok {
		return nil, fmt.Errorf("unknown variant dimension %q", dim)
	}

	options := []models.VariantOption{}
	err := sqlx.SelectContext(ctx, q.ext, &options, fmt.Sprintf(`
		SELECT %[1]s AS value,
			COALESCE(SUM(stock), 0) AS total_stock,
			MIN(price) AS min_price,
			MAX(price) AS max_price
		FROM product_variants
		WHERE product_id = $1 AND %[1]s <> ''
		GROUP BY %[1]s
		ORDER BY %[1]s`, col), productID)
	return options, err
}
