package service

import (
	"context"
	"testing"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rate stores one review per rating and recomputes the product rating.
func (f *fixture) rate(t *testing.T, productID uuid.UUID, ratings ...int) {
	t.Helper()
	ctx := context.Background()
	for _, r := range ratings {
		require.NoError(t, f.store.UpsertReview(ctx, &models.Review{ProductID: productID, UserID: uuid.New(), Rating: r, Comment: "ok"}))
	}
	_, err := f.store.RecomputeRating(ctx, productID)
	require.NoError(t, err)
}

func (f *fixture) categorized(t *testing.T, category, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: category + " " + uuid.NewString()[:6], Category: category, Price: dec(price), Stock: stock}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func ids(products []models.Product) []uuid.UUID {
	out := make([]uuid.UUID, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestListFeatured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	top := f.product(t, "10", 3, nil)
	f.rate(t, top.ID, 5)
	good := f.product(t, "10", 2, nil)
	f.rate(t, good.ID, 4)
	soldOut := f.product(t, "10", 0, nil)
	f.rate(t, soldOut.ID, 5, 4)
	okay := f.product(t, "10", 9, nil)
	f.rate(t, okay.ID, 3, 4)
	f.product(t, "10", 9, nil)

	featured, err := f.catalog.ListFeatured(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{top.ID, good.ID}, ids(featured))
}

func TestListNewArrivals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last *models.Product
	for i := 0; i < 10; i++ {
		last = f.product(t, "10", 1, nil)
	}

	arrivals, err := f.catalog.ListNewArrivals(ctx)
	require.NoError(t, err)
	require.Len(t, arrivals, 8)
	assert.Equal(t, last.ID, arrivals[0].ID)

	f.catalog.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	arrivals, err = f.catalog.ListNewArrivals(ctx)
	require.NoError(t, err)
	assert.Empty(t, arrivals)
}

func TestListRelated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.categorized(t, "boots", "80", 2)
	plain := f.categorized(t, "boots", "60", 2)
	loved := f.categorized(t, "boots", "70", 2)
	f.rate(t, loved.ID, 5)
	f.categorized(t, "hats", "20", 2)

	related, err := f.catalog.ListRelated(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{loved.ID, plain.ID}, ids(related))

	_, err = f.catalog.ListRelated(ctx, uuid.New())
	assert.Error(t, err)
}

func TestListProductsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cheap := f.categorized(t, "socks", "5", 40)
	mid := f.categorized(t, "socks", "25", 10)
	pricey := f.categorized(t, "coats", "200", 1)
	f.rate(t, mid.ID, 4, 5)

	for i := 0; i < 3; i++ {
		f.buyer(t, cheap.ID)
	}
	f.buyer(t, mid.ID)
	f.checkout(t, uuid.New(), pricey.ID, 1, "")

	page, err := f.catalog.ListProductsAdmin(ctx, store.AdminProductFilter{SortBy: "total_sold"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Products, 3)
	assert.Equal(t, cheap.ID, page.Products[0].ID)
	assert.Equal(t, 3, page.Products[0].TotalSold)
	assert.Equal(t, 2, page.Products[1].ReviewCount)
	assert.Zero(t, page.Products[2].TotalSold, "unpaid orders do not count")

	minPrice := dec("10")
	page, err = f.catalog.ListProductsAdmin(ctx, store.AdminProductFilter{Category: "socks", MinPrice: &minPrice})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, mid.ID, page.Products[0].ID)

	page, err = f.catalog.ListProductsAdmin(ctx, store.AdminProductFilter{SortBy: "price", Asc: true, Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Products, 1)
	assert.Equal(t, pricey.ID, page.Products[0].ID)

	page, err = f.catalog.ListProductsAdmin(ctx, store.AdminProductFilter{SortBy: "price; DROP TABLE products"})
	require.NoError(t, err)
	assert.Equal(t, pricey.ID, page.Products[0].ID, "unknown sort falls back to newest first")
}

func TestProductStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.categorized(t, "shoes", "10", 0)
	low := f.categorized(t, "shoes", "20", 3)
	hat := f.categorized(t, "hats", "50", 10)

	_, intent := f.checkout(t, uuid.New(), hat.ID, 2, "")
	_, err := f.settlement.Settle(ctx, intent)
	require.NoError(t, err)
	f.checkout(t, uuid.New(), low.ID, 1, "")
	f.rate(t, hat.ID, 4)

	stats, err := f.catalog.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalProducts)
	assert.Equal(t, 11, stats.TotalInventory)
	assert.Equal(t, 1, stats.OutOfStock)
	assert.Equal(t, 1, stats.LowStock)
	assert.Equal(t, 1, stats.TotalReviews)
	assert.True(t, dec("1.33").Equal(stats.AverageRating), stats.AverageRating.String())
	assert.True(t, dec("100").Equal(stats.TotalRevenue), stats.TotalRevenue.String())
	assert.Equal(t, []models.CategoryCount{{Category: "shoes", Count: 2}, {Category: "hats", Count: 1}}, stats.ProductsByCategory)

	require.Len(t, stats.TopSoldProducts, 1)
	assert.Equal(t, hat.ID, stats.TopSoldProducts[0].ID)
	assert.Equal(t, 2, stats.TopSoldProducts[0].Sold)
	assert.True(t, dec("100").Equal(stats.TopSoldProducts[0].Revenue))
}

func TestVariantListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "10", 0, nil)

	for _, v := range []models.Variant{
		{SKU: "TEE-S-W", Size: "S", Color: "white", Price: dec("10"), Stock: 3},
		{SKU: "TEE-S-B", Size: "S", Color: "black", Price: dec("12"), Stock: 2},
		{SKU: "TEE-M-W", Size: "M", Color: "white", Price: dec("15"), Stock: 1},
		{SKU: "TEE-RED", Color: "red", Price: dec("9"), Stock: 4},
	} {
		v := v
		v.ProductID = p.ID
		require.NoError(t, f.store.CreateVariant(ctx, &v))
	}

	sizes, err := f.catalog.AvailableOptions(ctx, p.ID, store.DimensionSize)
	require.NoError(t, err)
	require.Len(t, sizes, 2)
	assert.Equal(t, "M", sizes[0].Value)
	assert.Equal(t, "S", sizes[1].Value)
	assert.Equal(t, 5, sizes[1].TotalStock)
	assert.True(t, dec("10").Equal(sizes[1].MinPrice))
	assert.True(t, dec("12").Equal(sizes[1].MaxPrice))

	colors, err := f.catalog.AvailableOptions(ctx, p.ID, store.DimensionColor)
	require.NoError(t, err)
	require.Len(t, colors, 3)
	assert.Equal(t, []string{"black", "red", "white"}, []string{colors[0].Value, colors[1].Value, colors[2].Value})
	assert.Equal(t, 4, colors[2].TotalStock)

	_, err = f.catalog.AvailableOptions(ctx, uuid.New(), store.DimensionSize)
	assert.Error(t, err)

	all, err := f.catalog.ListAllVariants(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "TEE-RED", all[0].SKU)
	assert.Equal(t, p.Name, all[0].ProductName)
	assert.Equal(t, "shoes", all[0].Category)
}
