package service

import (
	"context"
	"testing"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductReadThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.catalog.CreateProduct(ctx, ProductInput{
		Name:     "Trail Runner",
		Category: "shoes",
		Price:    dec("89.999"),
		Stock:    4,
		Images:   []models.ImageRef{{URL: "https://cdn.example.com/a.jpg", PublicID: "a"}},
	})
	require.NoError(t, err)
	assert.True(t, dec("90").Equal(p.Price))

	_, err = f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	_, err = f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	name := "Trail Runner 2"
	_, err = f.catalog.UpdateProduct(ctx, p.ID, ProductPatch{Name: &name})
	require.NoError(t, err)

	got, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)

	require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))
	_, err = f.catalog.GetProduct(ctx, p.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateProductValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := map[string]ProductInput{
		"zero price":   {Name: "A", Category: "c", Price: dec("0")},
		"bad image":    {Name: "A", Category: "c", Price: dec("1"), Images: []models.ImageRef{{URL: "ftp://x", PublicID: "x"}}},
		"no public id": {Name: "A", Category: "c", Price: dec("1"), Images: []models.ImageRef{{URL: "https://x/y.png"}}},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.catalog.CreateProduct(ctx, in)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	missing := uuid.New()
	_, err := f.catalog.CreateProduct(ctx, ProductInput{Name: "A", Category: "c", Price: dec("1"), VendorID: &missing})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"Red Scarf", "Blue Scarf", "Wool Hat"} {
		_, err := f.catalog.CreateProduct(ctx, ProductInput{Name: name, Category: "accessories", Price: dec("10")})
		require.NoError(t, err)
	}
	_, err := f.catalog.CreateProduct(ctx, ProductInput{Name: "Boot", Category: "shoes", Price: dec("60")})
	require.NoError(t, err)

	page, err := f.catalog.ListProducts(ctx, store.ProductFilter{Search: "scarf"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 20, page.Limit)

	page, err = f.catalog.ListProducts(ctx, store.ProductFilter{Category: "accessories", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Products, 2)

	categories, err := f.catalog.ListCategories(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"accessories", "shoes"}, categories)
}

func TestVariantDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, "30", 0, nil)

	first, err := f.catalog.AddVariant(ctx, p.ID, VariantInput{SKU: "TEE-S", Size: "S", Color: "white", Stock: 3, IsDefault: true})
	require.NoError(t, err)
	assert.True(t, dec("30").Equal(first.Price), "inherits product price")

	price := dec("32")
	second, err := f.catalog.AddVariant(ctx, p.ID, VariantInput{SKU: "TEE-M", Size: "M", Color: "white", Price: &price, Stock: 2, IsDefault: true})
	require.NoError(t, err)

	variants, err := f.catalog.ListVariants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, second.ID, variants[0].ID)
	assert.True(t, variants[0].IsDefault)
	assert.False(t, variants[1].IsDefault)

	_, err = f.catalog.AddVariant(ctx, p.ID, VariantInput{SKU: "TEE-S", Size: "L"})
	assert.Equal(t, apperr.KindDuplicate, apperr.KindOf(err))

	found, err := f.catalog.FindVariant(ctx, p.ID, "S", "white")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = f.catalog.FindVariant(ctx, p.ID, "XL", "")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	yes := true
	_, err = f.catalog.UpdateVariant(ctx, first.ID, VariantPatch{IsDefault: &yes})
	require.NoError(t, err)

	reloaded, err := f.catalog.GetVariant(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)

	require.NoError(t, f.catalog.DeleteVariant(ctx, second.ID))
	_, err = f.catalog.GetVariant(ctx, second.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.catalog.AddVariant(ctx, uuid.New(), VariantInput{SKU: "X"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
