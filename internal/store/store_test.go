package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and applies the schema.
func openTestDB(t *testing.T) *Postgres {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - set TEST_DATABASE_URL")
	}

	db, err := NewPostgres(url, PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, db.Migrate(ctx))
	return db
}

func testProduct(t *testing.T, db *Postgres, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     "Runner " + uuid.NewString()[:8],
		Category: "shoes",
		Price:    decimal.NewFromInt(50),
		Stock:    stock,
	}
	require.NoError(t, db.CreateProduct(context.Background(), p))
	return p
}

func TestCreateOrderWithItems(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := testProduct(t, db, 5)

	order := &models.Order{
		BuyerID:  uuid.New(),
		Subtotal: decimal.NewFromInt(100),
		Total:    decimal.NewFromInt(100),
		ShippingInfo: models.ShippingInfo{
			FullName: "Ada", Email: "ada@example.com", Phone: "1", Address: "1 Main",
			City: "Town", Country: "US", PostalCode: "12345",
		},
		Items: []models.OrderItem{{ProductID: p.ID, ProductName: p.Name, Quantity: 2, UnitPrice: p.Price}},
	}
	require.NoError(t, db.CreateOrder(ctx, order))
	assert.NotEqual(t, uuid.Nil, order.ID)

	got, err := db.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.BuyerID, got.BuyerID)
	assert.True(t, order.Total.Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestMarkOrderPaidOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	order := &models.Order{BuyerID: uuid.New(), Subtotal: decimal.NewFromInt(1), Total: decimal.NewFromInt(1)}
	require.NoError(t, db.CreateOrder(ctx, order))

	require.NoError(t, db.MarkOrderPaid(ctx, order.ID, time.Now()))
	err := db.MarkOrderPaid(ctx, order.ID, time.Now())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestWithTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := testProduct(t, db, 5)

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(q Queries) error {
		locked, err := q.LockProduct(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, q.SetProductStock(ctx, locked.ID, 0))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestCouponCodeUnique(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	code := "save" + uuid.NewString()[:6]

	newCoupon := func() *models.Coupon {
		return &models.Coupon{
			Code:          code,
			DiscountType:  models.DiscountFixed,
			DiscountValue: decimal.NewFromInt(5),
			ValidFrom:     time.Now().Add(-time.Hour),
			ValidUntil:    time.Now().Add(time.Hour),
			IsActive:      true,
		}
	}

	require.NoError(t, db.CreateCoupon(ctx, newCoupon()))

	err := db.CreateCoupon(ctx, newCoupon())
	assert.True(t, apperr.Is(err, apperr.KindDuplicate))

	got, err := db.GetCouponByCode(ctx, "  "+code+" ")
	require.NoError(t, err)
	assert.Equal(t, strings.ToUpper(code), got.Code)
}

func TestGetMissingProduct(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetProduct(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteOrderedProductConflicts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	p := testProduct(t, db, 5)
	v := &models.Variant{ProductID: p.ID, SKU: "SKU-" + uuid.NewString()[:8], Price: p.Price, Stock: 5}
	require.NoError(t, db.CreateVariant(ctx, v))

	order := &models.Order{
		BuyerID:  uuid.New(),
		Subtotal: p.Price,
		Total:    p.Price,
		Items:    []models.OrderItem{{ProductID: p.ID, VariantID: &v.ID, ProductName: p.Name, Quantity: 1, UnitPrice: p.Price}},
	}
	require.NoError(t, db.CreateOrder(ctx, order))

	err := db.DeleteVariant(ctx, v.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)

	err = db.DeleteProduct(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Equal(t, "Product has orders", apperr.Message(err))

	_, err = db.GetProduct(ctx, p.ID)
	assert.NoError(t, err)
}
