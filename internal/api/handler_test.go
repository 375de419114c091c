package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-service/internal/gateway"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"
	"marketplace-service/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJWTSecret     = "jwt_test_secret"
	testWebhookSecret = "whsec_test_secret"
)

type testServer struct {
	router *gin.Engine
	store  *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	gw := gateway.New(gateway.Options{
		WebhookSecret: testWebhookSecret,
		Tolerance:     5 * time.Minute,
		Sandbox:       true,
	})
	timeouts := service.Timeouts{Query: time.Second, Tx: 2 * time.Second}

	coupons := service.NewCouponService(st, nil, 0, timeouts)
	settlement := service.NewSettlementService(st, nil, nil, timeouts)

	h := NewHandler(Services{
		Orders:         service.NewOrderService(st, gw, coupons, nil, nil, service.OrderOptions{Timeouts: timeouts}),
		Payments:       service.NewPaymentService(st, gw, settlement, nil, timeouts),
		Coupons:        coupons,
		Vendors:        service.NewVendorService(st, nil, decimal.NewFromInt(10), timeouts),
		Catalog:        service.NewCatalogService(st, nil, time.Minute, timeouts),
		Wishlist:       service.NewWishlistService(st, timeouts),
		Reconciliation: service.NewReconciliationService(st, timeouts),
		Database:       st,
	}, Options{JWTSecret: testJWTSecret})

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, store: st}
}

func token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (s *testServer) product(t *testing.T, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: "Runner", Category: "shoes", Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, s.store.CreateProduct(context.Background(), p))
	return p
}

func checkoutBody(productID uuid.UUID, qty int) gin.H {
	return gin.H{
		"items": []gin.H{{"product_id": productID, "quantity": qty}},
		"shipping": gin.H{
			"full_name":   "Ada Lovelace",
			"email":       "ada@example.com",
			"phone":       "+1 555 0100",
			"address":     "1 Main St",
			"city":        "London",
			"country":     "GB",
			"postal_code": "N1 9GU",
		},
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	w, _ = s.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/v1/order/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/order/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRouteForbiddenForUsers(t *testing.T) {
	s := newTestServer(t)
	user := token(t, uuid.New(), models.RoleUser)

	w, body := s.do(t, http.MethodGet, "/api/v1/coupon/admin/all", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, body["success"])

	admin := token(t, uuid.New(), models.RoleAdmin)
	w, _ = s.do(t, http.MethodGet, "/api/v1/coupon/admin/all", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvalidPathParam(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/api/v1/product/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid id", body["message"])
}

func TestCheckoutThenWebhookMarksPaid(t *testing.T) {
	s := newTestServer(t)
	buyer := uuid.New()
	bearer := token(t, buyer, models.RoleUser)
	p := s.product(t, "25.00", 10)

	w, body := s.do(t, http.MethodPost, "/api/v1/order/checkout", bearer, checkoutBody(p.ID, 2))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	order := body["order"].(map[string]interface{})
	assert.Equal(t, models.OrderStatusPending, order["status"])
	orderID := order["id"].(string)
	intentID := body["payment"].(map[string]interface{})["intent_id"].(string)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","type":%q,"data":{"object":{"id":%q,"amount":5000,"currency":"usd","metadata":{}}}}`,
		gateway.EventPaymentSucceeded, intentID))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", gateway.SignHeader(testWebhookSecret, payload, time.Now()))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w, body = s.do(t, http.MethodGet, "/api/v1/order/"+orderID, bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.OrderStatusPaid, body["order"].(map[string]interface{})["status"])

	got, err := s.store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Stock)
}

func TestOrderHiddenFromOtherBuyers(t *testing.T) {
	s := newTestServer(t)
	p := s.product(t, "10.00", 5)

	w, body := s.do(t, http.MethodPost, "/api/v1/order/checkout", token(t, uuid.New(), models.RoleUser), checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)
	orderID := body["order"].(map[string]interface{})["id"].(string)

	w, _ = s.do(t, http.MethodGet, "/api/v1/order/"+orderID, token(t, uuid.New(), models.RoleUser), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutRejectsBadBody(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodPost, "/api/v1/order/checkout", token(t, uuid.New(), models.RoleUser), gin.H{"items": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["message"])
}

func TestBindErrorHidesBinderDetail(t *testing.T) {
	s := newTestServer(t)
	bearer := token(t, uuid.New(), models.RoleUser)

	w, body := s.do(t, http.MethodPost, "/api/v1/order/checkout", bearer, []byte(`{"items":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["message"])
	assert.NotContains(t, w.Body.String(), "CheckoutRequest")
	assert.NotContains(t, w.Body.String(), "json:")
}

func TestAvailableCouponsRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/api/v1/coupon/available", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodGet, "/api/v1/coupon/available", token(t, uuid.New(), models.RoleUser), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
}

func TestWebhookBadSignature(t *testing.T) {
	s := newTestServer(t)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", gateway.SignHeader("wrong_secret", payload, time.Now()))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestWishlistAddTwice(t *testing.T) {
	s := newTestServer(t)
	bearer := token(t, uuid.New(), models.RoleUser)
	p := s.product(t, "10.00", 5)
	path := "/api/v1/wishlist/add/" + p.ID.String()

	w, _ := s.do(t, http.MethodPost, path, bearer, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, _ = s.do(t, http.MethodPost, path, bearer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodGet, "/api/v1/wishlist/check/"+p.ID.String(), bearer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["in_wishlist"])
}

func TestAdminCreatesCoupon(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, uuid.New(), models.RoleAdmin)

	w, body := s.do(t, http.MethodPost, "/api/v1/coupon/admin/create", admin, gin.H{
		"code":           "welcome10",
		"discount_type":  models.DiscountPercentage,
		"discount_value": "10",
		"valid_from":     time.Now().Add(-time.Hour).Format(time.RFC3339),
		"valid_until":    time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "WELCOME10", body["coupon"].(map[string]interface{})["code"])
}
