package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-service/internal/gateway"
	"marketplace-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paidOrder checks out one unit of product p for bearer and settles it through the webhook.
func (s *testServer) paidOrder(t *testing.T, bearer string, p *models.Product) {
	t.Helper()

	w, body := s.do(t, http.MethodPost, "/api/v1/order/checkout", bearer, checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	intentID := body["payment"].(map[string]interface{})["intent_id"].(string)

	payload := []byte(fmt.Sprintf(
		`{"id":"evt_%s","type":%q,"data":{"object":{"id":%q,"amount":%d,"currency":"usd","metadata":{}}}}`,
		intentID, gateway.EventPaymentSucceeded, intentID, p.Price.Shift(2).IntPart()))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", gateway.SignHeader(testWebhookSecret, payload, time.Now()))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestDiscoveryRoutesArePublic(t *testing.T) {
	s := newTestServer(t)
	p := s.product(t, "10.00", 5)
	s.product(t, "12.00", 5)

	for _, path := range []string{
		"/api/v1/product/featured",
		"/api/v1/product/new-arrivals",
		"/api/v1/product/" + p.ID.String() + "/related",
		"/api/v1/product/" + p.ID.String() + "/reviews",
		"/api/v1/variant/sizes/" + p.ID.String(),
		"/api/v1/variant/colors/" + p.ID.String(),
	} {
		w, body := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, true, body["success"], path)
	}

	w, body := s.do(t, http.MethodGet, "/api/v1/product/"+p.ID.String()+"/related", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["products"], 1)

	w, _ = s.do(t, http.MethodGet, "/api/v1/product/"+uuid.NewString()+"/related", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReviewRequiresPurchase(t *testing.T) {
	s := newTestServer(t)
	p := s.product(t, "10.00", 5)
	bearer := token(t, uuid.New(), models.RoleUser)
	path := "/api/v1/product/review/" + p.ID.String()
	review := gin.H{"rating": 5, "comment": "Great fit"}

	w, _ := s.do(t, http.MethodPut, path, "", review)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodPut, path, bearer, review)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, body["success"])

	s.paidOrder(t, bearer, p)

	w, body = s.do(t, http.MethodPut, path, bearer, review)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decimal.NewFromInt(5).Equal(decimal.RequireFromString(body["ratings"].(string))))

	w, body = s.do(t, http.MethodGet, "/api/v1/product/"+p.ID.String()+"/reviews", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["reviews"], 1)

	w, _ = s.do(t, http.MethodDelete, path, bearer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = s.do(t, http.MethodDelete, path, bearer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReviewRejectsOutOfRangeRating(t *testing.T) {
	s := newTestServer(t)
	p := s.product(t, "10.00", 5)

	w, body := s.do(t, http.MethodPut, "/api/v1/product/review/"+p.ID.String(),
		token(t, uuid.New(), models.RoleUser), gin.H{"rating": 6, "comment": "Too good"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", body["message"])
}

func TestProductAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.product(t, "10.00", 0)
	s.product(t, "30.00", 4)
	admin := token(t, uuid.New(), models.RoleAdmin)
	user := token(t, uuid.New(), models.RoleUser)

	for _, path := range []string{
		"/api/v1/product/admin/all",
		"/api/v1/product/admin/statistics",
		"/api/v1/variant/admin/all",
	} {
		w, _ := s.do(t, http.MethodGet, path, user, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	w, body := s.do(t, http.MethodGet, "/api/v1/product/admin/all?min_price=20&limit=5", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(5), body["limit"])
	assert.Len(t, body["products"], 1)

	w, body = s.do(t, http.MethodGet, "/api/v1/product/admin/all?min_price=cheap", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid min_price", body["message"])

	w, body = s.do(t, http.MethodGet, "/api/v1/product/admin/statistics", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := body["statistics"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["total_products"])
	assert.Equal(t, float64(1), stats["out_of_stock"])
}

func TestDeleteOrderedProductRejected(t *testing.T) {
	s := newTestServer(t)
	p := s.product(t, "10.00", 5)
	admin := token(t, uuid.New(), models.RoleAdmin)

	w, _ := s.do(t, http.MethodPost, "/api/v1/order/checkout", token(t, uuid.New(), models.RoleUser), checkoutBody(p.ID, 1))
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, http.MethodDelete, "/api/v1/product/admin/delete/"+p.ID.String(), admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Product has orders", body["message"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/product/"+p.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWishlistClear(t *testing.T) {
	s := newTestServer(t)
	bearer := token(t, uuid.New(), models.RoleUser)
	for i := 0; i < 2; i++ {
		p := s.product(t, "10.00", 5)
		w, _ := s.do(t, http.MethodPost, "/api/v1/wishlist/add/"+p.ID.String(), bearer, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w, body := s.do(t, http.MethodDelete, "/api/v1/wishlist/clear", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["removed"])

	w, body = s.do(t, http.MethodGet, "/api/v1/wishlist", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["wishlist"])
}
