package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientCreateIntent(t *testing.T) {
	order := &models.Order{ID: uuid.New(), Total: decimal.RequireFromString("19.99")}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1999", r.PostForm.Get("amount"))
		assert.Equal(t, "eur", r.PostForm.Get("currency"))
		assert.Equal(t, order.ID.String(), r.PostForm.Get("metadata[order_id]"))
		assert.Equal(t, "true", r.PostForm.Get("automatic_payment_methods[enabled]"))
		assert.Equal(t, "intent-"+order.ID.String(), r.Header.Get("Idempotency-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_abc","client_secret":"pi_abc_secret"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{BaseURL: srv.URL + "/", SecretKey: "sk_test", Currency: "eur"}, NewVerifier("s", 0))
	intent, err := c.CreateIntent(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "pi_abc", intent.ID)
	assert.Equal(t, "pi_abc_secret", intent.ClientSecret)
}

func TestHTTPClientSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","message":"card declined"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{BaseURL: srv.URL, SecretKey: "sk"}, NewVerifier("s", 0))
	_, err := c.CreateIntent(context.Background(), &models.Order{ID: uuid.New(), Total: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card declined")
}

func TestSandboxIssuesLocalIntents(t *testing.T) {
	g := New(Options{Sandbox: true, WebhookSecret: "s"})
	order := &models.Order{ID: uuid.New()}

	a, err := g.CreateIntent(context.Background(), order)
	require.NoError(t, err)
	b, err := g.CreateIntent(context.Background(), order)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.ID, "pi_"))
	assert.NotEqual(t, a.ID, b.ID)
}
