package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:    srv.URL,
		APIKey:     "sk_test",
		SigningKey: "sign_test",
	})
}

func TestCreateIntent(t *testing.T) {
	var gotPath, gotAuth, gotSig string
	var gotBody []byte

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotSig = r.Header.Get("X-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"intent_id": "pi_1", "client_secret": "cs_1", "status": "requires_payment"}`))
	})

	intent, err := c.CreateIntent(context.Background(), "ORD123", 15050, "USD")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.IntentID)
	assert.Equal(t, "cs_1", intent.ClientSecret)
	assert.Equal(t, "requires_payment", intent.Status)

	assert.Equal(t, "/v1/intents", gotPath)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.Equal(t, Hmac256Hex(gotBody, []byte("sign_test")), gotSig,
		"request signature must cover the exact body sent")

	var body struct {
		RequestID string `json:"request_id"`
		Reference string `json:"reference"`
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, "ORD123", body.Reference)
	assert.Equal(t, "150.5", body.Amount, "cents are scaled to major units at the boundary")
	assert.Equal(t, "USD", body.Currency)
}

func TestCreateRefund(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)

		var body struct {
			ChargeID string `json:"charge_id"`
			Amount   string `json:"amount"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ch_9", body.ChargeID)
		assert.Equal(t, "20", body.Amount)

		_, _ = w.Write([]byte(`{"refund_id": "re_1", "status": "pending"}`))
	})

	refund, err := c.CreateRefund(context.Background(), "ch_9", 2000, "USD")
	require.NoError(t, err)
	assert.Equal(t, "re_1", refund.RefundID)
	assert.Equal(t, "pending", refund.Status)
}

func TestCreateIntent_ProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code": "amount_too_small", "message": "minimum charge is 0.50"}`))
	})

	_, err := c.CreateIntent(context.Background(), "ORD123", 10, "USD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
	assert.Contains(t, err.Error(), "amount_too_small")
}

func TestCreateIntent_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CreateIntent(ctx, "ORD123", 1000, "USD")
	assert.Error(t, err)
}
