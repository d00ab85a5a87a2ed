// Package payment is the HTTP adapter for the card payment provider.
// The provider speaks JSON over HTTPS; every request carries an HMAC
// signature of the body so the provider can verify the caller, and
// every webhook carries one so we can verify the provider.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClientConfig carries the provider credentials loaded from the
// environment.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	SigningKey    string
	WebhookSecret string
}

// Client calls the payment provider's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	signingKey string
	hc         *http.Client
}

// NewClient creates a provider client with a bounded request timeout.
func NewClient(c ClientConfig) *Client {
	return &Client{
		baseURL:    c.BaseURL,
		apiKey:     c.APIKey,
		signingKey: c.SigningKey,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Intent is the provider's payment intent the customer completes on
// their side. IntentID becomes our provider_ref.
type Intent struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// Refund is the provider's acknowledgement of a refund request.
type Refund struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

// CreateIntent registers a payment intent for the given amount. The
// provider wants amounts as decimal major units, so cents are scaled
// at this boundary and nowhere else.
func (c *Client) CreateIntent(ctx context.Context, orderRef string, amountCents int64, currency string) (*Intent, error) {
	body := map[string]interface{}{
		"request_id": uuid.NewString(),
		"reference":  orderRef,
		"amount":     decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)),
		"currency":   currency,
	}
	var intent Intent
	if err := c.post(ctx, "/v1/intents", body, &intent); err != nil {
		return nil, fmt.Errorf("createIntent: %w", err)
	}
	return &intent, nil
}

// CreateRefund asks the provider to refund a succeeded charge in
// full.
func (c *Client) CreateRefund(ctx context.Context, chargeID string, amountCents int64, currency string) (*Refund, error) {
	body := map[string]interface{}{
		"request_id": uuid.NewString(),
		"charge_id":  chargeID,
		"amount":     decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)),
		"currency":   currency,
	}
	var refund Refund
	if err := c.post(ctx, "/v1/refunds", body, &refund); err != nil {
		return nil, fmt.Errorf("createRefund: %w", err)
	}
	return &refund, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("json.Marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Signature", Hmac256Hex(payload, []byte(c.signingKey)))

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("provider status %d: %s %s", resp.StatusCode, apiErr.Code, apiErr.Message)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %v", err)
	}
	return nil
}
