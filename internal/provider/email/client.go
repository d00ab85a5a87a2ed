// Package email is the HTTP adapter for the transactional mail
// provider. Sending is best-effort everywhere it is used; callers log
// failures and move on, an order never fails because mail did.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Template names known to the mail provider.
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateTicketDelivery    = "ticket_delivery"
	TemplateTicketTransfer    = "ticket_transfer"
	TemplateRefundNotice      = "refund_notice"
)

// ClientConfig carries the mail provider credentials.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	From    string
}

// Client calls the mail provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	from    string
	hc      *http.Client
}

func NewClient(c ClientConfig) *Client {
	return &Client{
		baseURL: c.BaseURL,
		apiKey:  c.APIKey,
		from:    c.From,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Message is one templated email.
type Message struct {
	To       string                 `json:"to"`
	From     string                 `json:"from"`
	Subject  string                 `json:"subject"`
	Template string                 `json:"template"`
	Data     map[string]interface{} `json:"data"`
}

// Send submits a templated message to the provider.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if msg.From == "" {
		msg.From = c.from
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("send: json.Marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("send: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("send: http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send: provider status %d", resp.StatusCode)
	}
	return nil
}
