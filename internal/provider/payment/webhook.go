package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Webhook event types the provider delivers. Anything else is
// acknowledged and ignored.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
	EventRefundSucceeded  = "refund.succeeded"
)

// ErrBadSignature is returned when a webhook's signature does not
// match the payload.
var ErrBadSignature = errors.New("webhook signature mismatch")

// Event is one webhook delivery from the provider. EventID is the
// provider's delivery identifier and the dedup key; IntentID matches
// the provider_ref on a payment transaction.
type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

// EventData is the payload section of a webhook event.
type EventData struct {
	IntentID       string `json:"intent_id"`
	ChargeID       string `json:"charge_id"`
	CustomerID     string `json:"customer_id"`
	RefundID       string `json:"refund_id"`
	FailureMessage string `json:"failure_message"`
}

// ParseEvent verifies the signature header against the raw payload
// and decodes the event. The raw body must be used for verification;
// re-serialized JSON will not match the provider's signature.
func ParseEvent(payload []byte, signature, secret string) (*Event, error) {
	if !VerifySignature(payload, signature, secret) {
		return nil, ErrBadSignature
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parseEvent: json.Unmarshal: %v", err)
	}
	if ev.EventID == "" || ev.Type == "" {
		return nil, errors.New("parseEvent: missing event_id or type")
	}
	return &ev, nil
}

// VerifySignature checks the hex HMAC-SHA256 signature of a payload
// in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	want := Hmac256Hex(payload, []byte(secret))
	return hmac.Equal([]byte(want), []byte(signature))
}

// Hmac256Hex returns the hex HMAC-SHA256 of data under key.
func Hmac256Hex(data, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
