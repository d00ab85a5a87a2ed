package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func signed(payload string) (body []byte, signature string) {
	body = []byte(payload)
	return body, Hmac256Hex(body, []byte(webhookSecret))
}

func TestParseEvent_Valid(t *testing.T) {
	body, sig := signed(`{
		"event_id": "evt_123",
		"type": "payment.succeeded",
		"data": {"intent_id": "pi_456", "charge_id": "ch_789", "customer_id": "cus_1"}
	}`)

	ev, err := ParseEvent(body, sig, webhookSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", ev.EventID)
	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "pi_456", ev.Data.IntentID)
	assert.Equal(t, "ch_789", ev.Data.ChargeID)
	assert.Equal(t, "cus_1", ev.Data.CustomerID)
}

func TestParseEvent_BadSignature(t *testing.T) {
	body, sig := signed(`{"event_id": "evt_123", "type": "payment.succeeded"}`)

	_, err := ParseEvent(body, "deadbeef", webhookSecret)
	assert.ErrorIs(t, err, ErrBadSignature)

	// A valid signature over a different body must also fail.
	_, err = ParseEvent([]byte(`{"event_id": "evt_tampered"}`), sig, webhookSecret)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestParseEvent_WrongSecret(t *testing.T) {
	body, sig := signed(`{"event_id": "evt_123", "type": "payment.failed"}`)

	_, err := ParseEvent(body, sig, "whsec_other")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestParseEvent_MissingFields(t *testing.T) {
	for _, payload := range []string{
		`{"type": "payment.succeeded"}`,
		`{"event_id": "evt_123"}`,
		`{}`,
	} {
		body, sig := signed(payload)
		_, err := ParseEvent(body, sig, webhookSecret)
		assert.Error(t, err, payload)
		assert.NotErrorIs(t, err, ErrBadSignature, payload)
	}
}

func TestParseEvent_MalformedJSON(t *testing.T) {
	body, sig := signed(`{"event_id": `)
	_, err := ParseEvent(body, sig, webhookSecret)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadSignature)
}

func TestVerifySignature(t *testing.T) {
	payload := []byte("payload bytes")
	sig := Hmac256Hex(payload, []byte(webhookSecret))

	assert.True(t, VerifySignature(payload, sig, webhookSecret))
	assert.False(t, VerifySignature(payload, sig, "other"))
	assert.False(t, VerifySignature([]byte("different"), sig, webhookSecret))
	assert.False(t, VerifySignature(payload, "", webhookSecret))
}
