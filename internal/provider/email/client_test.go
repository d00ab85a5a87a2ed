package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	var got Message
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "mk_test", From: "tickets@example.com"})

	err := c.Send(context.Background(), Message{
		To:       "fan@example.com",
		Subject:  "Your tickets",
		Template: TemplateTicketDelivery,
		Data:     map[string]interface{}{"event_name": "Jazz Night"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer mk_test", gotAuth)
	assert.Equal(t, "fan@example.com", got.To)
	assert.Equal(t, "tickets@example.com", got.From, "From defaults to the configured sender")
	assert.Equal(t, TemplateTicketDelivery, got.Template)
	assert.Equal(t, "Jazz Night", got.Data["event_name"])
}

func TestSend_ExplicitFromKept(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "mk_test", From: "tickets@example.com"})
	err := c.Send(context.Background(), Message{To: "fan@example.com", From: "vip@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "vip@example.com", got.From)
}

func TestSend_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "mk_test"})
	err := c.Send(context.Background(), Message{To: "fan@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
