package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to processing", OrderPending, OrderProcessing, true},
		{"pending to cancelled", OrderPending, OrderCancelled, true},
		{"pending to failed", OrderPending, OrderFailed, true},
		{"pending to completed skips processing", OrderPending, OrderCompleted, false},
		{"pending to refunded", OrderPending, OrderRefunded, false},
		{"processing to completed", OrderProcessing, OrderCompleted, true},
		{"processing to failed", OrderProcessing, OrderFailed, true},
		{"processing to cancelled", OrderProcessing, OrderCancelled, true},
		{"processing back to pending", OrderProcessing, OrderPending, false},
		{"completed to refunded", OrderCompleted, OrderRefunded, true},
		{"completed to cancelled", OrderCompleted, OrderCancelled, false},
		{"completed to failed", OrderCompleted, OrderFailed, false},
		{"failed is terminal", OrderFailed, OrderPending, false},
		{"cancelled is terminal", OrderCancelled, OrderProcessing, false},
		{"refunded is terminal", OrderRefunded, OrderCompleted, false},
		{"self transition", OrderProcessing, OrderProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.False(t, OrderPending.Terminal())
	assert.False(t, OrderProcessing.Terminal())
	assert.True(t, OrderCompleted.Terminal())
	assert.True(t, OrderFailed.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.True(t, OrderRefunded.Terminal())
}

func TestValidOrderStatus(t *testing.T) {
	for _, s := range []string{"pending", "processing", "completed", "failed", "cancelled", "refunded"} {
		assert.True(t, ValidOrderStatus(s), s)
	}
	for _, s := range []string{"", "PENDING", "complete", "paid", "unknown"} {
		assert.False(t, ValidOrderStatus(s), s)
	}
}
