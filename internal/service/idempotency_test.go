package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestIdempotencyGuard_MarkSeen(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	g := NewIdempotencyGuard(rdb)
	ctx := context.Background()

	mock.ExpectSetNX("webhook:seen:evt_1", 1, webhookSeenTTL).SetVal(true)
	assert.True(t, g.MarkSeen(ctx, "evt_1"), "first delivery wins")

	mock.ExpectSetNX("webhook:seen:evt_1", 1, webhookSeenTTL).SetVal(false)
	assert.False(t, g.MarkSeen(ctx, "evt_1"), "retry of the same delivery is deduped")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyGuard_FailsOpen(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	g := NewIdempotencyGuard(rdb)

	mock.ExpectSetNX("webhook:seen:evt_2", 1, webhookSeenTTL).SetErr(errors.New("redis down"))
	assert.True(t, g.MarkSeen(context.Background(), "evt_2"),
		"redis errors must not block webhook processing")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyGuard_NilClient(t *testing.T) {
	g := NewIdempotencyGuard(nil)
	ctx := context.Background()

	assert.True(t, g.MarkSeen(ctx, "evt_3"))
	g.Forget(ctx, "evt_3") // must not panic

	var nilGuard *IdempotencyGuard
	assert.True(t, nilGuard.MarkSeen(ctx, "evt_4"))
	nilGuard.Forget(ctx, "evt_4")
}

func TestIdempotencyGuard_Forget(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	g := NewIdempotencyGuard(rdb)

	mock.ExpectDel("webhook:seen:evt_5").SetVal(1)
	g.Forget(context.Background(), "evt_5")

	assert.NoError(t, mock.ExpectationsWereMet())
}
