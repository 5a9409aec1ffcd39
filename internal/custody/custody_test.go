package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/ruralpay/escrow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisQueue_SendTransfer(t *testing.T) {
	client, mock := redismock.NewClientMock()
	queue := NewRedisQueue(client, "custody:transfers")

	transfer := Transfer{ID: "t-1", To: "bob", Quantity: models.Seeds(600000), Memo: "offer 2", CreatedAt: time.Unix(0, 0).UTC()}
	payload, err := json.Marshal(transfer)
	require.NoError(t, err)

	t.Run("pushes the encoded transfer", func(t *testing.T) {
		mock.ExpectRPush("custody:transfers", payload).SetVal(1)
		assert.NoError(t, queue.SendTransfer(context.Background(), transfer))
	})

	t.Run("surfaces redis errors", func(t *testing.T) {
		mock.ExpectRPush("custody:transfers", payload).SetErr(errors.New("down"))
		assert.Error(t, queue.SendTransfer(context.Background(), transfer))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewTransfer(t *testing.T) {
	a := NewTransfer("bob", models.Seeds(1), "withdraw")
	b := NewTransfer("bob", models.Seeds(1), "withdraw")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDepositListener_Poll(t *testing.T) {
	const payload = `{"from":"alice","to":"escrow","quantity":"100.0000 SEEDS","memo":""}`

	client, mock := redismock.NewClientMock()
	refunds := NewMemoryQueue()
	listener := NewDepositListener(client, "custody:deposits", "custody:deposits:dead", refunds, zap.NewNop())

	t.Run("hands decoded deposit to handler", func(t *testing.T) {
		mock.ExpectBLPop(5*time.Second, "custody:deposits").
			SetVal([]string{"custody:deposits", payload})

		var got Deposit
		err := listener.Poll(context.Background(), func(_ context.Context, d Deposit) error {
			got = d
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "alice", got.From)
		assert.Equal(t, models.Seeds(1000000), got.Quantity)
		assert.Empty(t, refunds.Sent())
	})

	t.Run("rejected deposit is refunded", func(t *testing.T) {
		mock.ExpectBLPop(5*time.Second, "custody:deposits").
			SetVal([]string{"custody:deposits", payload})

		err := listener.Poll(context.Background(), func(context.Context, Deposit) error {
			return fmt.Errorf("%w: alice has no profile", models.ErrNotFound)
		})
		require.NoError(t, err)

		sent := refunds.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "alice", sent[0].To)
		assert.Equal(t, models.Seeds(1000000), sent[0].Quantity)
		assert.Equal(t, RefundMemo, sent[0].Memo)
	})

	t.Run("failed refund is dead lettered", func(t *testing.T) {
		mock.ExpectBLPop(5*time.Second, "custody:deposits").
			SetVal([]string{"custody:deposits", payload})
		mock.ExpectRPush("custody:deposits:dead", payload).SetVal(1)

		refunds.Fail = errors.New("bridge offline")
		defer func() { refunds.Fail = nil }()

		err := listener.Poll(context.Background(), func(context.Context, Deposit) error {
			return models.ErrUnauthorized
		})
		assert.NoError(t, err)
		assert.Len(t, refunds.Sent(), 1)
	})

	t.Run("transient failure is dead lettered", func(t *testing.T) {
		mock.ExpectBLPop(5*time.Second, "custody:deposits").
			SetVal([]string{"custody:deposits", payload})
		mock.ExpectRPush("custody:deposits:dead", payload).SetVal(1)

		err := listener.Poll(context.Background(), func(context.Context, Deposit) error {
			return errors.New("identity registry: connection refused")
		})
		assert.NoError(t, err)
		assert.Len(t, refunds.Sent(), 1, "no refund for a deposit that may still be applied")
	})

	t.Run("dead letter failure is surfaced", func(t *testing.T) {
		mock.ExpectBLPop(5*time.Second, "custody:deposits").
			SetVal([]string{"custody:deposits", payload})
		mock.ExpectRPush("custody:deposits:dead", payload).SetErr(errors.New("down"))

		err := listener.Poll(context.Background(), func(context.Context, Deposit) error {
			return errors.New("timeout")
		})
		assert.Error(t, err)
	})

	t.Run("malformed payload is dead lettered", func(t *testing.T) {
		mock.ExpectBLPop(5*time.Second, "custody:deposits").
			SetVal([]string{"custody:deposits", `{"quantity":"ten"}`})
		mock.ExpectRPush("custody:deposits:dead", `{"quantity":"ten"}`).SetVal(1)

		called := false
		err := listener.Poll(context.Background(), func(_ context.Context, d Deposit) error {
			called = true
			return nil
		})
		assert.NoError(t, err)
		assert.False(t, called)
	})

	t.Run("timeout", func(t *testing.T) {
		mock.ExpectBLPop(5*time.Second, "custody:deposits").RedisNil()
		err := listener.Poll(context.Background(), func(context.Context, Deposit) error { return nil })
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue()
	require.NoError(t, q.SendTransfer(context.Background(), NewTransfer("bob", models.Seeds(5), "m")))
	assert.Len(t, q.Sent(), 1)

	q.Fail = errors.New("bridge offline")
	assert.Error(t, q.SendTransfer(context.Background(), NewTransfer("bob", models.Seeds(5), "m")))
	assert.Len(t, q.Sent(), 1)
}
