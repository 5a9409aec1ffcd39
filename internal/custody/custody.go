// Package custody bridges the escrow to the token contract that actually
// holds the funds. Outbound transfers are commands queued for the bridge;
// inbound deposits are notifications the bridge queues for the escrow.
package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/ruralpay/escrow/internal/models"
	"go.uber.org/zap"
)

// Transfer is a command to move funds out of custody.
type Transfer struct {
	ID        string       `json:"id"`
	To        string       `json:"to"`
	Quantity  models.Asset `json:"quantity"`
	Memo      string       `json:"memo"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewTransfer stamps a transfer with a fresh id.
func NewTransfer(to string, quantity models.Asset, memo string) Transfer {
	return Transfer{
		ID:        uuid.NewString(),
		To:        to,
		Quantity:  quantity,
		Memo:      memo,
		CreatedAt: time.Now().UTC(),
	}
}

// Deposit is a notification that funds entered custody.
type Deposit struct {
	From     string       `json:"from"`
	To       string       `json:"to"`
	Quantity models.Asset `json:"quantity"`
	Memo     string       `json:"memo"`
}

// Sender issues outbound transfers.
type Sender interface {
	SendTransfer(ctx context.Context, t Transfer) error
}

// RedisQueue pushes transfers onto a Redis list drained by the bridge.
type RedisQueue struct {
	redis *redis.Client
	key   string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{redis: client, key: key}
}

func (q *RedisQueue) SendTransfer(ctx context.Context, t Transfer) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := q.redis.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("queue transfer %s: %w", t.ID, err)
	}
	return nil
}

// MemoryQueue records transfers in process.
type MemoryQueue struct {
	mu   sync.Mutex
	sent []Transfer
	// Fail, when set, is returned by SendTransfer instead of recording.
	Fail error
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) SendTransfer(_ context.Context, t Transfer) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Fail != nil {
		return q.Fail
	}
	q.sent = append(q.sent, t)
	return nil
}

// Sent returns the transfers issued so far.
func (q *MemoryQueue) Sent() []Transfer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Transfer(nil), q.sent...)
}

// DepositHandler applies one deposit notification.
type DepositHandler func(ctx context.Context, d Deposit) error

// RefundMemo marks transfers that return a rejected deposit to its sender.
const RefundMemo = "refund"

// DepositListener drains deposit notifications from a Redis list. Deposits
// the handler rejects are refunded through refunds; anything it could not
// settle either way is parked on the dead letter list for an operator.
type DepositListener struct {
	redis      *redis.Client
	key        string
	deadLetter string
	refunds    Sender
	timeout    time.Duration
	logger     *zap.Logger
}

func NewDepositListener(client *redis.Client, key, deadLetter string, refunds Sender, logger *zap.Logger) *DepositListener {
	return &DepositListener{
		redis:      client,
		key:        key,
		deadLetter: deadLetter,
		refunds:    refunds,
		timeout:    5 * time.Second,
		logger:     logger,
	}
}

// Poll waits for one notification and hands it to handle. It returns
// redis.Nil when the wait timed out with nothing queued.
func (l *DepositListener) Poll(ctx context.Context, handle DepositHandler) error {
	res, err := l.redis.BLPop(ctx, l.timeout, l.key).Result()
	if err != nil {
		return err
	}
	if len(res) != 2 {
		return fmt.Errorf("unexpected BLPOP reply of %d elements", len(res))
	}
	payload := res[1]

	var d Deposit
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		l.logger.Error("[CUSTODY] Malformed deposit notification", zap.String("payload", payload), zap.Error(err))
		return l.park(ctx, payload)
	}

	err = handle(ctx, d)
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.String("from", d.From), zap.String("quantity", d.Quantity.String()), zap.Error(err)}

	if !models.IsRejection(err) || d.From == "" || d.Quantity.Amount <= 0 {
		l.logger.Error("[CUSTODY] Deposit not applied", fields...)
		return l.park(ctx, payload)
	}

	l.logger.Warn("[CUSTODY] Deposit rejected, refunding", fields...)
	if err := l.refunds.SendTransfer(ctx, NewTransfer(d.From, d.Quantity, RefundMemo)); err != nil {
		l.logger.Error("[CUSTODY] Refund failed", append(fields[:2:2], zap.Error(err))...)
		return l.park(ctx, payload)
	}
	return nil
}

// park keeps payload for manual reconciliation.
func (l *DepositListener) park(ctx context.Context, payload string) error {
	if err := l.redis.RPush(ctx, l.deadLetter, payload).Err(); err != nil {
		return fmt.Errorf("dead letter deposit: %w", err)
	}
	return nil
}

// Run polls until ctx is done.
func (l *DepositListener) Run(ctx context.Context, handle DepositHandler) {
	l.logger.Info("[CUSTODY] Deposit listener started", zap.String("queue", l.key))
	for {
		err := l.Poll(ctx, handle)
		if ctx.Err() != nil {
			l.logger.Info("[CUSTODY] Deposit listener stopped")
			return
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Error("[CUSTODY] Deposit poll failed", zap.Error(err))
			time.Sleep(time.Second)
		}
	}
}
