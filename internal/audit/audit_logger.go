package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event types
const (
	EventTransition = "TRANSITION"
	EventBalance    = "BALANCE"
	EventTransfer   = "TRANSFER"
	EventError      = "ERROR"
)

type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	OfferID   uint64            `json:"offer_id,omitempty"`
	Account   string            `json:"account"`
	Amount    int64             `json:"amount"`
	Status    string            `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sink persists audit events.
type Sink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditLogger writes audit events to the log and, when configured, to a
// durable sink. Sink failures are logged and never fail the caller.
type AuditLogger struct {
	logger *zap.Logger
	sink   Sink
}

func NewAuditLogger(logger *zap.Logger, sink Sink) *AuditLogger {
	return &AuditLogger{logger: logger.Named("audit"), sink: sink}
}

func (a *AuditLogger) LogTransition(offerID uint64, account, from, to string, amount int64) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventTransition,
		OfferID:   offerID,
		Account:   account,
		Amount:    amount,
		Status:    to,
		Details:   map[string]string{"from": from},
	})
}

func (a *AuditLogger) LogBalance(operation, account string, amount int64) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventBalance,
		Account:   account,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"operation": operation},
	})
}

func (a *AuditLogger) LogTransfer(transferID, to string, amount int64, memo string) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventTransfer,
		Account:   to,
		Amount:    amount,
		Status:    "QUEUED",
		Details: map[string]string{
			"transfer_id": transferID,
			"memo":        memo,
		},
	})
}

func (a *AuditLogger) LogError(operation, account string, err error) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventError,
		Account:   account,
		Status:    "FAILED",
		Details: map[string]string{
			"operation": operation,
			"error":     err.Error(),
		},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	a.logger.Info("AUDIT",
		zap.String("event_type", event.EventType),
		zap.Uint64("offer_id", event.OfferID),
		zap.String("account", event.Account),
		zap.Int64("amount", event.Amount),
		zap.String("status", event.Status),
		zap.Any("details", event.Details),
	)

	if a.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.sink.Record(ctx, event); err != nil {
		a.logger.Error("Failed to journal audit event", zap.String("event_type", event.EventType), zap.Error(err))
	}
}
