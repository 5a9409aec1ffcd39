// Package events publishes offer lifecycle changes for downstream
// consumers such as notification and messaging services.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// OfferEvent describes one committed status transition.
type OfferEvent struct {
	OfferID uint64    `json:"offer_id"`
	Kind    string    `json:"kind"`
	SellID  uint64    `json:"sell_id"`
	Seller  string    `json:"seller"`
	Buyer   string    `json:"buyer,omitempty"`
	Actor   string    `json:"actor"`
	Amount  int64     `json:"amount"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

// Publisher delivers offer events.
type Publisher interface {
	Publish(ctx context.Context, events ...OfferEvent) error
	Close() error
}

// KafkaPublisher writes events keyed by sell offer id, so every event of a
// listing and its buy offers lands on the same partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...OfferEvent) error {
	msgs, err := encode(events)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(events []OfferEvent) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatUint(e.SellID, 10)),
			Value: value,
			Time:  e.At,
		})
	}
	return msgs, nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, ...OfferEvent) error { return nil }
func (Nop) Close() error { return nil }
