// Package events publishes booking lifecycle changes for downstream
// consumers such as notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingConfirmed Type = "booking.confirmed"
	BookingRejected  Type = "booking.rejected"
	BookingCancelled Type = "booking.cancelled"
	BookingActivated Type = "booking.activated"
	BookingCompleted Type = "booking.completed"
	PaymentRefunded  Type = "payment.refunded"
)

type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	BookingID  string         `json:"booking_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

func New(t Type, bookingID uuid.UUID, at time.Time, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		BookingID:  bookingID.String(),
		OccurredAt: at,
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by booking id so one booking's events stay ordered.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}
	return newKafkaPublisher(writer, log)
}

func newKafkaPublisher(w messageWriter, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log.With(zap.String("publisher", "kafka"))}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.BookingID),
			Value: body,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(e.Type)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d event(s): %w", len(msgs), err)
	}

	p.log.Debug("Events published", zap.Int("count", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops events; used when Kafka is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, ...Event) error { return nil }

func (Noop) Close() error { return nil }
