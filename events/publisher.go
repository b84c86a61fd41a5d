// Package events publishes restaurant change events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"restaurant-locator/models"
	"restaurant-locator/serializers"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the JSON payload of every published message.
type Event struct {
	Type       string                 `json:"type"`
	Restaurant serializers.Restaurant `json:"restaurant"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher writes restaurant events to a topic. A nil *Publisher is valid
// and drops every event.
type Publisher struct {
	writer MessageWriter
	log    *zap.Logger
	now    func() time.Time
}

// NewKafkaPublisher returns a publisher writing to topic on broker, or nil
// when broker is empty.
func NewKafkaPublisher(broker, topic string, log *zap.Logger) *Publisher {
	if broker == "" {
		return nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return NewPublisher(w, log)
}

func NewPublisher(w MessageWriter, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{writer: w, log: log, now: time.Now}
}

// Notify publishes kind for r, keyed by the restaurant id so that events for
// one restaurant stay ordered within a partition.
func (p *Publisher) Notify(ctx context.Context, kind string, r *models.Restaurant) error {
	if p == nil || p.writer == nil {
		return nil
	}
	body, err := json.Marshal(Event{
		Type:       kind,
		Restaurant: serializers.NewRestaurant(r, nil),
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(r.ID), 10)),
		Value: body,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", kind, err)
	}
	p.log.Debug("published restaurant event", zap.String("type", kind), zap.Uint("restaurant_id", r.ID))
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
