package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"genbroker/internal/domain"
)

// Event is one job lifecycle transition.
type Event struct {
	JobID    string           `json:"job_id"`
	OwnerID  string           `json:"owner_id,omitempty"`
	Status   domain.JobStatus `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	At       time.Time        `json:"at"`
}

// Emitter publishes lifecycle events. Emission is best-effort: a broker
// failure must never fail the transition that produced the event.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// KafkaPublisher emits lifecycle events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaPublisher builds a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Emit publishes the event, logging and swallowing any broker error.
func (p *KafkaPublisher) Emit(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("job_id", event.JobID).Msg("events: marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg := kafka.Message{Key: []byte(event.JobID), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("events: publish failed")
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
