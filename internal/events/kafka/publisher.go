// Package kafka publishes payment events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/priyal/paygraph/internal/events"
	"github.com/segmentio/kafka-go"
)

// Publisher writes payment-completed events to a Kafka topic, keyed by
// transaction identifier.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher constructs a Publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish serializes the event and writes it to the topic.
func (p *Publisher) Publish(ctx context.Context, event events.PaymentCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TransactionID),
		Value: data,
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
