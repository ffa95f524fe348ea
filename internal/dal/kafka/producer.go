package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
	"github.com/segmentio/kafka-go"
)

// Producer relays order events to one Kafka topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
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

// Publish writes msg synchronously. Events of one order hash to one partition.
func (p *Producer) Publish(ctx context.Context, msg outbox.Message) error {
	if err := p.writer.WriteMessages(ctx, Message(msg)); err != nil {
		return fmt.Errorf("failed to write order event to kafka: %w", err)
	}

	return nil
}

// Message converts an order event to a Kafka message keyed by order id.
func Message(msg outbox.Message) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.PartitionKey()),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(outbox.ContentType)},
			{Key: "event-type", Value: []byte(msg.EventType)},
			{Key: "routing-key", Value: []byte(msg.RoutingKey)},
		},
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
