package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
)

// ErrNacked is returned when the broker refuses a published order event.
var ErrNacked = errors.New("rabbitmq: publish not confirmed")

// Client publishes order events on a confirm-mode channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	// confirms are delivered in publish order, so publishes are serialized.
	mu       sync.Mutex
	confirms chan amqp.Confirmation
}

// Close closes the channel and connection for graceful shutdown.
func (r *Client) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return err
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}

	return nil
}

// MustNewClient dials the broker and puts the channel in confirm mode. Credentials come from
// RABBITMQ_DEFAULT_USER and RABBITMQ_DEFAULT_PASS, the address from rabbitmq.host and rabbitmq.port.
func MustNewClient() *Client {
	host := viper.GetString("rabbitmq.host")
	port := viper.GetInt("rabbitmq.port")

	connStr := fmt.Sprintf(
		"amqp://%s:%s@%s:%d/",
		os.Getenv("RABBITMQ_DEFAULT_USER"),
		os.Getenv("RABBITMQ_DEFAULT_PASS"),
		host,
		port,
	)

	conn, err := amqp.Dial(connStr)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
	}

	channel, err := conn.Channel()
	if err != nil {
		if err := conn.Close(); err != nil {
			panic(fmt.Sprintf("Failed to close a connection: %v", err))
		}
		panic(fmt.Sprintf("Failed to open a channel: %v", err))
	}

	if err := channel.Confirm(false); err != nil {
		panic(fmt.Sprintf("Failed to enable publisher confirms: %v", err))
	}

	slog.Info("RabbitMQ connected", "host", host, "port", port)

	return &Client{
		conn:     conn,
		channel:  channel,
		confirms: channel.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}
}

// DeclareExchange declares the durable topic exchange order events are published to.
func (r *Client) DeclareExchange(name string) error {
	return r.channel.ExchangeDeclare(
		name,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
}

// Publish sends msg and waits for the broker to confirm it.
func (r *Client) Publish(ctx context.Context, msg outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.channel.Publish(msg.Exchange, msg.RoutingKey, false, false, Publishing(msg)); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	select {
	case confirm, ok := <-r.confirms:
		if !ok {
			return fmt.Errorf("%w: channel closed", ErrNacked)
		}
		if !confirm.Ack {
			return ErrNacked
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publishing builds the persistent AMQP message for an order event.
func Publishing(msg outbox.Message) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  outbox.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("order-event-%d", msg.ID),
		Type:         string(msg.EventType),
		Timestamp:    msg.CreatedAt,
		Headers: amqp.Table{
			"order_id": msg.OrderID,
		},
		Body: msg.Payload,
	}
}
