package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName carries project events (project.<id>) and notification.created.
	ExchangeName = "events"

	dialAttempts = 5
)

// swapped in tests
var (
	dial        = amqp091.Dial
	dialBackoff = 500 * time.Millisecond
)

// NewConnection dials RabbitMQ, retrying with a doubling backoff while the
// broker is still starting.
func NewConnection(url string) (*amqp091.Connection, error) {
	var lastErr error
	backoff := dialBackoff
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < dialAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", dialAttempts, lastErr)
}

// DeclareExchange declares the durable topic exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	)
}
