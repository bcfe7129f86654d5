package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"

	"github.com/cloudidian/mailsort/internal/logging"
)

// TaskHandler processes one job task. A returned error marks the
// delivery as failed; the job row records the outcome, so failed
// deliveries are dropped rather than requeued.
type TaskHandler func(ctx context.Context, task JobTask) error

// Consumer pulls job tasks off the broker and runs them through a
// handler with manual acknowledgement.
type Consumer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	queue    string
	prefetch int
	logger   *slog.Logger
}

// NewConsumer connects to the broker and declares the same topology
// the publisher uses. Prefetch bounds how many tasks one worker holds
// unacknowledged at a time.
func NewConsumer(url, queueName string, prefetch int, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := declareTopology(ch, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("setting qos: %w", err)
		}
	}
	return &Consumer{
		conn:     conn,
		channel:  ch,
		queue:    queueName,
		prefetch: prefetch,
		logger:   logging.WithComponent(logger, "queue"),
	}, nil
}

// Run consumes until the context is cancelled or the broker closes the
// delivery stream. Every delivery is acked or nacked exactly once; a
// panicking handler nacks without requeue so a poison task cannot wedge
// the worker in a loop.
func (c *Consumer) Run(ctx context.Context, handler TaskHandler) error {
	deliveries, err := c.channel.Consume(c.queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}
	c.logger.Info("worker consuming", slog.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, msg, handler)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp091.Delivery, handler TaskHandler) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic",
				slog.Any("panic", r),
				slog.String("message_id", msg.MessageId))
			_ = msg.Nack(false, false)
		}
	}()

	var task JobTask
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		c.logger.Error("dropping malformed task", logging.Err(err))
		_ = msg.Nack(false, false)
		return
	}

	if err := handler(ctx, task); err != nil {
		c.logger.Error("task failed",
			logging.JobID(task.JobID),
			logging.Err(err))
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

// Close tears down the channel and connection.
func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
