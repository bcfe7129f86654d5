package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/cloudidian/mailsort/internal/logging"
)

// Publisher enqueues job tasks onto the broker.
type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	logger  *slog.Logger
}

// NewPublisher connects to the broker and declares the exchange, queue
// and binding so publishing works regardless of startup order.
func NewPublisher(url, queueName string, logger *slog.Logger) (*Publisher, error) {
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
	return &Publisher{
		conn:    conn,
		channel: ch,
		queue:   queueName,
		logger:  logging.WithComponent(logger, "queue"),
	}, nil
}

// EnqueueJob publishes a task for the job and returns the task id.
func (p *Publisher) EnqueueJob(ctx context.Context, jobID, userID string) (string, error) {
	task := JobTask{
		TaskID: uuid.NewString(),
		JobID:  jobID,
		UserID: userID,
	}
	body, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshaling task: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		Exchange,
		RoutingKeyJobs,
		false,
		false,
		amqp091.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp091.Persistent,
			MessageId:    task.TaskID,
			Body:         body,
		},
	)
	if err != nil {
		return "", fmt.Errorf("publishing task: %w", err)
	}

	p.logger.Info("enqueued job",
		logging.Operation("queue.publish"),
		logging.JobID(jobID),
		slog.String("task_id", task.TaskID))
	return task.TaskID, nil
}

// Close tears down the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func declareTopology(ch *amqp091.Channel, queueName string) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declaring queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKeyJobs, Exchange, false, nil); err != nil {
		return fmt.Errorf("binding queue: %w", err)
	}
	return nil
}
