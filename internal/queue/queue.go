package queue

import (
	"context"
	"time"

	"github.com/bridgewise/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// RecomputeQueue carries precomputation requests to the worker.
	RecomputeQueue = "recompute_queue"

	// Exchange is the topic exchange artifact announcements are published on.
	Exchange = "pubsub_exchange"

	// ArtifactReadyTopic is published after a new artifact was saved.
	ArtifactReadyTopic = "graph.artifact.ready"

	// MaxRetries is the number of redeliveries before a message is moved to
	// the dead letter queue.
	MaxRetries = 10

	retryDelay = 10 * time.Second
)

// Channel is the subset of *amqp091.Channel used by this package.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Init connects to the broker at url. It exits the process when the broker
// is unreachable.
func Init(url string) *amqp091.Connection {
	conn, err := amqp091.Dial(url)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares the topic exchange and, for every name, the durable
// work queue, its dead letter queue and a retry queue that dead-letters back
// into the work queue after retryDelay.
func SetupQueues(ch Channel, queueNames []string) error {
	if err := declareExchange(ch); err != nil {
		return err
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return err
		}
		if _, err := ch.QueueDeclare(name+"_dlq", true, false, false, false, nil); err != nil {
			return err
		}
		_, err := ch.QueueDeclare(
			name+"_retry",
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay / time.Millisecond),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func declareExchange(ch Channel) error {
	return ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

// PublishFIFO sends data to the named work queue.
func PublishFIFO(ctx context.Context, ch Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, "", q.Name, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

// PublishTopic sends data to every queue bound to topic on Exchange.
func PublishTopic(ctx context.Context, ch Channel, topic string, data []byte) error {
	if err := declareExchange(ch); err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, Exchange, topic, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}
