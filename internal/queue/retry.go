package queue

import (
	"context"

	"github.com/bridgewise/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// Retries returns the x-retries header of msg.
func Retries(msg amqp091.Delivery) int {
	switch v := msg.Headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleProcessingError moves a failed message to the retry queue, or to the
// dead letter queue after MaxRetries attempts. The original delivery is
// acked once the copy is published and requeued when publishing fails.
func HandleProcessingError(ctx context.Context, ch Channel, msg amqp091.Delivery, queueName string) {
	retries := Retries(msg)

	target := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if retries >= MaxRetries {
		target = queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", target)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	err := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to publish failed message", "queue", target, "err", err)
		if nErr := msg.Nack(false, true); nErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nErr)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
