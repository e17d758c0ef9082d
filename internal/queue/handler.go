package queue

import (
	"context"

	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a message is retried before it moves to the DLQ.
const MaxRetries = 10

const retriesHeader = "x-retries"

func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int16:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}

// HandleProcessingError routes a failed message to the retry queue, or to
// the DLQ once it has been retried MaxRetries times or failed permanently.
// The original delivery is acked once the copy is published and requeued
// otherwise.
func HandleProcessingError(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string, procErr error) {
	retries := retryCount(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if procErr != nil {
		headers["x-last-error"] = procErr.Error()
	}

	target := queueName + retrySuffix
	if retries >= MaxRetries || util.IsPermanent(procErr) {
		target = queueName + dlqSuffix
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", retries)
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	if err := publish(ctx, pub, target, msg.Body, headers); err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("[Queue] Failed to nack message", "err", nackErr)
		}
		return
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}
