// Package queue moves ingest and delete jobs through RabbitMQ. Every work
// queue has a "_retry" queue that dead-letters back into it after a delay and
// a "_dlq" queue for messages that keep failing.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	IngestQueue = "ingest_queue"
	DeleteQueue = "delete_queue"

	retrySuffix = "_retry"
	dlqSuffix   = "_dlq"

	retryDelay = 10 * time.Second
)

// Queues are the work queues the worker consumes.
var Queues = []string{IngestQueue, DeleteQueue}

// Publisher is the publishing half of an AMQP channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// URLFromEnv builds the broker URL from the RABBITMQ_* variables.
func URLFromEnv() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnvString("RABBITMQ_USER", "guest"),
		util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

// Init dials RabbitMQ, retrying while the broker starts up.
func Init(ctx context.Context) (*amqp091.Connection, error) {
	url := URLFromEnv()
	conn, err := util.RetryWithBackoff(ctx, 5, time.Second, func(context.Context) (*amqp091.Connection, error) {
		return amqp091.Dial(url)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue together with its retry and dead-letter
// queues.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + dlqSuffix
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + retrySuffix
		if _, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		); err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	logger.Debug("[Queue] Declared queues", "queues", queueNames)
	return nil
}

// PublishFIFO sends data to queueName on the default exchange as a
// persistent message.
func PublishFIFO(ctx context.Context, pub Publisher, queueName string, data []byte) error {
	return publish(ctx, pub, queueName, data, nil)
}

// PublishJSON marshals v and publishes it to queueName.
func PublishJSON(ctx context.Context, pub Publisher, queueName string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return PublishFIFO(ctx, pub, queueName, data)
}

func publish(ctx context.Context, pub Publisher, queueName string, data []byte, headers amqp091.Table) error {
	return pub.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
