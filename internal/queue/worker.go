package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/ai"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

type queuedMessage struct {
	msg       amqp091.Delivery
	queueName string
}

// Worker consumes the work queues one message at a time.
type Worker struct {
	conn      *amqp091.Connection
	processor *Processor
	aiClient  ai.GraphAIClient
}

// NewWorker creates a Worker. aiClient is optional and only used to log
// token usage per message.
func NewWorker(conn *amqp091.Connection, processor *Processor, aiClient ai.GraphAIClient) *Worker {
	return &Worker{conn: conn, processor: processor, aiClient: aiClient}
}

// Run consumes until ctx is done or a consumer channel closes.
func (w *Worker) Run(ctx context.Context) error {
	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := SetupQueues(ch, Queues); err != nil {
		return err
	}

	// A single consumer channel with prefetch=1 delivers one message at a
	// time across all queues.
	consumerCh, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	messageChan := make(chan queuedMessage)
	done := make(chan error, len(Queues))

	for _, queueName := range Queues {
		msgs, err := consumerCh.Consume(
			queueName,
			queueName+"_consumer",
			false, // autoAck
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", queueName, err)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						done <- fmt.Errorf("consumer for %s closed", queueName)
						return
					}
					select {
					case messageChan <- queuedMessage{msg: msg, queueName: queueName}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	logger.Info("[Queue] Listening for messages", "queues", Queues)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping message processor")
			return nil
		case err := <-done:
			return err
		case qm := <-messageChan:
			w.handle(ctx, ch, qm)
		}
	}
}

func (w *Worker) handle(ctx context.Context, pub Publisher, qm queuedMessage) {
	startTime := time.Now()
	logger.Info("[Queue] Received message", "queue", qm.queueName)
	if w.aiClient != nil {
		w.aiClient.ResetMetrics()
	}

	if err := w.processor.Process(ctx, qm.queueName, qm.msg.Body); err != nil {
		logger.Error("[Queue] Error processing message", "queue", qm.queueName, "err", err)
		HandleProcessingError(ctx, pub, qm.msg, qm.queueName, err)
	} else {
		if err := qm.msg.Ack(false); err != nil {
			logger.Error("[Queue] Failed to ack message", "err", err)
		}
		logger.Info("[Queue] Message processed successfully", "queue", qm.queueName)
	}

	if w.aiClient != nil {
		m := w.aiClient.GetMetrics()
		logger.Info("[Queue] AI metrics",
			"input_tokens", m.InputTokens,
			"output_tokens", m.OutputTokens,
			"total_tokens", m.TotalTokens,
			"duration", formatDuration(time.Duration(m.DurationMs)*time.Millisecond),
		)
	}
	logger.Info("[Queue] Processing time", "duration", formatDuration(time.Since(startTime)))
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
