package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"
	"github.com/OFFIS-RIT/kgstore/pkg/leaselock"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
)

// GraphLockKey serializes graph writes across workers.
const GraphLockKey = "kg:ingest"

// Processor runs queued jobs against the graph while holding the graph lock.
type Processor struct {
	ingestor *ingest.Ingestor
	locks    *leaselock.Client
	lockOpts leaselock.Options
}

func NewProcessor(ingestor *ingest.Ingestor, locks *leaselock.Client) *Processor {
	return &Processor{
		ingestor: ingestor,
		locks:    locks,
		lockOpts: leaselock.Options{
			TTL:         util.GetEnvDuration("GRAPH_LEASE_TTL", 5*time.Minute),
			Wait:        true,
			TokenPrefix: "worker-",
		},
	}
}

// Process dispatches body to the handler for queueName.
func (p *Processor) Process(ctx context.Context, queueName string, body []byte) error {
	switch queueName {
	case IngestQueue:
		return p.ProcessIngestMessage(ctx, body)
	case DeleteQueue:
		return p.ProcessDeleteMessage(ctx, body)
	default:
		return util.Permanent(fmt.Errorf("unknown queue %q", queueName))
	}
}

func (p *Processor) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.locks == nil {
		return fn(ctx)
	}
	return p.locks.WithLease(ctx, GraphLockKey, p.lockOpts, fn)
}

func (p *Processor) ProcessIngestMessage(ctx context.Context, body []byte) error {
	var msg IngestMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return util.Permanent(fmt.Errorf("decode ingest message: %w", err))
	}
	if msg.Filename == "" {
		return util.Permanent(errors.New("ingest message has no filename"))
	}

	return p.withLock(ctx, func(ctx context.Context) error {
		var (
			res *ingest.IngestResult
			err error
		)
		if len(msg.Triples) > 0 {
			res, err = p.ingestor.IngestTriples(ctx, msg.Filename, msg.Content, msg.Triples)
		} else {
			res, err = p.ingestor.Ingest(ctx, msg.Filename, msg.Content)
		}
		if errors.Is(err, ingest.ErrNoExtractor) {
			return util.Permanent(err)
		}
		if err != nil {
			return err
		}
		logger.Info("[Queue] Ingested document",
			"correlation_id", msg.CorrelationID,
			"document", res.DocumentID,
			"triples", len(res.Triples),
			"skipped", len(res.Skipped),
		)
		return nil
	})
}

func (p *Processor) ProcessDeleteMessage(ctx context.Context, body []byte) error {
	var msg DeleteMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return util.Permanent(fmt.Errorf("decode delete message: %w", err))
	}

	return p.withLock(ctx, func(ctx context.Context) error {
		reclaimed, err := p.ingestor.DeleteDocument(ctx, msg.DocumentID)
		if err != nil {
			return err
		}
		logger.Info("[Queue] Deleted document",
			"correlation_id", msg.CorrelationID,
			"document", msg.DocumentID,
			"reclaimed", len(reclaimed),
		)
		return nil
	})
}
