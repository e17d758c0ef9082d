package query

import (
	"slices"
	"sync"
)

type TraceEventKind string

const (
	TraceEventMatchedEntityIDs   TraceEventKind = "matched_entity_ids"
	TraceEventTraversedEntityIDs TraceEventKind = "traversed_entity_ids"
	TraceEventSkippedEntityIDs   TraceEventKind = "skipped_entity_ids"
	TraceEventUsedDocumentIDs    TraceEventKind = "used_document_ids"
)

// TraceEvent is an event envelope for retrieval tracing.
type TraceEvent struct {
	Kind TraceEventKind

	EntityIDs   []string
	DocumentIDs []int64
}

// Tracer is a sink for retrieval tracing events.
//
// Implementers can forward events to logs, telemetry, or custom post-processing
// pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordEntityIDs(t Tracer, kind TraceEventKind, ids ...string) {
	if t == nil || len(ids) == 0 {
		return
	}
	t.Record(TraceEvent{Kind: kind, EntityIDs: ids})
}

func RecordUsedDocumentIDs(t Tracer, ids ...int64) {
	if t == nil || len(ids) == 0 {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventUsedDocumentIDs, DocumentIDs: ids})
}

// QueryTrace collects which entities a retrieval matched, traversed from or
// skipped, and which documents backed the returned edges.
//
// QueryTrace is safe for concurrent use.
type QueryTrace struct {
	mu sync.Mutex

	matched   map[string]struct{}
	traversed map[string]struct{}
	skipped   map[string]struct{}
	documents map[int64]struct{}
}

type QueryTraceSnapshot struct {
	MatchedEntityIDs   []string `json:"matched_entity_ids"`
	TraversedEntityIDs []string `json:"traversed_entity_ids"`
	SkippedEntityIDs   []string `json:"skipped_entity_ids"`
	UsedDocumentIDs    []int64  `json:"used_document_ids"`
}

func NewQueryTrace() *QueryTrace {
	return &QueryTrace{
		matched:   make(map[string]struct{}),
		traversed: make(map[string]struct{}),
		skipped:   make(map[string]struct{}),
		documents: make(map[int64]struct{}),
	}
}

func (t *QueryTrace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var target map[string]struct{}
	switch event.Kind {
	case TraceEventMatchedEntityIDs:
		target = t.matched
	case TraceEventTraversedEntityIDs:
		target = t.traversed
	case TraceEventSkippedEntityIDs:
		target = t.skipped
	case TraceEventUsedDocumentIDs:
		for _, id := range event.DocumentIDs {
			if id != 0 {
				t.documents[id] = struct{}{}
			}
		}
		return
	default:
		return
	}

	for _, id := range event.EntityIDs {
		if id != "" {
			target[id] = struct{}{}
		}
	}
}

func sortedKeys[K string | int64](m map[K]struct{}) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (t *QueryTrace) Snapshot() QueryTraceSnapshot {
	if t == nil {
		return QueryTraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return QueryTraceSnapshot{
		MatchedEntityIDs:   sortedKeys(t.matched),
		TraversedEntityIDs: sortedKeys(t.traversed),
		SkippedEntityIDs:   sortedKeys(t.skipped),
		UsedDocumentIDs:    sortedKeys(t.documents),
	}
}
