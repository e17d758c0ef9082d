package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphOperationsTotal counts graph store calls by operation and outcome.
	GraphOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kgstore_graph_operations_total",
			Help: "Total number of graph store operations",
		},
		[]string{"op", "status"},
	)

	// GraphOperationDuration measures graph store latency per operation.
	// Buckets span single-row lookups up to multi-hop traversals.
	GraphOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kgstore_graph_operation_duration_seconds",
			Help:    "Duration of graph store operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	// EdgeUpsertsTotal counts edge writes by what the conditional upsert did.
	EdgeUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kgstore_edge_upserts_total",
			Help: "Edge upserts by result (inserted, updated, unchanged)",
		},
		[]string{"result"},
	)

	// IngestTriplesTotal counts triples seen by the ingestion pipeline.
	IngestTriplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kgstore_ingest_triples_total",
			Help: "Triples processed during ingestion by result",
		},
		[]string{"result"},
	)

	// ReclaimedEntitiesTotal counts entities removed by document deletion.
	ReclaimedEntitiesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kgstore_reclaimed_entities_total",
			Help: "Entities deleted because their document was removed",
		},
	)

	// LeaseWaitDuration measures how long writers waited for the graph lease.
	LeaseWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kgstore_lease_wait_seconds",
			Help:    "Time spent acquiring a lease lock in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
		[]string{"key"},
	)

	// LeaseEventsTotal counts lease outcomes (acquired, busy, lost, released).
	LeaseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kgstore_lease_events_total",
			Help: "Lease lock events by key and event",
		},
		[]string{"key", "event"},
	)

	// GraphEntities and GraphRelationships track the size seen by the last
	// stats or validation call.
	GraphEntities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kgstore_graph_entities",
			Help: "Number of entities in the graph",
		},
	)
	GraphRelationships = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kgstore_graph_relationships",
			Help: "Number of relationships in the graph",
		},
	)
)

// ObserveOperation records one graph operation that started at start.
func ObserveOperation(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	GraphOperationsTotal.WithLabelValues(op, status).Inc()
	GraphOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
