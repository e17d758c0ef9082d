package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/metrics"
)

type edgeOptions struct {
	sourceDocumentID *int64
	sourceText       *string
}

// EdgeOption sets optional provenance on an edge written by AddEdge.
type EdgeOption func(*edgeOptions)

// WithSourceDocument links the edge to the document that produced it.
func WithSourceDocument(id int64) EdgeOption {
	return func(o *edgeOptions) {
		o.sourceDocumentID = &id
	}
}

// WithSourceText attaches the excerpt the edge was extracted from.
func WithSourceText(text string) EdgeOption {
	return func(o *edgeOptions) {
		o.sourceText = &text
	}
}

// AddEdge upserts the edge (source, relation, target).
//
// It fails with ErrInvalidConfidence when confidence is outside [0.5, 1.0]
// and with ErrMissingEntity when source or target does not exist. When the
// triple already exists, confidence and source text are replaced only if the
// new confidence is strictly higher; otherwise the call is a no-op.
func (g *Graph) AddEdge(
	ctx context.Context,
	source string,
	target string,
	relation common.RelationType,
	confidence float64,
	opts ...EdgeOption,
) (err error) {
	defer observe("add_edge", time.Now(), &err)
	if err = g.ready(); err != nil {
		return err
	}
	if !common.ValidConfidence(confidence) {
		return fmt.Errorf("add edge %s -[%s]-> %s: %w (got %v)", source, relation, target, ErrInvalidConfidence, confidence)
	}

	var o edgeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	res, err := g.storage.UpsertRelationship(ctx, common.Relationship{
		Source:           source,
		Target:           target,
		Relation:         relation,
		Confidence:       confidence,
		SourceDocumentID: o.sourceDocumentID,
		SourceText:       o.sourceText,
	})
	if err != nil {
		return fmt.Errorf("add edge %s -[%s]-> %s: %w", source, relation, target, err)
	}

	metrics.EdgeUpsertsTotal.WithLabelValues(res.String()).Inc()
	logger.Debug("[Graph][AddEdge] Upserted edge", "source", source, "relation", relation, "target", target, "confidence", confidence, "result", res)
	return nil
}

// GetEdges returns the outgoing edges of nodeID. A non-empty relation
// restricts the result to that relation type.
func (g *Graph) GetEdges(ctx context.Context, nodeID string, relation common.RelationType) (_ []common.Relationship, err error) {
	defer observe("get_edges", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetRelationships(ctx, nodeID, relation)
}

// DeleteEdge removes a single edge and reports whether it existed.
func (g *Graph) DeleteEdge(ctx context.Context, source string, relation common.RelationType, target string) (_ bool, err error) {
	defer observe("delete_edge", time.Now(), &err)
	if err = g.ready(); err != nil {
		return false, err
	}
	return g.storage.DeleteRelationship(ctx, source, relation, target)
}
