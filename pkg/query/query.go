// Package query answers questions from the knowledge graph: it finds the
// entities a question mentions, collects their neighbourhood and hands it to
// a language model.
package query

import (
	"context"
	"errors"
	"strings"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/graph"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const DefaultHops = 2

// GraphReader is the read access retrieval needs. *graph.Graph implements it.
type GraphReader interface {
	AllNodes(ctx context.Context) ([]common.Entity, error)
	Traverse(ctx context.Context, startID string, maxHops int) (*common.Graph, error)
}

// Retriever collects the subgraph around the entities named in a question.
type Retriever struct {
	graph    GraphReader
	parallel int
}

// NewRetriever creates a Retriever that runs up to parallel traversals at
// once.
func NewRetriever(g GraphReader, parallel int) *Retriever {
	if parallel <= 0 {
		parallel = 1
	}
	return &Retriever{graph: g, parallel: parallel}
}

// MatchEntities returns the ids of all entities whose id occurs in question,
// ignoring case, in id order.
func (r *Retriever) MatchEntities(ctx context.Context, question string) ([]string, error) {
	nodes, err := r.graph.AllNodes(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(question)
	ids := make([]string, 0)
	for _, n := range nodes {
		if n.ID != "" && strings.Contains(lower, strings.ToLower(n.ID)) {
			ids = append(ids, n.ID)
		}
	}
	return ids, nil
}

// Retrieve traverses up to hops hops from every id and returns the union of
// the results. Nodes are deduplicated by id and edges by (source, relation,
// target), first occurrence first. Ids that do not exist are skipped.
func (r *Retriever) Retrieve(ctx context.Context, ids []string, hops int, tracer Tracer) (*common.Graph, error) {
	results := make([]*common.Graph, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, id := range ids {
		g.Go(func() error {
			res, err := r.graph.Traverse(gCtx, id, hops)
			if errors.Is(err, graph.ErrMissingEntity) {
				RecordEntityIDs(tracer, TraceEventSkippedEntityIDs, id)
				return nil
			}
			if err != nil {
				return err
			}
			RecordEntityIDs(tracer, TraceEventTraversedEntityIDs, id)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &common.Graph{
		Entities:      make([]common.Entity, 0),
		Relationships: make([]common.Relationship, 0),
	}
	seenNodes := make(map[string]struct{})
	seenEdges := make(map[common.EdgeIdentity]struct{})
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, n := range res.Entities {
			if _, ok := seenNodes[n.ID]; ok {
				continue
			}
			seenNodes[n.ID] = struct{}{}
			out.Entities = append(out.Entities, n)
		}
		for _, e := range res.Relationships {
			key := e.Identity()
			if _, ok := seenEdges[key]; ok {
				continue
			}
			seenEdges[key] = struct{}{}
			out.Relationships = append(out.Relationships, e)
			if e.SourceDocumentID != nil {
				RecordUsedDocumentIDs(tracer, *e.SourceDocumentID)
			}
		}
	}

	logger.Debug("[Query][Retrieve] Collected subgraph", "starts", len(ids), "hops", hops, "nodes", len(out.Entities), "edges", len(out.Relationships))
	return out, nil
}

// Retrieval is the subgraph collected for a question.
type Retrieval struct {
	Entities []string      `json:"entities"`
	Graph    *common.Graph `json:"graph"`
}

// RetrieveForQuestion matches entities in question and retrieves their
// neighbourhood.
func (r *Retriever) RetrieveForQuestion(ctx context.Context, question string, hops int, tracer Tracer) (*Retrieval, error) {
	ids, err := r.MatchEntities(ctx, question)
	if err != nil {
		return nil, err
	}
	RecordEntityIDs(tracer, TraceEventMatchedEntityIDs, ids...)

	sub, err := r.Retrieve(ctx, ids, hops, tracer)
	if err != nil {
		return nil, err
	}
	return &Retrieval{Entities: ids, Graph: sub}, nil
}
