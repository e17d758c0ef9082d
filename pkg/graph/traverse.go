package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
)

// Traverse runs a breadth-first search from startID that follows edges in
// both directions, up to maxHops hops. It returns every node within maxHops
// and every edge touching a node closer than maxHops. Nodes and edges appear
// once each, nodes in discovery order.
//
// The frontier of each depth is expanded with one storage call, which gives
// the same result as expanding node by node in FIFO order.
func (g *Graph) Traverse(ctx context.Context, startID string, maxHops int) (_ *common.Graph, err error) {
	defer observe("traverse", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}

	start, err := g.storage.GetEntity(ctx, startID)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, fmt.Errorf("traverse from %q: %w", startID, ErrMissingEntity)
	}

	visited := map[string]struct{}{startID: {}}
	order := []string{startID}
	seenEdges := make(map[common.EdgeIdentity]struct{})
	edges := make([]common.Relationship, 0)

	addEdge := func(r common.Relationship) {
		key := r.Identity()
		if _, ok := seenEdges[key]; ok {
			return
		}
		seenEdges[key] = struct{}{}
		edges = append(edges, r)
	}
	visit := func(id string, next []string) []string {
		if _, ok := visited[id]; ok {
			return next
		}
		visited[id] = struct{}{}
		order = append(order, id)
		return append(next, id)
	}

	frontier := []string{startID}
	for depth := 0; depth < maxHops && len(frontier) > 0; depth++ {
		rels, err := g.storage.GetIncidentRelationships(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("traverse from %q at depth %d: %w", startID, depth, err)
		}

		outgoing := make(map[string][]common.Relationship)
		incoming := make(map[string][]common.Relationship)
		for _, r := range rels {
			outgoing[r.Source] = append(outgoing[r.Source], r)
			incoming[r.Target] = append(incoming[r.Target], r)
		}

		var next []string
		for _, id := range frontier {
			for _, r := range outgoing[id] {
				addEdge(r)
				next = visit(r.Target, next)
			}
			for _, r := range incoming[id] {
				addEdge(r)
				next = visit(r.Source, next)
			}
		}
		frontier = next
	}

	entities, err := g.storage.GetEntities(ctx, order)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]common.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	nodes := make([]common.Entity, 0, len(order))
	for _, id := range order {
		if e, ok := byID[id]; ok {
			nodes = append(nodes, e)
		}
	}

	logger.Debug("[Graph][Traverse] Finished", "start", startID, "hops", maxHops, "nodes", len(nodes), "edges", len(edges))
	return &common.Graph{Entities: nodes, Relationships: edges}, nil
}
