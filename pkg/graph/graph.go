package graph

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/metrics"
	"github.com/OFFIS-RIT/kgstore/pkg/store"
)

// Graph is the knowledge graph store. It owns a storage backend and exposes
// node, edge, traversal and document operations on top of it.
//
// A Graph must be created with New. Every operation on a zero Graph, on a
// Graph built without storage, or after Close fails with ErrNotInitialized.
type Graph struct {
	storage store.GraphStorage
	closed  atomic.Bool
}

// New creates a Graph backed by storage.
func New(storage store.GraphStorage) *Graph {
	return &Graph{storage: storage}
}

// Close closes the storage backend. Further calls fail with ErrNotInitialized.
func (g *Graph) Close() error {
	if err := g.ready(); err != nil {
		return err
	}
	g.closed.Store(true)
	return g.storage.Close()
}

func (g *Graph) ready() error {
	if g == nil || g.storage == nil || g.closed.Load() {
		return ErrNotInitialized
	}
	return nil
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveOperation(op, start, *err)
}

// AddNode inserts the entity or, when it exists, overwrites its type and
// replaces its data. Nil data is stored as an empty map. The type is stored
// as given; unknown types are reported by the validator, not rejected here.
func (g *Graph) AddNode(ctx context.Context, id string, entityType common.EntityType, data map[string]any) (err error) {
	defer observe("add_node", time.Now(), &err)
	if err = g.ready(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyID
	}

	err = g.storage.UpsertEntity(ctx, common.Entity{ID: id, Type: entityType, Data: data})
	if err != nil {
		return fmt.Errorf("add node %q: %w", id, err)
	}
	logger.Debug("[Graph][AddNode] Stored entity", "id", id, "type", entityType)
	return nil
}

// GetNode returns the entity with the given id, or nil when it does not exist.
func (g *Graph) GetNode(ctx context.Context, id string) (_ *common.Entity, err error) {
	defer observe("get_node", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetEntity(ctx, id)
}

// FindByType returns all entities of the given type.
func (g *Graph) FindByType(ctx context.Context, entityType common.EntityType) (_ []common.Entity, err error) {
	defer observe("find_by_type", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetEntitiesByType(ctx, entityType)
}

// DeleteNode removes the entity and every edge touching it. It reports
// whether the entity existed.
func (g *Graph) DeleteNode(ctx context.Context, id string) (_ bool, err error) {
	defer observe("delete_node", time.Now(), &err)
	if err = g.ready(); err != nil {
		return false, err
	}
	return g.storage.DeleteEntity(ctx, id)
}

// GetOrphans returns entities with no incoming or outgoing edge.
func (g *Graph) GetOrphans(ctx context.Context) (_ []common.Entity, err error) {
	defer observe("get_orphans", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetOrphanEntities(ctx)
}

func (g *Graph) NodeCount(ctx context.Context) (_ int64, err error) {
	defer observe("node_count", time.Now(), &err)
	if err = g.ready(); err != nil {
		return 0, err
	}
	return g.storage.CountEntities(ctx)
}

func (g *Graph) EdgeCount(ctx context.Context) (_ int64, err error) {
	defer observe("edge_count", time.Now(), &err)
	if err = g.ready(); err != nil {
		return 0, err
	}
	return g.storage.CountRelationships(ctx)
}

func (g *Graph) AllNodes(ctx context.Context) (_ []common.Entity, err error) {
	defer observe("all_nodes", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetAllEntities(ctx)
}

func (g *Graph) AllEdges(ctx context.Context) (_ []common.Relationship, err error) {
	defer observe("all_edges", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetAllRelationships(ctx)
}

// Stats returns entity, relationship and orphan counts.
func (g *Graph) Stats(ctx context.Context) (_ common.Stats, err error) {
	defer observe("stats", time.Now(), &err)
	if err = g.ready(); err != nil {
		return common.Stats{}, err
	}

	var stats common.Stats
	if stats.TotalEntities, err = g.storage.CountEntities(ctx); err != nil {
		return common.Stats{}, err
	}
	if stats.TotalRelations, err = g.storage.CountRelationships(ctx); err != nil {
		return common.Stats{}, err
	}
	orphans, err := g.storage.GetOrphanEntities(ctx)
	if err != nil {
		return common.Stats{}, err
	}
	stats.OrphanCount = len(orphans)

	metrics.GraphEntities.Set(float64(stats.TotalEntities))
	metrics.GraphRelationships.Set(float64(stats.TotalRelations))
	return stats, nil
}

// Clear removes all entities, relationships and documents.
func (g *Graph) Clear(ctx context.Context) (err error) {
	defer observe("clear", time.Now(), &err)
	if err = g.ready(); err != nil {
		return err
	}
	if err = g.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}
	logger.Info("[Graph][Clear] Removed all graph data")
	return nil
}

func sortedCopy(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}
