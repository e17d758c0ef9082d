package store

import (
	"context"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

// UpsertResult reports what a conditional relationship upsert did.
type UpsertResult int

const (
	// Unchanged means an edge with the same triple already existed with an
	// equal or higher confidence.
	Unchanged UpsertResult = iota
	Inserted
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// GraphStorage defines the primitive persistence operations the graph store is
// built on. Implementations enforce the schema invariants at the storage level:
//
//   - relationships reference existing entities (ErrMissingEntity otherwise)
//   - (source, relation, target) is unique and its confidence is only raised,
//     never lowered, by UpsertRelationship in a single atomic statement
//   - deleting a document removes its relationships as part of the delete
//
// Entity lists are ordered by id, relationship lists by insertion and
// documents newest first.
type GraphStorage interface {
	UpsertEntity(ctx context.Context, entity common.Entity) error
	GetEntity(ctx context.Context, id string) (*common.Entity, error)
	GetEntities(ctx context.Context, ids []string) ([]common.Entity, error)
	GetEntitiesByType(ctx context.Context, entityType common.EntityType) ([]common.Entity, error)
	GetAllEntities(ctx context.Context) ([]common.Entity, error)
	GetOrphanEntities(ctx context.Context) ([]common.Entity, error)
	CountEntities(ctx context.Context) (int64, error)
	DeleteEntity(ctx context.Context, id string) (bool, error)

	UpsertRelationship(ctx context.Context, rel common.Relationship) (UpsertResult, error)
	// GetRelationships returns the outgoing edges of source. An empty
	// relation matches every relation type.
	GetRelationships(ctx context.Context, source string, relation common.RelationType) ([]common.Relationship, error)
	// GetIncidentRelationships returns every edge that has one of ids as its
	// source or target.
	GetIncidentRelationships(ctx context.Context, ids []string) ([]common.Relationship, error)
	GetAllRelationships(ctx context.Context) ([]common.Relationship, error)
	CountRelationships(ctx context.Context) (int64, error)
	DeleteRelationship(ctx context.Context, source string, relation common.RelationType, target string) (bool, error)

	SaveDocument(ctx context.Context, doc common.Document) (int64, error)
	GetDocument(ctx context.Context, id int64) (*common.Document, error)
	GetDocuments(ctx context.Context) ([]common.Document, error)
	// DeleteDocument removes the document and its relationships, then deletes
	// the entities those relationships referenced that have no edge left.
	// Reclamation runs once; entities orphaned only as a side effect are kept.
	// It returns the ids of the reclaimed entities.
	DeleteDocument(ctx context.Context, id int64) ([]string, error)

	Clear(ctx context.Context) error
	Close() error
}
