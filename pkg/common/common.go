package common

import "time"

// Graph is a snapshot of entities and relationships, used when a caller
// needs the whole graph or a traversal result in one value.
//
// A graph contains:
//   - Entities: nodes keyed by their unique, case-sensitive id
//   - Relationships: directed, confidence-weighted edges between entities
type Graph struct {
	Entities      []Entity       `json:"nodes"`
	Relationships []Relationship `json:"edges"`
}

// Entity represents a node in the knowledge graph. The id doubles as the
// display name and is immutable once relationships reference it; type and
// data are replaced in place on upsert.
type Entity struct {
	ID        string         `json:"id"`
	Type      EntityType     `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Name returns the display name of the entity: data["name"] when it is a
// non-empty string, otherwise the id.
func (e Entity) Name() string {
	if e.Data != nil {
		if name, ok := e.Data["name"].(string); ok && name != "" {
			return name
		}
	}
	return e.ID
}

// Relationship represents a directed edge between two entities. The triple
// (Source, Relation, Target) is unique across the graph.
//
// SourceDocumentID is nil for manually inserted edges. Confidence always
// lies in [MinConfidence, MaxConfidence] for edges written through the
// graph store.
type Relationship struct {
	ID               int64        `json:"id"`
	Source           string       `json:"source"`
	Target           string       `json:"target"`
	Relation         RelationType `json:"relation"`
	Confidence       float64      `json:"confidence"`
	SourceDocumentID *int64       `json:"source_document_id,omitempty"`
	SourceText       *string      `json:"source_text,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

// Key returns the display form "source-relation-target". Ids may contain
// hyphens, so it is not unique; use Identity to compare edges.
func (r Relationship) Key() string {
	return r.Source + "-" + string(r.Relation) + "-" + r.Target
}

// EdgeIdentity is the unique (source, relation, target) triple of an edge.
type EdgeIdentity struct {
	Source   string
	Relation RelationType
	Target   string
}

func (r Relationship) Identity() EdgeIdentity {
	return EdgeIdentity{Source: r.Source, Relation: r.Relation, Target: r.Target}
}

// Document is a source text that produced relationships during ingestion.
// TripleCount is a snapshot taken at ingestion time and is never updated.
type Document struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	Content     string    `json:"content"`
	UploadedAt  time.Time `json:"uploaded_at"`
	TripleCount int       `json:"triple_count"`
}

// Stats summarizes the size of the graph.
type Stats struct {
	TotalEntities  int64 `json:"totalEntities"`
	TotalRelations int64 `json:"totalRelations"`
	OrphanCount    int   `json:"orphanCount"`
}
