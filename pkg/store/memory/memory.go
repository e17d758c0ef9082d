package memory

import (
	"context"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/store"

	"github.com/tidwall/btree"
)

type tripleKey struct {
	source   string
	relation common.RelationType
	target   string
}

// MemoryStorage is a process-local GraphStorage. Entities and relationships
// live in ordered b-trees so listings come out in the same order the SQL
// backends return them. A single RWMutex serializes writers, which makes the
// conditional relationship upsert atomic.
type MemoryStorage struct {
	mu sync.RWMutex

	entities      *btree.BTreeG[*common.Entity]
	relationships *btree.BTreeG[*common.Relationship]
	documents     *btree.BTreeG[*common.Document]

	byTriple map[tripleKey]*common.Relationship

	nextRelID int64
	nextDocID int64
	now       func() time.Time
	closed    bool
}

// Compile-time check that MemoryStorage implements store.GraphStorage.
var _ store.GraphStorage = (*MemoryStorage)(nil)

type MemoryStorageOption func(*MemoryStorage)

// WithClock overrides the time source used for created_at and uploaded_at.
func WithClock(now func() time.Time) MemoryStorageOption {
	return func(s *MemoryStorage) {
		s.now = now
	}
}

// New returns an empty in-memory storage.
func New(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{now: time.Now}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	s.reset()
	return s
}

func (s *MemoryStorage) reset() {
	s.entities = btree.NewBTreeG(func(a, b *common.Entity) bool {
		return a.ID < b.ID
	})
	s.relationships = btree.NewBTreeG(func(a, b *common.Relationship) bool {
		return a.ID < b.ID
	})
	// newest first: later upload time, then higher id
	s.documents = btree.NewBTreeG(func(a, b *common.Document) bool {
		if !a.UploadedAt.Equal(b.UploadedAt) {
			return a.UploadedAt.After(b.UploadedAt)
		}
		return a.ID > b.ID
	})
	s.byTriple = make(map[tripleKey]*common.Relationship)
	s.nextRelID = 0
	s.nextDocID = 0
}

func (s *MemoryStorage) checkOpen() error {
	if s.closed {
		return store.ErrNotInitialized
	}
	return nil
}

func copyEntity(e *common.Entity) common.Entity {
	out := *e
	out.Data = store.CloneData(e.Data)
	return out
}

func copyRelationship(r *common.Relationship) common.Relationship {
	out := *r
	if r.SourceDocumentID != nil {
		id := *r.SourceDocumentID
		out.SourceDocumentID = &id
	}
	if r.SourceText != nil {
		text := *r.SourceText
		out.SourceText = &text
	}
	return out
}

func (s *MemoryStorage) getEntity(id string) (*common.Entity, bool) {
	return s.entities.Get(&common.Entity{ID: id})
}

func (s *MemoryStorage) hasEdges(id string) bool {
	found := false
	s.relationships.Scan(func(r *common.Relationship) bool {
		if r.Source == id || r.Target == id {
			found = true
			return false
		}
		return true
	})
	return found
}

func (s *MemoryStorage) deleteRelationship(r *common.Relationship) {
	s.relationships.Delete(r)
	delete(s.byTriple, tripleKey{r.Source, r.Relation, r.Target})
}

func (s *MemoryStorage) UpsertEntity(ctx context.Context, entity common.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := store.NormalizeData(entity.Data)
	if err != nil {
		return err
	}
	stored := &common.Entity{
		ID:        entity.ID,
		Type:      entity.Type,
		Data:      data,
		CreatedAt: s.now(),
	}
	if prev, ok := s.getEntity(entity.ID); ok {
		stored.CreatedAt = prev.CreatedAt
	}
	s.entities.Set(stored)
	return nil
}

func (s *MemoryStorage) GetEntity(ctx context.Context, id string) (*common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	e, ok := s.getEntity(id)
	if !ok {
		return nil, nil
	}
	out := copyEntity(e)
	return &out, nil
}

func (s *MemoryStorage) GetEntities(ctx context.Context, ids []string) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	out := make([]common.Entity, 0, len(ids))
	for _, id := range store.DedupeStrings(ids) {
		if e, ok := s.getEntity(id); ok {
			out = append(out, copyEntity(e))
		}
	}
	store.SortEntities(out)
	return out, nil
}

func (s *MemoryStorage) filterEntities(keep func(e *common.Entity) bool) []common.Entity {
	out := make([]common.Entity, 0)
	s.entities.Scan(func(e *common.Entity) bool {
		if keep(e) {
			out = append(out, copyEntity(e))
		}
		return true
	})
	return out
}

func (s *MemoryStorage) GetEntitiesByType(ctx context.Context, entityType common.EntityType) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.filterEntities(func(e *common.Entity) bool { return e.Type == entityType }), nil
}

func (s *MemoryStorage) GetAllEntities(ctx context.Context) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.filterEntities(func(*common.Entity) bool { return true }), nil
}

func (s *MemoryStorage) GetOrphanEntities(ctx context.Context) ([]common.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	connected := make(map[string]struct{})
	s.relationships.Scan(func(r *common.Relationship) bool {
		connected[r.Source] = struct{}{}
		connected[r.Target] = struct{}{}
		return true
	})
	return s.filterEntities(func(e *common.Entity) bool {
		_, ok := connected[e.ID]
		return !ok
	}), nil
}

func (s *MemoryStorage) CountEntities(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return int64(s.entities.Len()), nil
}

func (s *MemoryStorage) DeleteEntity(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	e, ok := s.getEntity(id)
	if !ok {
		return false, nil
	}
	for _, r := range s.relationships.Items() {
		if r.Source == id || r.Target == id {
			s.deleteRelationship(r)
		}
	}
	s.entities.Delete(e)
	return true, nil
}

func (s *MemoryStorage) UpsertRelationship(ctx context.Context, rel common.Relationship) (store.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return store.Unchanged, err
	}

	if _, ok := s.getEntity(rel.Source); !ok {
		return store.Unchanged, store.ErrMissingEntity
	}
	if _, ok := s.getEntity(rel.Target); !ok {
		return store.Unchanged, store.ErrMissingEntity
	}
	if rel.SourceDocumentID != nil {
		if _, ok := s.findDocument(*rel.SourceDocumentID); !ok {
			return store.Unchanged, store.ErrMissingEntity
		}
	}

	key := tripleKey{rel.Source, rel.Relation, rel.Target}
	if prev, ok := s.byTriple[key]; ok {
		if !(prev.Confidence < rel.Confidence) {
			return store.Unchanged, nil
		}
		prev.Confidence = rel.Confidence
		prev.SourceText = copyRelationship(&rel).SourceText
		return store.Updated, nil
	}

	s.nextRelID++
	stored := copyRelationship(&rel)
	stored.ID = s.nextRelID
	stored.CreatedAt = s.now()
	s.relationships.Set(&stored)
	s.byTriple[key] = &stored
	return store.Inserted, nil
}

func (s *MemoryStorage) filterRelationships(keep func(r *common.Relationship) bool) []common.Relationship {
	out := make([]common.Relationship, 0)
	s.relationships.Scan(func(r *common.Relationship) bool {
		if keep(r) {
			out = append(out, copyRelationship(r))
		}
		return true
	})
	return out
}

func (s *MemoryStorage) GetRelationships(ctx context.Context, source string, relation common.RelationType) ([]common.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.filterRelationships(func(r *common.Relationship) bool {
		return r.Source == source && (relation == "" || r.Relation == relation)
	}), nil
}

func (s *MemoryStorage) GetIncidentRelationships(ctx context.Context, ids []string) ([]common.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return s.filterRelationships(func(r *common.Relationship) bool {
		_, src := set[r.Source]
		_, tgt := set[r.Target]
		return src || tgt
	}), nil
}

func (s *MemoryStorage) GetAllRelationships(ctx context.Context) ([]common.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.filterRelationships(func(*common.Relationship) bool { return true }), nil
}

func (s *MemoryStorage) CountRelationships(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return int64(s.relationships.Len()), nil
}

func (s *MemoryStorage) DeleteRelationship(ctx context.Context, source string, relation common.RelationType, target string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	r, ok := s.byTriple[tripleKey{source, relation, target}]
	if !ok {
		return false, nil
	}
	s.deleteRelationship(r)
	return true, nil
}

func (s *MemoryStorage) findDocument(id int64) (*common.Document, bool) {
	var found *common.Document
	s.documents.Scan(func(d *common.Document) bool {
		if d.ID == id {
			found = d
			return false
		}
		return true
	})
	return found, found != nil
}

func (s *MemoryStorage) SaveDocument(ctx context.Context, doc common.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	s.nextDocID++
	stored := doc
	stored.ID = s.nextDocID
	if stored.UploadedAt.IsZero() {
		stored.UploadedAt = s.now()
	}
	s.documents.Set(&stored)
	return stored.ID, nil
}

func (s *MemoryStorage) GetDocument(ctx context.Context, id int64) (*common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	d, ok := s.findDocument(id)
	if !ok {
		return nil, nil
	}
	out := *d
	return &out, nil
}

func (s *MemoryStorage) GetDocuments(ctx context.Context) ([]common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	out := make([]common.Document, 0, s.documents.Len())
	s.documents.Scan(func(d *common.Document) bool {
		out = append(out, *d)
		return true
	})
	return out, nil
}

func (s *MemoryStorage) DeleteDocument(ctx context.Context, id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	doc, ok := s.findDocument(id)
	if !ok {
		return nil, nil
	}

	var owned []common.Relationship
	for _, r := range s.relationships.Items() {
		if r.SourceDocumentID != nil && *r.SourceDocumentID == id {
			owned = append(owned, *r)
			s.deleteRelationship(r)
		}
	}
	s.documents.Delete(doc)

	reclaimed := make([]string, 0)
	for _, entityID := range store.ReferencedEntities(owned) {
		e, ok := s.getEntity(entityID)
		if !ok || s.hasEdges(entityID) {
			continue
		}
		s.entities.Delete(e)
		reclaimed = append(reclaimed, entityID)
	}
	return reclaimed, nil
}

func (s *MemoryStorage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.reset()
	return nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// PutRelationship stores rel as-is without the confidence or existence
// checks of UpsertRelationship. It exists for loading snapshots and for
// seeding inconsistent states in audits.
func (s *MemoryStorage) PutRelationship(rel common.Relationship) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRelID++
	stored := copyRelationship(&rel)
	stored.ID = s.nextRelID
	stored.CreatedAt = s.now()
	if prev, ok := s.byTriple[tripleKey{rel.Source, rel.Relation, rel.Target}]; ok {
		s.relationships.Delete(prev)
	}
	s.relationships.Set(&stored)
	s.byTriple[tripleKey{rel.Source, rel.Relation, rel.Target}] = &stored
	return stored.ID
}
