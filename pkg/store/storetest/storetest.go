// Package storetest holds the behaviour every store.GraphStorage backend
// must share. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/store"
)

// Opener returns a fresh, empty storage. The storage is closed by the suite.
type Opener func(t *testing.T) store.GraphStorage

// Run executes the storage suite against backends produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.GraphStorage)
	}{
		{"EntityUpsertReplaces", testEntityUpsertReplaces},
		{"EntityDataRoundTrip", testEntityDataRoundTrip},
		{"EntityListings", testEntityListings},
		{"RelationshipRequiresEntities", testRelationshipRequiresEntities},
		{"RelationshipConditionalUpsert", testRelationshipConditionalUpsert},
		{"RelationshipQueries", testRelationshipQueries},
		{"Orphans", testOrphans},
		{"DeleteEntityCascades", testDeleteEntityCascades},
		{"DocumentsNewestFirst", testDocumentsNewestFirst},
		{"DeleteDocumentReclaimsOneLevel", testDeleteDocumentReclaimsOneLevel},
		{"DeleteUnknownDocument", testDeleteUnknownDocument},
		{"Clear", testClear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func mustEntity(t *testing.T, s store.GraphStorage, id string, typ common.EntityType) {
	t.Helper()
	if err := s.UpsertEntity(context.Background(), common.Entity{ID: id, Type: typ, Data: map[string]any{"name": id}}); err != nil {
		t.Fatalf("UpsertEntity(%q) failed: %v", id, err)
	}
}

func mustEdge(t *testing.T, s store.GraphStorage, src string, rel common.RelationType, tgt string, conf float64, doc *int64) {
	t.Helper()
	_, err := s.UpsertRelationship(context.Background(), common.Relationship{
		Source: src, Target: tgt, Relation: rel, Confidence: conf, SourceDocumentID: doc,
	})
	if err != nil {
		t.Fatalf("UpsertRelationship(%s -%s-> %s) failed: %v", src, rel, tgt, err)
	}
}

func entityIDs(entities []common.Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	return ids
}

func relKeys(rels []common.Relationship) []string {
	keys := make([]string, 0, len(rels))
	for _, r := range rels {
		keys = append(keys, r.Key())
	}
	return keys
}

func testEntityUpsertReplaces(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	if err := s.UpsertEntity(ctx, common.Entity{ID: "X", Type: common.EntitySystem, Data: map[string]any{"a": "1", "b": "2"}}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := s.UpsertEntity(ctx, common.Entity{ID: "X", Type: common.EntityProgram, Data: map[string]any{"a": "3"}}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := s.GetEntity(ctx, "X")
	if err != nil {
		t.Fatalf("GetEntity failed: %v", err)
	}
	if got == nil {
		t.Fatalf("expected entity X")
	}
	if got.Type != common.EntityProgram {
		t.Fatalf("expected type Program, got %q", got.Type)
	}
	if !reflect.DeepEqual(got.Data, map[string]any{"a": "3"}) {
		t.Fatalf("expected data to be replaced, got %v", got.Data)
	}

	missing, err := s.GetEntity(ctx, "x")
	if err != nil {
		t.Fatalf("GetEntity(x) failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("ids must be case sensitive, got %+v", missing)
	}

	if err := s.UpsertEntity(ctx, common.Entity{ID: "Y", Type: common.EntitySystem}); err != nil {
		t.Fatalf("upsert with nil data failed: %v", err)
	}
	y, err := s.GetEntity(ctx, "Y")
	if err != nil {
		t.Fatalf("GetEntity(Y) failed: %v", err)
	}
	if y.Data == nil || len(y.Data) != 0 {
		t.Fatalf("expected empty non-nil data, got %#v", y.Data)
	}

	n, err := s.CountEntities(ctx)
	if err != nil {
		t.Fatalf("CountEntities failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entities, got %d", n)
	}
}

func testEntityDataRoundTrip(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	data := map[string]any{
		"name":       "Golden Dome",
		"budget":     25,
		"milestones": []string{"MS-A", "MS-B"},
		"office":     map[string]any{"code": "PEO-1"},
	}
	if err := s.UpsertEntity(ctx, common.Entity{ID: "GD", Type: common.EntityProgram, Data: data}); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	data["office"].(map[string]any)["code"] = "changed"

	got, err := s.GetEntity(ctx, "GD")
	if err != nil {
		t.Fatalf("GetEntity failed: %v", err)
	}
	want := map[string]any{
		"name":       "Golden Dome",
		"budget":     float64(25),
		"milestones": []any{"MS-A", "MS-B"},
		"office":     map[string]any{"code": "PEO-1"},
	}
	if !reflect.DeepEqual(got.Data, want) {
		t.Fatalf("data = %#v, want %#v", got.Data, want)
	}

	got.Data["office"].(map[string]any)["code"] = "mutated"
	again, err := s.GetEntity(ctx, "GD")
	if err != nil {
		t.Fatalf("GetEntity failed: %v", err)
	}
	if !reflect.DeepEqual(again.Data, want) {
		t.Fatalf("stored data changed through a returned entity: %#v", again.Data)
	}
}

func testEntityListings(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	mustEntity(t, s, "c", common.EntitySystem)
	mustEntity(t, s, "a", common.EntityProgram)
	mustEntity(t, s, "b", common.EntitySystem)

	all, err := s.GetAllEntities(ctx)
	if err != nil {
		t.Fatalf("GetAllEntities failed: %v", err)
	}
	if !reflect.DeepEqual(entityIDs(all), []string{"a", "b", "c"}) {
		t.Fatalf("expected entities ordered by id, got %v", entityIDs(all))
	}

	systems, err := s.GetEntitiesByType(ctx, common.EntitySystem)
	if err != nil {
		t.Fatalf("GetEntitiesByType failed: %v", err)
	}
	if !reflect.DeepEqual(entityIDs(systems), []string{"b", "c"}) {
		t.Fatalf("expected systems [b c], got %v", entityIDs(systems))
	}

	some, err := s.GetEntities(ctx, []string{"c", "missing", "a", "c"})
	if err != nil {
		t.Fatalf("GetEntities failed: %v", err)
	}
	if !reflect.DeepEqual(entityIDs(some), []string{"a", "c"}) {
		t.Fatalf("expected [a c], got %v", entityIDs(some))
	}
}

func testRelationshipRequiresEntities(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	mustEntity(t, s, "A", common.EntitySystem)

	_, err := s.UpsertRelationship(ctx, common.Relationship{Source: "A", Target: "B", Relation: common.RelPartOf, Confidence: 0.9})
	if !errors.Is(err, store.ErrMissingEntity) {
		t.Fatalf("expected ErrMissingEntity for missing target, got %v", err)
	}
	_, err = s.UpsertRelationship(ctx, common.Relationship{Source: "B", Target: "A", Relation: common.RelPartOf, Confidence: 0.9})
	if !errors.Is(err, store.ErrMissingEntity) {
		t.Fatalf("expected ErrMissingEntity for missing source, got %v", err)
	}

	n, err := s.CountRelationships(ctx)
	if err != nil {
		t.Fatalf("CountRelationships failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no relationships, got %d", n)
	}
}

func testRelationshipConditionalUpsert(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	mustEntity(t, s, "A", common.EntitySystem)
	mustEntity(t, s, "B", common.EntityProgram)

	text := func(s string) *string { return &s }
	steps := []struct {
		confidence float64
		sourceText string
		want       store.UpsertResult
		wantConf   float64
		wantText   string
	}{
		{0.7, "first", store.Inserted, 0.7, "first"},
		{0.6, "lower", store.Unchanged, 0.7, "first"},
		{0.7, "equal", store.Unchanged, 0.7, "first"},
		{0.9, "higher", store.Updated, 0.9, "higher"},
	}

	for i, step := range steps {
		res, err := s.UpsertRelationship(ctx, common.Relationship{
			Source: "A", Target: "B", Relation: common.RelPartOf,
			Confidence: step.confidence, SourceText: text(step.sourceText),
		})
		if err != nil {
			t.Fatalf("step %d: upsert failed: %v", i, err)
		}
		if res != step.want {
			t.Fatalf("step %d: expected %s, got %s", i, step.want, res)
		}

		rels, err := s.GetRelationships(ctx, "A", "")
		if err != nil {
			t.Fatalf("step %d: GetRelationships failed: %v", i, err)
		}
		if len(rels) != 1 {
			t.Fatalf("step %d: expected 1 relationship, got %d", i, len(rels))
		}
		if rels[0].Confidence != step.wantConf {
			t.Fatalf("step %d: expected confidence %v, got %v", i, step.wantConf, rels[0].Confidence)
		}
		if rels[0].SourceText == nil || *rels[0].SourceText != step.wantText {
			t.Fatalf("step %d: expected source text %q, got %v", i, step.wantText, rels[0].SourceText)
		}
	}

	// a different relation between the same pair is a separate edge
	mustEdge(t, s, "A", common.RelDependsOn, "B", 0.8, nil)
	n, err := s.CountRelationships(ctx)
	if err != nil {
		t.Fatalf("CountRelationships failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 relationships, got %d", n)
	}
}

func testRelationshipQueries(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C", "D"} {
		mustEntity(t, s, id, common.EntitySystem)
	}
	mustEdge(t, s, "A", common.RelPartOf, "B", 0.9, nil)
	mustEdge(t, s, "A", common.RelDependsOn, "C", 0.8, nil)
	mustEdge(t, s, "C", common.RelPartOf, "D", 0.7, nil)
	mustEdge(t, s, "D", common.RelEnables, "A", 0.6, nil)

	out, err := s.GetRelationships(ctx, "A", "")
	if err != nil {
		t.Fatalf("GetRelationships failed: %v", err)
	}
	if !reflect.DeepEqual(relKeys(out), []string{"A-part_of-B", "A-depends_on-C"}) {
		t.Fatalf("unexpected outgoing edges: %v", relKeys(out))
	}

	filtered, err := s.GetRelationships(ctx, "A", common.RelDependsOn)
	if err != nil {
		t.Fatalf("GetRelationships(filtered) failed: %v", err)
	}
	if !reflect.DeepEqual(relKeys(filtered), []string{"A-depends_on-C"}) {
		t.Fatalf("unexpected filtered edges: %v", relKeys(filtered))
	}

	incident, err := s.GetIncidentRelationships(ctx, []string{"A"})
	if err != nil {
		t.Fatalf("GetIncidentRelationships failed: %v", err)
	}
	if !reflect.DeepEqual(relKeys(incident), []string{"A-part_of-B", "A-depends_on-C", "D-enables-A"}) {
		t.Fatalf("unexpected incident edges: %v", relKeys(incident))
	}

	none, err := s.GetIncidentRelationships(ctx, nil)
	if err != nil {
		t.Fatalf("GetIncidentRelationships(nil) failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no edges for empty id list, got %v", relKeys(none))
	}

	all, err := s.GetAllRelationships(ctx)
	if err != nil {
		t.Fatalf("GetAllRelationships failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 relationships, got %d", len(all))
	}

	ok, err := s.DeleteRelationship(ctx, "C", common.RelPartOf, "D")
	if err != nil || !ok {
		t.Fatalf("DeleteRelationship = %v, %v", ok, err)
	}
	ok, err = s.DeleteRelationship(ctx, "C", common.RelPartOf, "D")
	if err != nil || ok {
		t.Fatalf("second DeleteRelationship = %v, %v", ok, err)
	}
}

func testOrphans(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	mustEntity(t, s, "A", common.EntitySystem)
	mustEntity(t, s, "B", common.EntitySystem)
	mustEntity(t, s, "lonely", common.EntityRisk)
	mustEdge(t, s, "B", common.RelPartOf, "A", 0.9, nil)

	orphans, err := s.GetOrphanEntities(ctx)
	if err != nil {
		t.Fatalf("GetOrphanEntities failed: %v", err)
	}
	if !reflect.DeepEqual(entityIDs(orphans), []string{"lonely"}) {
		t.Fatalf("expected only lonely to be orphaned, got %v", entityIDs(orphans))
	}
}

func testDeleteEntityCascades(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	mustEntity(t, s, "A", common.EntitySystem)
	mustEntity(t, s, "B", common.EntitySystem)
	mustEdge(t, s, "A", common.RelPartOf, "B", 0.9, nil)

	ok, err := s.DeleteEntity(ctx, "B")
	if err != nil || !ok {
		t.Fatalf("DeleteEntity = %v, %v", ok, err)
	}
	n, err := s.CountRelationships(ctx)
	if err != nil {
		t.Fatalf("CountRelationships failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected edges of deleted entity to be removed, got %d", n)
	}
	ok, err = s.DeleteEntity(ctx, "B")
	if err != nil || ok {
		t.Fatalf("second DeleteEntity = %v, %v", ok, err)
	}
}

func testDocumentsNewestFirst(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older, err := s.SaveDocument(ctx, common.Document{Filename: "old.txt", Content: "old", TripleCount: 1, UploadedAt: base})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	newer, err := s.SaveDocument(ctx, common.Document{Filename: "new.txt", Content: "new", TripleCount: 2, UploadedAt: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	docs, err := s.GetDocuments(ctx)
	if err != nil {
		t.Fatalf("GetDocuments failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != newer || docs[1].ID != older {
		t.Fatalf("expected newest first, got %+v", docs)
	}
	if docs[0].Filename != "new.txt" || docs[0].TripleCount != 2 || docs[0].Content != "new" {
		t.Fatalf("unexpected document fields: %+v", docs[0])
	}

	got, err := s.GetDocument(ctx, older)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got == nil || got.Filename != "old.txt" {
		t.Fatalf("unexpected document: %+v", got)
	}
	missing, err := s.GetDocument(ctx, older+newer+100)
	if err != nil || missing != nil {
		t.Fatalf("expected missing document, got %+v, %v", missing, err)
	}
}

func testDeleteDocumentReclaimsOneLevel(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	doc, err := s.SaveDocument(ctx, common.Document{Filename: "doc.txt", Content: "x", TripleCount: 2})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	other, err := s.SaveDocument(ctx, common.Document{Filename: "other.txt", Content: "y", TripleCount: 1})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	for _, id := range []string{"X", "Y", "Shared", "Keep", "Manual", "Idle"} {
		mustEntity(t, s, id, common.EntitySystem)
	}
	mustEdge(t, s, "X", common.RelPartOf, "Shared", 0.9, &doc)
	mustEdge(t, s, "Y", common.RelDependsOn, "X", 0.8, &doc)
	mustEdge(t, s, "Shared", common.RelPartOf, "Keep", 0.9, &other)
	mustEdge(t, s, "Manual", common.RelEnables, "Keep", 0.7, nil)

	reclaimed, err := s.DeleteDocument(ctx, doc)
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	got := make(map[string]bool)
	for _, id := range reclaimed {
		got[id] = true
	}
	if !reflect.DeepEqual(got, map[string]bool{"X": true, "Y": true}) {
		t.Fatalf("expected X and Y to be reclaimed, got %v", reclaimed)
	}

	all, err := s.GetAllEntities(ctx)
	if err != nil {
		t.Fatalf("GetAllEntities failed: %v", err)
	}
	if !reflect.DeepEqual(entityIDs(all), []string{"Idle", "Keep", "Manual", "Shared"}) {
		t.Fatalf("unexpected surviving entities: %v", entityIDs(all))
	}
	rels, err := s.GetAllRelationships(ctx)
	if err != nil {
		t.Fatalf("GetAllRelationships failed: %v", err)
	}
	if !reflect.DeepEqual(relKeys(rels), []string{"Shared-part_of-Keep", "Manual-enables-Keep"}) {
		t.Fatalf("unexpected surviving edges: %v", relKeys(rels))
	}
	docs, err := s.GetDocuments(ctx)
	if err != nil {
		t.Fatalf("GetDocuments failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != other {
		t.Fatalf("expected only the other document to remain, got %+v", docs)
	}

	// Shared loses its last edge with the second document. Keep still has
	// the manual edge, and Idle was never referenced by either document.
	reclaimed, err = s.DeleteDocument(ctx, other)
	if err != nil {
		t.Fatalf("DeleteDocument(other) failed: %v", err)
	}
	if !reflect.DeepEqual(reclaimed, []string{"Shared"}) {
		t.Fatalf("expected only Shared to be reclaimed, got %v", reclaimed)
	}
}

func testDeleteUnknownDocument(t *testing.T, s store.GraphStorage) {
	reclaimed, err := s.DeleteDocument(context.Background(), 4242)
	if err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if len(reclaimed) != 0 {
		t.Fatalf("expected nothing reclaimed, got %v", reclaimed)
	}
}

func testClear(t *testing.T, s store.GraphStorage) {
	ctx := context.Background()
	doc, err := s.SaveDocument(ctx, common.Document{Filename: "doc.txt", Content: "x"})
	if err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	mustEntity(t, s, "A", common.EntitySystem)
	mustEntity(t, s, "B", common.EntitySystem)
	mustEdge(t, s, "A", common.RelPartOf, "B", 0.9, &doc)

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	entities, _ := s.CountEntities(ctx)
	rels, _ := s.CountRelationships(ctx)
	docs, _ := s.GetDocuments(ctx)
	if entities != 0 || rels != 0 || len(docs) != 0 {
		t.Fatalf("expected empty store, got %d entities, %d relationships, %d documents", entities, rels, len(docs))
	}
}
