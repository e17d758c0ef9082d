package ingest

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/graph"
	"github.com/OFFIS-RIT/kgstore/pkg/store"
	"github.com/OFFIS-RIT/kgstore/pkg/store/memory"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	fn    func(text string) (*common.ExtractionResult, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (*common.ExtractionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	return f.fn(text)
}

type fakeArchive struct {
	archived map[int64]string
	removed  []int64
	err      error
}

func (f *fakeArchive) Archive(ctx context.Context, documentID int64, filename string, content []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.archived == nil {
		f.archived = make(map[int64]string)
	}
	f.archived[documentID] = string(content)
	return "documents/" + filename, nil
}

func (f *fakeArchive) Remove(ctx context.Context, documentID int64) error {
	f.removed = append(f.removed, documentID)
	return nil
}

func newTestGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(memory.New())
	t.Cleanup(func() { g.Close() })
	return g
}

func spyTriples() []common.Triple {
	return []common.Triple{
		{A: "AN/SPY-6", TypeA: common.EntitySubsystem, Relation: common.RelPartOf, B: "DDG 51", TypeB: common.EntitySystem, Confidence: 0.9, SourceText: "SPY-6 is installed on DDG 51"},
		{A: "AN/SPY-6", TypeA: common.EntitySubsystem, Relation: common.RelDevelopedBy, B: "RTX", TypeB: common.EntityContractor, Confidence: 0.95},
	}
}

func TestIngestTriples(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	archive := &fakeArchive{}
	ing := NewIngestor(NewIngestorParams{Graph: g, Archive: archive})

	triples := append(spyTriples(),
		common.Triple{A: "X", TypeA: common.EntityRisk, Relation: common.RelMitigates, B: "Y", TypeB: common.EntityRisk, Confidence: 0.3},
		common.Triple{A: "X", TypeA: "Spaceship", Relation: common.RelMitigates, B: "Y", TypeB: common.EntityRisk, Confidence: 0.8},
		common.Triple{A: "X", TypeA: common.EntityRisk, Relation: "owns", B: "Y", TypeB: common.EntityRisk, Confidence: 0.8},
		common.Triple{A: " ", TypeA: common.EntityRisk, Relation: common.RelMitigates, B: "Y", TypeB: common.EntityRisk, Confidence: 0.8},
	)

	res, err := ing.IngestTriples(ctx, "spy6.txt", "SPY-6 is installed on DDG 51", triples)
	if err != nil {
		t.Fatalf("IngestTriples() error = %v", err)
	}
	if len(res.Triples) != 2 || len(res.Skipped) != 4 {
		t.Fatalf("stored %d and skipped %d triples, want 2 and 4", len(res.Triples), len(res.Skipped))
	}
	if res.ArchiveKey != "documents/spy6.txt" || archive.archived[res.DocumentID] == "" {
		t.Fatalf("document was not archived: key %q", res.ArchiveKey)
	}

	docs, err := g.AllDocuments(ctx)
	if err != nil {
		t.Fatalf("AllDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].TripleCount != 2 || docs[0].Filename != "spy6.txt" {
		t.Fatalf("AllDocuments() = %+v, want one document with 2 triples", docs)
	}

	nodes, err := g.AllNodes(ctx)
	if err != nil {
		t.Fatalf("AllNodes() error = %v", err)
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
		if n.Data["name"] != n.ID {
			t.Errorf("node %s has name %v", n.ID, n.Data["name"])
		}
	}
	if want := []string{"AN/SPY-6", "DDG-51", "Raytheon Technologies"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("nodes = %v, want %v", ids, want)
	}

	edges, err := g.GetEdges(ctx, "AN/SPY-6", common.RelPartOf)
	if err != nil {
		t.Fatalf("GetEdges() error = %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("GetEdges() returned %d edges, want 1", len(edges))
	}
	e := edges[0]
	if e.SourceDocumentID == nil || *e.SourceDocumentID != res.DocumentID {
		t.Fatalf("edge source document = %v, want %d", e.SourceDocumentID, res.DocumentID)
	}
	if e.SourceText == nil || *e.SourceText != "SPY-6 is installed on DDG 51" {
		t.Fatalf("edge source text = %v", e.SourceText)
	}

	other, err := g.GetEdges(ctx, "AN/SPY-6", common.RelDevelopedBy)
	if err != nil || len(other) != 1 || other[0].SourceText != nil {
		t.Fatalf("developed_by edge = %+v, %v, want one edge without source text", other, err)
	}
}

func TestIngestSmallDocument(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	ext := &fakeExtractor{fn: func(text string) (*common.ExtractionResult, error) {
		return &common.ExtractionResult{
			Triples:        spyTriples(),
			OrphanEntities: []common.OrphanEntity{{Entity: "GD", Type: common.EntityProgram, Reason: "no relationships found"}},
			Ambiguities:    []common.Ambiguity{},
		}, nil
	}}
	ing := NewIngestor(NewIngestorParams{Graph: g, Extractor: ext, ChunkMaxChars: DefaultChunkMaxChars, ChunkOverlap: DefaultChunkOverlap})

	res, err := ing.Ingest(ctx, "memo.txt", "short memo")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(ext.calls) != 1 || ext.calls[0] != "short memo" {
		t.Fatalf("extractor calls = %q, want the whole text once", ext.calls)
	}
	if res.Chunks != 1 || len(res.Triples) != 2 || len(res.Orphans) != 1 {
		t.Fatalf("Ingest() = %+v", res)
	}
	if res.Triples[1].B != "Raytheon Technologies" {
		t.Fatalf("triple B = %q, want the normalized name", res.Triples[1].B)
	}

	count, err := g.EdgeCount(ctx)
	if err != nil || count != 2 {
		t.Fatalf("EdgeCount() = %d, %v, want 2", count, err)
	}
}

func TestIngestChunkedDocument(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	ext := &fakeExtractor{fn: func(text string) (*common.ExtractionResult, error) {
		switch {
		case strings.Contains(text, "FAIL"):
			return nil, errors.New("model timeout")
		case strings.Contains(text, "radar"):
			return &common.ExtractionResult{Triples: spyTriples()[:1]}, nil
		default:
			return &common.ExtractionResult{
				Triples: []common.Triple{
					{A: "AN/SPY-6", TypeA: common.EntitySubsystem, Relation: common.RelDependsOn, B: "DDG-51", TypeB: common.EntitySystem, Confidence: 0.6},
					{A: "Aegis", TypeA: common.EntitySystem, Relation: common.RelEnables, B: "DDG-51", TypeB: common.EntitySystem, Confidence: 0.8},
				},
				Ambiguities: []common.Ambiguity{{Text: "the ship", Resolution: "needs_clarification"}},
			}, nil
		}
	}}
	ing := NewIngestor(NewIngestorParams{Graph: g, Extractor: ext, ChunkMaxChars: 30, ParallelRequests: 3})

	content := strings.Join([]string{
		"The radar paragraph is here.",
		"This paragraph should FAIL now.",
		"The ship paragraph comes last.",
	}, "\n\n")

	res, err := ing.Ingest(ctx, "long.txt", content)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Chunks != 3 || len(ext.calls) != 3 {
		t.Fatalf("chunks = %d, calls = %d, want 3 and 3", res.Chunks, len(ext.calls))
	}

	keys := make([]string, 0, len(res.Triples))
	for _, tr := range res.Triples {
		keys = append(keys, tr.A+"-"+string(tr.Relation)+"-"+tr.B)
	}
	want := []string{"AN/SPY-6-part_of-DDG-51", "Aegis-enables-DDG-51"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("triples = %v, want %v", keys, want)
	}
	if len(res.Ambiguities) != 1 {
		t.Fatalf("ambiguities = %v, want one", res.Ambiguities)
	}
}

func TestIngestStrictMergeKeepsRelations(t *testing.T) {
	g := newTestGraph(t)
	ext := &fakeExtractor{fn: func(text string) (*common.ExtractionResult, error) {
		if strings.Contains(text, "radar") {
			return &common.ExtractionResult{Triples: spyTriples()[:1]}, nil
		}
		return &common.ExtractionResult{Triples: []common.Triple{
			{A: "AN/SPY-6", TypeA: common.EntitySubsystem, Relation: common.RelDependsOn, B: "DDG-51", TypeB: common.EntitySystem, Confidence: 0.6},
			{A: "AN/SPY-6", TypeA: common.EntitySubsystem, Relation: common.RelPartOf, B: "DDG-51", TypeB: common.EntitySystem, Confidence: 0.7},
		}}, nil
	}}
	ing := NewIngestor(NewIngestorParams{Graph: g, Extractor: ext, ChunkMaxChars: 30, StrictMerge: true})

	res, err := ing.Ingest(context.Background(), "strict.txt", "The radar paragraph is here.\n\nThe ship paragraph comes last.")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	got := make([]string, 0, len(res.Triples))
	for _, tr := range res.Triples {
		got = append(got, tr.A+"-"+string(tr.Relation)+"-"+tr.B+"@"+strconv.FormatFloat(tr.Confidence, 'f', -1, 64))
	}
	want := []string{"AN/SPY-6-part_of-DDG-51@0.9", "AN/SPY-6-depends_on-DDG-51@0.6"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("triples = %v, want %v", got, want)
	}
}

type failingEdgeStorage struct {
	store.GraphStorage
}

func (failingEdgeStorage) UpsertRelationship(ctx context.Context, rel common.Relationship) (store.UpsertResult, error) {
	return store.Unchanged, errors.New("connection reset")
}

func TestIngestTriplesRollsBackOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	g := graph.New(failingEdgeStorage{GraphStorage: memory.New()})
	t.Cleanup(func() { g.Close() })
	if err := g.AddNode(ctx, "F-35", common.EntityProgram, nil); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	ing := NewIngestor(NewIngestorParams{Graph: g})

	for range 3 {
		if _, err := ing.IngestTriples(ctx, "spy6.txt", "text", spyTriples()); err == nil {
			t.Fatal("IngestTriples() succeeded, want the storage error")
		}
	}

	docs, err := g.AllDocuments(ctx)
	if err != nil {
		t.Fatalf("AllDocuments() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("documents left after failed ingestion: %+v", docs)
	}
	nodes, err := g.AllNodes(ctx)
	if err != nil {
		t.Fatalf("AllNodes() error = %v", err)
	}
	if ids := entityIDs(nodes); !reflect.DeepEqual(ids, []string{"F-35"}) {
		t.Fatalf("nodes after failed ingestion = %v, want only the pre-existing F-35", ids)
	}
}

func TestIngestAllChunksFail(t *testing.T) {
	g := newTestGraph(t)
	ext := &fakeExtractor{fn: func(string) (*common.ExtractionResult, error) {
		return nil, errors.New("down")
	}}
	ing := NewIngestor(NewIngestorParams{Graph: g, Extractor: ext, ChunkMaxChars: 10})

	_, err := ing.Ingest(context.Background(), "f.txt", "first paragraph\n\nsecond paragraph")
	if err == nil {
		t.Fatal("Ingest() succeeded, want an error when every chunk fails")
	}
	docs, _ := g.AllDocuments(context.Background())
	if len(docs) != 0 {
		t.Fatalf("a document was stored for a failed ingestion: %+v", docs)
	}
}

func TestIngestWithoutExtractor(t *testing.T) {
	ing := NewIngestor(NewIngestorParams{Graph: newTestGraph(t)})
	if _, err := ing.Ingest(context.Background(), "f.txt", "text"); err == nil {
		t.Fatal("Ingest() without extractor succeeded, want error")
	}
}

func TestIngestArchiveFailureIsNotFatal(t *testing.T) {
	ing := NewIngestor(NewIngestorParams{Graph: newTestGraph(t), Archive: &fakeArchive{err: errors.New("s3 down")}})
	res, err := ing.IngestTriples(context.Background(), "f.txt", "text", spyTriples())
	if err != nil {
		t.Fatalf("IngestTriples() error = %v", err)
	}
	if res.ArchiveKey != "" {
		t.Fatalf("ArchiveKey = %q, want empty", res.ArchiveKey)
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	archive := &fakeArchive{}
	ing := NewIngestor(NewIngestorParams{Graph: g, Archive: archive})

	res, err := ing.IngestTriples(ctx, "f.txt", "text", spyTriples())
	if err != nil {
		t.Fatalf("IngestTriples() error = %v", err)
	}

	reclaimed, err := ing.DeleteDocument(ctx, res.DocumentID)
	if err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if want := []string{"AN/SPY-6", "DDG-51", "Raytheon Technologies"}; !slices.Equal(reclaimed, want) {
		t.Fatalf("reclaimed = %v, want %v", reclaimed, want)
	}
	if !slices.Equal(archive.removed, []int64{res.DocumentID}) {
		t.Fatalf("removed archives = %v, want [%d]", archive.removed, res.DocumentID)
	}
}

func entityIDs(entities []common.Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	return ids
}
