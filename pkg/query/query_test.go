package query

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgstore/pkg/ai"
	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/graph"
	"github.com/OFFIS-RIT/kgstore/pkg/store/memory"
)

func seedGraph(t *testing.T) *graph.Graph {
	t.Helper()
	ctx := context.Background()
	g := graph.New(memory.New())
	t.Cleanup(func() { g.Close() })

	nodes := []struct {
		id  string
		typ common.EntityType
	}{
		{"AN/SPY-6", common.EntitySubsystem},
		{"DDG-51 Flight III", common.EntitySystem},
		{"Raytheon Technologies", common.EntityContractor},
		{"PEO Ships", common.EntityPEO},
		{"F-35", common.EntityProgram},
		{"Lockheed Martin", common.EntityContractor},
	}
	for _, n := range nodes {
		if err := g.AddNode(ctx, n.id, n.typ, map[string]any{"name": n.id}); err != nil {
			t.Fatalf("AddNode(%q) failed: %v", n.id, err)
		}
	}

	doc, err := g.StoreDocument(ctx, "spy6.txt", "text", 1)
	if err != nil {
		t.Fatalf("StoreDocument failed: %v", err)
	}
	edges := []struct {
		s, t string
		rel  common.RelationType
		c    float64
		opts []graph.EdgeOption
	}{
		{"AN/SPY-6", "DDG-51 Flight III", common.RelPartOf, 0.9, []graph.EdgeOption{graph.WithSourceDocument(doc)}},
		{"AN/SPY-6", "Raytheon Technologies", common.RelDevelopedBy, 0.95, nil},
		{"DDG-51 Flight III", "PEO Ships", common.RelOverseenBy, 0.9, nil},
		{"F-35", "Lockheed Martin", common.RelDevelopedBy, 0.99, nil},
	}
	for _, e := range edges {
		if err := g.AddEdge(ctx, e.s, e.t, e.rel, e.c, e.opts...); err != nil {
			t.Fatalf("AddEdge(%s, %s) failed: %v", e.s, e.t, err)
		}
	}
	return g
}

func TestMatchEntities(t *testing.T) {
	r := NewRetriever(seedGraph(t), 2)

	ids, err := r.MatchEntities(context.Background(), "Who builds the an/spy-6 radar and the F-35?")
	if err != nil {
		t.Fatalf("MatchEntities() error = %v", err)
	}
	if want := []string{"AN/SPY-6", "F-35"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("MatchEntities() = %v, want %v", ids, want)
	}

	none, err := r.MatchEntities(context.Background(), "What about submarines?")
	if err != nil || len(none) != 0 {
		t.Fatalf("MatchEntities() = %v, %v, want none", none, err)
	}
}

func TestRetrieveUnion(t *testing.T) {
	r := NewRetriever(seedGraph(t), 3)
	trace := NewQueryTrace()

	res, err := r.Retrieve(context.Background(), []string{"Raytheon Technologies", "ghost", "PEO Ships", "F-35"}, 1, trace)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}

	var nodes []string
	for _, n := range res.Entities {
		nodes = append(nodes, n.ID)
	}
	wantNodes := []string{"Raytheon Technologies", "AN/SPY-6", "PEO Ships", "DDG-51 Flight III", "F-35", "Lockheed Martin"}
	if !reflect.DeepEqual(nodes, wantNodes) {
		t.Fatalf("nodes = %v, want %v", nodes, wantNodes)
	}

	var edges []string
	for _, e := range res.Relationships {
		edges = append(edges, e.Key())
	}
	wantEdges := []string{
		"AN/SPY-6-developed_by-Raytheon Technologies",
		"DDG-51 Flight III-overseen_by-PEO Ships",
		"F-35-developed_by-Lockheed Martin",
	}
	if !reflect.DeepEqual(edges, wantEdges) {
		t.Fatalf("edges = %v, want %v", edges, wantEdges)
	}

	snap := trace.Snapshot()
	if !reflect.DeepEqual(snap.SkippedEntityIDs, []string{"ghost"}) {
		t.Fatalf("skipped = %v, want [ghost]", snap.SkippedEntityIDs)
	}
	if len(snap.TraversedEntityIDs) != 3 {
		t.Fatalf("traversed = %v, want 3 ids", snap.TraversedEntityIDs)
	}
}

func TestRetrieveDeduplicatesOverlappingTraversals(t *testing.T) {
	r := NewRetriever(seedGraph(t), 1)
	trace := NewQueryTrace()

	res, err := r.Retrieve(context.Background(), []string{"AN/SPY-6", "DDG-51 Flight III"}, 2, trace)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(res.Entities) != 4 || len(res.Relationships) != 3 {
		t.Fatalf("Retrieve() returned %d nodes and %d edges, want 4 and 3", len(res.Entities), len(res.Relationships))
	}
	if got := trace.Snapshot().UsedDocumentIDs; len(got) != 1 {
		t.Fatalf("used documents = %v, want one", got)
	}
}

func TestRetrieveKeepsEdgesWithCollidingDisplayKeys(t *testing.T) {
	ctx := context.Background()
	g := graph.New(memory.New())
	t.Cleanup(func() { g.Close() })
	for _, id := range []string{"X", "Y-part_of-X", "X-part_of-Y"} {
		if err := g.AddNode(ctx, id, common.EntitySystem, nil); err != nil {
			t.Fatalf("AddNode(%q) failed: %v", id, err)
		}
	}
	if err := g.AddEdge(ctx, "X", "Y-part_of-X", common.RelPartOf, 0.8); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}
	if err := g.AddEdge(ctx, "X-part_of-Y", "X", common.RelPartOf, 0.8); err != nil {
		t.Fatalf("AddEdge failed: %v", err)
	}

	res, err := NewRetriever(g, 2).Retrieve(ctx, []string{"Y-part_of-X", "X-part_of-Y"}, 1, nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(res.Relationships) != 2 {
		t.Fatalf("Retrieve() returned %d edges, want 2", len(res.Relationships))
	}
}

func TestRetrieveEmpty(t *testing.T) {
	r := NewRetriever(seedGraph(t), 1)
	res, err := r.Retrieve(context.Background(), nil, 2, nil)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(res.Entities) != 0 || len(res.Relationships) != 0 {
		t.Fatalf("Retrieve(nil) = %+v, want empty", res)
	}
	if got := FormatContext(res); got != NoEntitiesContext {
		t.Fatalf("FormatContext() = %q, want %q", got, NoEntitiesContext)
	}
}

func TestRetrievePropagatesStorageErrors(t *testing.T) {
	g := graph.New(memory.New())
	g.Close()

	r := NewRetriever(g, 1)
	if _, err := r.Retrieve(context.Background(), []string{"A"}, 1, nil); !errors.Is(err, graph.ErrNotInitialized) {
		t.Fatalf("Retrieve() error = %v, want ErrNotInitialized", err)
	}
}

func TestFormatContext(t *testing.T) {
	g := &common.Graph{
		Entities: []common.Entity{
			{ID: "AN/SPY-6", Type: common.EntitySubsystem},
			{ID: "DDG-51", Type: common.EntitySystem},
		},
		Relationships: []common.Relationship{
			{Source: "AN/SPY-6", Relation: common.RelPartOf, Target: "DDG-51", Confidence: 0.9},
		},
	}
	want := "**Entities:**\n" +
		"- AN/SPY-6 (Subsystem)\n" +
		"- DDG-51 (System)\n" +
		"\n**Relationships:**\n" +
		"- AN/SPY-6 --[part_of, confidence: 0.9]--> DDG-51\n"
	if got := FormatContext(g); got != want {
		t.Fatalf("FormatContext() = %q, want %q", got, want)
	}

	g.Relationships = nil
	if got := FormatContext(g); !strings.HasSuffix(got, "- No relationships found\n") {
		t.Fatalf("FormatContext() without edges = %q", got)
	}
}

type fakeClient struct {
	ai.MetricsRecorder
	response string
	prompt   string
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.prompt = prompt
	return ai.UnmarshalFlexible(f.response, out)
}

func TestAnalystAnswer(t *testing.T) {
	client := &fakeClient{response: `{
  "analysis": "AN/SPY-6 is built by Raytheon Technologies for DDG-51 Flight III.",
  "key_findings": ["Raytheon Technologies develops AN/SPY-6"],
  "evidence": [
    {"source": "graph", "content": "AN/SPY-6 developed_by Raytheon Technologies", "confidence": 0.95, "relevance": "direct"},
    {"source": "guess", "content": "fielding date", "confidence": 0.2, "relevance": "context"}
  ],
  "unknowns": ["contract value"],
  "recommended_next_questions": ["When does Flight III deploy?"],
  "overall_confidence": 0.3,
  "retrieval_strategy": "3-hop"
}`}
	analyst := NewAnalyst(client, NewRetriever(seedGraph(t), 2), 2)

	ans, err := analyst.Answer(context.Background(), "Who builds AN/SPY-6?")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if !strings.Contains(client.prompt, "Who builds AN/SPY-6?") ||
		!strings.Contains(client.prompt, "- AN/SPY-6 --[developed_by, confidence: 0.95]--> Raytheon Technologies") {
		t.Fatalf("prompt is missing the question or graph context:\n%s", client.prompt)
	}
	if ans.OverallConfidence != 0.5 {
		t.Fatalf("OverallConfidence = %v, want clamped 0.5", ans.OverallConfidence)
	}
	if ans.Evidence[1].Confidence != 0.5 || ans.Evidence[1].Source != "inference" {
		t.Fatalf("Evidence[1] = %+v, want confidence 0.5 and source inference", ans.Evidence[1])
	}
	if ans.Evidence[0].Confidence != 0.95 {
		t.Fatalf("Evidence[0].Confidence = %v, want 0.95", ans.Evidence[0].Confidence)
	}
	if ans.RetrievalStrategy != "2-hop" {
		t.Fatalf("RetrievalStrategy = %q, want 2-hop", ans.RetrievalStrategy)
	}
	if !reflect.DeepEqual(ans.Entities, []string{"AN/SPY-6"}) {
		t.Fatalf("Entities = %v, want [AN/SPY-6]", ans.Entities)
	}
	if !reflect.DeepEqual(ans.Trace.MatchedEntityIDs, []string{"AN/SPY-6"}) {
		t.Fatalf("Trace.MatchedEntityIDs = %v", ans.Trace.MatchedEntityIDs)
	}
}

func TestSanitizeDefaults(t *testing.T) {
	resp := AnalystResponse{OverallConfidence: 1.7}
	sanitize(&resp, 0, 2)

	if resp.OverallConfidence != 1.0 || resp.RetrievalStrategy != "direct" {
		t.Fatalf("sanitize() = %+v", resp)
	}
	if resp.KeyFindings == nil || resp.Evidence == nil || resp.Unknowns == nil || resp.RecommendedNextQuestions == nil {
		t.Fatalf("sanitize() left nil lists: %+v", resp)
	}

	resp = AnalystResponse{RetrievalStrategy: "1-hop", OverallConfidence: 0.8}
	sanitize(&resp, 3, 2)
	if resp.RetrievalStrategy != "1-hop" || resp.OverallConfidence != 0.8 {
		t.Fatalf("sanitize() changed a valid answer: %+v", resp)
	}
}

func TestAnalystWithoutClient(t *testing.T) {
	analyst := NewAnalyst(nil, NewRetriever(seedGraph(t), 1), 0)
	if _, err := analyst.Answer(context.Background(), "q"); err == nil {
		t.Fatal("Answer() without client succeeded, want error")
	}
}

func TestMultiTracer(t *testing.T) {
	a, b := NewQueryTrace(), NewQueryTrace()
	m := MultiTracer{a, nil, b}
	RecordEntityIDs(m, TraceEventMatchedEntityIDs, "B", "A", "")
	RecordUsedDocumentIDs(m, 3, 0, 1)

	for _, tr := range []*QueryTrace{a, b} {
		s := tr.Snapshot()
		if !reflect.DeepEqual(s.MatchedEntityIDs, []string{"A", "B"}) || !reflect.DeepEqual(s.UsedDocumentIDs, []int64{1, 3}) {
			t.Fatalf("Snapshot() = %+v", s)
		}
	}
}
