package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgstore/internal/backend"
	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"
)

const sampleTriples = `[
  {"a": "AN/SPY-6", "type_a": "Subsystem", "relation": "part_of", "b": "DDG-51 Flight III", "type_b": "System", "confidence": 0.9},
  {"a": "DDG-51 Flight III", "type_a": "System", "relation": "developed_by", "b": "Raytheon Technologies", "type_b": "Contractor", "confidence": 0.95},
  {"a": "Aegis", "type_a": "System", "relation": "part_of", "b": "DDG-51 Flight III", "type_b": "System", "confidence": 0.3}
]`

func newTestSession(t *testing.T) {
	t.Helper()
	b, err := backend.Open(context.Background(), backend.Config{Kind: backend.KindMemory})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	services, err := backend.NewServices(b, backend.ServicesParams{})
	if err != nil {
		t.Fatalf("NewServices() error = %v", err)
	}
	session = &cliSession{backend: b, services: services}
	t.Cleanup(func() {
		b.Close()
		session = nil
	})
}

// run executes kgctl with args against the test session and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	traverseHops = 2
	retrieveHops = 0
	clearYes = false
	strictValidate = false
	triplesFile = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func ingestSample(t *testing.T) *ingest.IngestResult {
	t.Helper()
	dir := t.TempDir()
	doc := filepath.Join(dir, "flight3.txt")
	triples := filepath.Join(dir, "triples.json")
	if err := os.WriteFile(doc, []byte("The AN/SPY-6 radar is part of DDG-51 Flight III."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(triples, []byte(sampleTriples), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "ingest", doc, "--triples", triples, "--json")
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	var res ingest.IngestResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("ingest output is not JSON: %v\n%s", err, out)
	}
	return &res
}

func TestIngestWithTriples(t *testing.T) {
	newTestSession(t)
	res := ingestSample(t)

	if res.Filename != "flight3.txt" {
		t.Errorf("filename = %q, want flight3.txt", res.Filename)
	}
	if len(res.Triples) != 2 {
		t.Errorf("stored %d triples, want 2", len(res.Triples))
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Triple.A != "Aegis" {
		t.Errorf("skipped = %+v, want the low-confidence Aegis triple", res.Skipped)
	}

	n, err := session.backend.Graph.NodeCount(context.Background())
	if err != nil {
		t.Fatalf("NodeCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("NodeCount() = %d, want 3", n)
	}
}

func TestIngestWithoutExtractor(t *testing.T) {
	newTestSession(t)
	doc := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(doc, []byte("F-35 is developed by Lockheed Martin."), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "ingest", doc); err == nil {
		t.Fatal("ingest without triples or AI provider succeeded, want error")
	}
}

func TestTraverseAndRetrieve(t *testing.T) {
	newTestSession(t)
	ingestSample(t)

	out, err := run(t, "traverse", "AN/SPY-6", "--hops", "1")
	if err != nil {
		t.Fatalf("traverse error = %v", err)
	}
	if !strings.Contains(out, "DDG-51 Flight III") || strings.Contains(out, "Raytheon") {
		t.Errorf("traverse --hops 1 output:\n%s", out)
	}

	out, err = run(t, "retrieve", "Who builds DDG-51 Flight III?")
	if err != nil {
		t.Fatalf("retrieve error = %v", err)
	}
	if !strings.Contains(out, "Raytheon Technologies") {
		t.Errorf("retrieve output missing contractor:\n%s", out)
	}

	if _, err := run(t, "traverse", "Ghost"); err == nil {
		t.Error("traverse of a missing entity succeeded, want error")
	}
}

func TestValidateStrict(t *testing.T) {
	newTestSession(t)
	ingestSample(t)

	if _, err := run(t, "validate", "--strict"); err != nil {
		t.Fatalf("validate --strict on a clean graph error = %v", err)
	}

	if err := session.backend.Graph.AddNode(context.Background(), "F-35", common.EntityProgram, nil); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	out, err := run(t, "validate", "--strict")
	if err == nil {
		t.Fatal("validate --strict with an orphan succeeded, want error")
	}
	if !strings.Contains(out, "F-35") {
		t.Errorf("validate output missing orphan:\n%s", out)
	}

	out, err = run(t, "orphans")
	if err != nil {
		t.Fatalf("orphans error = %v", err)
	}
	if !strings.Contains(out, "F-35") {
		t.Errorf("orphans output:\n%s", out)
	}
}

func TestDocsListAndDelete(t *testing.T) {
	newTestSession(t)
	res := ingestSample(t)

	out, err := run(t, "docs", "list")
	if err != nil {
		t.Fatalf("docs list error = %v", err)
	}
	if !strings.Contains(out, "flight3.txt") {
		t.Errorf("docs list output:\n%s", out)
	}

	if _, err := run(t, "docs", "delete", "abc"); err == nil {
		t.Error("docs delete abc succeeded, want error")
	}

	out, err = run(t, "docs", "delete", strconv.FormatInt(res.DocumentID, 10))
	if err != nil {
		t.Fatalf("docs delete error = %v", err)
	}
	if !strings.Contains(out, "reclaimed 3 entities") {
		t.Errorf("docs delete output:\n%s", out)
	}

	out, err = run(t, "stats", "--json")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var stats common.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output is not JSON: %v", err)
	}
	if stats.TotalEntities != 0 || stats.TotalRelations != 0 {
		t.Errorf("stats after delete = %+v, want empty graph", stats)
	}
}

func TestClearRequiresConfirmation(t *testing.T) {
	newTestSession(t)
	ingestSample(t)

	if _, err := run(t, "clear"); err == nil {
		t.Fatal("clear without --yes succeeded, want error")
	}
	if n, _ := session.backend.Graph.NodeCount(context.Background()); n == 0 {
		t.Fatal("clear without --yes removed entities")
	}

	if _, err := run(t, "clear", "--yes"); err != nil {
		t.Fatalf("clear --yes error = %v", err)
	}
	if n, _ := session.backend.Graph.NodeCount(context.Background()); n != 0 {
		t.Errorf("NodeCount() after clear = %d, want 0", n)
	}
}

func TestInsights(t *testing.T) {
	newTestSession(t)
	ingestSample(t)

	out, err := run(t, "insights")
	if err != nil {
		t.Fatalf("insights error = %v", err)
	}
	for _, want := range []string{"Raytheon Technologies (1 systems)", "- DDG-51 Flight III", "Totals: 3 entities, 2 relationships"} {
		if !strings.Contains(out, want) {
			t.Errorf("insights output missing %q:\n%s", want, out)
		}
	}
}
