package ingest

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

func triple(a string, rel common.RelationType, b string, c float64) common.Triple {
	return common.Triple{A: a, TypeA: common.EntitySystem, Relation: rel, B: b, TypeB: common.EntityProgram, Confidence: c}
}

func TestMergeKeyName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"F-35A", "f35a"},
		{"  F/35A ", "f35a"},
		{"AN/SPY-6", "anspy6"},
		{"DDG-51   Flight\tIII", "ddg51 flight iii"},
		{"a - b", "a  b"},
	}
	for _, tc := range tests {
		if got := mergeKeyName(tc.in); got != tc.want {
			t.Errorf("mergeKeyName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMergeChunkResults(t *testing.T) {
	results := []common.ExtractionResult{
		{Triples: []common.Triple{
			triple("F-35A", common.RelPartOf, "JSF", 0.7),
			triple("AN/SPY-6", common.RelPartOf, "DDG-51", 0.9),
		}},
		{Triples: []common.Triple{
			triple("f35a", common.RelDependsOn, "jsf", 0.95),
			triple("Aegis", common.RelEnables, "DDG-51", 0.8),
		}},
		{},
	}

	got := MergeChunkResults(results)
	want := []common.Triple{
		triple("F-35A", common.RelPartOf, "JSF", 0.7),
		triple("AN/SPY-6", common.RelPartOf, "DDG-51", 0.9),
		triple("Aegis", common.RelEnables, "DDG-51", 0.8),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeChunkResults() = %+v, want %+v", got, want)
	}

	if got := MergeChunkResults(nil); len(got) != 0 {
		t.Fatalf("MergeChunkResults(nil) = %v, want empty", got)
	}
}

func TestMergeChunkResultsStrict(t *testing.T) {
	results := []common.ExtractionResult{
		{Triples: []common.Triple{
			triple("A", common.RelPartOf, "B", 0.7),
			triple("A", common.RelDependsOn, "B", 0.6),
		}},
		{Triples: []common.Triple{
			triple("A", common.RelPartOf, "B", 0.9),
			triple("A", common.RelDependsOn, "B", 0.55),
			triple("a", common.RelPartOf, "b", 0.8),
		}},
	}

	got := MergeChunkResultsStrict(results)
	want := []common.Triple{
		triple("A", common.RelPartOf, "B", 0.9),
		triple("A", common.RelDependsOn, "B", 0.6),
		triple("a", common.RelPartOf, "b", 0.8),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MergeChunkResultsStrict() = %+v, want %+v", got, want)
	}
}
