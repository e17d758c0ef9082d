package ai

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

type fakeClient struct {
	MetricsRecorder
	response string
	err      error
	prompt   string
	opts     GenerateOptions
}

func (f *fakeClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	f.prompt = prompt
	f.opts = ApplyOptions(GenerateOptions{}, opts...)
	if f.err != nil {
		return f.err
	}
	return UnmarshalFlexible(f.response, out)
}

func TestExtractorExtract(t *testing.T) {
	client := &fakeClient{response: "```json\n" + `{
  "triples": [
    {"a": "AN/SPY-6", "type_a": "Subsystem", "relation": "developed_by", "b": "Raytheon", "type_b": "Contractor", "confidence": 0.95, "source_text": "Raytheon builds the AN/SPY-6"}
  ],
  "orphan_entities": [{"entity": "Golden Dome", "type": "Program", "reason": "no relationships found"}],
  "ambiguities": [{"text": "the radar", "interpretations": ["AN/SPY-6", "AN/SPY-1"], "resolution": "needs_clarification"}]
}` + "\n```"}

	res, err := NewExtractor(client, WithModel("extractor")).Extract(context.Background(), "Raytheon builds the AN/SPY-6.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := &common.ExtractionResult{
		Triples: []common.Triple{{
			A:          "AN/SPY-6",
			TypeA:      common.EntitySubsystem,
			Relation:   common.RelDevelopedBy,
			B:          "Raytheon",
			TypeB:      common.EntityContractor,
			Confidence: 0.95,
			SourceText: "Raytheon builds the AN/SPY-6",
		}},
		OrphanEntities: []common.OrphanEntity{{Entity: "Golden Dome", Type: common.EntityProgram, Reason: "no relationships found"}},
		Ambiguities:    []common.Ambiguity{{Text: "the radar", Interpretations: []string{"AN/SPY-6", "AN/SPY-1"}, Resolution: "needs_clarification"}},
	}
	if !reflect.DeepEqual(res, want) {
		t.Fatalf("Extract() = %+v, want %+v", res, want)
	}

	if !strings.Contains(client.prompt, "Raytheon builds the AN/SPY-6.") {
		t.Fatalf("prompt does not contain the input text")
	}
	if !strings.Contains(client.prompt, "interfaces_with") || !strings.Contains(client.prompt, "GovernmentOffice") {
		t.Fatalf("prompt does not list the relation and entity types")
	}
	if client.opts.Model != "extractor" {
		t.Fatalf("model = %q, want extractor", client.opts.Model)
	}
}

func TestExtractorError(t *testing.T) {
	boom := errors.New("rate limited")
	_, err := NewExtractor(&fakeClient{err: boom}).Extract(context.Background(), "text")
	if !errors.Is(err, boom) {
		t.Fatalf("Extract() error = %v, want %v", err, boom)
	}
}
