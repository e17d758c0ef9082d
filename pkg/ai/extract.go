package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
)

// Wire types for structured output. Every field is required so the schema
// works with strict JSON schema modes.
type extractedTriple struct {
	A          string  `json:"a"`
	TypeA      string  `json:"type_a"`
	Relation   string  `json:"relation"`
	B          string  `json:"b"`
	TypeB      string  `json:"type_b"`
	Confidence float64 `json:"confidence"`
	SourceText string  `json:"source_text"`
}

type extractedOrphan struct {
	Entity string `json:"entity"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type extractedAmbiguity struct {
	Text            string   `json:"text"`
	Interpretations []string `json:"interpretations"`
	Resolution      string   `json:"resolution"`
}

type extractionOutput struct {
	Triples        []extractedTriple    `json:"triples"`
	OrphanEntities []extractedOrphan    `json:"orphan_entities"`
	Ambiguities    []extractedAmbiguity `json:"ambiguities"`
}

// Extractor pulls triples out of text with a language model.
type Extractor struct {
	client GraphAIClient
	opts   []GenerateOption
}

// NewExtractor creates an Extractor. opts are applied to every request.
func NewExtractor(client GraphAIClient, opts ...GenerateOption) *Extractor {
	return &Extractor{client: client, opts: opts}
}

func joinTypes[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Extract returns the triples, orphans and ambiguities the model finds in
// text. The result is not validated or normalized.
func (e *Extractor) Extract(ctx context.Context, text string) (*common.ExtractionResult, error) {
	prompt := fmt.Sprintf(
		ExtractionPrompt,
		joinTypes(common.EntityTypes()),
		joinTypes(common.RelationTypes()),
		text,
	)

	var out extractionOutput
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"triple_extraction",
		"Triples, orphan entities and ambiguities extracted from defense text",
		prompt,
		&out,
		e.opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("extract triples: %w", err)
	}

	res := &common.ExtractionResult{
		Triples:        make([]common.Triple, 0, len(out.Triples)),
		OrphanEntities: make([]common.OrphanEntity, 0, len(out.OrphanEntities)),
		Ambiguities:    make([]common.Ambiguity, 0, len(out.Ambiguities)),
	}
	for _, t := range out.Triples {
		res.Triples = append(res.Triples, common.Triple{
			A:          t.A,
			TypeA:      common.EntityType(t.TypeA),
			Relation:   common.RelationType(t.Relation),
			B:          t.B,
			TypeB:      common.EntityType(t.TypeB),
			Confidence: t.Confidence,
			SourceText: t.SourceText,
		})
	}
	for _, o := range out.OrphanEntities {
		res.OrphanEntities = append(res.OrphanEntities, common.OrphanEntity{
			Entity: o.Entity,
			Type:   common.EntityType(o.Type),
			Reason: o.Reason,
		})
	}
	for _, a := range out.Ambiguities {
		res.Ambiguities = append(res.Ambiguities, common.Ambiguity(a))
	}
	return res, nil
}
