package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgstore/pkg/ai"
	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
)

// Evidence is one fact the analyst based its answer on.
type Evidence struct {
	Source     string  `json:"source" jsonschema:"enum=graph,enum=inference"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Relevance  string  `json:"relevance"`
}

// AnalystResponse is the structured answer of the analyst model.
type AnalystResponse struct {
	Analysis                 string     `json:"analysis"`
	KeyFindings              []string   `json:"key_findings"`
	Evidence                 []Evidence `json:"evidence"`
	Unknowns                 []string   `json:"unknowns"`
	RecommendedNextQuestions []string   `json:"recommended_next_questions"`
	OverallConfidence        float64    `json:"overall_confidence"`
	RetrievalStrategy        string     `json:"retrieval_strategy" jsonschema:"enum=direct,enum=1-hop,enum=2-hop"`
}

// Answer is an analyst response together with the retrieval behind it.
type Answer struct {
	AnalystResponse
	Entities []string           `json:"entities"`
	Trace    QueryTraceSnapshot `json:"trace"`
}

// Analyst answers questions using only the graph neighbourhood of the
// entities a question names.
type Analyst struct {
	client    ai.GraphAIClient
	retriever *Retriever
	hops      int
	opts      []ai.GenerateOption
}

// NewAnalyst creates an Analyst. opts are applied to every model request.
func NewAnalyst(client ai.GraphAIClient, retriever *Retriever, hops int, opts ...ai.GenerateOption) *Analyst {
	if hops <= 0 {
		hops = DefaultHops
	}
	return &Analyst{client: client, retriever: retriever, hops: hops, opts: opts}
}

// Answer retrieves the subgraph for question and asks the model to analyse
// it. Confidences are clamped to [0.5, 1.0].
func (a *Analyst) Answer(ctx context.Context, question string) (*Answer, error) {
	if a.client == nil {
		return nil, errors.New("analyst: no ai client configured")
	}

	trace := NewQueryTrace()
	retrieval, err := a.retriever.RetrieveForQuestion(ctx, question, a.hops, trace)
	if err != nil {
		return nil, fmt.Errorf("analyst: retrieve: %w", err)
	}

	prompt := fmt.Sprintf(ai.AnalystPrompt, question, FormatContext(retrieval.Graph))

	var resp AnalystResponse
	err = a.client.GenerateCompletionWithFormat(
		ctx,
		"analyst_response",
		"Analysis of a defense question grounded in knowledge graph data",
		prompt,
		&resp,
		a.opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("analyst: %w", err)
	}
	sanitize(&resp, len(retrieval.Entities), a.hops)

	logger.Debug("[Query][Answer] Answered question", "entities", len(retrieval.Entities), "evidence", len(resp.Evidence), "confidence", resp.OverallConfidence)
	return &Answer{
		AnalystResponse: resp,
		Entities:        retrieval.Entities,
		Trace:           trace.Snapshot(),
	}, nil
}

func clampConfidence(c float64) float64 {
	return min(max(c, common.MinConfidence), common.MaxConfidence)
}

// sanitize repairs the parts of a model answer that the schema cannot
// enforce.
func sanitize(resp *AnalystResponse, matched int, hops int) {
	resp.OverallConfidence = clampConfidence(resp.OverallConfidence)
	for i := range resp.Evidence {
		resp.Evidence[i].Confidence = clampConfidence(resp.Evidence[i].Confidence)
		if resp.Evidence[i].Source != "graph" && resp.Evidence[i].Source != "inference" {
			resp.Evidence[i].Source = "inference"
		}
	}

	switch resp.RetrievalStrategy {
	case "direct", "1-hop", "2-hop":
	default:
		switch {
		case matched == 0:
			resp.RetrievalStrategy = "direct"
		case hops == 1:
			resp.RetrievalStrategy = "1-hop"
		default:
			resp.RetrievalStrategy = "2-hop"
		}
	}

	if resp.KeyFindings == nil {
		resp.KeyFindings = []string{}
	}
	if resp.Evidence == nil {
		resp.Evidence = []Evidence{}
	}
	if resp.Unknowns == nil {
		resp.Unknowns = []string{}
	}
	if resp.RecommendedNextQuestions == nil {
		resp.RecommendedNextQuestions = []string{}
	}
}
