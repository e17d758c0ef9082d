package backend

import (
	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/ai"
	"github.com/OFFIS-RIT/kgstore/pkg/ingest"
	"github.com/OFFIS-RIT/kgstore/pkg/query"
	"github.com/OFFIS-RIT/kgstore/pkg/validation"
)

// Services are the graph operations above raw storage. Extractor and Analyst
// stay nil when no AI provider is configured.
type Services struct {
	Ingestor  *ingest.Ingestor
	Retriever *query.Retriever
	Analyst   *query.Analyst
	Validator *validation.Validator

	ExtractClient ai.GraphAIClient
	Hops          int
}

type ServicesParams struct {
	AI      AIConfig
	Archive ingest.Archiver

	ChunkMaxChars int
	ChunkOverlap  int
	StrictMerge   bool
	Hops          int
}

func ServicesParamsFromEnv() ServicesParams {
	return ServicesParams{
		AI:            AIConfigFromEnv(),
		ChunkMaxChars: util.GetEnvInt("CHUNK_MAX_CHARS", ingest.DefaultChunkMaxChars),
		ChunkOverlap:  util.GetEnvInt("CHUNK_OVERLAP", ingest.DefaultChunkOverlap),
		StrictMerge:   util.GetEnvBool("CHUNK_STRICT_MERGE", false),
		Hops:          util.GetEnvInt("TRAVERSE_HOPS", query.DefaultHops),
	}
}

func NewServices(b *Backend, params ServicesParams) (*Services, error) {
	extractClient, err := NewAIClient(params.AI, params.AI.ExtractModel)
	if err != nil {
		return nil, err
	}
	analystClient, err := NewAIClient(params.AI, params.AI.AnalystModel)
	if err != nil {
		return nil, err
	}

	hops := params.Hops
	if hops <= 0 {
		hops = query.DefaultHops
	}
	parallel := max(params.AI.ParallelReq, 1)

	ingestParams := ingest.NewIngestorParams{
		Graph:            b.Graph,
		Archive:          params.Archive,
		ChunkMaxChars:    params.ChunkMaxChars,
		ChunkOverlap:     params.ChunkOverlap,
		ParallelRequests: parallel,
		StrictMerge:      params.StrictMerge,
	}
	if extractClient != nil {
		ingestParams.Extractor = ai.NewExtractor(extractClient)
	}

	s := &Services{
		Ingestor:      ingest.NewIngestor(ingestParams),
		Retriever:     query.NewRetriever(b.Graph, parallel),
		Validator:     validation.NewValidator(b.Graph),
		ExtractClient: extractClient,
		Hops:          hops,
	}
	if analystClient != nil {
		s.Analyst = query.NewAnalyst(analystClient, s.Retriever, hops)
	}
	return s, nil
}
