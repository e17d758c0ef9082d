package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/graph"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/metrics"

	"github.com/go-playground/validator"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkMaxChars = 2500
	DefaultChunkOverlap  = 200
)

// Extractor finds triples in a piece of text. *ai.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, text string) (*common.ExtractionResult, error)
}

// ErrNoExtractor is returned by Extract and Ingest when the Ingestor has no
// Extractor.
var ErrNoExtractor = errors.New("ingest: no extractor configured")

// Archiver keeps a copy of the raw document next to the graph.
type Archiver interface {
	Archive(ctx context.Context, documentID int64, filename string, content []byte) (string, error)
	Remove(ctx context.Context, documentID int64) error
}

// SkippedTriple is a triple that failed validation and was not stored.
type SkippedTriple struct {
	Triple common.Triple `json:"triple"`
	Reason string        `json:"reason"`
}

// IngestResult describes what one ingestion wrote to the graph.
type IngestResult struct {
	DocumentID  int64                 `json:"document_id"`
	Filename    string                `json:"filename"`
	Chunks      int                   `json:"chunks"`
	Triples     []common.Triple       `json:"triples"`
	Skipped     []SkippedTriple       `json:"skipped"`
	Orphans     []common.OrphanEntity `json:"orphan_entities"`
	Ambiguities []common.Ambiguity    `json:"ambiguities"`
	ArchiveKey  string                `json:"archive_key,omitempty"`
}

// Ingestor extracts triples from documents and writes them to a graph.
//
// An Ingestor should be created using NewIngestor.
type Ingestor struct {
	graph      *graph.Graph
	extractor  Extractor
	normalizer *Normalizer
	archive    Archiver
	validate   *validator.Validate

	chunkMaxChars    int
	chunkOverlap     int
	parallelRequests int
	merge            func([]common.ExtractionResult) []common.Triple
}

// NewIngestorParams configures an Ingestor.
//
// Extractor may be nil when only IngestTriples is used. Archive is optional.
// Texts longer than ChunkMaxChars runes are chunked, and up to
// ParallelRequests chunks are extracted at the same time. StrictMerge
// deduplicates chunk triples by (A, relation, B) instead of by entity pair.
type NewIngestorParams struct {
	Graph      *graph.Graph
	Extractor  Extractor
	Normalizer *Normalizer
	Archive    Archiver

	ChunkMaxChars    int
	ChunkOverlap     int
	ParallelRequests int
	StrictMerge      bool
}

func NewIngestor(params NewIngestorParams) *Ingestor {
	i := &Ingestor{
		graph:            params.Graph,
		extractor:        params.Extractor,
		normalizer:       params.Normalizer,
		archive:          params.Archive,
		validate:         NewValidator(),
		chunkMaxChars:    params.ChunkMaxChars,
		chunkOverlap:     params.ChunkOverlap,
		parallelRequests: params.ParallelRequests,
		merge:            MergeChunkResults,
	}
	if params.StrictMerge {
		i.merge = MergeChunkResultsStrict
	}
	if i.normalizer == nil {
		i.normalizer = NewNormalizer()
	}
	if i.chunkMaxChars <= 0 {
		i.chunkMaxChars = DefaultChunkMaxChars
	}
	if i.chunkOverlap < 0 {
		i.chunkOverlap = 0
	}
	if i.parallelRequests <= 0 {
		i.parallelRequests = 1
	}
	return i
}

// Extract runs the extractor over content and normalizes entity names.
// Content longer than the chunk size is chunked and the chunk results are
// merged. A failing chunk is logged and skipped; only when every chunk fails
// is an error returned.
func (i *Ingestor) Extract(ctx context.Context, content string) (*common.ExtractionResult, int, error) {
	if i.extractor == nil {
		return nil, 0, ErrNoExtractor
	}

	if runeLen(content) <= i.chunkMaxChars {
		res, err := i.extractor.Extract(ctx, content)
		if err != nil {
			return nil, 1, err
		}
		i.normalize(res)
		return res, 1, nil
	}

	chunked := ChunkDocument(content, i.chunkMaxChars, i.chunkOverlap)
	logger.Info("[Ingest][Extract] Chunked document", "chunks", chunked.Metadata.TotalChunks, "avg", chunked.Metadata.AvgChunkSize, "max", chunked.Metadata.MaxChunkSize)

	results := make([]*common.ExtractionResult, len(chunked.Chunks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(i.parallelRequests)
	for idx, chunk := range chunked.Chunks {
		g.Go(func() error {
			res, err := i.extractor.Extract(gCtx, chunk)
			if err != nil {
				logger.Warn("[Ingest][Extract] Skipping chunk", "chunk", idx+1, "of", len(chunked.Chunks), "err", err)
				return nil
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(chunked.Chunks), err
	}
	if err := ctx.Err(); err != nil {
		return nil, len(chunked.Chunks), err
	}

	ok := make([]common.ExtractionResult, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		i.normalize(res)
		ok = append(ok, *res)
	}
	if len(ok) == 0 && len(chunked.Chunks) > 0 {
		return nil, len(chunked.Chunks), fmt.Errorf("ingest: all %d chunks failed extraction", len(chunked.Chunks))
	}

	merged := &common.ExtractionResult{
		Triples:        i.merge(ok),
		OrphanEntities: make([]common.OrphanEntity, 0),
		Ambiguities:    make([]common.Ambiguity, 0),
	}
	for _, res := range ok {
		merged.OrphanEntities = append(merged.OrphanEntities, res.OrphanEntities...)
		merged.Ambiguities = append(merged.Ambiguities, res.Ambiguities...)
	}
	return merged, len(chunked.Chunks), nil
}

func (i *Ingestor) normalize(res *common.ExtractionResult) {
	for idx, t := range res.Triples {
		res.Triples[idx] = i.normalizer.NormalizeTriple(t)
	}
}

// Ingest extracts triples from content and stores them, together with the
// document, in the graph.
func (i *Ingestor) Ingest(ctx context.Context, filename string, content string) (*IngestResult, error) {
	start := time.Now()

	extracted, chunks, err := i.Extract(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("ingest %q: %w", filename, err)
	}

	res, err := i.store(ctx, filename, content, extracted.Triples)
	if err != nil {
		return nil, err
	}
	res.Chunks = chunks
	res.Orphans = extracted.OrphanEntities
	res.Ambiguities = extracted.Ambiguities

	logger.Info("[Ingest][Ingest] Finished", "filename", filename, "document", res.DocumentID, "triples", len(res.Triples), "skipped", len(res.Skipped), "duration", time.Since(start))
	return res, nil
}

// IngestTriples stores already extracted triples with their document. Names
// are normalized and invalid triples are skipped.
func (i *Ingestor) IngestTriples(ctx context.Context, filename string, content string, triples []common.Triple) (*IngestResult, error) {
	normalized := make([]common.Triple, len(triples))
	for idx, t := range triples {
		normalized[idx] = i.normalizer.NormalizeTriple(t)
	}
	return i.store(ctx, filename, content, normalized)
}

func (i *Ingestor) store(ctx context.Context, filename string, content string, triples []common.Triple) (*IngestResult, error) {
	res := &IngestResult{
		Filename:    filename,
		Triples:     make([]common.Triple, 0, len(triples)),
		Skipped:     make([]SkippedTriple, 0),
		Orphans:     make([]common.OrphanEntity, 0),
		Ambiguities: make([]common.Ambiguity, 0),
	}

	for _, t := range triples {
		if err := i.validate.Struct(t); err != nil {
			logger.Warn("[Ingest][store] Skipping invalid triple", "a", t.A, "relation", t.Relation, "b", t.B, "err", err)
			metrics.IngestTriplesTotal.WithLabelValues("invalid").Inc()
			res.Skipped = append(res.Skipped, SkippedTriple{Triple: t, Reason: err.Error()})
			continue
		}
		res.Triples = append(res.Triples, t)
	}

	docID, err := i.graph.StoreDocument(ctx, filename, content, len(res.Triples))
	if err != nil {
		return nil, err
	}
	res.DocumentID = docID

	created, err := i.writeTriples(ctx, docID, res.Triples)
	if err != nil {
		i.rollback(ctx, docID, created)
		return nil, err
	}

	if i.archive != nil {
		key, err := i.archive.Archive(ctx, docID, filename, []byte(content))
		if err != nil {
			logger.Warn("[Ingest][store] Failed to archive document", "document", docID, "err", err)
		} else {
			res.ArchiveKey = key
		}
	}

	return res, nil
}

// writeTriples adds the nodes and edges of triples for document docID. It
// returns the ids of the nodes it created, also on error.
func (i *Ingestor) writeTriples(ctx context.Context, docID int64, triples []common.Triple) ([]string, error) {
	var created []string
	addNode := func(id string, typ common.EntityType) error {
		existing, err := i.graph.GetNode(ctx, id)
		if err != nil {
			return err
		}
		if err := i.graph.AddNode(ctx, id, typ, map[string]any{"name": id}); err != nil {
			return err
		}
		if existing == nil {
			created = append(created, id)
		}
		return nil
	}

	for _, t := range triples {
		if err := addNode(t.A, t.TypeA); err != nil {
			return created, err
		}
		if err := addNode(t.B, t.TypeB); err != nil {
			return created, err
		}

		opts := []graph.EdgeOption{graph.WithSourceDocument(docID)}
		if t.SourceText != "" {
			opts = append(opts, graph.WithSourceText(t.SourceText))
		}
		if err := i.graph.AddEdge(ctx, t.A, t.B, t.Relation, t.Confidence, opts...); err != nil {
			return created, err
		}
		metrics.IngestTriplesTotal.WithLabelValues("stored").Inc()
	}
	return created, nil
}

// rollback removes a partially written document, its edges and the nodes the
// failed ingestion created that are left without edges.
func (i *Ingestor) rollback(ctx context.Context, docID int64, created []string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := i.graph.DeleteDocument(ctx, docID); err != nil {
		logger.Error("[Ingest][rollback] Failed to delete partial document", "document", docID, "err", err)
		return
	}
	if len(created) == 0 {
		return
	}

	orphans, err := i.graph.GetOrphans(ctx)
	if err != nil {
		logger.Error("[Ingest][rollback] Failed to list orphans", "document", docID, "err", err)
		return
	}
	orphaned := make(map[string]struct{}, len(orphans))
	for _, o := range orphans {
		orphaned[o.ID] = struct{}{}
	}
	for _, id := range created {
		if _, ok := orphaned[id]; !ok {
			continue
		}
		if _, err := i.graph.DeleteNode(ctx, id); err != nil {
			logger.Error("[Ingest][rollback] Failed to delete node", "document", docID, "node", id, "err", err)
		}
	}
	logger.Warn("[Ingest][rollback] Removed partially ingested document", "document", docID)
}

// DeleteDocument removes the document from the graph, reclaims entities it
// leaves unconnected and drops its archived copy.
func (i *Ingestor) DeleteDocument(ctx context.Context, documentID int64) ([]string, error) {
	reclaimed, err := i.graph.DeleteDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if i.archive != nil {
		if err := i.archive.Remove(ctx, documentID); err != nil {
			logger.Warn("[Ingest][DeleteDocument] Failed to remove archived document", "document", documentID, "err", err)
		}
	}
	return reclaimed, nil
}
