package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgstore/pkg/common"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/metrics"
)

// StoreDocument records an ingested document and returns its id. tripleCount
// is kept as given and never recomputed.
func (g *Graph) StoreDocument(ctx context.Context, filename string, content string, tripleCount int) (_ int64, err error) {
	defer observe("store_document", time.Now(), &err)
	if err = g.ready(); err != nil {
		return 0, err
	}

	id, err := g.storage.SaveDocument(ctx, common.Document{
		Filename:    filename,
		Content:     content,
		TripleCount: tripleCount,
	})
	if err != nil {
		return 0, fmt.Errorf("store document %q: %w", filename, err)
	}
	logger.Debug("[Graph][StoreDocument] Stored document", "id", id, "filename", filename, "triples", tripleCount)
	return id, nil
}

// GetDocument returns the document, or nil when it does not exist.
func (g *Graph) GetDocument(ctx context.Context, id int64) (_ *common.Document, err error) {
	defer observe("get_document", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetDocument(ctx, id)
}

// AllDocuments lists documents, most recently uploaded first.
func (g *Graph) AllDocuments(ctx context.Context) (_ []common.Document, err error) {
	defer observe("all_documents", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}
	return g.storage.GetDocuments(ctx)
}

// DeleteDocument removes the document together with every edge it produced,
// then deletes the entities those edges referenced that are left without any
// edge. Only directly referenced entities are checked, once. The reclaimed
// entity ids are returned sorted. Unknown ids are a no-op.
func (g *Graph) DeleteDocument(ctx context.Context, id int64) (_ []string, err error) {
	defer observe("delete_document", time.Now(), &err)
	if err = g.ready(); err != nil {
		return nil, err
	}

	reclaimed, err := g.storage.DeleteDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete document %d: %w", id, err)
	}
	reclaimed = sortedCopy(reclaimed)

	metrics.ReclaimedEntitiesTotal.Add(float64(len(reclaimed)))
	logger.Info("[Graph][DeleteDocument] Deleted document", "id", id, "reclaimed", len(reclaimed))
	return reclaimed, nil
}
