package queue

import "github.com/OFFIS-RIT/kgstore/pkg/common"

// IngestMsg asks the worker to ingest a document. When Triples is set the
// triples are stored as given and no extraction runs.
type IngestMsg struct {
	CorrelationID string          `json:"correlation_id"`
	Filename      string          `json:"filename"`
	Content       string          `json:"content"`
	Triples       []common.Triple `json:"triples,omitempty"`
}

// DeleteMsg asks the worker to delete a document and reclaim its entities.
type DeleteMsg struct {
	CorrelationID string `json:"correlation_id"`
	DocumentID    int64  `json:"document_id"`
}
