// Package ingestion defines the request/response types and Kafka event schema
// used to get documents into the index.
package ingestion

import "time"

const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
)

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint. ID
// is supplied by the caller and is not checked for uniqueness; re-using an id
// replaces the stored content.
type IngestRequest struct {
	ID      *int   `json:"id"`
	Content string `json:"content"`
}

// IngestResponse is returned to the caller after a document is accepted.
type IngestResponse struct {
	DocumentID int    `json:"document_id"`
	Status     string `json:"status"`
}

// IngestEvent is the Kafka message payload consumed by the indexer.
type IngestEvent struct {
	DocumentID int       `json:"document_id"`
	Content    string    `json:"content"`
	IngestedAt time.Time `json:"ingested_at"`
}
