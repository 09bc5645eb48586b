package domain

import "time"

// Document is a source file loaded into a category's stores by ingestion.
type Document struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Filename   string    `json:"filename"`
	SourceKey  string    `json:"source_key"`
	ChunkCount int       `json:"chunk_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Chunk is a split piece of a document ready for indexing.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Category   string `json:"category"`
	Filename   string `json:"filename"`
	Index      int    `json:"index"`
	Text       string `json:"text"`
}
