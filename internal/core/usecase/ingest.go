package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

// IngestUseCase loads source documents into the stores backing a category.
// Categories without a vector collection are indexed for full-text search
// only.
type IngestUseCase struct {
	source    ports.DocumentSource
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	fragments ports.FragmentStore

	collections map[string]string
}

func NewIngestUseCase(
	source ports.DocumentSource,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	fragments ports.FragmentStore,
	collections map[string]string,
) *IngestUseCase {
	normalized := make(map[string]string, len(collections))
	for category, collection := range collections {
		normalized[NormalizeCategory(category)] = collection
	}
	return &IngestUseCase{
		source:      source,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		vectorDB:    vectorDB,
		fragments:   fragments,
		collections: normalized,
	}
}

func (uc *IngestUseCase) IngestFile(ctx context.Context, category, key string) (*domain.Document, error) {
	category = NormalizeCategory(category)
	if category == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest file", errors.New("category is required"))
	}

	text, err := uc.extractText(ctx, key)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		Category:   category,
		Filename:   filepath.Base(key),
		SourceKey:  key,
		IngestedAt: time.Now().UTC(),
	}

	chunks, err := uc.chunk(doc, text)
	if err != nil {
		return nil, err
	}

	if err := uc.indexVectors(ctx, category, chunks); err != nil {
		return nil, err
	}
	if uc.fragments != nil {
		if err := uc.fragments.SaveChunks(ctx, chunks); err != nil {
			return nil, fmt.Errorf("save fragments: %w", err)
		}
	}

	doc.ChunkCount = len(chunks)
	return doc, nil
}

func (uc *IngestUseCase) extractText(ctx context.Context, key string) (string, error) {
	reader, err := uc.source.Open(ctx, key)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	text, err := uc.extractor.Extract(ctx, key, reader)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("empty extracted text: %s", key))
	}
	return text, nil
}

func (uc *IngestUseCase) chunk(doc *domain.Document, text string) ([]domain.Chunk, error) {
	parts := uc.chunker.Split(text)
	if len(parts) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Category:   doc.Category,
			Filename:   doc.Filename,
			Index:      i,
			Text:       part,
		})
	}
	return chunks, nil
}

func (uc *IngestUseCase) indexVectors(ctx context.Context, category string, chunks []domain.Chunk) error {
	collection, ok := uc.collections[category]
	if !ok || collection == "" || uc.vectorDB == nil {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	if err := uc.vectorDB.IndexChunks(ctx, collection, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

// IngestAll ingests every document the source lists. It stops at the first
// failure.
func (uc *IngestUseCase) IngestAll(ctx context.Context, category string) ([]domain.Document, error) {
	keys, err := uc.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source documents: %w", err)
	}
	out := make([]domain.Document, 0, len(keys))
	for _, key := range keys {
		doc, err := uc.IngestFile(ctx, category, key)
		if err != nil {
			return out, fmt.Errorf("ingest %s: %w", key, err)
		}
		out = append(out, *doc)
	}
	return out, nil
}

var _ ports.DocumentIngestor = (*IngestUseCase)(nil)
