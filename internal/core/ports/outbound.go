package ports

import (
	"context"
	"io"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

// TextCompletion turns a prompt into generated text.
type TextCompletion interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever returns context fragments ranked most relevant first. An empty
// result is not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.Fragment, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, query string) ([]domain.Fragment, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, query string) ([]domain.Fragment, error) {
	return f(ctx, query)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes chunks and performs semantic search in a collection.
type VectorStore interface {
	IndexChunks(ctx context.Context, collection string, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, collection string, queryVector []float32, limit int) ([]domain.Fragment, error)
}

// FragmentStore keeps chunk text for lexical full-text search.
type FragmentStore interface {
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error
	SearchFullText(ctx context.Context, category, query string, limit int) ([]domain.Fragment, error)
}

// GraphStore answers a query with knowledge-graph triplets of one category
// rendered as text.
type GraphStore interface {
	SearchTriplets(ctx context.Context, category, query string, limit int) ([]domain.Fragment, error)
}

// DocumentSource lists and opens source documents.
type DocumentSource interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor extracts plain text from a source document body.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, body io.Reader) (string, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// TraceSink receives verbose pipeline trace records.
type TraceSink interface {
	Trace(ctx context.Context, record domain.TraceRecord)
}

// QueryObserver receives pipeline observations for metrics.
type QueryObserver interface {
	ObserveQuery(status string, subQuestions int, duration float64)
	ObserveUnknownCategory(category string)
	ObserveRetrieval(category string, fragments int)
}
