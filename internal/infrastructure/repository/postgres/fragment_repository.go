package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

// FragmentRepository stores chunk text per category and serves lexical
// search through a generated tsvector column.
type FragmentRepository struct {
	db *sql.DB
	// textSearchConfig is the Postgres text search configuration name.
	textSearchConfig string
}

func NewFragmentRepository(db *sql.DB) *FragmentRepository {
	return &FragmentRepository{db: db, textSearchConfig: "simple"}
}

func (r *FragmentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/ingest startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS fragments (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	category TEXT NOT NULL,
	filename TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	content_tsv TSVECTOR GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_fragments_category ON fragments(category);
CREATE INDEX IF NOT EXISTS idx_fragments_content_tsv ON fragments USING GIN(content_tsv);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *FragmentRepository) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save fragments tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO fragments (id, document_id, category, filename, chunk_index, content)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content`

	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, query,
			chunk.ID,
			chunk.DocumentID,
			chunk.Category,
			chunk.Filename,
			chunk.Index,
			chunk.Text,
		); err != nil {
			return fmt.Errorf("insert fragment %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save fragments tx: %w", err)
	}
	return nil
}

// SearchFullText ranks a category's fragments with ts_rank against the
// plain-text query. A blank query returns no fragments.
func (r *FragmentRepository) SearchFullText(ctx context.Context, category, query string, limit int) ([]domain.Fragment, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []domain.Fragment{}, nil
	}

	const q = `
SELECT id, category, filename, content,
	ts_rank(content_tsv, plainto_tsquery($1::regconfig, $2)) AS rank
FROM fragments
WHERE category = $3
	AND content_tsv @@ plainto_tsquery($1::regconfig, $2)
ORDER BY rank DESC, id ASC
LIMIT $4`

	rows, err := r.db.QueryContext(ctx, q, r.textSearchConfig, query, category, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrRetrieval, "search fragments", err)
	}
	defer rows.Close()

	out := make([]domain.Fragment, 0, limit)
	for rows.Next() {
		var fragment domain.Fragment
		if err := rows.Scan(&fragment.ID, &fragment.Category, &fragment.Source, &fragment.Content, &fragment.Score); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		out = append(out, fragment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fragments: %w", err)
	}
	return out, nil
}
