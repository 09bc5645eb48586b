package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/extractor/html"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/extractor/xlsx"
)

// Registry picks a text extractor by file extension.
type Registry struct {
	byExt map[string]ports.TextExtractor
}

func NewRegistry() *Registry {
	text := plaintext.NewExtractor()
	markup := html.NewExtractor()
	return &Registry{byExt: map[string]ports.TextExtractor{
		".txt":      text,
		".md":       text,
		".markdown": text,
		".csv":      text,
		".html":     markup,
		".htm":      markup,
		".pdf":      pdf.NewExtractor(),
		".xlsx":     xlsx.NewExtractor(),
	}}
}

func (r *Registry) Supports(filename string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func (r *Registry) Extract(ctx context.Context, filename string, body io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, ok := r.byExt[ext]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("unsupported file type %q: %s", ext, filename))
	}
	return extractor.Extract(ctx, filename, body)
}
