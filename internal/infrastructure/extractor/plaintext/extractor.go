package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Extractor reads UTF-8 text and markdown files as they are.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("not a utf-8 text file: %s", filename)
	}

	return strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff")), nil
}
