package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor returns the plain text layer of a PDF. Scanned PDFs without a
// text layer yield an empty string.
type Extractor struct {
	// maxBytes bounds how much of a document is buffered in memory.
	maxBytes int64
}

func NewExtractor() *Extractor {
	return &Extractor{maxBytes: 64 << 20}
}

func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(body, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", filename, err)
	}
	if int64(len(raw)) > e.maxBytes {
		return "", fmt.Errorf("pdf %s exceeds %d bytes", filename, e.maxBytes)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filename, err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", filename, err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", filename, err)
	}
	return strings.TrimSpace(string(text)), nil
}
