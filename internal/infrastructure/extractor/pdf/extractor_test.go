package pdf

import (
	"context"
	"strings"
	"testing"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := NewExtractor().Extract(context.Background(), "notes.pdf", strings.NewReader("plain text, not a pdf"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "notes.pdf") {
		t.Fatalf("expected filename in error, got %v", err)
	}
}

func TestExtractRejectsOversizedInput(t *testing.T) {
	e := &Extractor{maxBytes: 4}
	_, err := e.Extract(context.Background(), "big.pdf", strings.NewReader("%PDF-1.4"))
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size error, got %v", err)
	}
}
