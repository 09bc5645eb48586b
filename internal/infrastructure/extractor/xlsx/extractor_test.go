package xlsx

import (
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractFlattensSheets(t *testing.T) {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetRow("Sheet1", "A1", &[]any{"painting", "year"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := book.SetSheetRow("Sheet1", "A2", &[]any{"Sunflowers", 1888}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	text, err := NewExtractor().Extract(context.Background(), "works.xlsx", buf)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := "# Sheet1\npainting\tyear\nSunflowers\t1888"
	if text != want {
		t.Fatalf("expected %q, got %q", want, text)
	}
}

func TestExtractRejectsNonWorkbook(t *testing.T) {
	if _, err := NewExtractor().Extract(context.Background(), "x.xlsx", strings.NewReader("nope")); err == nil {
		t.Fatalf("expected error")
	}
}
