package html

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Extractor returns the visible text of an HTML document, one block per line.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

var skippedElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"head":     {},
}

func (e *Extractor) Extract(_ context.Context, filename string, body io.Reader) (string, error) {
	tokenizer := html.NewTokenizer(body)
	var (
		lines   []string
		current strings.Builder
		skip    int
	)
	flush := func() {
		line := strings.Join(strings.Fields(current.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if err := tokenizer.Err(); err != io.EOF {
				return "", fmt.Errorf("parse html %s: %w", filename, err)
			}
			flush()
			return strings.Join(lines, "\n"), nil
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if _, ok := skippedElements[string(name)]; ok {
				skip++
			}
			if isBlock(string(name)) {
				flush()
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if _, ok := skippedElements[string(name)]; ok && skip > 0 {
				skip--
			}
			if isBlock(string(name)) {
				flush()
			}
		case html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				flush()
			}
		case html.TextToken:
			if skip == 0 {
				current.Write(tokenizer.Text())
				current.WriteByte(' ')
			}
		}
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "section", "article", "header", "footer",
		"h1", "h2", "h3", "h4", "h5", "h6", "table", "ul", "ol", "blockquote", "pre", "title":
		return true
	default:
		return false
	}
}
