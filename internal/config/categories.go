package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

const (
	RetrieverVector   = "vector"
	RetrieverFullText = "fulltext"
	RetrieverHybrid   = "hybrid"
	RetrieverGraph    = "graph"
)

type CategoriesFile struct {
	Categories []CategorySpec `yaml:"categories"`
}

// CategorySpec declares one knowledge source and how to retrieve from it.
type CategorySpec struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Retriever   RetrieverSpec `yaml:"retriever"`
}

type RetrieverSpec struct {
	Kind       string `yaml:"kind"`
	Collection string `yaml:"collection"`
	TopK       int    `yaml:"top_k"`
	Rewrite    string `yaml:"rewrite"`
}

func (c CategorySpec) Category() domain.Category {
	return domain.Category{Name: c.Name, Description: c.Description}
}

func LoadCategories(path string) ([]CategorySpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	return ParseCategories(raw)
}

// ParseCategories decodes and validates a categories document. Names are
// upper-cased; kinds and rewrite strategies are lower-cased.
func ParseCategories(raw []byte) ([]CategorySpec, error) {
	var file CategoriesFile
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse categories", err)
	}
	if len(file.Categories) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse categories", errors.New("no categories declared"))
	}

	seen := make(map[string]struct{}, len(file.Categories))
	out := make([]CategorySpec, 0, len(file.Categories))
	for i, spec := range file.Categories {
		spec.Name = strings.ToUpper(strings.TrimSpace(spec.Name))
		spec.Description = strings.TrimSpace(spec.Description)
		spec.Retriever.Kind = strings.ToLower(strings.TrimSpace(spec.Retriever.Kind))
		spec.Retriever.Rewrite = strings.ToLower(strings.TrimSpace(spec.Retriever.Rewrite))
		spec.Retriever.Collection = strings.TrimSpace(spec.Retriever.Collection)

		if err := validateCategory(spec); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, fmt.Sprintf("category #%d", i+1), err)
		}
		if _, ok := seen[spec.Name]; ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse categories", fmt.Errorf("duplicate category %s", spec.Name))
		}
		seen[spec.Name] = struct{}{}
		out = append(out, spec)
	}
	return out, nil
}

func validateCategory(spec CategorySpec) error {
	if spec.Name == "" {
		return errors.New("name is required")
	}
	if strings.ContainsAny(spec.Name, "[],") {
		return fmt.Errorf("name %q must not contain '[', ']' or ','", spec.Name)
	}
	if spec.Description == "" {
		return fmt.Errorf("%s: description is required", spec.Name)
	}
	if spec.Retriever.TopK < 0 {
		return fmt.Errorf("%s: top_k must not be negative", spec.Name)
	}

	switch spec.Retriever.Kind {
	case RetrieverVector, RetrieverHybrid:
		if spec.Retriever.Collection == "" {
			return fmt.Errorf("%s: %s retriever needs a collection", spec.Name, spec.Retriever.Kind)
		}
	case RetrieverFullText, RetrieverGraph:
	default:
		return fmt.Errorf("%s: unknown retriever kind %q", spec.Name, spec.Retriever.Kind)
	}

	switch spec.Retriever.Rewrite {
	case "", "none", "hyde", "stepback", "step-back", "step_back":
	default:
		return fmt.Errorf("%s: unknown rewrite strategy %q", spec.Name, spec.Retriever.Rewrite)
	}
	return nil
}

// Collections maps category names to their vector collection.
func Collections(specs []CategorySpec) map[string]string {
	out := make(map[string]string, len(specs))
	for _, spec := range specs {
		if spec.Retriever.Collection != "" {
			out[spec.Name] = spec.Retriever.Collection
		}
	}
	return out
}
