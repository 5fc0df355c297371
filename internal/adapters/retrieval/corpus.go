// Package retrieval ranks regulatory passages for a question and scenario.
// Passages come from a YAML corpus and are indexed in an in-memory
// chromem-go collection.
package retrieval

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed corpus.yaml
var defaultCorpus []byte

// Passage is one indexed piece of regulatory text.
type Passage struct {
	ID        string `yaml:"id"`
	Reference string `yaml:"reference"`
	Article   string `yaml:"article"`
	Section   string `yaml:"section"`
	Content   string `yaml:"content"`
}

type corpusFile struct {
	Passages []Passage `yaml:"passages"`
}

// DefaultCorpus returns the passages bundled with the binary.
func DefaultCorpus() ([]Passage, error) {
	return ParseCorpus(defaultCorpus)
}

// LoadCorpus reads passages from a YAML file. An empty path yields the
// bundled corpus.
func LoadCorpus(path string) ([]Passage, error) {
	if path == "" {
		return DefaultCorpus()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("retrieval.load %q: %w: %v", path, ErrLoadCorpus, err)
	}
	return ParseCorpus(raw)
}

// ParseCorpus decodes a YAML corpus and checks every passage.
func ParseCorpus(raw []byte) ([]Passage, error) {
	var f corpusFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("retrieval.parse: %w: %v", ErrLoadCorpus, err)
	}
	if len(f.Passages) == 0 {
		return nil, fmt.Errorf("retrieval.parse: %w", ErrEmptyCorpus)
	}
	seen := make(map[string]struct{}, len(f.Passages))
	for i := range f.Passages {
		p := &f.Passages[i]
		if err := p.normalize(i); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("retrieval.parse: duplicate id %q: %w", p.ID, ErrInvalidEntry)
		}
		seen[p.ID] = struct{}{}
	}
	return f.Passages, nil
}

func (p *Passage) normalize(i int) error {
	p.Reference = strings.TrimSpace(p.Reference)
	p.Content = strings.TrimSpace(p.Content)
	if p.Content == "" {
		return fmt.Errorf("retrieval.parse: passage %d has no content: %w", i, ErrInvalidEntry)
	}
	if p.ID == "" {
		p.ID = "passage-" + strconv.Itoa(i+1)
	}
	return nil
}

// metadata keys stored alongside each chromem document.
const (
	metaReference = "reference"
	metaArticle   = "article"
	metaSection   = "section"
)

func (p Passage) metadata() map[string]string {
	return map[string]string{
		metaReference: p.Reference,
		metaArticle:   p.Article,
		metaSection:   p.Section,
	}
}
