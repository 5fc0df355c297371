// Package extraction turns a question, scenario and retrieved passages into
// proposed template field values using a generative model.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/corep/internal/domain/model"
	corep "github.com/okian/corep/internal/domain/template"
	"github.com/okian/corep/pkg/metrics"
)

// DefaultConfidence applies when the model omits a confidence score.
const DefaultConfidence = 0.8

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// Extractor proposes field values for a template.
type Extractor interface {
	Extract(ctx context.Context, question, scenario string, docs []model.RetrievedDocument, templateType string) (*model.Extraction, error)
}

// Option configures a GeminiExtractor.
type Option func(*GeminiExtractor)

// WithGenerator sets the model backend.
func WithGenerator(g Generator) Option {
	return func(e *GeminiExtractor) { e.gen = g }
}

// WithTimeout bounds each model call; non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *GeminiExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// GeminiExtractor renders the extraction prompt, calls the generator and
// decodes its JSON answer into an Extraction.
type GeminiExtractor struct {
	gen      Generator
	timeout  time.Duration
	validate *validator.Validate
}

// NewGeminiExtractor builds an extractor. Without a generator it still
// constructs, but every Extract fails with ErrNotConfigured.
func NewGeminiExtractor(opts ...Option) *GeminiExtractor {
	e := &GeminiExtractor{
		timeout:  DefaultTimeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configured reports whether a generator is attached.
func (e *GeminiExtractor) Configured() bool {
	return e.gen != nil
}

// Extract asks the model for field values. Prompt problems surface as
// template errors; model failures wrap ErrGenerate; undecodable or invalid
// answers wrap ErrMalformedResponse.
func (e *GeminiExtractor) Extract(ctx context.Context, question, scenario string, docs []model.RetrievedDocument, templateType string) (*model.Extraction, error) {
	if e.gen == nil {
		return nil, ErrNotConfigured
	}
	prompt, err := BuildPrompt(templateType, question, scenario, docs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction.generate: %w: %v", ErrGenerate, err)
	}

	out, err := Parse(raw, templateType)
	if err != nil {
		return nil, err
	}
	if err := e.validate.Struct(out); err != nil {
		return nil, fmt.Errorf("extraction.validate: %w: %v", ErrMalformedResponse, err)
	}
	metrics.RecordExtraction(float64(time.Since(start).Milliseconds()), len(out.Fields))
	return out, nil
}

type rawField struct {
	Row             string   `json:"row"`
	Column          string   `json:"column"`
	FieldName       string   `json:"field_name"`
	Value           *float64 `json:"value"`
	Currency        string   `json:"currency"`
	SourceReference string   `json:"source_reference"`
	Reasoning       string   `json:"reasoning"`
}

type rawResponse struct {
	Fields           []rawField `json:"fields"`
	OverallReasoning string     `json:"overall_reasoning"`
	Confidence       *float64   `json:"confidence"`
	Warnings         []string   `json:"warnings"`
}

// Parse decodes a model answer. Missing columns, currencies and confidence
// take their defaults, missing field names take the row label, and fields
// without a row are dropped with a warning.
func Parse(raw, templateType string) (*model.Extraction, error) {
	var r rawResponse
	if err := json.Unmarshal([]byte(stripFence(raw)), &r); err != nil {
		return nil, fmt.Errorf("extraction.parse: %w: %v", ErrMalformedResponse, err)
	}

	out := &model.Extraction{
		TemplateType: templateType,
		Fields:       make([]model.FieldMapping, 0, len(r.Fields)),
		Reasoning:    r.OverallReasoning,
		Confidence:   DefaultConfidence,
		Warnings:     append([]string{}, r.Warnings...),
	}
	if r.Confidence != nil {
		out.Confidence = *r.Confidence
	}

	for i, f := range r.Fields {
		row := strings.TrimSpace(f.Row)
		if row == "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("field %d has no row and was skipped", i+1))
			continue
		}
		name := f.FieldName
		if name == "" {
			name = corep.Label(row)
		}
		if name == "" {
			name = "Row " + row
		}
		out.Fields = append(out.Fields, model.FieldMapping{
			Row:             row,
			Column:          f.Column,
			FieldName:       name,
			Value:           f.Value,
			Currency:        strings.ToUpper(strings.TrimSpace(f.Currency)),
			SourceReference: f.SourceReference,
			Reasoning:       f.Reasoning,
		}.WithDefaults())
	}
	return out, nil
}

// stripFence removes a surrounding markdown code fence, which some models
// emit even in JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
