// Package types contains the merged report returned to callers.
package types

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/okian/corep/internal/domain/audit"
	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/internal/domain/template"
	"github.com/okian/corep/internal/domain/validation"
)

// previewChars is the length of a source preview before the ellipsis.
const previewChars = 200

// Source is a shortened view of a retrieved document.
type Source struct {
	Reference string  `json:"reference"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}

// Report is one derived, validated and audited template.
type Report struct {
	ID                string              `json:"id"`
	TemplateType      string              `json:"template_type"`
	Template          *template.Template  `json:"template_data"`
	Validation        []validation.Result `json:"validation_results"`
	ValidationSummary validation.Summary  `json:"validation_summary"`
	AuditTrail        []audit.Entry       `json:"audit_trail"`
	RetrievedSources  []Source            `json:"retrieved_sources"`
	Reasoning         string              `json:"reasoning"`
	Confidence        float64             `json:"confidence"`
	Warnings          []string            `json:"warnings"`
	UnmappedRows      []string            `json:"unmapped_rows,omitempty"`
	Timestamp         string              `json:"timestamp"`
}

// NewReport returns a report with a fresh ID and timestamp.
func NewReport(templateType string, now time.Time) *Report {
	return &Report{
		ID:               uuid.NewString(),
		TemplateType:     templateType,
		Validation:       []validation.Result{},
		AuditTrail:       []audit.Entry{},
		RetrievedSources: []Source{},
		Warnings:         []string{},
		Timestamp:        now.UTC().Format(time.RFC3339),
	}
}

// Previews shortens each document's content to 200 characters followed by
// "...".
func Previews(docs []model.RetrievedDocument) []Source {
	out := make([]Source, 0, len(docs))
	for _, d := range docs {
		content := d.Content
		if utf8.RuneCountInString(content) > previewChars {
			content = string([]rune(content)[:previewChars])
		}
		out = append(out, Source{Reference: d.Reference, Content: content + "...", Score: d.Score})
	}
	return out
}
