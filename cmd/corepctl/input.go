package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/okian/corep/internal/adapters/extraction"
	"github.com/okian/corep/internal/domain/model"
	"github.com/okian/corep/internal/domain/template"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// document is the extraction file read by derive, export and submit. It
// has the same shape as the body of POST /api/reports.
type document struct {
	TemplateType string                    `json:"template_type"`
	Fields       []model.FieldMapping      `json:"fields" validate:"dive"`
	Sources      []model.RetrievedDocument `json:"sources" validate:"dive"`
	Reasoning    string                    `json:"reasoning"`
	Confidence   *float64                  `json:"confidence" validate:"omitempty,min=0,max=1"`
	Warnings     []string                  `json:"warnings"`
}

// readDocument loads an extraction file. A non-empty sourcesPath replaces
// the sources embedded in the file.
func readDocument(path, sourcesPath string) (*document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corepctl.read %q: %w", path, err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("corepctl.read %q: %w: %w", path, ErrInput, err)
	}

	if sourcesPath != "" {
		raw, err := os.ReadFile(sourcesPath)
		if err != nil {
			return nil, fmt.Errorf("corepctl.read %q: %w", sourcesPath, err)
		}
		doc.Sources = nil
		if err := json.Unmarshal(raw, &doc.Sources); err != nil {
			return nil, fmt.Errorf("corepctl.read %q: %w: %w", sourcesPath, ErrInput, err)
		}
	}

	if strings.TrimSpace(doc.TemplateType) == "" {
		doc.TemplateType = template.OwnFunds
	}
	for i := range doc.Fields {
		doc.Fields[i] = doc.Fields[i].WithDefaults()
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("corepctl.read %q: %w: %w", path, ErrInput, err)
	}
	return &doc, nil
}

func (d *document) extraction() *model.Extraction {
	confidence := extraction.DefaultConfidence
	if d.Confidence != nil {
		confidence = *d.Confidence
	}
	warnings := d.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return &model.Extraction{
		TemplateType: d.TemplateType,
		Fields:       d.Fields,
		Reasoning:    d.Reasoning,
		Confidence:   confidence,
		Warnings:     warnings,
	}
}
