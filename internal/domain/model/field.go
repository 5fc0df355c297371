// Package model contains domain models passed between layers.
package model

// Defaults applied to extracted fields that omit them.
const (
	DefaultColumn   = "010"
	DefaultCurrency = "GBP"
)

// FieldMapping is a single proposed value for a template row, as produced
// by the extraction collaborator. The core reads it and never mutates it.
type FieldMapping struct {
	Row             string   `json:"row" validate:"required,max=16"`
	Column          string   `json:"column,omitempty"`
	FieldName       string   `json:"field_name" validate:"required"`
	Value           *float64 `json:"value"`
	Currency        string   `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	SourceReference string   `json:"source_reference,omitempty"`
	Reasoning       string   `json:"reasoning,omitempty"`
}

// WithDefaults returns a copy with the column and currency defaults filled in.
func (f FieldMapping) WithDefaults() FieldMapping {
	if f.Column == "" {
		f.Column = DefaultColumn
	}
	if f.Currency == "" {
		f.Currency = DefaultCurrency
	}
	return f
}

// RetrievedDocument is a ranked regulatory passage returned by retrieval.
// Score is a similarity in [0,1]; higher is more relevant.
type RetrievedDocument struct {
	Content   string  `json:"content" validate:"required"`
	Reference string  `json:"reference" validate:"required"`
	Article   string  `json:"article,omitempty"`
	Section   string  `json:"section,omitempty"`
	Score     float64 `json:"score" validate:"min=0,max=1"`
}

// Extraction is the full structured output of the extraction collaborator.
// Confidence and Warnings are passed through untouched.
type Extraction struct {
	TemplateType string         `json:"template_type"`
	Fields       []FieldMapping `json:"fields" validate:"dive"`
	Reasoning    string         `json:"reasoning"`
	Confidence   float64        `json:"confidence" validate:"min=0,max=1"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// Amount returns a pointer to v, for building optional values.
func Amount(v float64) *float64 {
	return &v
}
