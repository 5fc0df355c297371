// Package audit links every populated template field to the regulatory
// text that justifies it.
package audit

import (
	"encoding/json"

	"github.com/okian/corep/internal/domain/model"
)

// Sentinels recorded in place of missing provenance.
const (
	NotSpecified      = "Not specified"
	SourceUnavailable = "Source text not available"
	NoReasoning       = "No specific reasoning provided"
)

// Summary entry identifiers.
const (
	SummaryRow  = "OVERALL"
	SummaryName = "Analysis Summary"
)

// Relevance buckets a resolved source's similarity score.
type Relevance string

// Relevance levels. RelevanceNone is used when no source resolved.
const (
	RelevanceHigh   Relevance = "High"
	RelevanceMedium Relevance = "Medium"
	RelevanceLow    Relevance = "Low"
	RelevanceNone   Relevance = "N/A"
)

// RelevanceOf buckets a similarity score.
func RelevanceOf(score float64) Relevance {
	switch {
	case score > 0.8:
		return RelevanceHigh
	case score > 0.6:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// Confidence holds the per-field provenance signals.
type Confidence struct {
	HasSourceReference bool      `json:"has_source_reference"`
	HasReasoning       bool      `json:"has_reasoning"`
	SourceRetrieved    bool      `json:"source_retrieved"`
	SourceRelevance    Relevance `json:"source_relevance"`
}

// Summary holds the counts carried by the trailing summary entry.
type Summary struct {
	SourcesUsed     int `json:"sources_used"`
	FieldsPopulated int `json:"fields_populated"`
}

// Entry is one audit trail record. Field entries carry Confidence; the
// summary entry carries Summary instead. Both are written under
// confidence_indicators.
type Entry struct {
	FieldRow        string      `json:"field_row"`
	FieldName       string      `json:"field_name"`
	Value           *float64    `json:"value"`
	Currency        string      `json:"currency,omitempty"`
	SourceReference string      `json:"source_reference"`
	SourceContent   string      `json:"source_content"`
	Reasoning       string      `json:"reasoning"`
	Timestamp       string      `json:"timestamp"`
	Confidence      *Confidence `json:"confidence_indicators,omitempty"`
	Summary         *Summary    `json:"-"`
}

type entryJSON Entry

// MarshalJSON writes Summary in place of Confidence on the summary entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Summary == nil {
		return json.Marshal(entryJSON(e))
	}
	return json.Marshal(struct {
		entryJSON
		Indicators *Summary `json:"confidence_indicators"`
	}{entryJSON: entryJSON(e), Indicators: e.Summary})
}

// UnmarshalJSON reads confidence_indicators as Summary when the row is the
// summary row.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		entryJSON
		Indicators json.RawMessage `json:"confidence_indicators"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Entry(raw.entryJSON)
	e.Confidence = nil
	if len(raw.Indicators) == 0 || string(raw.Indicators) == "null" {
		return nil
	}
	if e.FieldRow == SummaryRow {
		e.Summary = &Summary{}
		return json.Unmarshal(raw.Indicators, e.Summary)
	}
	e.Confidence = &Confidence{}
	return json.Unmarshal(raw.Indicators, e.Confidence)
}

// IsSummary reports whether e is the trailing summary entry.
func (e Entry) IsSummary() bool {
	return e.Summary != nil
}

// Unresolved counts field entries whose citation matched no source.
func Unresolved(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Confidence != nil && !e.Confidence.SourceRetrieved {
			n++
		}
	}
	return n
}

// Record is the exported form of a field entry, without confidence.
type Record struct {
	FieldRow        string   `json:"field_row"`
	FieldName       string   `json:"field_name"`
	Value           *float64 `json:"value"`
	SourceReference string   `json:"source_reference"`
	Reasoning       string   `json:"reasoning"`
	Timestamp       string   `json:"timestamp"`
}

// sourceIndex resolves citations against documents in a stable order: the
// first appearance of each reference fixes its position, the last document
// carrying it supplies the content.
type sourceIndex struct {
	refs  []string
	byRef map[string]model.RetrievedDocument
}

func indexSources(sources []model.RetrievedDocument) sourceIndex {
	ix := sourceIndex{byRef: make(map[string]model.RetrievedDocument, len(sources))}
	for _, doc := range sources {
		if _, seen := ix.byRef[doc.Reference]; !seen {
			ix.refs = append(ix.refs, doc.Reference)
		}
		ix.byRef[doc.Reference] = doc
	}
	return ix
}

// resolve tries an exact match, then the first reference (in index order)
// that contains the citation or is contained by it.
func (ix sourceIndex) resolve(citation string) (model.RetrievedDocument, bool) {
	if citation == "" {
		return model.RetrievedDocument{}, false
	}
	if doc, ok := ix.byRef[citation]; ok {
		return doc, true
	}
	for _, ref := range ix.refs {
		if ref == "" {
			continue
		}
		if containsEither(ref, citation) {
			return ix.byRef[ref], true
		}
	}
	return model.RetrievedDocument{}, false
}
