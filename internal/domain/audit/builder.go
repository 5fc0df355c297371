package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/corep/internal/domain/model"
)

// DefaultExcerptChars caps the stored source excerpt.
const DefaultExcerptChars = 500

// Format is an export format.
type Format string

// Supported export formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ExportFormats lists the formats Export accepts.
func ExportFormats() []Format {
	return []Format{FormatJSON, FormatCSV}
}

var csvHeader = []string{"field_row", "field_name", "value", "source_reference", "reasoning", "timestamp"}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithExcerptChars sets the maximum number of characters of source text
// kept per entry.
func WithExcerptChars(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.excerptChars = n
		}
	}
}

// Builder produces audit trails and keeps an append-only history of the
// field entries it has built. A Builder is not safe for concurrent use;
// create one per request.
type Builder struct {
	now          func() time.Time
	excerptChars int
	history      []Record
}

// NewBuilder returns a Builder with the default clock and excerpt size.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now:          time.Now,
		excerptChars: DefaultExcerptChars,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns one entry per field, in input order, followed by a single
// summary entry. All entries share one timestamp.
func (b *Builder) Build(fields []model.FieldMapping, sources []model.RetrievedDocument, rationale string) []Entry {
	ts := b.now().UTC().Format(time.RFC3339)
	ix := indexSources(sources)

	out := make([]Entry, 0, len(fields)+1)
	for _, f := range fields {
		doc, resolved := ix.resolve(f.SourceReference)

		conf := &Confidence{
			HasSourceReference: f.SourceReference != "",
			HasReasoning:       f.Reasoning != "",
			SourceRetrieved:    resolved,
			SourceRelevance:    RelevanceNone,
		}
		content := ""
		if resolved {
			conf.SourceRelevance = RelevanceOf(doc.Score)
			content = truncate(doc.Content, b.excerptChars)
		}

		e := Entry{
			FieldRow:        f.Row,
			FieldName:       f.FieldName,
			Value:           copyAmount(f.Value),
			Currency:        f.Currency,
			SourceReference: orDefault(f.SourceReference, NotSpecified),
			SourceContent:   orDefault(content, SourceUnavailable),
			Reasoning:       orDefault(f.Reasoning, NoReasoning),
			Timestamp:       ts,
			Confidence:      conf,
		}
		out = append(out, e)
		b.history = append(b.history, Record{
			FieldRow:        e.FieldRow,
			FieldName:       e.FieldName,
			Value:           copyAmount(e.Value),
			SourceReference: e.SourceReference,
			Reasoning:       e.Reasoning,
			Timestamp:       e.Timestamp,
		})
	}

	out = append(out, Entry{
		FieldRow:        SummaryRow,
		FieldName:       SummaryName,
		SourceReference: fmt.Sprintf("Based on %d regulatory sources", len(sources)),
		SourceContent:   rationale,
		Reasoning:       rationale,
		Timestamp:       ts,
		Summary: &Summary{
			SourcesUsed:     len(sources),
			FieldsPopulated: len(fields),
		},
	})
	return out
}

// History returns a copy of the recorded field entries.
func (b *Builder) History() []Record {
	return append([]Record(nil), b.history...)
}

// Export serializes the history. JSON is indented; CSV has a header row.
func (b *Builder) Export(format Format) (string, error) {
	switch format {
	case FormatJSON:
		records := b.history
		if records == nil {
			records = []Record{}
		}
		raw, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("audit.export json: %w", err)
		}
		return string(raw), nil
	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(csvHeader)
		for _, r := range b.history {
			_ = w.Write([]string{r.FieldRow, r.FieldName, formatAmount(r.Value), r.SourceReference, r.Reasoning, r.Timestamp})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", fmt.Errorf("audit.export csv: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("audit.export %q: %w", format, ErrUnsupportedFormat)
	}
}

// ParseFormat maps a case-insensitive name to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ExportFormats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("audit.format %q: %w", s, ErrUnsupportedFormat)
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// truncate keeps at most n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func copyAmount(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
