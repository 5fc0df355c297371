// Package template holds the COREP C01 Own Funds template, its row layout,
// and the derivation of aggregate rows from reported components.
package template

import (
	"math"
	"strings"

	"github.com/okian/corep/internal/domain/model"
	"github.com/shopspring/decimal"
)

// OwnFunds is the template type identifier for COREP C01 Own Funds.
const OwnFunds = "C01"

const (
	rowKeyPrefix = "row_"
	rowCodeWidth = 3
)

// Template is a C01 Own Funds template. A nil row is not yet known.
type Template struct {
	// CET1 components
	Row010 *float64 `json:"row_010"`
	Row020 *float64 `json:"row_020"`
	Row030 *float64 `json:"row_030"`
	Row040 *float64 `json:"row_040"`
	Row050 *float64 `json:"row_050"`
	Row060 *float64 `json:"row_060"`
	Row070 *float64 `json:"row_070"`

	// CET1 adjustments (deductions)
	Row080 *float64 `json:"row_080"`
	Row090 *float64 `json:"row_090"`
	Row095 *float64 `json:"row_095"`

	// CET1 totals
	Row100 *float64 `json:"row_100"`
	Row200 *float64 `json:"row_200"`

	// AT1
	Row300 *float64 `json:"row_300"`
	Row310 *float64 `json:"row_310"`
	Row320 *float64 `json:"row_320"`

	Row400 *float64 `json:"row_400"`

	// Tier 2
	Row500 *float64 `json:"row_500"`
	Row510 *float64 `json:"row_510"`
	Row520 *float64 `json:"row_520"`

	Row600 *float64 `json:"row_600"`
	Row700 *float64 `json:"row_700"`

	Currency string `json:"currency"`
}

// Row is a single template cell as exposed by Rows.
type Row struct {
	Key   string   `json:"key"`
	Code  string   `json:"code"`
	Value *float64 `json:"value"`
}

// Key returns the template key for a row code, e.g. "010" -> "row_010".
func Key(code string) string {
	return rowKeyPrefix + code
}

// CanonicalRow left-pads a row identifier with zeros to three characters,
// so "10" and "010" address the same row.
func CanonicalRow(row string) string {
	row = strings.TrimSpace(row)
	if len(row) >= rowCodeWidth {
		return row
	}
	return strings.Repeat("0", rowCodeWidth-len(row)) + row
}

// Value returns the value of the row with the given code, or nil when the
// row is unset or unknown.
func (t *Template) Value(code string) *float64 {
	p := t.slot(CanonicalRow(code))
	if p == nil {
		return nil
	}
	return *p
}

// Has reports whether code names a row of this template.
func (t *Template) Has(code string) bool {
	return t.slot(CanonicalRow(code)) != nil
}

// Rows returns every row in layout order.
func (t *Template) Rows() []Row {
	out := make([]Row, 0, len(layout))
	for _, spec := range layout {
		out = append(out, Row{Key: Key(spec.code), Code: spec.code, Value: *spec.slot(t)})
	}
	return out
}

// Fields returns the template as field mappings, one per set row, in
// layout order. Feeding them back to Derive reproduces the template.
func (t *Template) Fields() []model.FieldMapping {
	out := make([]model.FieldMapping, 0, len(layout))
	for _, spec := range layout {
		v := *spec.slot(t)
		if v == nil {
			continue
		}
		val := *v
		out = append(out, model.FieldMapping{
			Row:       spec.code,
			Column:    model.DefaultColumn,
			FieldName: spec.label,
			Value:     &val,
			Currency:  t.Currency,
		})
	}
	return out
}

func (t *Template) slot(code string) **float64 {
	spec, ok := byCode[code]
	if !ok {
		return nil
	}
	return spec.slot(t)
}

// set assigns a copy of v to the row. Non-finite amounts cannot be
// represented as money and leave the row unset.
func (t *Template) set(code string, v *float64) bool {
	p := t.slot(code)
	if p == nil {
		return false
	}
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		*p = nil
		return true
	}
	val := *v
	*p = &val
	return true
}

// Decimal converts an optional amount to a decimal, treating absent and
// non-finite values as zero.
func Decimal(v *float64) decimal.Decimal {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v)
}

func amountOf(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
