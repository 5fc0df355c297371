package template

import (
	"fmt"
	"sort"

	"github.com/okian/corep/internal/domain/model"
)

// Category groups rows by capital tier.
type Category string

// Row categories.
const (
	CategoryCET1           Category = "CET1"
	CategoryCET1Adjustment Category = "CET1 adjustment"
	CategoryAT1            Category = "AT1"
	CategoryTier1          Category = "Tier 1"
	CategoryTier2          Category = "Tier 2"
	CategoryTotal          Category = "Total"
)

// RowInfo describes one row of a template layout.
type RowInfo struct {
	Key         string   `json:"key"`
	Code        string   `json:"code"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Article     string   `json:"crr_article"`
	Category    Category `json:"category"`
	IsTotal     bool     `json:"is_total"`
}

// Schema describes a supported template type.
type Schema struct {
	TemplateType string    `json:"template_type"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Currency     string    `json:"default_currency"`
	Rows         []RowInfo `json:"rows"`
}

type rowSpec struct {
	code        string
	label       string
	description string
	article     string
	category    Category
	total       bool
	slot        func(*Template) **float64
}

var layout = []rowSpec{
	{"010", "Capital instruments eligible as CET1", "Capital instruments eligible as CET1", "Article 26(1)(a)", CategoryCET1, false, func(t *Template) **float64 { return &t.Row010 }},
	{"020", "Share premium related to CET1 instruments", "Share premium related to CET1 instruments", "Article 26(1)(b)", CategoryCET1, false, func(t *Template) **float64 { return &t.Row020 }},
	{"030", "Retained earnings", "Retained earnings", "Article 26(1)(c)", CategoryCET1, false, func(t *Template) **float64 { return &t.Row030 }},
	{"040", "Accumulated other comprehensive income", "Accumulated other comprehensive income", "Article 26(1)(d)", CategoryCET1, false, func(t *Template) **float64 { return &t.Row040 }},
	{"050", "Other reserves", "Other reserves", "Article 26(1)(e)", CategoryCET1, false, func(t *Template) **float64 { return &t.Row050 }},
	{"060", "Minority interests", "Minority interests (amount allowed in consolidated CET1)", "Article 84", CategoryCET1, false, func(t *Template) **float64 { return &t.Row060 }},
	{"070", "Independent interim/year-end profits", "Independent interim/year-end profits", "Article 26(2)", CategoryCET1, false, func(t *Template) **float64 { return &t.Row070 }},
	{"080", "(-) Goodwill and other intangible assets", "(-) Goodwill and other intangible assets", "Article 36(1)(b)", CategoryCET1Adjustment, false, func(t *Template) **float64 { return &t.Row080 }},
	{"090", "(-) Deferred tax assets", "(-) Deferred tax assets depending on future profitability", "Article 36(1)(c)", CategoryCET1Adjustment, false, func(t *Template) **float64 { return &t.Row090 }},
	{"095", "(-) Shortfall of provisions", "(-) Shortfall of provisions to expected losses", "Article 36(1)(d)", CategoryCET1Adjustment, false, func(t *Template) **float64 { return &t.Row095 }},
	{"100", "CET1 capital before adjustments", "CET1 capital before regulatory adjustments", "Article 26", CategoryCET1, true, func(t *Template) **float64 { return &t.Row100 }},
	{"200", "CET1 capital", "CET1 capital after regulatory adjustments", "Article 50", CategoryCET1, true, func(t *Template) **float64 { return &t.Row200 }},
	{"300", "AT1 instruments", "Additional Tier 1 (AT1) instruments", "Article 51", CategoryAT1, false, func(t *Template) **float64 { return &t.Row300 }},
	{"310", "Share premium related to AT1 instruments", "Share premium related to AT1 instruments", "Article 51(b)", CategoryAT1, false, func(t *Template) **float64 { return &t.Row310 }},
	{"320", "(-) AT1 deductions", "(-) AT1 deductions", "Article 56", CategoryAT1, false, func(t *Template) **float64 { return &t.Row320 }},
	{"400", "Tier 1 capital", "Tier 1 capital (CET1 + AT1)", "Article 25", CategoryTier1, true, func(t *Template) **float64 { return &t.Row400 }},
	{"500", "Tier 2 instruments", "Tier 2 instruments", "Article 62", CategoryTier2, false, func(t *Template) **float64 { return &t.Row500 }},
	{"510", "Share premium related to T2 instruments", "Share premium related to T2 instruments", "Article 62(b)", CategoryTier2, false, func(t *Template) **float64 { return &t.Row510 }},
	{"520", "(-) Tier 2 deductions", "(-) Tier 2 deductions", "Article 66", CategoryTier2, false, func(t *Template) **float64 { return &t.Row520 }},
	{"600", "Tier 2 capital", "Tier 2 capital", "Article 71", CategoryTier2, true, func(t *Template) **float64 { return &t.Row600 }},
	{"700", "TOTAL OWN FUNDS", "TOTAL OWN FUNDS", "Article 72", CategoryTotal, true, func(t *Template) **float64 { return &t.Row700 }},
}

var byCode = func() map[string]rowSpec {
	m := make(map[string]rowSpec, len(layout))
	for _, spec := range layout {
		m[spec.code] = spec
	}
	return m
}()

type templateInfo struct {
	name        string
	description string
}

var registry = map[string]templateInfo{
	OwnFunds: {
		name:        "Own Funds",
		description: "COREP Own Funds template for reporting capital components",
	},
}

// Supported reports whether templateType is a known template type.
func Supported(templateType string) bool {
	_, ok := registry[templateType]
	return ok
}

// Types lists the supported template types in sorted order.
func Types() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Label returns the display label for a row code, or "" if unknown.
func Label(code string) string {
	return byCode[CanonicalRow(code)].label
}

// SchemaFor returns the row layout for templateType.
func SchemaFor(templateType string) (Schema, error) {
	info, ok := registry[templateType]
	if !ok {
		return Schema{}, fmt.Errorf("template.schema %q: %w", templateType, ErrUnsupportedTemplateType)
	}
	rows := make([]RowInfo, 0, len(layout))
	for _, spec := range layout {
		rows = append(rows, RowInfo{
			Key:         Key(spec.code),
			Code:        spec.code,
			Label:       spec.label,
			Description: spec.description,
			Article:     spec.article,
			Category:    spec.category,
			IsTotal:     spec.total,
		})
	}
	return Schema{
		TemplateType: templateType,
		Name:         info.name,
		Description:  info.description,
		Currency:     model.DefaultCurrency,
		Rows:         rows,
	}, nil
}
