package validation

import (
	"fmt"

	"github.com/okian/corep/internal/domain/template"
)

// Result is the outcome of one rule in one validation run.
type Result struct {
	RuleID         string   `json:"rule_id"`
	RuleName       string   `json:"rule_name"`
	Severity       Severity `json:"severity"`
	Passed         bool     `json:"passed"`
	Message        string   `json:"message"`
	AffectedFields []string `json:"affected_fields"`
	Description    string   `json:"description"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules registers additional rules for templateType. They run after the
// built-in rules, in the order given.
func WithRules(templateType string, rules ...Rule) Option {
	return func(e *Engine) {
		for _, r := range rules {
			if r != nil {
				e.rules[templateType] = append(e.rules[templateType], r)
			}
		}
	}
}

// Engine holds the rule registry. It is read-only after NewEngine returns
// and safe for concurrent use.
type Engine struct {
	rules map[string][]Rule
}

// NewEngine returns an engine with the built-in rules registered.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{rules: map[string][]Rule{
		template.OwnFunds: OwnFundsRules(),
	}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate runs every rule registered for templateType against t, in
// registration order. Unknown template types yield no results. A nil
// template is evaluated as an empty one.
func (e *Engine) Validate(t *template.Template, templateType string) []Result {
	rules := e.rules[templateType]
	if t == nil {
		t = &template.Template{}
	}
	out := make([]Result, 0, len(rules))
	for _, r := range rules {
		d := r.Descriptor()
		o := r.Evaluate(t)
		res := Result{
			RuleID:         d.ID,
			RuleName:       d.Name,
			Severity:       d.Severity,
			Passed:         o.Passed,
			Message:        o.Message,
			AffectedFields: o.Affected,
			Description:    d.Description,
		}
		if o.Passed {
			res.Message = PassMessage
			res.AffectedFields = []string{}
		} else if res.AffectedFields == nil {
			res.AffectedFields = []string{}
		}
		out = append(out, res)
	}
	return out
}

// Rules lists the descriptors registered for templateType.
func (e *Engine) Rules(templateType string) ([]Descriptor, error) {
	rules, ok := e.rules[templateType]
	if !ok {
		return nil, fmt.Errorf("validation.rules %q: %w", templateType, template.ErrUnsupportedTemplateType)
	}
	out := make([]Descriptor, len(rules))
	for i, r := range rules {
		out[i] = r.Descriptor()
	}
	return out, nil
}

// Summary aggregates a validation run.
type Summary struct {
	Total          int  `json:"total"`
	Passed         int  `json:"passed"`
	ErrorsFailed   int  `json:"errors_failed"`
	WarningsFailed int  `json:"warnings_failed"`
	Blocking       bool `json:"blocking"`
}

// Summarize counts results. Any failed ERROR rule makes the run blocking.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Passed:
			s.Passed++
		case r.Severity == SeverityError:
			s.ErrorsFailed++
		default:
			s.WarningsFailed++
		}
	}
	s.Blocking = s.ErrorsFailed > 0
	return s
}

// Failed returns the failed results, preserving order.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
