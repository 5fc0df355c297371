// Package validation evaluates cross-field consistency and regulatory ratio
// rules against a derived template.
package validation

import (
	"github.com/okian/corep/internal/domain/template"
)

// Severity classifies a rule outcome as blocking or advisory.
type Severity string

// Rule severities.
const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// PassMessage replaces the diagnostic message of a passing rule.
const PassMessage = "OK"

// Descriptor is the introspectable part of a rule.
type Descriptor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Outcome is what a rule reports about a template.
type Outcome struct {
	Passed   bool
	Message  string
	Affected []string
}

// Rule is a single named check. Evaluate must only read the template.
type Rule interface {
	Descriptor() Descriptor
	Evaluate(t *template.Template) Outcome
}

// Func adapts a plain function into a Rule.
type Func struct {
	Desc  Descriptor
	Check func(t *template.Template) Outcome
}

// Descriptor implements Rule.
func (f Func) Descriptor() Descriptor { return f.Desc }

// Evaluate implements Rule.
func (f Func) Evaluate(t *template.Template) Outcome { return f.Check(t) }

func pass() Outcome {
	return Outcome{Passed: true}
}

func fail(msg string, affected ...string) Outcome {
	return Outcome{Message: msg, Affected: affected}
}

func keys(codes ...string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = template.Key(c)
	}
	return out
}
