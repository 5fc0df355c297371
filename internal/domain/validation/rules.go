package validation

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/okian/corep/internal/domain/template"
	"github.com/shopspring/decimal"
)

// Tolerance is the largest absolute difference a consistency rule accepts.
var Tolerance = decimal.New(1, -2)

// at1RatioLimit is the share of Tier 1 above which AT1 is flagged.
var at1RatioLimit = decimal.RequireFromString("0.33")

// OwnFundsRules returns the built-in rules for the Own Funds template in
// evaluation order.
func OwnFundsRules() []Rule {
	return []Rule{
		cet1Total{},
		tier1Total{},
		totalOwnFunds{},
		nonNegativeCET1{},
		cet1ComponentsPresent{},
		at1Ratio{},
		tier2Limit{},
	}
}

func within(actual, expected decimal.Decimal) bool {
	return actual.Sub(expected).Abs().LessThanOrEqual(Tolerance)
}

// amount renders d rounded to whole units with thousands separators.
func amount(d decimal.Decimal) string {
	return humanize.BigComma(d.Round(0).BigInt())
}

func val(t *template.Template, code string) decimal.Decimal {
	return template.Decimal(t.Value(code))
}

type cet1Total struct{}

func (cet1Total) Descriptor() Descriptor {
	return Descriptor{
		ID:          "v0001",
		Name:        "CET1 Total Consistency",
		Severity:    SeverityError,
		Description: "CET1 capital before adjustments must equal sum of CET1 components",
	}
}

func (cet1Total) Evaluate(t *template.Template) Outcome {
	expected := t.CET1ComponentSum()
	actual := val(t, "100")
	if within(actual, expected) {
		return pass()
	}
	return fail(
		fmt.Sprintf("CET1 before adjustments (%s) != sum of components (%s)", amount(actual), amount(expected)),
		keys(append([]string{"100"}, template.CET1Components()...)...)...,
	)
}

type tier1Total struct{}

func (tier1Total) Descriptor() Descriptor {
	return Descriptor{
		ID:          "v0002",
		Name:        "Tier 1 Total Consistency",
		Severity:    SeverityError,
		Description: "Tier 1 capital must equal CET1 + AT1",
	}
}

func (tier1Total) Evaluate(t *template.Template) Outcome {
	cet1, at1 := val(t, "200"), t.NetAT1()
	actual := val(t, "400")
	if within(actual, cet1.Add(at1)) {
		return pass()
	}
	return fail(
		fmt.Sprintf("Tier 1 (%s) != CET1 (%s) + AT1 (%s)", amount(actual), amount(cet1), amount(at1)),
		keys("400", "200", "300", "310", "320")...,
	)
}

type totalOwnFunds struct{}

func (totalOwnFunds) Descriptor() Descriptor {
	return Descriptor{
		ID:          "v0003",
		Name:        "Total Own Funds Consistency",
		Severity:    SeverityError,
		Description: "Total own funds must equal Tier 1 + Tier 2",
	}
}

func (totalOwnFunds) Evaluate(t *template.Template) Outcome {
	t1, t2 := val(t, "400"), val(t, "600")
	actual := val(t, "700")
	if within(actual, t1.Add(t2)) {
		return pass()
	}
	return fail(
		fmt.Sprintf("Total own funds (%s) != Tier 1 (%s) + Tier 2 (%s)", amount(actual), amount(t1), amount(t2)),
		keys("700", "400", "600")...,
	)
}

type nonNegativeCET1 struct{}

func (nonNegativeCET1) Descriptor() Descriptor {
	return Descriptor{
		ID:          "v0004",
		Name:        "Non-Negative CET1",
		Severity:    SeverityError,
		Description: "CET1 capital cannot be negative",
	}
}

func (nonNegativeCET1) Evaluate(t *template.Template) Outcome {
	cet1 := val(t, "200")
	if !cet1.IsNegative() {
		return pass()
	}
	return fail(fmt.Sprintf("CET1 capital is negative: %s", amount(cet1)), keys("200")...)
}

type cet1ComponentsPresent struct{}

// primaryCET1 excludes interim profits (row 070).
var primaryCET1 = []string{"010", "020", "030", "040", "050", "060"}

func (cet1ComponentsPresent) Descriptor() Descriptor {
	return Descriptor{
		ID:          "v0010",
		Name:        "Missing CET1 Components",
		Severity:    SeverityWarning,
		Description: "At least one CET1 component should be reported",
	}
}

func (cet1ComponentsPresent) Evaluate(t *template.Template) Outcome {
	for _, code := range primaryCET1 {
		if !val(t, code).IsZero() {
			return pass()
		}
	}
	return fail("No CET1 capital components reported", keys(primaryCET1...)...)
}

type at1Ratio struct{}

func (at1Ratio) Descriptor() Descriptor {
	return Descriptor{
		ID:          "v0011",
		Name:        "Large AT1 Ratio",
		Severity:    SeverityWarning,
		Description: "AT1 should typically not exceed 1/3 of Tier 1 capital",
	}
}

func (at1Ratio) Evaluate(t *template.Template) Outcome {
	at1, t1 := val(t, "300"), val(t, "400")
	if !at1.IsPositive() || !t1.IsPositive() {
		return pass()
	}
	ratio := at1.Div(t1)
	if !ratio.GreaterThan(at1RatioLimit) {
		return pass()
	}
	return fail(
		fmt.Sprintf("AT1 is %s%% of Tier 1 (typically should be ≤33%%)", ratio.Mul(decimal.NewFromInt(100)).StringFixed(1)),
		keys("300", "400")...,
	)
}

type tier2Limit struct{}

func (tier2Limit) Descriptor() Descriptor {
	return Descriptor{
		ID:          "v0012",
		Name:        "Tier 2 Limit",
		Severity:    SeverityWarning,
		Description: "Tier 2 capital typically should not exceed Tier 1 capital",
	}
}

func (tier2Limit) Evaluate(t *template.Template) Outcome {
	t1, t2 := val(t, "400"), val(t, "600")
	if !t1.IsPositive() || !t2.GreaterThan(t1) {
		return pass()
	}
	return fail(fmt.Sprintf("Tier 2 (%s) exceeds Tier 1 (%s)", amount(t2), amount(t1)), keys("600", "400")...)
}
