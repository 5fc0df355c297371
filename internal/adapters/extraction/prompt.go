package extraction

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/okian/corep/internal/domain/model"
	corep "github.com/okian/corep/internal/domain/template"
)

const noScenario = "No specific scenario provided."

const contextSeparator = "\n\n---\n\n"

var systemPrompt = template.Must(template.New("system").Parse(
	`You are an expert regulatory reporting assistant specializing in PRA COREP submissions for UK banks.

Your task is to analyze user questions and scenarios, then extract values for COREP {{.TemplateType}} template fields based on the provided regulatory context.

## Template: {{.TemplateType}} - {{.Name}}

The {{.TemplateType}} {{.Name}} template captures a bank's capital components:
{{range .Rows}}- **Row {{.Code}}**: {{if .IsTotal}}**{{.Label}}**{{else}}{{.Label}}{{end}}
{{end}}
## Response Format

Return a JSON object with this structure:
{
    "fields": [
        {
            "row": "010",
            "column": "010",
            "field_name": "Capital instruments eligible as CET1",
            "value": 1000000000,
            "currency": "GBP",
            "source_reference": "CRR Article 26(1)(a)",
            "reasoning": "Ordinary share capital of £1B qualifies as CET1 under Article 26"
        }
    ],
    "overall_reasoning": "Explanation of the overall analysis",
    "confidence": 0.85,
    "warnings": ["Any data quality or interpretation concerns"]
}

## Rules
1. Always cite the specific regulatory article/rule supporting each field value
2. Express all monetary values in the smallest unit (no decimals for currency)
3. Flag any ambiguity or missing information in warnings
4. Only populate fields you can justify from the context
5. Use GBP as the default currency for UK banks`))

var userPrompt = template.Must(template.New("user").Parse(
	`## User Question
{{.Question}}

## Scenario Description
{{.Scenario}}

## Regulatory Context
{{.Context}}

## Task
Based on the question, scenario, and regulatory context above, extract the appropriate values for COREP {{.TemplateType}} template fields.

Return your analysis as a JSON object with the field mappings, reasoning, and any warnings.`))

// Prompt is a rendered system and user message pair.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt renders the extraction prompt for templateType.
func BuildPrompt(templateType, question, scenario string, docs []model.RetrievedDocument) (Prompt, error) {
	schema, err := corep.SchemaFor(templateType)
	if err != nil {
		return Prompt{}, err
	}
	if strings.TrimSpace(scenario) == "" {
		scenario = noScenario
	}

	var sys, usr strings.Builder
	if err := systemPrompt.Execute(&sys, schema); err != nil {
		return Prompt{}, fmt.Errorf("extraction.prompt: %w", err)
	}
	err = userPrompt.Execute(&usr, struct {
		TemplateType, Question, Scenario, Context string
	}{templateType, question, scenario, Context(docs)})
	if err != nil {
		return Prompt{}, fmt.Errorf("extraction.prompt: %w", err)
	}
	return Prompt{System: sys.String(), User: usr.String()}, nil
}

// Context joins retrieved passages into the regulatory context block.
func Context(docs []model.RetrievedDocument) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, "**Source: "+d.Reference+"**\n"+d.Content)
	}
	return strings.Join(parts, contextSeparator)
}
