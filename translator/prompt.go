package translator

import (
	"fmt"
	"strings"

	"github.com/adpulse-org/adpulse/schema"
)

// ============================================================================
// PROMPT BUILDER — registry-driven prompts for plan generation
// ============================================================================
// The plan prompt enumerates, in a fixed order: the translator role, the
// read-only constraint, the JSON-only output constraint, the plan dialect,
// the fuzzy-matching rule, the graceful-failure rule, and finally the view's
// fields with descriptions and example values. Deterministic given the same
// descriptor and question.
//
// The constraint text is instruction-level defense only; the structural
// allow-list in the pipeline package is what actually blocks write stages.
// ============================================================================

// BuildPlanPrompt produces the plan-generation prompt for one view.
func BuildPlanPrompt(d schema.Descriptor, question string) string {
	var b strings.Builder

	b.WriteString(`You translate analytics questions about advertising data into read-only aggregation plans.

RULES:
1. Respond with a JSON array of plan stages and NOTHING else. No markdown, no prose.
2. Plans are READ-ONLY. Only the stages listed below exist. There is no way to write, update, or delete data, and you must never try.
3. Users misspell field names and use synonyms. Map them to the closest field from the FIELDS list (e.g. "campain" means campaign_name, "cost" means spend).
4. If the question cannot be answered from this view's fields, respond with an empty array: []
`)

	b.WriteString("\n")
	b.WriteString(planDialectReference())
	b.WriteString("\n")
	b.WriteString(describeView(d))
	b.WriteString("\nQUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nRespond with the JSON array only:")

	return b.String()
}

// BuildExplainPrompt produces the explanation prompt for an executed plan.
func BuildExplainPrompt(planJSON string) string {
	return "Describe what this data aggregation does in one plain sentence a marketer would understand. " +
		"Do not use technical jargon, field names, or the word \"pipeline\".\n\n" + planJSON + "\n\nOne sentence:"
}

func planDialectReference() string {
	return `PLAN DIALECT (each stage is an object with exactly one key):
- {"match": {"<field>": <value>}} or {"match": {"<field>": {"gte": <v>, "lte": <v>}}}: filter documents; range bounds are inclusive; dates are YYYY-MM-DD strings.
- {"addFields": {"<name>": <expr>}}: compute new fields on each document.
- {"group": {"key": <expr> or null, "fields": {"<name>": {"sum": <expr>} | {"first": <expr>} | {"count": true}}}}: one row per distinct key; null key = one total row.
- {"project": {"<name>": <expr>}}: shape the output row.
- {"sort": {"by": "<field>", "dir": "asc"|"desc"}}
- {"limit": <n>}

EXPRESSIONS: a bare number/string is a literal; {"field": "<name>"} reads a field; {"toDouble": <expr>} and {"toInt": <expr>} convert numeric strings; {"ifNull": [<expr>, <fallback>]}; {"divide": [<a>, <b>]} (dividing by zero gives 0); {"multiply": [<a>, <b>]}.

EXAMPLE for "spend per campaign in June":
[{"match": {"date_start": {"gte": "2025-06-01", "lte": "2025-06-30"}}},
 {"addFields": {"spend_n": {"toDouble": {"ifNull": [{"field": "spend"}, "0"]}}}},
 {"group": {"key": {"field": "campaign_id"}, "fields": {"name": {"first": {"field": "campaign_name"}}, "total_spend": {"sum": {"field": "spend_n"}}}}},
 {"sort": {"by": "total_spend", "dir": "desc"}}]
`
}

func describeView(d schema.Descriptor) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("VIEW %q: %s\n", d.Key, d.Description))
	b.WriteString("FIELDS:\n")
	for _, f := range d.Fields {
		b.WriteString(fmt.Sprintf("- %q", f.Name))
		if f.Description != "" {
			b.WriteString(": " + f.Description)
		}
		if len(f.Examples) > 0 {
			b.WriteString(fmt.Sprintf(" (e.g. %s)", strings.Join(quoted(f.Examples), ", ")))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func quoted(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
