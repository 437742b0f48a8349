package translator

import (
	"fmt"
	"strings"

	"github.com/adpulse-org/adpulse/pipeline"
)

// ============================================================================
// RESPONSE PARSER — untrusted model text → validated plan
// ============================================================================

// TranslationError reports model output that could not become a plan. It is
// user-visible and carries the raw text for diagnosis.
type TranslationError struct {
	Raw    string
	Reason error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("could not translate question into a query: %v (model said: %s)",
		e.Reason, truncate(e.Raw, 200))
}

func (e *TranslationError) Unwrap() error { return e.Reason }

// ParsePlan strips any markdown fencing from the model response, decodes it
// as a JSON array of stages, and validates the result structurally. Anything
// that is not a well-formed read-only plan is a TranslationError.
func ParsePlan(response string) (pipeline.Pipeline, error) {
	cleaned := stripFences(response)

	p, err := pipeline.Decode([]byte(cleaned))
	if err != nil {
		return nil, &TranslationError{Raw: response, Reason: err}
	}
	if err := p.Validate(); err != nil {
		return nil, &TranslationError{Raw: response, Reason: err}
	}
	return p, nil
}

// stripFences removes surrounding ``` markup the model tends to add despite
// instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
