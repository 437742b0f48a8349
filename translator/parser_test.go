package translator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// RESPONSE PARSER
// ============================================================================

func TestParsePlanAcceptsFencedOutput(t *testing.T) {
	cases := []string{
		`[{"limit": 5}]`,
		"```json\n[{\"limit\": 5}]\n```",
		"```\n[{\"limit\": 5}]\n```",
		"  \n[{\"limit\": 5}]  ",
	}
	for _, raw := range cases {
		p, err := ParsePlan(raw)
		require.NoError(t, err, "input %q", raw)
		require.Len(t, p, 1)
		assert.Equal(t, 5, *p[0].Limit)
	}
}

func TestParsePlanEmptyArray(t *testing.T) {
	p, err := ParsePlan("```json\n[]\n```")
	require.NoError(t, err)
	assert.Len(t, p, 0)
}

func TestParsePlanRejectsNonArray(t *testing.T) {
	for _, raw := range []string{
		"I cannot answer that.",
		`{"match": {}}`,
		"",
	} {
		_, err := ParsePlan(raw)
		var terr *TranslationError
		require.ErrorAs(t, err, &terr, "input %q", raw)
		assert.Equal(t, raw, terr.Raw)
	}
}

func TestParsePlanRejectsWriteStages(t *testing.T) {
	_, err := ParsePlan(`[{"out": "insights"}]`)
	var terr *TranslationError
	require.ErrorAs(t, err, &terr)
	assert.Contains(t, err.Error(), `unsupported stage "out"`)
}

func TestTranslationErrorTruncatesRawText(t *testing.T) {
	longRaw := make([]byte, 2000)
	for i := range longRaw {
		longRaw[i] = 'x'
	}
	_, err := ParsePlan(string(longRaw))
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 400)
}

func TestTranslationErrorUnwraps(t *testing.T) {
	reason := errors.New("boom")
	err := &TranslationError{Raw: "raw", Reason: reason}
	assert.ErrorIs(t, err, reason)
}
