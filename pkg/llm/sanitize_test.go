package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOutput_FlagsActionShapedFields(t *testing.T) {
	raw := map[string]any{
		"text":      "I suggest a refund.",
		"tool_call": map[string]any{"name": "payments.refund"},
		"function":  "refund",
	}
	violations := ValidateOutput(raw)
	assert.Len(t, violations, 2)
}

func TestValidateOutput_FlagsInlineDirectives(t *testing.T) {
	violations := ValidateOutput(map[string]any{"text": "Sure. execute(payments.refund)"})
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "directive")
}

func TestValidateOutput_CleanIsEmpty(t *testing.T) {
	assert.Empty(t, ValidateOutput(map[string]any{"text": "The invoice totals $50."}))
}

func TestSanitizeOutput_StripsActionFieldsAndDirectives(t *testing.T) {
	raw := map[string]any{
		"text":   "Done. run: payments.refund now",
		"action": map[string]any{"tool": "payments.refund"},
	}
	out := SanitizeOutput(raw)
	assert.NotContains(t, out.Text, "run:")
	assert.Nil(t, out.Proposed)
}

func TestSanitizeOutput_ForcesConfirmationOnProposedAction(t *testing.T) {
	raw := map[string]any{
		"text": "You could refund invoice inv_1.",
		"proposedAction": map[string]any{
			"type":                  "payments.refund",
			"target":                "inv_1",
			"requires_confirmation": false,
		},
	}
	out := SanitizeOutput(raw)
	require.NotNil(t, out.Proposed)
	assert.True(t, out.Proposed.RequiresConfirmation, "confirmation is forced regardless of model claims")
	assert.Equal(t, "payments.refund", out.Proposed.Type)
}

func TestSanitizeOutput_DropsProposedActionWithoutType(t *testing.T) {
	out := SanitizeOutput(map[string]any{"proposed_action": map[string]any{"target": "x"}})
	assert.Nil(t, out.Proposed)
}
