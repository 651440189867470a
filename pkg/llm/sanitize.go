package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// actionShapedKeys are structured fields a generative component must never
// smuggle past the boundary.
var actionShapedKeys = []string{"action", "tool_call", "tool_calls", "function", "function_call"}

// directiveRe matches inline execution directives in free text.
var directiveRe = regexp.MustCompile(`(?i)\b(execute|run|invoke|trigger)\s*[:(]`)

// ValidateOutput inspects raw structured output and returns one violation
// string per action-shaped field or inline directive found. An empty result
// means the output is already clean.
func ValidateOutput(raw map[string]any) []string {
	var violations []string
	for _, key := range actionShapedKeys {
		if _, ok := raw[key]; ok {
			violations = append(violations, fmt.Sprintf("action-shaped field %q present", key))
		}
	}
	if text, ok := raw["text"].(string); ok {
		if m := directiveRe.FindString(text); m != "" {
			violations = append(violations, fmt.Sprintf("inline execution directive %q present", strings.TrimSpace(m)))
		}
	}
	return violations
}

// SanitizeOutput strips every action-shaped field and inline directive from
// raw generative output and returns what may be shown to a human. A
// proposedAction field survives as a ProposedAction with
// RequiresConfirmation forced true regardless of what the model claimed.
func SanitizeOutput(raw map[string]any) Output {
	out := Output{}
	if text, ok := raw["text"].(string); ok {
		out.Text = directiveRe.ReplaceAllString(text, "[removed] ")
	}
	proposed := extractProposed(raw)
	if proposed != nil {
		proposed.RequiresConfirmation = true
		out.Proposed = proposed
	}
	return out
}

func extractProposed(raw map[string]any) *ProposedAction {
	var value any
	for _, key := range []string{"proposedAction", "proposed_action"} {
		if v, ok := raw[key]; ok {
			value = v
			break
		}
	}
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	p := &ProposedAction{}
	if s, ok := m["type"].(string); ok {
		p.Type = s
	}
	if s, ok := m["target"].(string); ok {
		p.Target = s
	}
	if params, ok := m["parameters"].(map[string]any); ok {
		p.Parameters = params
	}
	if s, ok := m["rationale"].(string); ok {
		p.Rationale = s
	}
	if p.Type == "" {
		return nil
	}
	return p
}
