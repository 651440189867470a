// Package flow defines the orchestrator's per-turn instruction set: a step is
// either a question back to the human, a gated execution request, or a plain
// response. Spines emit steps; only the orchestrator interprets them.
package flow

import "strings"

// Sensitivity tags an action's blast radius. High-sensitivity actions only
// execute after the confirmation-token workflow resolves.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Kind discriminates the Step union.
type Kind string

const (
	KindAsk     Kind = "ask"
	KindExecute Kind = "execute"
	KindRespond Kind = "respond"
)

// Step is a tagged union; exactly one of Ask, Execute, Respond is set,
// matching Kind.
type Step struct {
	Kind    Kind         `json:"kind"`
	Ask     *AskStep     `json:"ask,omitempty"`
	Execute *ExecuteStep `json:"execute,omitempty"`
	Respond *RespondStep `json:"respond,omitempty"`
}

// AskStep requests exactly the named missing fields from the human.
type AskStep struct {
	Prompt        string   `json:"prompt"`
	MissingFields []string `json:"missing_fields"`
}

// ExecuteStep carries a fully-specified action toward the gate. Input is the
// complete entity bag at build time; the gate and registry see it as-is.
type ExecuteStep struct {
	Action      string      `json:"action"`
	Tool        string      `json:"tool"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Input       EntityBag   `json:"input"`
}

// RespondStep is a terminal message with no side effects.
type RespondStep struct {
	Message string `json:"message"`
}

// Ask builds an Ask step.
func Ask(prompt string, missing []string) Step {
	return Step{Kind: KindAsk, Ask: &AskStep{Prompt: prompt, MissingFields: missing}}
}

// NewExecute builds an Execute step.
func NewExecute(action, tool string, sensitivity Sensitivity, input EntityBag) Step {
	return Step{Kind: KindExecute, Execute: &ExecuteStep{
		Action:      action,
		Tool:        tool,
		Sensitivity: sensitivity,
		Input:       input,
	}}
}

// Respond builds a Respond step.
func Respond(message string) Step {
	return Step{Kind: KindRespond, Respond: &RespondStep{Message: message}}
}

// Summary renders a one-line human description of the step.
func (s Step) Summary() string {
	switch s.Kind {
	case KindAsk:
		return "ask: " + s.Ask.Prompt
	case KindExecute:
		return "execute: " + s.Execute.Action + " (" + string(s.Execute.Sensitivity) + ")"
	case KindRespond:
		return "respond: " + s.Respond.Message
	}
	return "unknown step"
}

// MissingList formats missing field names for prompts: "a, b and c".
func MissingList(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + " and " + fields[len(fields)-1]
	}
}
