// Package llm models the generative-language component as an untrusted
// external producer. Its output never reaches a tool directly: structured
// action-shaped fields are stripped before anything is shown to a human, and
// the only surviving structured value is a ProposedAction that must pass the
// confirmation workflow before it becomes an executable request.
package llm

import "context"

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the injected generative provider. Implementations live outside
// this module; everything returned from Chat is treated as untrusted data.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ProposedAction is the only structured value generative output may carry
// forward. It is suggestion-only: RequiresConfirmation is forced true during
// sanitization, and the orchestrator converts it into an executable request
// only after an explicit human confirmation.
type ProposedAction struct {
	Type                 string         `json:"type"`
	Target               string         `json:"target"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	Rationale            string         `json:"rationale,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
}

// Output is sanitized generative output safe to show a human.
type Output struct {
	Text     string          `json:"text"`
	Proposed *ProposedAction `json:"proposed,omitempty"`
}
