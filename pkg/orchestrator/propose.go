package orchestrator

import (
	"context"
	"fmt"

	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/gate"
	"github.com/solari-labs/concierge/pkg/llm"
)

// Propose feeds raw generative output into the pipeline. The output is
// sanitized first; a surviving proposed action is evaluated with source
// "llm" — always denied, always audited — and then parked behind a
// confirmation token. Only an explicit CONFIRM re-enters it as a
// user-sourced request.
func (o *Orchestrator) Propose(ctx context.Context, sessionKey string, in TurnInput, raw map[string]any) (TurnOutput, error) {
	out := llm.SanitizeOutput(raw)

	sess, release := o.sessions.Acquire(sessionKey)
	defer release()

	if out.Proposed == nil {
		if out.Text == "" {
			return respondOut("The assistant had nothing actionable to suggest."), nil
		}
		return respondOut(out.Text), nil
	}
	p := out.Proposed

	// The llm-sourced evaluation exists to be denied and audited; its
	// verdict never executes anything.
	llmReq := gate.ActionRequest{
		Type:                 p.Type,
		Target:               p.Target,
		Parameters:           p.Parameters,
		Source:               gate.SourceLLM,
		RequiresConfirmation: p.RequiresConfirmation,
	}
	if _, err := o.gate.Evaluate(ctx, in.Context.ActorID, llmReq); err != nil {
		return finalOut(false, "I can't record this suggestion in the audit ledger right now, so it was discarded."), nil
	}

	bag := make(flow.EntityBag)
	for key, value := range p.Parameters {
		// Only allowlisted, well-typed fields survive into the pending step.
		_ = bag.Set(key, value)
	}
	step := flow.ExecuteStep{
		Action:      p.Type,
		Tool:        p.Target,
		Sensitivity: flow.SensitivityHigh,
		Input:       bag,
	}
	userReq := gate.ActionRequest{
		Type:                 p.Type,
		Target:               p.Target,
		Parameters:           bag.Map(),
		Source:               gate.SourceUser,
		RequiresConfirmation: true,
	}
	turn := o.requestConfirmation(sess, userReq, step)
	if sess.Pending != nil && p.Rationale != "" {
		turn = respondOut(fmt.Sprintf("The assistant suggests %s (%s). %s", p.Type, p.Rationale, sess.Pending.Prompt))
	}
	return turn, nil
}
