package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solari-labs/concierge/pkg/fault"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/gate"
	"github.com/solari-labs/concierge/pkg/registry"
	"github.com/solari-labs/concierge/pkg/session"
)

// dispatch moves an execute step through the kill-switch check, the policy
// gate and, when the gate demands it, the confirmation workflow. The kill
// switch is a circuit breaker consulted before, and independently of, the
// gate: a disabled category never reaches policy evaluation.
func (o *Orchestrator) dispatch(ctx context.Context, sess *session.Session, in TurnInput, step flow.ExecuteStep, now time.Time) TurnOutput {
	category := categoryOf(step.Tool)
	if o.switches.IsEnabled(ctx, category) {
		o.logger.Warn("category disabled by kill switch", "category", category, "action", step.Action)
		return finalOut(false, fmt.Sprintf("%s actions are temporarily disabled by an operator. Please try again later.", category))
	}

	req := gate.ActionRequest{
		Type:                 step.Action,
		Target:               step.Tool,
		Parameters:           step.Input.Map(),
		Source:               gate.SourceUser,
		RequiresConfirmation: step.Sensitivity == flow.SensitivityHigh,
	}
	decision, err := o.gate.Evaluate(ctx, in.Context.ActorID, req)
	if err != nil {
		return finalOut(false, "I can't record this action in the audit ledger right now, so nothing was executed.")
	}

	if !decision.Allowed {
		if decision.RequiresHumanConfirmation {
			return o.requestConfirmation(sess, req, step)
		}
		msg := "I can't do that: " + decision.Reason + "."
		if decision.SuggestedNextStep != "" {
			msg += " Next step: " + decision.SuggestedNextStep + "."
		}
		return finalOut(false, msg)
	}

	// Allowed, but high-sensitivity actions still pass through the token
	// workflow before touching the registry.
	if step.Sensitivity == flow.SensitivityHigh {
		return o.requestConfirmation(sess, req, step)
	}
	return o.execute(ctx, sess, in, step)
}

// requestConfirmation issues a single-use token bound to the request and
// parks the step on the session.
func (o *Orchestrator) requestConfirmation(sess *session.Session, req gate.ActionRequest, step flow.ExecuteStep) TurnOutput {
	tok, err := o.vault.Issue(sess.ID, req)
	if err != nil {
		o.logger.Error("confirmation token issue failed", "action", step.Action, "error", err)
		return finalOut(false, "I couldn't prepare a confirmation for that action. Nothing was executed.")
	}
	prompt := fmt.Sprintf("About to run %s. Reply CONFIRM to proceed or CANCEL to stop. This request expires at %s.",
		step.Action, tok.ExpiresAt.Format("15:04:05"))
	sess.Pending = &session.Pending{
		TokenID:   tok.ID,
		Prompt:    prompt,
		Held:      step,
		ExpiresAt: tok.ExpiresAt,
	}
	sess.Stage = session.StageAwaitingConfirmation
	return respondOut(prompt)
}

// handleConfirmation resolves an outstanding confirmation. Only CONFIRM and
// CANCEL advance the state; anything else re-prompts rather than guessing
// intent. Token expiry resets the whole session.
func (o *Orchestrator) handleConfirmation(ctx context.Context, sess *session.Session, in TurnInput, command string, now time.Time) TurnOutput {
	if now.After(sess.Pending.ExpiresAt) {
		o.vault.Cancel(sess.ID, sess.Pending.TokenID)
		sess.Reset()
		return finalOut(false, "That confirmation window has expired, so I've started over. Nothing was executed.")
	}

	switch command {
	case "CONFIRM":
		pending := sess.Pending
		_, err := o.vault.Redeem(sess.ID, pending.TokenID)
		if err != nil {
			sess.Pending = nil
			sess.Stage = session.StageNew
			switch fault.CodeOf(err) {
			case fault.CodeExpired:
				sess.Reset()
				return finalOut(false, "That confirmation expired before you replied. Nothing was executed.")
			case fault.CodeReplayed:
				return finalOut(false, "That confirmation was already used. Nothing was executed again.")
			default:
				return finalOut(false, "I couldn't verify that confirmation. Nothing was executed.")
			}
		}
		sess.Pending = nil
		if _, lerr := o.ledger.Append(ctx, in.Context.ActorID, "action.confirmed", map[string]any{
			"action": pending.Held.Action,
			"tool":   pending.Held.Tool,
			"token":  pending.TokenID,
		}); lerr != nil {
			sess.Stage = session.StageNew
			return finalOut(false, "I can't record this action in the audit ledger right now, so nothing was executed.")
		}
		// The operator may have thrown a switch while we waited.
		if category := categoryOf(pending.Held.Tool); o.switches.IsEnabled(ctx, category) {
			sess.Stage = session.StageNew
			return finalOut(false, fmt.Sprintf("%s actions are temporarily disabled by an operator. Please try again later.", category))
		}
		return o.execute(ctx, sess, in, pending.Held)
	case "CANCEL":
		o.vault.Cancel(sess.ID, sess.Pending.TokenID)
		sess.Pending = nil
		sess.Stage = session.StageNew
		return finalOut(true, "Cancelled. Nothing was executed.")
	default:
		return respondOut("There's a pending action waiting on you. " + sess.Pending.Prompt)
	}
}

// execute calls the tool, audits the outcome, and applies any follow-up
// stage the tool's result demands (slot choice, deposit).
func (o *Orchestrator) execute(ctx context.Context, sess *session.Session, in TurnInput, step flow.ExecuteStep) TurnOutput {
	res := o.tools.Execute(ctx, step.Tool, registry.Call{
		Context: map[string]any{
			"actorId":  in.Context.ActorID,
			"role":     in.Context.Role,
			"tenantId": in.Context.TenantID,
			"channel":  in.Context.Channel,
		},
		Input: step.Input.Map(),
	})

	details := map[string]any{
		"action": step.Action,
		"tool":   step.Tool,
		"ok":     res.OK,
	}
	if res.Err != nil {
		details["error_code"] = string(res.Err.Code)
	}
	if _, err := o.ledger.Append(ctx, in.Context.ActorID, "action.executed", details); err != nil {
		o.logger.Error("audit append failed after execution", "action", step.Action, "error", err)
	}

	if !res.OK {
		sess.Stage = session.StageNew
		return finalOut(false, userMessage(res.Err))
	}

	if slots := stringList(res.Data["slots"]); len(slots) > 0 {
		sess.Stage = session.StageAwaitingSlotChoice
		sess.SlotOptions = slots
		prompt := fmt.Sprintf("Here's what's open: %s. Reply with the number of the slot you want.",
			numberedList(slots))
		sess.OpenQuestion = prompt
		return askOut(prompt, nil)
	}
	if dep, _ := res.Data["depositRequired"].(bool); dep {
		sess.Stage = session.StageAwaitingDeposit
		prompt := "A deposit is required to hold this booking. Reply YES to pay it now or NO to skip."
		if amt, ok := res.Data["depositAmount"].(float64); ok {
			prompt = fmt.Sprintf("A deposit of $%.2f is required to hold this booking. Reply YES to pay it now or NO to skip.", amt)
		}
		sess.OpenQuestion = prompt
		return askOut(prompt, nil)
	}

	sess.Stage = session.StageCompleted
	sess.OpenQuestion = ""
	sess.MissingFields = nil
	msg := "Done."
	if m, ok := res.Data["message"].(string); ok && m != "" {
		msg = m
	}
	return finalOut(true, msg)
}

// handleSlotChoice matches the reply against the offered slots, by number or
// by literal slot id, then drives the booking itself through the normal
// dispatch pipeline.
func (o *Orchestrator) handleSlotChoice(ctx context.Context, sess *session.Session, in TurnInput, text string, now time.Time) TurnOutput {
	choice := ""
	if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil && n >= 1 && n <= len(sess.SlotOptions) {
		choice = sess.SlotOptions[n-1]
	} else {
		lowered := strings.ToLower(text)
		for _, slot := range sess.SlotOptions {
			if strings.Contains(lowered, strings.ToLower(slot)) {
				choice = slot
				break
			}
		}
	}
	if choice == "" {
		// The reply may be a new request rather than a slot answer.
		if out, ok := o.divert(ctx, sess, in, text, now); ok {
			return out
		}
		return askOut("I didn't catch which slot you want. "+sess.OpenQuestion, nil)
	}

	if err := sess.Entities.Set("slotId", choice); err != nil {
		return finalOut(false, "Something went wrong recording that slot choice.")
	}
	sess.SlotOptions = nil
	step := flow.ExecuteStep{
		Action:      "booking.createBooking",
		Tool:        "booking.createBooking",
		Sensitivity: flow.SensitivityHigh,
		Input:       sess.Entities.Clone(),
	}
	return o.dispatch(ctx, sess, in, step, now)
}

// handleDeposit resolves the yes/no deposit question with a payments action
// that goes through the full gate and confirmation pipeline.
func (o *Orchestrator) handleDeposit(ctx context.Context, sess *session.Session, in TurnInput, command string, now time.Time) TurnOutput {
	switch command {
	case "YES", "Y", "PAY":
		step := flow.ExecuteStep{
			Action:      "payments.collectDeposit",
			Tool:        "payments.collectDeposit",
			Sensitivity: flow.SensitivityHigh,
			Input:       sess.Entities.Clone(),
		}
		return o.dispatch(ctx, sess, in, step, now)
	case "NO", "N", "SKIP":
		sess.Stage = session.StageCompleted
		return finalOut(true, "Okay, I won't collect a deposit now. The booking stays pencilled in until it's paid.")
	default:
		if out, ok := o.divert(ctx, sess, in, strings.TrimSpace(in.Text), now); ok {
			return out
		}
		return askOut(sess.OpenQuestion, nil)
	}
}

// userMessage renders a typed tool failure as a short human message plus its
// machine-readable code. Internal detail never reaches the caller.
func userMessage(f *fault.Fault) string {
	if f == nil {
		return "That didn't work. (internal)"
	}
	switch f.Code {
	case fault.CodeNotFound:
		return fmt.Sprintf("%s (%s)", f.Message, f.Code)
	case fault.CodeStateConflict:
		return fmt.Sprintf("%s (%s)", f.Message, f.Code)
	case fault.CodeValidation:
		return fmt.Sprintf("I need more detail: %s (%s)", f.Message, f.Code)
	default:
		return fmt.Sprintf("That didn't work. (%s)", f.Code)
	}
}

func categoryOf(tool string) string {
	if i := strings.Index(tool, "."); i > 0 {
		return tool[:i]
	}
	return tool
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func numberedList(items []string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%d) %s", i+1, item)
	}
	return strings.Join(parts, ", ")
}
