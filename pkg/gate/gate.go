// Package gate implements the non-bypassable policy check separating
// suggestion from execution. Every execution request passes Evaluate before
// dispatch; every evaluation, allowed or denied, produces exactly one audit
// ledger event, and an unavailable ledger fails the gate closed.
package gate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/solari-labs/concierge/pkg/ledger"
)

// Source identifies who authored an execution request. Generative output is
// never a valid source for execution; it may only ever produce a
// llm.ProposedAction that re-enters as SourceUser after human confirmation.
type Source string

const (
	SourceLLM    Source = "llm"
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

// ActionRequest is one execution request presented to the gate.
type ActionRequest struct {
	Type                 string         `json:"type"`
	Target               string         `json:"target"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	Source               Source         `json:"source"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
}

// Decision is the gate's verdict.
type Decision struct {
	Allowed                   bool   `json:"allowed"`
	Reason                    string `json:"reason"`
	RequiresHumanConfirmation bool   `json:"requires_human_confirmation"`
	SuggestedNextStep         string `json:"suggested_next_step,omitempty"`
}

// Verb classes, matched as case-insensitive substrings of the action type.
var (
	dangerousVerbs = []string{
		"delete", "refund", "payout", "invoice", "payment", "cancel",
		"modify", "update", "create", "schedule", "send", "email", "sms",
		"notify", "export", "import",
	}
	financialVerbs = []string{
		"charge", "refund", "payout", "transfer", "invoice", "payment",
		"billing", "credit", "debit",
	}
	securityVerbs = []string{
		"permission", "role", "grant", "revoke", "password", "credential",
		"access", "admin.user",
	}
	lifecycleVerbs = []string{
		"export", "import", "backup", "restore", "migrate", "delete_all",
		"truncate", "drop",
	}
)

// CanExecute evaluates the ordered rule list, first match wins:
//  1. llm source: always denied
//  2. dangerous verb: denied, human confirmation required
//  3. financial verb: unconditionally denied for any non-system source
//  4. security/permission verb: denied, manual administrator path
//  5. data-lifecycle verb: denied pending confirmation
//  6. otherwise: allowed (safe read-only operation)
func CanExecute(req ActionRequest) Decision {
	actionType := strings.ToLower(req.Type)

	if req.Source == SourceLLM {
		return Decision{
			Allowed:           false,
			Reason:            "llm output is suggestion-only and can never execute directly",
			SuggestedNextStep: "surface a proposed action for explicit human confirmation",
		}
	}

	if matchesAny(actionType, dangerousVerbs) {
		return Decision{
			Allowed:                   false,
			Reason:                    "action type matches a dangerous verb class",
			RequiresHumanConfirmation: true,
			SuggestedNextStep:         "confirm the pending action with CONFIRM",
		}
	}

	if matchesAny(actionType, financialVerbs) && req.Source != SourceSystem {
		return Decision{
			Allowed:           false,
			Reason:            "financial actions are only ever human-initiated through the confirmation workflow",
			SuggestedNextStep: "start the confirmation workflow for this financial action",
		}
	}

	if matchesAny(actionType, securityVerbs) {
		return Decision{
			Allowed:           false,
			Reason:            "security and permission changes require a manual administrator path",
			SuggestedNextStep: "escalate to an administrator",
		}
	}

	if matchesAny(actionType, lifecycleVerbs) {
		return Decision{
			Allowed:                   false,
			Reason:                    "data lifecycle actions are denied pending confirmation",
			RequiresHumanConfirmation: true,
			SuggestedNextStep:         "confirm the pending action with CONFIRM",
		}
	}

	return Decision{Allowed: true, Reason: "safe read-only operation"}
}

func matchesAny(actionType string, verbs []string) bool {
	for _, v := range verbs {
		if strings.Contains(actionType, v) {
			return true
		}
	}
	return false
}

// Gate wires the pure policy to the audit ledger and optional CEL deny
// rules.
type Gate struct {
	ledger *ledger.Ledger
	rules  *celRules
	logger *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate) error

// WithDenyRules compiles additional CEL deny expressions evaluated before
// the default allow. Expressions see type, target, source and params; a true
// result denies.
func WithDenyRules(exprs []string) Option {
	return func(g *Gate) error {
		rules, err := compileDenyRules(exprs)
		if err != nil {
			return err
		}
		g.rules = rules
		return nil
	}
}

// WithLogger overrides the package-default logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) error {
		g.logger = l
		return nil
	}
}

// New creates a Gate appending every decision to led.
func New(led *ledger.Ledger, opts ...Option) (*Gate, error) {
	g := &Gate{ledger: led, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Evaluate runs the ordered rules, the independent safety checklist, and any
// configured CEL deny rules, strictest outcome winning, then appends exactly
// one audit event. When the ledger is unavailable the decision is a denial
// and the error is returned: nothing executes unaudited.
func (g *Gate) Evaluate(ctx context.Context, actor string, req ActionRequest) (Decision, error) {
	decision := CanExecute(req)

	violations := Checklist(req)
	for _, v := range violations {
		if v.Critical {
			decision = Decision{
				Allowed:           false,
				Reason:            "safety checklist critical failure: " + v.Message,
				SuggestedNextStep: "remove the offending content and retry",
			}
			break
		}
	}

	if decision.Allowed && g.rules != nil {
		if hit, expr := g.rules.deny(req); hit {
			decision = Decision{
				Allowed:           false,
				Reason:            "denied by policy rule",
				SuggestedNextStep: "contact an operator about rule: " + expr,
			}
		}
	}

	details := map[string]any{
		"type":                  req.Type,
		"target":                req.Target,
		"source":                string(req.Source),
		"allowed":               decision.Allowed,
		"reason":                decision.Reason,
		"requires_confirmation": decision.RequiresHumanConfirmation,
		"checklist_violations":  len(violations),
	}
	if _, err := g.ledger.Append(ctx, actor, "gate.decision", details); err != nil {
		g.logger.Error("gate audit append failed, failing closed", "error", err)
		return Decision{
			Allowed: false,
			Reason:  "audit ledger unavailable, execution denied",
		}, err
	}

	if !decision.Allowed {
		g.logger.Warn("gate denied action",
			"actor", actor, "type", req.Type, "source", req.Source, "reason", decision.Reason)
	}
	return decision, nil
}
