// Package orchestrator runs the per-session turn state machine. It is the
// single writer of session state and the only component that moves an
// execute step through the kill-switch check, the policy gate, the
// confirmation workflow and finally the tool registry.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solari-labs/concierge/pkg/confirm"
	"github.com/solari-labs/concierge/pkg/flow"
	"github.com/solari-labs/concierge/pkg/gate"
	"github.com/solari-labs/concierge/pkg/intent"
	"github.com/solari-labs/concierge/pkg/killswitch"
	"github.com/solari-labs/concierge/pkg/ledger"
	"github.com/solari-labs/concierge/pkg/registry"
	"github.com/solari-labs/concierge/pkg/session"
	"github.com/solari-labs/concierge/pkg/spine"
)

// verticalConfirmThreshold is the confidence below which the orchestrator
// asks the human to confirm the detected domain before proceeding.
const verticalConfirmThreshold = 0.6

// Context carries the caller identity for one turn.
type Context struct {
	ActorID  string
	Role     string
	TenantID string
	NowRef   time.Time
	Channel  string
}

// TurnInput is one inbound message.
type TurnInput struct {
	Text    string
	Context Context
}

// FinalResult is set when the turn reached a terminal outcome.
type FinalResult struct {
	OK      bool
	Message string
}

// TurnOutput is the orchestrator's answer for one turn.
type TurnOutput struct {
	Flow  []flow.Step
	Final *FinalResult
}

// Deps are the injected collaborators. All fields are required.
type Deps struct {
	Spines   []spine.Spine
	Gate     *gate.Gate
	Tools    *registry.Registry
	Switches *killswitch.Registry
	Vault    *confirm.Vault
	Sessions *session.Store
	Ledger   *ledger.Ledger
}

// Orchestrator composes the pipeline. Safe for concurrent use; turns on the
// same session key serialize inside the session store.
type Orchestrator struct {
	spines   map[string]spine.Spine
	ordered  []spine.Spine
	gate     *gate.Gate
	tools    *registry.Registry
	switches *killswitch.Registry
	vault    *confirm.Vault
	sessions *session.Store
	ledger   *ledger.Ledger
	limiters *actorLimiters
	tracer   trace.Tracer
	logger   *slog.Logger
	clock    func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger overrides the package-default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock injects a deterministic clock.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithRateLimit sets the per-actor token bucket. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *Orchestrator) { o.limiters = newActorLimiters(rps, burst) }
}

// New wires an orchestrator over its collaborators.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Gate == nil || deps.Tools == nil || deps.Switches == nil ||
		deps.Vault == nil || deps.Sessions == nil || deps.Ledger == nil {
		return nil, fmt.Errorf("orchestrator: missing dependency")
	}
	if len(deps.Spines) == 0 {
		return nil, fmt.Errorf("orchestrator: no spines configured")
	}
	o := &Orchestrator{
		spines:   make(map[string]spine.Spine, len(deps.Spines)),
		ordered:  deps.Spines,
		gate:     deps.Gate,
		tools:    deps.Tools,
		switches: deps.Switches,
		vault:    deps.Vault,
		sessions: deps.Sessions,
		ledger:   deps.Ledger,
		limiters: newActorLimiters(0, 0),
		tracer:   otel.Tracer("concierge/orchestrator"),
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, sp := range deps.Spines {
		o.spines[sp.Name()] = sp
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Turn processes one message for the session key. Turns on the same key are
// serialized end-to-end, including all ledger writes.
func (o *Orchestrator) Turn(ctx context.Context, sessionKey string, in TurnInput) (TurnOutput, error) {
	ctx, span := o.tracer.Start(ctx, "concierge.turn", trace.WithAttributes(
		attribute.String("session.key", sessionKey),
		attribute.String("actor.id", in.Context.ActorID),
		attribute.String("channel", in.Context.Channel),
	))
	defer span.End()

	if !o.limiters.allow(in.Context.ActorID) {
		return respondOut("You're sending messages faster than I can safely process them. Give it a moment and try again."), nil
	}

	sess, release := o.sessions.Acquire(sessionKey)
	defer release()

	now := in.Context.NowRef
	if now.IsZero() {
		now = o.clock()
	}
	text := strings.TrimSpace(in.Text)
	command := strings.ToUpper(text)

	// RESET wipes the session from any state. Routine logging only, no
	// ledger entry.
	if command == "RESET" {
		if sess.Pending != nil {
			o.vault.Cancel(sess.ID, sess.Pending.TokenID)
		}
		sess.Reset()
		o.logger.Info("session reset", "session", sess.ID)
		return finalOut(true, "Okay, starting over. What would you like to do?"), nil
	}

	if sess.Pending != nil {
		return o.handleConfirmation(ctx, sess, in, command, now), nil
	}

	switch sess.Stage {
	case session.StageAwaitingVerticalConfirm:
		return o.handleVerticalConfirm(ctx, sess, in, text, command, now), nil
	case session.StageAwaitingIntake:
		return o.handleIntake(ctx, sess, in, text, now), nil
	case session.StageAwaitingSlotChoice:
		return o.handleSlotChoice(ctx, sess, in, text, now), nil
	case session.StageAwaitingDeposit:
		return o.handleDeposit(ctx, sess, in, command, now), nil
	}
	return o.handleFresh(ctx, sess, in, text, now), nil
}

// handleFresh runs intent detection across every spine and either proceeds,
// asks the human to confirm a low-confidence domain, or explains what it can
// do when nothing matched.
func (o *Orchestrator) handleFresh(ctx context.Context, sess *session.Session, in TurnInput, text string, now time.Time) TurnOutput {
	candidates := o.detect(text)
	if len(candidates) == 0 {
		return respondOut("I can help with bookings, clients, payments, campaigns, reports and admin controls. What do you need?")
	}
	sess.LastIntents = candidates
	top := candidates[0]

	if top.Confidence < verticalConfirmThreshold {
		sess.Stage = session.StageAwaitingVerticalConfirm
		sess.DetectedSpine = top.Spine
		// Extract now so a YES can proceed without the original text.
		if sp, ok := o.spines[top.Spine]; ok {
			bag, _ := sp.ExtractEntities(top, text, now)
			mergeBag(sess.Entities, bag)
		}
		prompt := fmt.Sprintf("It sounds like you want %s (%s). Is that right? Reply YES or NO.", top.Name, top.Spine)
		sess.OpenQuestion = prompt
		return askOut(prompt, nil)
	}
	return o.advance(ctx, sess, in, top, text, now)
}

// handleVerticalConfirm resolves the yes/no domain check. Anything other
// than a recognized reply is treated as a fresh utterance.
func (o *Orchestrator) handleVerticalConfirm(ctx context.Context, sess *session.Session, in TurnInput, text, command string, now time.Time) TurnOutput {
	switch command {
	case "YES", "Y":
		if len(sess.LastIntents) == 0 {
			sess.Reset()
			return respondOut("I lost track of that request. What would you like to do?")
		}
		it := sess.LastIntents[0]
		sess.Stage = session.StageNew
		return o.advance(ctx, sess, in, it, "", now)
	case "NO", "N":
		sess.Reset()
		return respondOut("No problem. Tell me what you'd like to do instead.")
	default:
		return o.handleFresh(ctx, sess, in, text, now)
	}
}

// handleIntake tries the free text as the answer to the open intake question
// first; only when it fills nothing does the text fall back to fresh intent
// detection.
func (o *Orchestrator) handleIntake(ctx context.Context, sess *session.Session, in TurnInput, text string, now time.Time) TurnOutput {
	if len(sess.LastIntents) == 0 {
		sess.Reset()
		return o.handleFresh(ctx, sess, in, text, now)
	}
	it := sess.LastIntents[0]
	before := len(sess.MissingFields)

	out, progressed := o.tryAdvance(ctx, sess, in, it, text, now, before)
	if progressed {
		return out
	}

	// The answer filled nothing; see whether it is a new request instead.
	if fresh := o.detect(text); len(fresh) > 0 && fresh[0].Confidence >= verticalConfirmThreshold &&
		!(fresh[0].Spine == it.Spine && fresh[0].Name == it.Name) {
		sess.Entities = make(flow.EntityBag)
		sess.LastIntents = fresh
		return o.advance(ctx, sess, in, fresh[0], text, now)
	}
	return askOut(sess.OpenQuestion, sess.MissingFields)
}

// divert checks whether free text arriving in an answer-demanding stage is
// really a new request. A confident detection abandons the open question and
// re-enters the normal pipeline; the caller re-prompts otherwise.
func (o *Orchestrator) divert(ctx context.Context, sess *session.Session, in TurnInput, text string, now time.Time) (TurnOutput, bool) {
	fresh := o.detect(text)
	if len(fresh) == 0 || fresh[0].Confidence < verticalConfirmThreshold {
		return TurnOutput{}, false
	}
	sess.Reset()
	return o.advance(ctx, sess, in, fresh[0], text, now), true
}

// tryAdvance runs one advance and reports whether the turn made progress
// (fewer missing fields, or the flow moved past asking).
func (o *Orchestrator) tryAdvance(ctx context.Context, sess *session.Session, in TurnInput, it intent.Intent, text string, now time.Time, missingBefore int) (TurnOutput, bool) {
	out := o.advance(ctx, sess, in, it, text, now)
	if sess.Stage == session.StageAwaitingIntake && len(sess.MissingFields) >= missingBefore && missingBefore > 0 {
		return out, false
	}
	return out, true
}

// advance extracts entities for the intent, merges them with what the
// session already holds, and interprets the spine's flow step.
func (o *Orchestrator) advance(ctx context.Context, sess *session.Session, in TurnInput, it intent.Intent, text string, now time.Time) TurnOutput {
	sp, ok := o.spines[it.Spine]
	if !ok {
		return respondOut(fmt.Sprintf("I recognized %q but that domain is not available here.", it.Name))
	}
	bag, missing := sp.ExtractEntities(it, text, now)
	mergeBag(bag, sess.Entities)
	still := missing[:0]
	for _, f := range missing {
		if !bag.Has(f) {
			still = append(still, f)
		}
	}

	sess.DetectedSpine = it.Spine
	sess.Entities = bag
	sess.LastIntents = []intent.Intent{it}

	steps := sp.BuildFlow(it, bag, still)
	return o.interpret(ctx, sess, in, steps, now)
}

// interpret applies the spine's single flow step to the session.
func (o *Orchestrator) interpret(ctx context.Context, sess *session.Session, in TurnInput, steps []flow.Step, now time.Time) TurnOutput {
	if len(steps) == 0 {
		return respondOut("Nothing to do.")
	}
	step := steps[0]
	switch step.Kind {
	case flow.KindAsk:
		sess.Stage = session.StageAwaitingIntake
		sess.OpenQuestion = step.Ask.Prompt
		sess.MissingFields = step.Ask.MissingFields
		return TurnOutput{Flow: steps}
	case flow.KindRespond:
		sess.Stage = session.StageNew
		sess.OpenQuestion = ""
		sess.MissingFields = nil
		return TurnOutput{Flow: steps, Final: &FinalResult{OK: true, Message: step.Respond.Message}}
	case flow.KindExecute:
		return o.dispatch(ctx, sess, in, *step.Execute, now)
	}
	return respondOut("Nothing to do.")
}

// detect runs every spine's pattern table and returns the merged ranking.
func (o *Orchestrator) detect(text string) []intent.Intent {
	var merged []intent.Intent
	for _, sp := range o.ordered {
		merged = append(merged, sp.DetectIntent(text)...)
	}
	// Each spine returns its own ranked list; a final stable ordering across
	// spines keeps the strongest candidate first.
	for i := 1; i < len(merged); i++ {
		for j := i; j > 0 && merged[j].Confidence > merged[j-1].Confidence; j-- {
			merged[j], merged[j-1] = merged[j-1], merged[j]
		}
	}
	return merged
}

// mergeBag copies fields from src into dst without overwriting present ones.
func mergeBag(dst, src flow.EntityBag) {
	for k, v := range src {
		if !dst.Has(k) {
			dst[k] = v
		}
	}
}

func respondOut(msg string) TurnOutput {
	return TurnOutput{Flow: []flow.Step{flow.Respond(msg)}}
}

func finalOut(ok bool, msg string) TurnOutput {
	return TurnOutput{
		Flow:  []flow.Step{flow.Respond(msg)},
		Final: &FinalResult{OK: ok, Message: msg},
	}
}

func askOut(prompt string, missing []string) TurnOutput {
	return TurnOutput{Flow: []flow.Step{flow.Ask(prompt, missing)}}
}
