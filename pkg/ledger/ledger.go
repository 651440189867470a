// Package ledger implements the append-only, hash-chained audit ledger.
// Every gate decision and kill-switch action lands here. Entries are
// immutable once appended; there is no update or delete operation. Each
// entry's hash covers the previous entry's hash, so mutating any stored
// field breaks verification downstream.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solari-labs/concierge/pkg/canonicalize"
	"github.com/solari-labs/concierge/pkg/fault"
)

// Genesis is the prev-hash marker of the first event. A distinct literal, not
// the empty string, so a blank field can never read as a chain start.
const Genesis = "GENESIS"

// Event is one audit record.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}

// Sink receives every appended event, e.g. a JSONL writer or SQLite store.
// A sink failure fails the append: callers treat the ledger as unavailable
// rather than executing unaudited.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Ledger is the in-process chain with an atomic last-hash cursor. The mutex
// makes Append a compare-and-append: the prev hash is read and the new tail
// committed under one critical section.
type Ledger struct {
	mu     sync.Mutex
	events []Event
	tail   string
	clock  func() time.Time
	sinks  []Sink
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithSink attaches a sink receiving every appended event.
func WithSink(s Sink) Option {
	return func(l *Ledger) { l.sinks = append(l.sinks, s) }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{tail: Genesis, clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records a new event, linking it to the current tail. The stored
// event (with ID, timestamp and hashes filled) is returned. When any sink
// write fails the chain does not advance and the error is surfaced.
func (l *Ledger) Append(ctx context.Context, actor, action string, details map[string]any) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Event{
		ID:        uuid.New().String(),
		Timestamp: l.clock().UTC(),
		Actor:     actor,
		Action:    action,
		Details:   details,
		PrevHash:  l.tail,
	}
	hash, err := eventHash(e)
	if err != nil {
		return Event{}, fault.Wrap(fault.CodeInternal, "audit event hash failed", err)
	}
	e.Hash = hash

	for _, sink := range l.sinks {
		if err := sink.Write(ctx, e); err != nil {
			return Event{}, fault.Wrap(fault.CodeUnavailable, "audit sink write failed", err)
		}
	}

	l.events = append(l.events, e)
	l.tail = hash
	return e, nil
}

// Verify recomputes every hash front-to-back. Any content mismatch, or any
// row whose prev hash disagrees with the prior row's hash, signals tampering.
func (l *Ledger) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return VerifyChain(l.events)
}

// VerifyChain checks an event sequence independently of a live ledger, e.g.
// rows read back from a sink.
func VerifyChain(events []Event) error {
	prev := Genesis
	for i, e := range events {
		if e.PrevHash != prev {
			return fault.New(fault.CodeTamperDetected,
				fmt.Sprintf("chain broken at index %d: prev hash mismatch", i))
		}
		computed, err := eventHash(e)
		if err != nil {
			return fault.Wrap(fault.CodeTamperDetected,
				fmt.Sprintf("hash recompute failed at index %d", i), err)
		}
		if computed != e.Hash {
			return fault.New(fault.CodeTamperDetected,
				fmt.Sprintf("integrity failure at index %d", i))
		}
		prev = e.Hash
	}
	return nil
}

// TailHash returns the current chain tail.
func (l *Ledger) TailHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tail
}

// Len returns the number of stored events.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Events returns up to limit most recent events, oldest first. limit <= 0
// returns everything.
func (l *Ledger) Events(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if limit > 0 && len(l.events) > limit {
		start = len(l.events) - limit
	}
	out := make([]Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// eventHash computes sha256 over the RFC 8785 canonical form of the event
// minus its own Hash field.
func eventHash(e Event) (string, error) {
	return canonicalize.CanonicalHash(map[string]any{
		"id":        e.ID,
		"timestamp": e.Timestamp.Format(time.RFC3339Nano),
		"actor":     e.Actor,
		"action":    e.Action,
		"details":   e.Details,
		"prev_hash": e.PrevHash,
	})
}
