// Package killswitch provides per-category circuit breakers consulted before
// the policy gate. A switch is an operator control, independent of policy:
// when a category's switch is on, dispatch short-circuits to a "temporarily
// disabled" response without consulting the gate at all. Every write to the
// registry is itself audited.
package killswitch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solari-labs/concierge/pkg/fault"
	"github.com/solari-labs/concierge/pkg/ledger"
)

// Impact grades a switch's blast radius. Critical transitions raise an
// immediate out-of-band alert.
type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

// Switch is one circuit breaker.
type Switch struct {
	ID            string     `json:"id"`
	Category      string     `json:"category"`
	Enabled       bool       `json:"enabled"`
	ActivatedBy   string     `json:"activated_by,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	ActivatedAt   time.Time  `json:"activated_at,omitempty"`
	AutoDisableAt *time.Time `json:"auto_disable_at,omitempty"`
	Impact        Impact     `json:"impact"`
}

// Store is the external flag state, read on every dispatch and written on
// admin action. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, id string) (*Switch, error)
	Put(ctx context.Context, sw *Switch) error
	List(ctx context.Context) ([]*Switch, error)
}

// Alerter receives the out-of-band notification for critical-impact
// transitions.
type Alerter interface {
	SwitchChanged(ctx context.Context, sw Switch, activated bool)
}

// Registry coordinates flag reads/writes, auditing and alerting.
type Registry struct {
	store   Store
	ledger  *ledger.Ledger
	alerter Alerter
	clock   func() time.Time
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithAlerter attaches the critical-impact alert hook.
func WithAlerter(a Alerter) Option {
	return func(r *Registry) { r.alerter = a }
}

// WithLogger overrides the package-default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates a Registry over the given flag store, auditing every write to
// led.
func New(store Store, led *ledger.Ledger, opts ...Option) *Registry {
	r := &Registry{store: store, ledger: led, clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsEnabled reports whether any switch covering the category is active. A
// switch past its auto-disable time reads as inactive and is flipped off and
// audited on this read. Store errors read as disabled-switch-absent: the
// breaker never blocks on its own infrastructure, the gate still runs.
func (r *Registry) IsEnabled(ctx context.Context, category string) bool {
	switches, err := r.store.List(ctx)
	if err != nil {
		r.logger.Error("kill switch store unavailable, treating category as unswitched",
			"category", category, "error", err)
		return false
	}
	now := r.clock()
	for _, sw := range switches {
		if sw.Category != category || !sw.Enabled {
			continue
		}
		if sw.AutoDisableAt != nil && now.After(*sw.AutoDisableAt) {
			r.autoDisable(ctx, sw)
			continue
		}
		return true
	}
	return false
}

// Activate turns a switch on. autoDisableHours <= 0 means no auto-disable.
func (r *Registry) Activate(ctx context.Context, id, category, actor, reason string, impact Impact, autoDisableHours int) error {
	now := r.clock()
	sw := &Switch{
		ID:          id,
		Category:    category,
		Enabled:     true,
		ActivatedBy: actor,
		Reason:      reason,
		ActivatedAt: now,
		Impact:      impact,
	}
	if autoDisableHours > 0 {
		at := now.Add(time.Duration(autoDisableHours) * time.Hour)
		sw.AutoDisableAt = &at
	}
	if err := r.store.Put(ctx, sw); err != nil {
		return fault.Wrap(fault.CodeUnavailable, "kill switch store write failed", err)
	}
	if _, err := r.ledger.Append(ctx, actor, "killswitch.activate", map[string]any{
		"id": id, "category": category, "reason": reason, "impact": string(impact),
	}); err != nil {
		return fmt.Errorf("kill switch activation audit: %w", err)
	}
	if impact == ImpactCritical && r.alerter != nil {
		r.alerter.SwitchChanged(ctx, *sw, true)
	}
	r.logger.Warn("kill switch activated", "id", id, "category", category, "actor", actor, "impact", impact)
	return nil
}

// Deactivate turns a switch off.
func (r *Registry) Deactivate(ctx context.Context, id, actor, reason string) error {
	sw, err := r.store.Get(ctx, id)
	if err != nil {
		return fault.Wrap(fault.CodeUnavailable, "kill switch store read failed", err)
	}
	if sw == nil {
		return fault.New(fault.CodeNotFound, "kill switch not found").WithDetail("id", id)
	}
	sw.Enabled = false
	if err := r.store.Put(ctx, sw); err != nil {
		return fault.Wrap(fault.CodeUnavailable, "kill switch store write failed", err)
	}
	if _, err := r.ledger.Append(ctx, actor, "killswitch.deactivate", map[string]any{
		"id": id, "category": sw.Category, "reason": reason,
	}); err != nil {
		return fmt.Errorf("kill switch deactivation audit: %w", err)
	}
	if sw.Impact == ImpactCritical && r.alerter != nil {
		r.alerter.SwitchChanged(ctx, *sw, false)
	}
	r.logger.Info("kill switch deactivated", "id", id, "actor", actor)
	return nil
}

// List returns all known switches.
func (r *Registry) List(ctx context.Context) ([]*Switch, error) {
	return r.store.List(ctx)
}

func (r *Registry) autoDisable(ctx context.Context, sw *Switch) {
	sw.Enabled = false
	if err := r.store.Put(ctx, sw); err != nil {
		r.logger.Error("kill switch auto-disable write failed", "id", sw.ID, "error", err)
		return
	}
	if _, err := r.ledger.Append(ctx, "system", "killswitch.auto_disable", map[string]any{
		"id": sw.ID, "category": sw.Category,
	}); err != nil {
		r.logger.Error("kill switch auto-disable audit failed", "id", sw.ID, "error", err)
	}
}
