package killswitch

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solari-labs/concierge/pkg/ledger"
)

type recordingAlerter struct {
	mu    sync.Mutex
	calls []Switch
}

func (a *recordingAlerter) SwitchChanged(_ context.Context, sw Switch, _ bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, sw)
}

func TestRegistry_ActivateIsAudited(t *testing.T) {
	led := ledger.New()
	r := New(NewMemoryStore(), led)
	ctx := context.Background()

	require.NoError(t, r.Activate(ctx, "pause-payments", "payments", "admin:dana", "processor outage", ImpactHigh, 0))
	assert.True(t, r.IsEnabled(ctx, "payments"))
	assert.False(t, r.IsEnabled(ctx, "booking"))

	events := led.Events(0)
	require.Len(t, events, 1)
	assert.Equal(t, "killswitch.activate", events[0].Action)
	assert.Equal(t, "admin:dana", events[0].Actor)

	require.NoError(t, r.Deactivate(ctx, "pause-payments", "admin:dana", "processor recovered"))
	assert.False(t, r.IsEnabled(ctx, "payments"))
	assert.Equal(t, 2, led.Len())
	require.NoError(t, led.Verify())
}

func TestRegistry_CriticalImpactAlerts(t *testing.T) {
	alerter := &recordingAlerter{}
	r := New(NewMemoryStore(), ledger.New(), WithAlerter(alerter))
	ctx := context.Background()

	require.NoError(t, r.Activate(ctx, "halt-everything", "payments", "admin:dana", "breach", ImpactCritical, 0))
	require.Len(t, alerter.calls, 1)
	assert.Equal(t, "halt-everything", alerter.calls[0].ID)

	// Non-critical transitions stay quiet.
	require.NoError(t, r.Activate(ctx, "pause-marketing", "marketing", "admin:dana", "typo in copy", ImpactLow, 0))
	assert.Len(t, alerter.calls, 1)
}

func TestRegistry_AutoDisable(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	led := ledger.New()
	r := New(NewMemoryStore(), led, WithClock(clock))
	ctx := context.Background()

	require.NoError(t, r.Activate(ctx, "pause-payments", "payments", "admin:dana", "outage", ImpactMedium, 2))
	assert.True(t, r.IsEnabled(ctx, "payments"))

	now = now.Add(3 * time.Hour)
	assert.False(t, r.IsEnabled(ctx, "payments"), "past auto-disable the switch reads off")

	events := led.Events(0)
	require.Len(t, events, 2)
	assert.Equal(t, "killswitch.auto_disable", events[1].Action)
	assert.Equal(t, "system", events[1].Actor)
}

func TestRegistry_DeactivateUnknownSwitch(t *testing.T) {
	r := New(NewMemoryStore(), ledger.New())
	err := r.Deactivate(context.Background(), "nope", "admin:dana", "")
	require.Error(t, err)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Put(ctx, &Switch{ID: "s", Category: "payments", Enabled: j%2 == 0})
				_, _ = store.Get(ctx, "s")
				_, _ = store.List(ctx)
			}
		}()
	}
	wg.Wait()
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &Switch{
		ID: "pause-payments", Category: "payments", Enabled: true,
		ActivatedBy: "admin:dana", AutoDisableAt: &at, Impact: ImpactHigh,
	}))

	sw, err := store.Get(ctx, "pause-payments")
	require.NoError(t, err)
	require.NotNil(t, sw)
	assert.True(t, sw.Enabled)
	require.NotNil(t, sw.AutoDisableAt)
	assert.True(t, at.Equal(*sw.AutoDisableAt))

	// Upsert flips state in place.
	sw.Enabled = false
	require.NoError(t, store.Put(ctx, sw))
	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Enabled)

	missing, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
