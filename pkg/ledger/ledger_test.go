package ledger

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solari-labs/concierge/pkg/fault"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func TestAppend_ChainsFromGenesis(t *testing.T) {
	l := New(WithClock(fixedClock()))
	ctx := context.Background()

	e1, err := l.Append(ctx, "user:alice", "gate.decision", map[string]any{"allowed": true})
	require.NoError(t, err)
	assert.Equal(t, Genesis, e1.PrevHash)
	assert.NotEmpty(t, e1.Hash)

	e2, err := l.Append(ctx, "user:bob", "killswitch.activate", nil)
	require.NoError(t, err)
	assert.Equal(t, e1.Hash, e2.PrevHash)
	assert.Equal(t, e2.Hash, l.TailHash())

	require.NoError(t, l.Verify())
}

func TestVerify_DetectsContentTampering(t *testing.T) {
	l := New(WithClock(fixedClock()))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, "user:alice", "gate.decision", map[string]any{"n": i})
		require.NoError(t, err)
	}

	l.events[1].Actor = "user:mallory"
	err := l.Verify()
	require.Error(t, err)
	assert.Equal(t, fault.CodeTamperDetected, fault.CodeOf(err))
}

func TestVerify_DetectsLinkTampering(t *testing.T) {
	l := New(WithClock(fixedClock()))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, "user:alice", "gate.decision", nil)
		require.NoError(t, err)
	}

	l.events[2].PrevHash = "deadbeef"
	err := l.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain broken at index 2")
}

// Mutating any field of any stored event breaks at least one downstream hash.
func TestVerify_AnyFieldMutationBreaksChain(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("mutation is always detected", prop.ForAll(
		func(idx int, field int, garbage string) bool {
			l := New(WithClock(fixedClock()))
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				if _, err := l.Append(ctx, "user:alice", "gate.decision", map[string]any{"n": i}); err != nil {
					return false
				}
			}
			e := &l.events[idx%5]
			switch field % 4 {
			case 0:
				e.Actor = e.Actor + garbage + "x"
			case 1:
				e.Action = e.Action + garbage + "x"
			case 2:
				e.Details = map[string]any{"mutated": garbage}
			case 3:
				e.ID = e.ID + "x"
			}
			return l.Verify() != nil
		},
		gen.IntRange(0, 4),
		gen.IntRange(0, 3),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestAppend_ConcurrentAppendsKeepChainValid(t *testing.T) {
	l := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := l.Append(ctx, "user:alice", "gate.decision", nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, l.Len())
	require.NoError(t, l.Verify())
}

type failingSink struct{ err error }

func (s failingSink) Write(context.Context, Event) error { return s.err }

func TestAppend_SinkFailureDoesNotAdvanceChain(t *testing.T) {
	boom := errors.New("disk full")
	l := New(WithSink(failingSink{err: boom}))

	_, err := l.Append(context.Background(), "user:alice", "gate.decision", nil)
	require.Error(t, err)
	assert.Equal(t, fault.CodeUnavailable, fault.CodeOf(err))
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, Genesis, l.TailHash())
}

func TestJSONLSink_RoundTripVerifies(t *testing.T) {
	var buf bytes.Buffer
	l := New(WithClock(fixedClock()), WithSink(NewJSONLSink(&buf)))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, "user:alice", "gate.decision", map[string]any{"n": float64(i)})
		require.NoError(t, err)
	}

	events, err := ReadJSONL(&buf)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.NoError(t, VerifyChain(events))
}

func TestEvents_LimitReturnsMostRecent(t *testing.T) {
	l := New(WithClock(fixedClock()))
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, "user:alice", "gate.decision", map[string]any{"n": i})
		require.NoError(t, err)
	}
	got := l.Events(2)
	require.Len(t, got, 2)
	assert.Equal(t, l.TailHash(), got[1].Hash)
}
