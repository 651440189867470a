package gate

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solari-labs/concierge/pkg/fault"
	"github.com/solari-labs/concierge/pkg/ledger"
)

func TestCanExecute_LLMSourceAlwaysDenied(t *testing.T) {
	d := CanExecute(ActionRequest{Type: "payments.refund", Source: SourceLLM})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "suggestion-only")

	// Even a harmless read is denied when llm-sourced.
	d = CanExecute(ActionRequest{Type: "analytics.topClients", Source: SourceLLM})
	assert.False(t, d.Allowed)
}

func TestCanExecute_LLMDenied_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("every llm-sourced request is denied", prop.ForAll(
		func(actionType, target string, confirm bool) bool {
			d := CanExecute(ActionRequest{
				Type:                 actionType,
				Target:               target,
				Source:               SourceLLM,
				RequiresConfirmation: confirm,
			})
			return !d.Allowed
		},
		gen.AnyString(),
		gen.AlphaString(),
		gen.Bool(),
	))
	properties.TestingRun(t)
}

func TestCanExecute_DangerousVerbNeedsConfirmation(t *testing.T) {
	for _, actionType := range []string{"booking.cancelBooking", "crm.updateClient", "marketing.sendCampaign", "Booking.CREATE"} {
		d := CanExecute(ActionRequest{Type: actionType, Source: SourceUser})
		assert.False(t, d.Allowed, actionType)
		assert.True(t, d.RequiresHumanConfirmation, actionType)
	}
}

func TestCanExecute_FinancialDeniedForNonSystem(t *testing.T) {
	d := CanExecute(ActionRequest{Type: "charge_card", Source: SourceUser})
	assert.False(t, d.Allowed)
	assert.False(t, d.RequiresHumanConfirmation)
	assert.Contains(t, d.Reason, "human-initiated")

	// System source passes rule 3 and, with no other verb match, is allowed.
	d = CanExecute(ActionRequest{Type: "ledger.debit_reconcile", Source: SourceSystem})
	assert.True(t, d.Allowed)
}

func TestCanExecute_SecurityVerbEscalates(t *testing.T) {
	d := CanExecute(ActionRequest{Type: "grant_permission", Source: SourceUser})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.SuggestedNextStep, "administrator")
}

func TestCanExecute_LifecycleVerbPendsConfirmation(t *testing.T) {
	d := CanExecute(ActionRequest{Type: "backup_clients", Source: SourceUser})
	assert.False(t, d.Allowed)
	assert.True(t, d.RequiresHumanConfirmation)
}

func TestCanExecute_SafeReadAllowed(t *testing.T) {
	d := CanExecute(ActionRequest{Type: "analytics.revenueReport", Source: SourceUser})
	assert.True(t, d.Allowed)

	d = CanExecute(ActionRequest{Type: "crm.findClient", Source: SourceUser})
	assert.True(t, d.Allowed)
}

func TestChecklist(t *testing.T) {
	t.Run("llm source is critical", func(t *testing.T) {
		v := Checklist(ActionRequest{Type: "x", Source: SourceLLM})
		require.Len(t, v, 1)
		assert.True(t, v[0].Critical)
	})

	t.Run("always blocked type is critical", func(t *testing.T) {
		v := Checklist(ActionRequest{Type: "delete_all", Source: SourceUser, RequiresConfirmation: true})
		require.NotEmpty(t, v)
		assert.True(t, v[0].Critical)
	})

	t.Run("mutation without confirmation flag", func(t *testing.T) {
		v := Checklist(ActionRequest{Type: "booking.cancel", Source: SourceUser})
		require.Len(t, v, 1)
		assert.False(t, v[0].Critical)
		assert.Equal(t, "mutation-needs-confirmation", v[0].Rule)
	})

	t.Run("secret-shaped parameter is critical", func(t *testing.T) {
		v := Checklist(ActionRequest{
			Type:   "analytics.topClients",
			Source: SourceUser,
			Parameters: map[string]any{
				"stripeApiKey": "sk_live_123",
			},
		})
		require.Len(t, v, 1)
		assert.True(t, v[0].Critical)
	})

	t.Run("clean request has no findings", func(t *testing.T) {
		assert.Empty(t, Checklist(ActionRequest{
			Type: "analytics.topClients", Source: SourceUser,
			Parameters: map[string]any{"period": "this month"},
		}))
	})
}

func TestEvaluate_AuditsEveryDecision(t *testing.T) {
	led := ledger.New()
	g, err := New(led)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.Evaluate(ctx, "user:alice", ActionRequest{Type: "analytics.topClients", Source: SourceUser})
	require.NoError(t, err)
	_, err = g.Evaluate(ctx, "user:alice", ActionRequest{Type: "payments.refund", Source: SourceLLM})
	require.NoError(t, err)

	events := led.Events(0)
	require.Len(t, events, 2, "one audit event per evaluation, allowed or denied")
	assert.Equal(t, "gate.decision", events[0].Action)
	assert.Equal(t, true, events[0].Details["allowed"])
	assert.Equal(t, false, events[1].Details["allowed"])
	require.NoError(t, led.Verify())
}

func TestEvaluate_ChecklistCriticalOverridesAllow(t *testing.T) {
	led := ledger.New()
	g, err := New(led)
	require.NoError(t, err)

	d, err := g.Evaluate(context.Background(), "user:alice", ActionRequest{
		Type:       "analytics.topClients",
		Source:     SourceUser,
		Parameters: map[string]any{"apiKey": "sk"},
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "checklist")
}

func TestEvaluate_CELDenyRule(t *testing.T) {
	led := ledger.New()
	g, err := New(led, WithDenyRules([]string{`type == "crm.findClient" && target == "vip"`}))
	require.NoError(t, err)

	d, err := g.Evaluate(context.Background(), "user:alice", ActionRequest{
		Type: "crm.findClient", Target: "vip", Source: SourceUser,
	})
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = g.Evaluate(context.Background(), "user:alice", ActionRequest{
		Type: "crm.findClient", Target: "regular", Source: SourceUser,
	})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluate_BadCELRuleRejectedAtConstruction(t *testing.T) {
	_, err := New(ledger.New(), WithDenyRules([]string{`type ==`}))
	require.Error(t, err)
}

type failingSink struct{}

func (failingSink) Write(context.Context, ledger.Event) error {
	return assert.AnError
}

func TestEvaluate_AuditFailureFailsClosed(t *testing.T) {
	led := ledger.New(ledger.WithSink(failingSink{}))
	g, err := New(led)
	require.NoError(t, err)

	d, err := g.Evaluate(context.Background(), "user:alice", ActionRequest{
		Type: "analytics.topClients", Source: SourceUser,
	})
	require.Error(t, err)
	assert.False(t, d.Allowed, "an unauditable decision never allows execution")
	assert.Equal(t, fault.CodeUnavailable, fault.CodeOf(err))
}
