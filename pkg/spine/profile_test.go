package spine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solari-labs/concierge/pkg/flow"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProfile_MissingPathIsNil(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLoadProfile_BadYAML(t *testing.T) {
	path := writeProfile(t, "spines: [not: valid: yaml")
	_, err := LoadProfile(path)
	assert.Error(t, err)
}

func TestProfile_ApplyOverlaysPatternsAndActions(t *testing.T) {
	path := writeProfile(t, `
spines:
  - name: booking
    patterns:
      - intent: createBooking
        match: squeeze me in
        base: 0.7
    required:
      createBooking: [service, date]
    actions:
      walkIn:
        tool: booking.walkIn
        action: booking.walkIn
        sensitivity: medium
deny_rules:
  - 'type == "booking.walkIn" && source != "system"'
`)
	p, err := LoadProfile(path)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Len(t, p.DenyRules, 1)

	defs := p.Apply(Defaults())
	var booking Def
	for _, d := range defs {
		if d.Name == "booking" {
			booking = d
		}
	}
	require.NotEmpty(t, booking.Name)

	sp := New(booking)
	intents := sp.DetectIntent("can you squeeze me in tomorrow")
	require.NotEmpty(t, intents)
	assert.Equal(t, "createBooking", intents[0].Name)

	assert.Equal(t, []string{"service", "date"}, booking.Required["createBooking"])
	assert.Equal(t, flow.SensitivityMedium, booking.Actions["walkIn"].Sensitivity)
}

func TestProfile_NilApplyIsIdentity(t *testing.T) {
	var p *Profile
	defs := Defaults()
	assert.Equal(t, len(defs), len(p.Apply(defs)))
}
