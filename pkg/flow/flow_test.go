package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityBag_SetRejectsUnknownField(t *testing.T) {
	bag := EntityBag{}
	err := bag.Set("apiKey", "sk-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in allowlist")
}

func TestEntityBag_SetRejectsUnsupportedType(t *testing.T) {
	bag := EntityBag{}
	err := bag.Set("notes", []string{"a"})
	require.Error(t, err)
}

func TestEntityBag_MissingSemantics(t *testing.T) {
	bag := EntityBag{}
	require.NoError(t, bag.Set("clientQuery", "alex"))
	require.NoError(t, bag.Set("notes", ""))

	assert.True(t, bag.Has("clientQuery"))
	assert.False(t, bag.Has("notes"), "empty string counts as missing")
	assert.False(t, bag.Has("invoiceId"), "absent key counts as missing")
}

func TestEntityBag_MapFormatsTime(t *testing.T) {
	bag := EntityBag{}
	when := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	require.NoError(t, bag.Set("date", when))
	m := bag.Map()
	assert.Equal(t, "2026-03-14T15:00:00Z", m["date"])
}

func TestStepConstructors(t *testing.T) {
	ask := Ask("Which invoice?", []string{"invoiceId"})
	assert.Equal(t, KindAsk, ask.Kind)
	assert.Equal(t, []string{"invoiceId"}, ask.Ask.MissingFields)

	exec := NewExecute("payments.refund", "payments.refund", SensitivityHigh, EntityBag{})
	assert.Equal(t, KindExecute, exec.Kind)
	assert.Contains(t, exec.Summary(), "high")

	resp := Respond("done")
	assert.Equal(t, KindRespond, resp.Kind)
}

func TestMissingList(t *testing.T) {
	assert.Equal(t, "", MissingList(nil))
	assert.Equal(t, "date", MissingList([]string{"date"}))
	assert.Equal(t, "date, time and service", MissingList([]string{"date", "time", "service"}))
}
