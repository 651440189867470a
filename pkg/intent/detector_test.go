package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTable = Table{
	{Spine: "payments", Intent: "refund", Match: "refund", Base: 0.6},
	{Spine: "payments", Intent: "createInvoice", Match: "create invoice", Base: 0.6},
	{Spine: "payments", Intent: "refund", Match: "money back", Base: 0.4},
	{Spine: "booking", Intent: "createBooking", Match: "book", Base: 0.5},
	{Spine: "booking", Intent: "createBooking", Match: "book an appointment", Base: 0.6},
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "refund inv_123 please", Normalize("  Refund, INV_123!!  please?"))
	assert.Equal(t, "create invoice for alex for $50", Normalize("Create invoice for Alex for $50."))
	assert.Equal(t, "", Normalize("!!!"))
}

func TestDetect_ConfidenceFormula(t *testing.T) {
	got := Detect("refund please", testTable)
	require.Len(t, got, 1)
	// min(0.2, 6/100) + 0.6
	assert.InDelta(t, 0.66, got[0].Confidence, 1e-9)
	assert.Equal(t, "refund", got[0].MatchedPattern)
}

func TestDetect_LengthBonusCapped(t *testing.T) {
	long := Table{{Spine: "s", Intent: "i", Match: "a very long pattern exceeding twenty characters", Base: 0.5}}
	got := Detect("well a very long pattern exceeding twenty characters indeed", long)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)
}

func TestDetect_ConfidenceClamped(t *testing.T) {
	hot := Table{{Spine: "s", Intent: "i", Match: "do the thing", Base: 0.95}}
	got := Detect("do the thing", hot)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Confidence)
}

func TestDetect_DedupesKeepingHighest(t *testing.T) {
	got := Detect("refund my money back", testTable)
	require.Len(t, got, 1)
	assert.Equal(t, "refund", got[0].Name)
	assert.Equal(t, "refund", got[0].MatchedPattern, "higher-confidence duplicate wins")
}

func TestDetect_RankedDescending(t *testing.T) {
	got := Detect("book an appointment and refund me", testTable)
	require.Len(t, got, 2)
	assert.GreaterOrEqual(t, got[0].Confidence, got[1].Confidence)
	assert.Equal(t, "createBooking", got[0].Name)
}

func TestDetect_CapAtFive(t *testing.T) {
	var table Table
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		table = append(table, Pattern{Spine: "s", Intent: name, Match: "go", Base: 0.5})
	}
	got := Detect("go", table)
	assert.Len(t, got, 5)
}

func TestDetect_NoMatchIsEmpty(t *testing.T) {
	assert.Empty(t, Detect("completely unrelated text", testTable))
	assert.Empty(t, Detect("", testTable))
}
