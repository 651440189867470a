package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solari-labs/concierge/pkg/fault"
	"github.com/solari-labs/concierge/pkg/registry"
)

func flaggedIDs(b *demoBackend) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for id, c := range b.clients {
		if c.Flagged {
			out = append(out, id)
		}
	}
	return out
}

func TestFindClient_EmptyQueryMatchesNobody(t *testing.T) {
	b := newDemoBackend()
	assert.Nil(t, b.findClient(""))
}

func TestFlagClient_ResolvesByClientID(t *testing.T) {
	b := newDemoBackend()
	res := b.flagClient(context.Background(), registry.Call{
		Input: map[string]any{"clientId": "cl_dana", "reason": "chargebacks"},
	})
	require.True(t, res.OK)
	assert.ElementsMatch(t, []string{"cl_dana", "cl_rudy"}, flaggedIDs(b))
	assert.Equal(t, "chargebacks", b.clients["cl_dana"].Notes)
}

func TestFlagClient_NoIdentifierIsNotFound(t *testing.T) {
	b := newDemoBackend()
	res := b.flagClient(context.Background(), registry.Call{
		Input: map[string]any{"reason": "chargebacks"},
	})
	require.False(t, res.OK)
	assert.Equal(t, fault.CodeNotFound, res.Err.Code)
	assert.ElementsMatch(t, []string{"cl_rudy"}, flaggedIDs(b))
}

func TestUpdateClient_ResolvesByClientID(t *testing.T) {
	b := newDemoBackend()
	res := b.updateClient(context.Background(), registry.Call{
		Input: map[string]any{"clientId": "cl_alex", "email": "alex@new.example.com"},
	})
	require.True(t, res.OK)
	assert.Equal(t, "alex@new.example.com", b.clients["cl_alex"].Email)
	assert.Equal(t, "dana@example.com", b.clients["cl_dana"].Email)
}

func TestUpdateClient_UnknownClientIDIsNotFound(t *testing.T) {
	b := newDemoBackend()
	res := b.updateClient(context.Background(), registry.Call{
		Input: map[string]any{"clientId": "cl_nope", "email": "x@example.com"},
	})
	require.False(t, res.OK)
	assert.Equal(t, fault.CodeNotFound, res.Err.Code)
}
