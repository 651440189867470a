package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solari-labs/concierge/pkg/fault"
)

func TestExecute_UnknownTool(t *testing.T) {
	r := New()
	res := r.Execute(context.Background(), "nope", Call{})
	require.NotNil(t, res.Err)
	assert.Equal(t, fault.CodeNotFound, res.Err.Code)
}

func TestExecute_Dispatch(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("echo", func(_ context.Context, call Call) Result {
		return Ok(map[string]any{"got": call.Input["msg"]})
	}, ""))

	res := r.Execute(context.Background(), "echo", Call{Input: map[string]any{"msg": "hi"}})
	require.True(t, res.OK)
	assert.Equal(t, "hi", res.Data["got"])
}

func TestExecute_SchemaRejectsBadInput(t *testing.T) {
	r := New()
	schema := `{
		"type": "object",
		"required": ["amount"],
		"properties": {"amount": {"type": "number", "minimum": 0}}
	}`
	called := false
	require.NoError(t, r.Register("charge", func(_ context.Context, _ Call) Result {
		called = true
		return Ok(nil)
	}, schema))

	res := r.Execute(context.Background(), "charge", Call{Input: map[string]any{"amount": "lots"}})
	require.NotNil(t, res.Err)
	assert.Equal(t, fault.CodeValidation, res.Err.Code)
	assert.False(t, called, "tool must not run on invalid input")

	res = r.Execute(context.Background(), "charge", Call{Input: map[string]any{"amount": 40}})
	assert.True(t, res.OK)
	assert.True(t, called)
}

func TestExecute_SchemaMissingRequired(t *testing.T) {
	r := New()
	schema := `{"type": "object", "required": ["id"]}`
	require.NoError(t, r.Register("lookup", func(_ context.Context, _ Call) Result {
		return Ok(nil)
	}, schema))

	res := r.Execute(context.Background(), "lookup", Call{})
	require.NotNil(t, res.Err)
	assert.Equal(t, fault.CodeValidation, res.Err.Code)
}

func TestRegister_BadSchema(t *testing.T) {
	r := New()
	err := r.Register("broken", func(_ context.Context, _ Call) Result { return Ok(nil) }, `{"type": 42}`)
	assert.Error(t, err)
}

func TestExecute_PanicRecovered(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("boom", func(_ context.Context, _ Call) Result {
		panic("kaboom")
	}, ""))

	res := r.Execute(context.Background(), "boom", Call{})
	require.NotNil(t, res.Err)
	assert.Equal(t, fault.CodeInternal, res.Err.Code)
}

func TestFailHelper(t *testing.T) {
	res := Fail(fault.CodePolicyDenied, "no")
	assert.False(t, res.OK)
	assert.Equal(t, fault.CodePolicyDenied, res.Err.Code)
}
