package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeExpired, CodeOf(New(CodeExpired, "token expired")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", New(CodeReplayed, "token already used"))
	assert.Equal(t, CodeReplayed, CodeOf(wrapped))
}

func TestWrapUnwraps(t *testing.T) {
	inner := errors.New("disk full")
	f := Wrap(CodeInternal, "ledger append failed", inner)
	assert.True(t, errors.Is(f, inner))
	assert.Contains(t, f.Error(), "disk full")
}

func TestWithDetailStaysInternal(t *testing.T) {
	f := New(CodeStateConflict, "invoice not refundable").WithDetail("invoiceId", "inv_123")
	assert.Equal(t, "inv_123", f.Details["invoiceId"])
	// The rendered message carries the code and short message only.
	assert.Equal(t, "state_conflict: invoice not refundable", f.Error())
}
