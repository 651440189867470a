package confirm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solari-labs/concierge/pkg/fault"
	"github.com/solari-labs/concierge/pkg/gate"
)

var secret = []byte("test-secret")

func pendingRefund() gate.ActionRequest {
	return gate.ActionRequest{
		Type:                 "payments.refund",
		Target:               "inv_1",
		Source:               gate.SourceUser,
		RequiresConfirmation: true,
	}
}

func TestIssueAndRedeem(t *testing.T) {
	v := NewVault(secret, 5*time.Minute)
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
	assert.NotEmpty(t, token.Signed)

	req, err := v.Redeem("sess-1", token.ID)
	require.NoError(t, err)
	assert.Equal(t, "payments.refund", req.Type)
}

func TestRedeem_SecondUseIsReplayed(t *testing.T) {
	v := NewVault(secret, 5*time.Minute)
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)

	_, err = v.Redeem("sess-1", token.ID)
	require.NoError(t, err)

	_, err = v.Redeem("sess-1", token.ID)
	require.Error(t, err)
	assert.Equal(t, fault.CodeReplayed, fault.CodeOf(err))
}

func TestRedeem_ExpiredIsDistinct(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	v := NewVault(secret, time.Minute, WithClock(func() time.Time { return now }))
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = v.Redeem("sess-1", token.ID)
	require.Error(t, err)
	assert.Equal(t, fault.CodeExpired, fault.CodeOf(err))
}

func TestRedeem_SessionMismatchIsNotFound(t *testing.T) {
	v := NewVault(secret, 5*time.Minute)
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)

	_, err = v.Redeem("sess-2", token.ID)
	require.Error(t, err)
	assert.Equal(t, fault.CodeNotFound, fault.CodeOf(err))
}

func TestRedeem_SingleUseUnderConcurrency(t *testing.T) {
	v := NewVault(secret, 5*time.Minute)
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)

	var successes, replays atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := v.Redeem("sess-1", token.ID)
			switch fault.CodeOf(err) {
			case "":
				successes.Add(1)
			case fault.CodeReplayed:
				replays.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load(), "exactly one redemption wins")
	assert.Equal(t, int32(15), replays.Load())
}

func TestRedeemSigned(t *testing.T) {
	v := NewVault(secret, 5*time.Minute)
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)

	req, err := v.RedeemSigned(token.Signed)
	require.NoError(t, err)
	assert.Equal(t, "payments.refund", req.Type)
}

func TestRedeemSigned_WrongSecretIsNotFound(t *testing.T) {
	v := NewVault(secret, 5*time.Minute)
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)

	other := NewVault([]byte("different"), 5*time.Minute)
	_, err = other.RedeemSigned(token.Signed)
	require.Error(t, err)
	assert.Equal(t, fault.CodeNotFound, fault.CodeOf(err), "validation failure reads as not-found")
}

func TestCancelDropsPending(t *testing.T) {
	v := NewVault(secret, 5*time.Minute)
	token, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)

	v.Cancel("sess-1", token.ID)
	_, err = v.Redeem("sess-1", token.ID)
	assert.Equal(t, fault.CodeNotFound, fault.CodeOf(err))
}

func TestSweepEvictsExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	v := NewVault(secret, time.Minute, WithClock(func() time.Time { return now }))
	_, err := v.Issue("sess-1", pendingRefund())
	require.NoError(t, err)
	_, err = v.Issue("sess-2", pendingRefund())
	require.NoError(t, err)

	assert.Equal(t, 0, v.Sweep())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, v.Sweep())
}
