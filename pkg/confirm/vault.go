// Package confirm implements single-use, time-boxed confirmation tokens.
// A token binds explicit human approval to exactly one pending sensitive
// action within one session. Redemption is an atomic check-and-invalidate:
// of two simultaneous attempts exactly one succeeds; the other, and any
// attempt past the window, fails closed with a distinct error so callers
// re-prompt correctly instead of re-executing.
package confirm

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/solari-labs/concierge/pkg/canonicalize"
	"github.com/solari-labs/concierge/pkg/fault"
	"github.com/solari-labs/concierge/pkg/gate"
)

// Token is the credential surfaced to the operator. ID is the opaque handle
// referenced on redemption; Signed is the HMAC-signed carrier for transports
// that pass the token out-of-band.
type Token struct {
	ID        string
	SessionID string
	ExpiresAt time.Time
	Signed    string
}

type pendingEntry struct {
	sessionID string
	request   gate.ActionRequest
	expiresAt time.Time
	redeemed  bool
}

// Vault issues and redeems tokens. All state is guarded by one mutex; the
// check-and-invalidate in Redeem happens inside the critical section.
type Vault struct {
	mu      sync.Mutex
	secret  []byte
	ttl     time.Duration
	clock   func() time.Time
	pending map[string]*pendingEntry
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock overrides the clock for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(v *Vault) { v.clock = clock }
}

// NewVault creates a vault signing carriers with secret. The TTL comes from
// configuration, never a hardcoded constant at use sites.
func NewVault(secret []byte, ttl time.Duration, opts ...Option) *Vault {
	v := &Vault{
		secret:  secret,
		ttl:     ttl,
		clock:   time.Now,
		pending: make(map[string]*pendingEntry),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type carrierClaims struct {
	jwt.RegisteredClaims
	ActionHash string `json:"act"`
}

// Issue creates a token bound to the pending request within the session.
func (v *Vault) Issue(sessionID string, req gate.ActionRequest) (Token, error) {
	now := v.clock()
	id := uuid.New().String()
	expires := now.Add(v.ttl)

	actionHash, err := canonicalize.CanonicalHash(req)
	if err != nil {
		return Token{}, fault.Wrap(fault.CodeInternal, "confirmation token binding failed", err)
	}

	claims := carrierClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    "concierge/confirm",
		},
		ActionHash: actionHash,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return Token{}, fault.Wrap(fault.CodeInternal, "confirmation token signing failed", err)
	}

	v.mu.Lock()
	v.pending[id] = &pendingEntry{
		sessionID: sessionID,
		request:   req,
		expiresAt: expires,
	}
	v.mu.Unlock()

	return Token{ID: id, SessionID: sessionID, ExpiresAt: expires, Signed: signed}, nil
}

// Redeem consumes the token and returns the bound request. A consumed token
// yields CodeReplayed, a token past its window CodeExpired, and an unknown or
// session-mismatched token CodeNotFound.
func (v *Vault) Redeem(sessionID, tokenID string) (gate.ActionRequest, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.pending[tokenID]
	if !ok || entry.sessionID != sessionID {
		return gate.ActionRequest{}, fault.New(fault.CodeNotFound, "no pending confirmation for this token")
	}
	if entry.redeemed {
		return gate.ActionRequest{}, fault.New(fault.CodeReplayed, "confirmation token already used")
	}
	if v.clock().After(entry.expiresAt) {
		delete(v.pending, tokenID)
		return gate.ActionRequest{}, fault.New(fault.CodeExpired, "confirmation token expired")
	}
	entry.redeemed = true
	return entry.request, nil
}

// RedeemSigned validates a signed carrier and redeems its token. Any
// validation failure is indistinguishable from not-found.
func (v *Vault) RedeemSigned(signed string) (gate.ActionRequest, error) {
	token, err := jwt.ParseWithClaims(signed, &carrierClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return gate.ActionRequest{}, fault.New(fault.CodeNotFound, "no pending confirmation for this token")
	}
	claims, ok := token.Claims.(*carrierClaims)
	if !ok {
		return gate.ActionRequest{}, fault.New(fault.CodeNotFound, "no pending confirmation for this token")
	}

	req, err := v.Redeem(claims.Subject, claims.ID)
	if err != nil {
		return gate.ActionRequest{}, err
	}
	actionHash, hashErr := canonicalize.CanonicalHash(req)
	if hashErr != nil || actionHash != claims.ActionHash {
		return gate.ActionRequest{}, fault.New(fault.CodeNotFound, "no pending confirmation for this token")
	}
	return req, nil
}

// Cancel drops the pending token without redeeming it.
func (v *Vault) Cancel(sessionID, tokenID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if entry, ok := v.pending[tokenID]; ok && entry.sessionID == sessionID {
		delete(v.pending, tokenID)
	}
}

// Sweep evicts expired entries; run periodically by the owner.
func (v *Vault) Sweep() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.clock()
	evicted := 0
	for id, entry := range v.pending {
		if now.After(entry.expiresAt) {
			delete(v.pending, id)
			evicted++
		}
	}
	return evicted
}
