package orchestrator

import (
	"sync"

	"golang.org/x/time/rate"
)

// actorLimiters keeps one token bucket per actor id. A zero rps disables
// limiting entirely.
type actorLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newActorLimiters(rps float64, burst int) *actorLimiters {
	return &actorLimiters{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (a *actorLimiters) allow(actor string) bool {
	if a.rps <= 0 {
		return true
	}
	a.mu.Lock()
	lim, ok := a.buckets[actor]
	if !ok {
		lim = rate.NewLimiter(a.rps, a.burst)
		a.buckets[actor] = lim
	}
	a.mu.Unlock()
	return lim.Allow()
}
