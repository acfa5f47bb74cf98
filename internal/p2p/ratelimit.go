package p2p

import (
	"sync"

	"golang.org/x/time/rate"
)

// BucketKind distinguishes the four counters spec §6.3 requires per
// source pubkey ("connections/claims/injects/invalid-messages").
type BucketKind string

const (
	BucketConnections BucketKind = "connections"
	BucketClaims      BucketKind = "claims"
	BucketInjects     BucketKind = "injects"
	BucketInvalid     BucketKind = "invalid"
)

// defaultRates is the per-kind (rate-per-second, burst) pair applied to
// every source pubkey. Invalid-message traffic gets the tightest budget
// since it is the cheapest signal of an attacker probing the envelope
// codec.
var defaultRates = map[BucketKind]struct {
	perSecond float64
	burst     int
}{
	BucketConnections: {perSecond: 1, burst: 5},
	BucketClaims:       {perSecond: 2, burst: 10},
	BucketInjects:      {perSecond: 5, burst: 20},
	BucketInvalid:      {perSecond: 0.2, burst: 3},
}

// RateLimiter maintains independent token buckets per (sourcePubKey,
// kind), matching the security kernel's own per-source limiter.Limiter
// pattern (internal/security.Kernel.limiterFor) but keyed on an extra
// BucketKind axis since P2P traffic has four distinct budgets.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether one unit of kind traffic from sourcePubKey is
// permitted right now, creating that bucket's limiter on first use.
func (rl *RateLimiter) Allow(sourcePubKey string, kind BucketKind) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := sourcePubKey + "|" + string(kind)
	limiter, ok := rl.limiters[key]
	if !ok {
		cfg := defaultRates[kind]
		limiter = rate.NewLimiter(rate.Limit(cfg.perSecond), cfg.burst)
		rl.limiters[key] = limiter
	}
	return limiter.Allow()
}
