package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Well-known policy names. Each guards a class of operations with its own
// quota, window and penalty.
const (
	PolicyGeneral   = "general"
	PolicyAuth      = "auth"
	PolicyIssuance  = "issuance"
	PolicyMessaging = "messaging"
)

// Policy configures one quota class: Points consumptions per Duration
// window, then a BlockDuration penalty once exhausted.
type Policy struct {
	Points        int
	Duration      time.Duration
	BlockDuration time.Duration
}

// Result is the outcome of a consume attempt.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Consumer is what the orchestration layer holds. Implementations decide
// where per-key state lives; the in-process Limiter here is the default,
// a shared-store implementation covers multi-process deployments.
type Consumer interface {
	Consume(ctx context.Context, policy, key string) (Result, error)
}

// DefaultPolicies returns the built-in quota classes.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		PolicyGeneral:   {Points: 100, Duration: 15 * time.Minute, BlockDuration: 60 * time.Second},
		PolicyAuth:      {Points: 5, Duration: 15 * time.Minute, BlockDuration: 15 * time.Minute},
		PolicyIssuance:  {Points: 20, Duration: time.Minute, BlockDuration: 5 * time.Minute},
		PolicyMessaging: {Points: 10, Duration: time.Minute, BlockDuration: 2 * time.Minute},
	}
}

type entry struct {
	remaining    int
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter tracks per-(policy, key) consumption in process memory. The
// consume-check-block sequence runs under one lock so concurrent requests
// from the same key cannot under-count and bypass a quota. State is not
// shared between processes; operators needing global quotas configure the
// Redis-backed store instead.
type Limiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	entries  map[string]*entry

	now func() time.Time
}

// New creates a limiter with the given policies. Nil means defaults.
func New(policies map[string]Policy) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Limiter{
		policies: policies,
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
}

// Consume spends one point of the policy's quota for key. When the quota is
// exhausted the key is blocked for the policy's penalty duration and every
// attempt until then is rejected with the remaining block time.
func (l *Limiter) Consume(_ context.Context, policy, key string) (Result, error) {
	p, ok := l.policies[policy]
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit policy: %s", policy)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entryKey := policy + ":" + key

	e, exists := l.entries[entryKey]
	if !exists {
		e = &entry{remaining: p.Points, windowStart: now}
		l.entries[entryKey] = e
	}

	// Active block wins over everything else.
	if e.blockedUntil.After(now) {
		return Result{Allowed: false, RetryAfter: e.blockedUntil.Sub(now)}, nil
	}

	// Block expired or window elapsed: reset to full capacity.
	if !e.blockedUntil.IsZero() || now.Sub(e.windowStart) >= p.Duration {
		e.remaining = p.Points
		e.windowStart = now
		e.blockedUntil = time.Time{}
	}

	if e.remaining > 0 {
		e.remaining--
		return Result{Allowed: true, Remaining: e.remaining}, nil
	}

	e.blockedUntil = now.Add(p.BlockDuration)
	return Result{Allowed: false, RetryAfter: p.BlockDuration}, nil
}

// Policies returns the limiter's policy table.
func (l *Limiter) Policies() map[string]Policy {
	return l.policies
}

// Prune drops entries whose window and block have both expired. Called
// periodically so long-running processes do not accumulate dead keys.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	pruned := 0
	for key, e := range l.entries {
		policyName := key[:indexColon(key)]
		p, ok := l.policies[policyName]
		if !ok {
			delete(l.entries, key)
			pruned++
			continue
		}
		if e.blockedUntil.Before(now) && now.Sub(e.windowStart) >= p.Duration {
			delete(l.entries, key)
			pruned++
		}
	}
	return pruned
}

func indexColon(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return i
		}
	}
	return len(s)
}
