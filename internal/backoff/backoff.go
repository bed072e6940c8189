// Package backoff implements the gateway's pure reconnect-delay policy
// (spec §4.4, §8). It is injectable for deterministic testing: callers
// supply their own seeded *rand.Rand via Policy.Rand.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy computes reconnect delays for attempt n (1-based) as
// min(base * 2^(n-1), max) with uniform jitter of +/-20%.
type Policy struct {
	Base time.Duration
	Max  time.Duration

	// Rand is used for jitter; a fresh *rand.Rand seeded from the wall clock
	// is used if nil. Tests should inject a seeded source for determinism.
	Rand *rand.Rand
}

// NewPolicy builds a Policy with base and max reconnect intervals.
func NewPolicy(base, max time.Duration) Policy {
	return Policy{Base: base, Max: max}
}

// Delay returns the backoff delay for attempt n, including jitter.
func (p Policy) Delay(n int) time.Duration {
	return p.Delay2(n, p.jitter())
}

// Delay2 returns the delay for attempt n using a caller-supplied jitter
// fraction in [-0.2, 0.2], for deterministic tests of the boundary cases in
// spec §8 ("delay ∈ [0.8, 1.2] · min(base·2^(n-1), max)").
func (p Policy) Delay2(n int, jitterFrac float64) time.Duration {
	if n < 1 {
		n = 1
	}
	base := p.Base
	if base <= 0 {
		base = time.Second
	}
	max := p.Max
	if max <= 0 {
		max = base
	}

	exp := math.Pow(2, float64(n-1))
	nominal := float64(base) * exp
	if nominal > float64(max) || math.IsInf(exp, 1) {
		nominal = float64(max)
	}

	if jitterFrac < -0.2 {
		jitterFrac = -0.2
	}
	if jitterFrac > 0.2 {
		jitterFrac = 0.2
	}

	delay := nominal * (1 + jitterFrac)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (p Policy) jitter() float64 {
	r := p.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	// uniform in [-0.2, 0.2]
	return (r.Float64()*2 - 1) * 0.2
}

// Clock abstracts time so Session timers can be driven by a fake clock in
// tests (spec §4.4's injectable Clock/Backoff Policy, component G).
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
}

// Timer mirrors the subset of time.Timer the Session state machine needs.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock is the production Clock backed by the standard library.
type RealClock struct{}

func (RealClock) Now() time.Time                       { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) NewTimer(d time.Duration) Timer {
	t := time.NewTimer(d)
	return &realTimer{t: t}
}

type realTimer struct{ t *time.Timer }

func (r *realTimer) C() <-chan time.Time     { return r.t.C }
func (r *realTimer) Stop() bool              { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }
