package topology

import (
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Policy selects which replica Distance.Select/Next favors.
type Policy int

const (
	PolicyRandom Policy = iota
	PolicyRoundRobinQuota
	PolicyPerformanceTuned
	PolicyRegionAffinity
)

// minPenalty is the floor charged by Penalize on any failed call, per the
// "a failed call always charges at least 500ms" rule.
const minPenalty = 500 * time.Millisecond

// Distance is an endpoint pool with a replica-selection policy and an
// overall quota gate shared by every replica in the pool. E is typically
// Endpoint, but kept generic so tests can exercise the selection logic
// without building real endpoints.
type Distance[E any] struct {
	replicas []E
	policy   Policy
	limiter  *rate.Limiter

	cursor     atomic.Uint64
	latencies  []atomic.Int64 // nanoseconds, EWMA; only used by PolicyPerformanceTuned
	penalUntil []atomic.Int64 // unix nanos; a replica below this is skipped when an alternative exists

	region      func(E) string // only used by PolicyRegionAffinity
	localRegion string
}

// NewDistance builds a Distance over replicas with the given policy. rps
// configures the shared quota limiter (requests per second, 0 disables
// quota entirely, Quota always reports true).
func NewDistance[E any](replicas []E, policy Policy, rps float64) *Distance[E] {
	d := &Distance[E]{
		replicas:   replicas,
		policy:     policy,
		latencies:  make([]atomic.Int64, len(replicas)),
		penalUntil: make([]atomic.Int64, len(replicas)),
	}
	if rps > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return d
}

// WithRegion attaches a region classifier and the caller's own region,
// enabling PolicyRegionAffinity. classify must be set before Select/Next
// are called under that policy.
func (d *Distance[E]) WithRegion(localRegion string, classify func(E) string) *Distance[E] {
	d.localRegion = localRegion
	d.region = classify
	return d
}

// Len reports the pool size.
func (d *Distance[E]) Len() int { return len(d.replicas) }

// Quota reports whether the shared rate limiter currently allows another
// call. Distance with no limiter (rps <= 0 at construction) always
// allows.
func (d *Distance[E]) Quota() bool {
	if d.limiter == nil {
		return true
	}
	return d.limiter.Allow()
}

// Penalize charges at least minPenalty against replica idx's
// availability, making Select/Next prefer any other non-penalized
// replica until the penalty expires.
func (d *Distance[E]) Penalize(idx int, charge time.Duration) {
	if idx < 0 || idx >= len(d.replicas) {
		return
	}
	if charge < minPenalty {
		charge = minPenalty
	}
	d.penalUntil[idx].Store(time.Now().Add(charge).UnixNano())
}

func (d *Distance[E]) penalized(idx int) bool {
	until := d.penalUntil[idx].Load()
	return until != 0 && time.Now().UnixNano() < until
}

// RecordLatency feeds an observed round-trip time into replica idx's
// running average, used by PolicyPerformanceTuned.
func (d *Distance[E]) RecordLatency(idx int, rtt time.Duration) {
	if idx < 0 || idx >= len(d.replicas) {
		return
	}
	const alpha = 4 // EWMA weight denominator: new = (3*old + new) / 4
	prev := d.latencies[idx].Load()
	if prev == 0 {
		d.latencies[idx].Store(int64(rtt))
		return
	}
	next := (prev*(alpha-1) + int64(rtt)) / alpha
	d.latencies[idx].Store(next)
}

// Select picks an initial replica (unsafe_select) and returns it with its
// index.
func (d *Distance[E]) Select() (E, int) {
	idx := d.selectIndex(-1)
	return d.replicas[idx], idx
}

// Next advances from lastIdx on a retry (unsafe_next); runs is the retry
// attempt number (1 for the first retry).
func (d *Distance[E]) Next(lastIdx, runs int) (E, int) {
	idx := d.selectIndex(lastIdx)
	return d.replicas[idx], idx
}

func (d *Distance[E]) selectIndex(exclude int) int {
	n := len(d.replicas)
	if n == 1 {
		return 0
	}
	switch d.policy {
	case PolicyRoundRobinQuota:
		return d.nextAvailable(exclude, func(start int) int {
			return int(d.cursor.Add(1)-1) % n
		})
	case PolicyPerformanceTuned:
		return d.nextAvailable(exclude, func(start int) int { return d.fastestIndex(exclude) })
	case PolicyRegionAffinity:
		return d.nextAvailable(exclude, func(start int) int { return d.sameRegionIndex(exclude) })
	default: // PolicyRandom
		return d.nextAvailable(exclude, func(start int) int { return rand.Intn(n) })
	}
}

// nextAvailable calls pick for a candidate index, then walks forward to
// skip penalized replicas (other than exclude, which is always skipped
// when an alternative exists) and avoid re-selecting exclude when another
// option is free.
func (d *Distance[E]) nextAvailable(exclude int, pick func(start int) int) int {
	n := len(d.replicas)
	start := pick(0)
	idx := start
	for i := 0; i < n; i++ {
		candidate := (idx + i) % n
		if candidate == exclude && n > 1 {
			continue
		}
		if !d.penalized(candidate) {
			return candidate
		}
	}
	// Every replica (other than exclude) is penalized: fall back to the
	// pick, penalty or not, rather than refuse to return anything.
	return start
}

func (d *Distance[E]) fastestIndex(exclude int) int {
	best, bestLatency := -1, int64(-1)
	for i := range d.replicas {
		if i == exclude && len(d.replicas) > 1 {
			continue
		}
		l := d.latencies[i].Load()
		if best == -1 || (l != 0 && (bestLatency == 0 || l < bestLatency)) {
			best, bestLatency = i, l
		}
	}
	if best == -1 {
		best = 0
	}
	return best
}

func (d *Distance[E]) sameRegionIndex(exclude int) int {
	if d.region != nil {
		for i, e := range d.replicas {
			if i == exclude && len(d.replicas) > 1 {
				continue
			}
			if d.region(e) == d.localRegion {
				return i
			}
		}
	}
	return int(d.cursor.Add(1)-1) % len(d.replicas)
}
