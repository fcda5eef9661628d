package replica

import (
	"math/rand"
	"time"
)

// backoff spreads out leadership bids after a rejected bid.
// The bound is multiplied on every rejection, up to max, and reset when a bid succeeds.
// The delay is drawn uniformly from (0, bound], so competing nodes rarely bid at the same time.
type backoff struct {
	base  time.Duration
	max   time.Duration
	mul   float64
	bound time.Duration
	rnd   *rand.Rand
}

func newBackoff(base, max time.Duration, mul float64, seed int64) *backoff {
	if max < base {
		max = base
	}
	return &backoff{
		base:  base,
		max:   max,
		mul:   mul,
		bound: base,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Rejected grows the bound and returns the delay before the next bid.
func (b *backoff) Rejected() time.Duration {
	d := b.Duration()
	next := time.Duration(float64(b.bound) * b.mul)
	if next > b.max {
		next = b.max
	}
	b.bound = next
	return d
}

// Succeeded resets the bound.
func (b *backoff) Succeeded() {
	b.bound = b.base
}

// Duration returns a random delay in (0, bound].
func (b *backoff) Duration() time.Duration {
	if b.bound <= 0 {
		return 0
	}
	return time.Duration(b.rnd.Int63n(int64(b.bound))) + 1
}
