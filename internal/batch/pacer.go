package batch

import (
	"context"
	"math/rand"
	"time"
)

// Pacer spaces out consecutive submissions by a uniform random delay.
type Pacer struct {
	Min, Max time.Duration

	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
	// After defaults to time.After.
	After func(time.Duration) <-chan time.Time
}

// Next draws the next delay in [Min, Max].
func (p Pacer) Next() time.Duration {
	lo, hi := p.Min, p.Max
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	return lo + time.Duration(float64(hi-lo)*r())
}

// Wait sleeps for one drawn delay or until ctx is done.
func (p Pacer) Wait(ctx context.Context) (time.Duration, error) {
	d := p.Next()
	if d <= 0 {
		return 0, ctx.Err()
	}
	after := time.After
	if p.After != nil {
		after = p.After
	}
	select {
	case <-ctx.Done():
		return d, ctx.Err()
	case <-after(d):
		return d, nil
	}
}
