package client

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy computes the wait before retry attempt n (0-based).
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff grows the delay geometrically from Base up to Max,
// then spreads it by up to ±Jitter so a fleet of clients retrying the
// same daemon does not synchronize.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff returns the strategy the SDK client uses: 100ms base,
// 5s cap, doubling, 20% jitter.
func DefaultBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Base:   100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay for the given attempt.
func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if ceiling := float64(b.Max); d > ceiling {
		d = ceiling
	}
	if b.Jitter > 0 {
		d *= 1 + b.Jitter*(2*rand.Float64()-1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}
