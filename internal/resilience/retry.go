package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Backoff bounds a retry loop: at most Attempts tries, sleeping between them
// with decorrelated jitter growing from Base and capped at Cap.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// DefaultBackoff suits a local agent RPC hop.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Base: 100 * time.Millisecond, Cap: 2 * time.Second}
}

// next picks the sleep after a failed attempt: uniform in [Base, 3*prev],
// capped at Cap. Decorrelated jitter spreads concurrent retriers apart
// instead of marching them in lockstep the way a fixed multiplier does.
func (b Backoff) next(prev time.Duration) time.Duration {
	upper := 3 * prev
	if upper > b.Cap {
		upper = b.Cap
	}
	if upper <= b.Base {
		return b.Base
	}
	return b.Base + time.Duration(rand.Int63n(int64(upper-b.Base)))
}

// Retry runs op until it succeeds, the attempt budget is spent, or ctx is
// cancelled while sleeping. The final error is annotated with the attempt
// count and wraps op's last failure.
func (b Backoff) Retry(ctx context.Context, op func() error) error {
	if b.Attempts <= 0 {
		b.Attempts = 1
	}
	if b.Base <= 0 {
		b.Base = 100 * time.Millisecond
	}
	if b.Cap < b.Base {
		b.Cap = b.Base
	}

	delay := b.Base
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt >= b.Attempts {
			return fmt.Errorf("after %d attempts: %w", attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = b.next(delay)
	}
}
