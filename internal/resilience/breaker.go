// Package resilience guards the admin process's outbound agent traffic with
// a per-agent failure breaker that fails fast while a manager is unreachable,
// and provides the bounded backoff that givc-cli's `test ensure` retries with.
package resilience

import (
	"context"
	"sync"
	"time"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

// BreakerConfig tunes one agent's breaker.
type BreakerConfig struct {
	// FailureThreshold is how many consecutive failures trip the breaker.
	FailureThreshold int
	// Cooldown is how long a tripped breaker rejects calls outright before
	// letting a single probe through.
	Cooldown time.Duration
}

// DefaultBreakerConfig matches the supervisor cadence: a manager that fails
// three probes in a row is declared down, and re-probed at most once per
// cooldown instead of on every tick.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, Cooldown: 15 * time.Second}
}

// Breaker gates the unit-control RPCs to one agent. Once tripped it rejects
// calls with Unavailable until the cooldown elapses, then admits exactly one
// probe at a time; a successful probe closes it, a failed one re-arms the
// cooldown. This keeps a dead VM's manager from stalling every supervision
// pass behind dial timeouts.
type Breaker struct {
	agent    string
	cfg      BreakerConfig
	onChange func(agent string, tripped bool)

	mu          sync.Mutex
	consecutive int
	tripped     bool
	trippedAt   time.Time
	probing     bool
}

// NewBreaker builds a breaker for the named agent. onChange, if non-nil, is
// invoked (synchronously, outside the lock) whenever the breaker trips or
// closes; callers hang logging and metrics off it.
func NewBreaker(agent string, cfg BreakerConfig, onChange func(agent string, tripped bool)) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	return &Breaker{agent: agent, cfg: cfg, onChange: onChange}
}

// Agent returns the agent name this breaker guards.
func (b *Breaker) Agent() string { return b.agent }

// Tripped reports whether the breaker currently rejects calls.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// Execute runs fn against the agent if the breaker admits it.
func (b *Breaker) Execute(_ context.Context, fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.observe(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return nil
	}
	if time.Since(b.trippedAt) < b.cfg.Cooldown {
		return givcerrors.New(givcerrors.Unavailable,
			"agent "+b.agent+" is down, rejecting call until cooldown expires")
	}
	if b.probing {
		return givcerrors.New(givcerrors.Unavailable,
			"agent "+b.agent+" is down, probe already in flight")
	}
	b.probing = true
	return nil
}

func (b *Breaker) observe(ok bool) {
	b.mu.Lock()
	b.probing = false

	var changed, nowTripped bool
	if ok {
		b.consecutive = 0
		if b.tripped {
			b.tripped = false
			changed, nowTripped = true, false
		}
	} else {
		b.consecutive++
		switch {
		case b.tripped:
			// Failed probe: keep rejecting for another cooldown.
			b.trippedAt = time.Now()
		case b.consecutive >= b.cfg.FailureThreshold:
			b.tripped = true
			b.trippedAt = time.Now()
			changed, nowTripped = true, true
		}
	}
	b.mu.Unlock()

	if changed && b.onChange != nil {
		b.onChange(b.agent, nowTripped)
	}
}

// BreakerSet owns one Breaker per agent name, so every client talking to the
// same manager shares its failure state.
type BreakerSet struct {
	cfg      BreakerConfig
	onChange func(agent string, tripped bool)

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerSet builds an empty set; breakers are created on first use.
func NewBreakerSet(cfg BreakerConfig, onChange func(agent string, tripped bool)) *BreakerSet {
	return &BreakerSet{
		cfg:      cfg,
		onChange: onChange,
		breakers: make(map[string]*Breaker),
	}
}

// For returns the breaker guarding agent, creating it on first use.
func (s *BreakerSet) For(agent string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[agent]; ok {
		return b
	}
	b := NewBreaker(agent, s.cfg, s.onChange)
	s.breakers[agent] = b
	return b
}
