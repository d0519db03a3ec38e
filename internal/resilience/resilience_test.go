package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

func fastBackoff(attempts int) Backoff {
	return Backoff{Attempts: attempts, Base: time.Millisecond, Cap: 5 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := fastBackoff(3).Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	wanted := errors.New("permanent")
	err := fastBackoff(3).Retry(context.Background(), func() error {
		calls++
		return wanted
	})
	require.ErrorIs(t, err, wanted)
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Backoff{Attempts: 10, Base: time.Minute, Cap: time.Minute}.Retry(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoffDelaysStayBounded(t *testing.T) {
	b := Backoff{Base: 10 * time.Millisecond, Cap: 50 * time.Millisecond}
	delay := b.Base
	for i := 0; i < 20; i++ {
		delay = b.next(delay)
		assert.GreaterOrEqual(t, delay, b.Base)
		assert.LessOrEqual(t, delay, b.Cap)
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("givc-net-vm.service", BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour}, nil)
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), func() error { return boom })
		require.ErrorIs(t, err, boom)
	}
	require.True(t, b.Tripped())

	err := b.Execute(context.Background(), func() error { return nil })
	require.Error(t, err)
	assert.True(t, givcerrors.IsKind(err, givcerrors.Unavailable))
	assert.ErrorContains(t, err, "givc-net-vm.service")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("givc-audio-vm.service", BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour}, nil)
	boom := errors.New("boom")

	_ = b.Execute(context.Background(), func() error { return boom })
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	_ = b.Execute(context.Background(), func() error { return boom })
	assert.False(t, b.Tripped())
}

func TestBreakerProbeClosesAfterCooldown(t *testing.T) {
	b := NewBreaker("givc-net-vm.service", BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond}, nil)

	_ = b.Execute(context.Background(), func() error { return errors.New("boom") })
	require.True(t, b.Tripped())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, b.Execute(context.Background(), func() error { return nil }))
	assert.False(t, b.Tripped())
}

func TestBreakerFailedProbeRearmsCooldown(t *testing.T) {
	b := NewBreaker("givc-net-vm.service", BreakerConfig{FailureThreshold: 1, Cooldown: 50 * time.Millisecond}, nil)

	_ = b.Execute(context.Background(), func() error { return errors.New("boom") })
	time.Sleep(60 * time.Millisecond)

	// The admitted probe fails, so the next call is rejected again.
	err := b.Execute(context.Background(), func() error { return errors.New("still down") })
	require.ErrorContains(t, err, "still down")

	err = b.Execute(context.Background(), func() error { return nil })
	require.Error(t, err)
	assert.True(t, givcerrors.IsKind(err, givcerrors.Unavailable))
}

func TestBreakerOnChangeNotifications(t *testing.T) {
	type change struct {
		agent   string
		tripped bool
	}
	var changes []change
	b := NewBreaker("givc-net-vm.service", BreakerConfig{FailureThreshold: 1, Cooldown: time.Millisecond},
		func(agent string, tripped bool) {
			changes = append(changes, change{agent, tripped})
		})

	_ = b.Execute(context.Background(), func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)
	_ = b.Execute(context.Background(), func() error { return nil })

	require.Len(t, changes, 2)
	assert.Equal(t, change{"givc-net-vm.service", true}, changes[0])
	assert.Equal(t, change{"givc-net-vm.service", false}, changes[1])
}

func TestBreakerSetSharesPerAgentState(t *testing.T) {
	set := NewBreakerSet(BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour}, nil)

	a := set.For("givc-net-vm.service")
	assert.Same(t, a, set.For("givc-net-vm.service"))
	assert.NotSame(t, a, set.For("givc-audio-vm.service"))

	_ = a.Execute(context.Background(), func() error { return errors.New("boom") })
	assert.True(t, set.For("givc-net-vm.service").Tripped())
	assert.False(t, set.For("givc-audio-vm.service").Tripped())
}
