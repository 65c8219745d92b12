package kinic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreakerWithConfig(BreakerConfig{
		MaxFailures:          2,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})
	ctx := context.Background()
	boom := errors.New("bridge down")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(ctx, func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", b.State())

	// Open circuit rejects without invoking the function.
	invoked := false
	_, err := b.Execute(ctx, func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrBridgeOpen)
	assert.False(t, invoked)
}

func TestBreaker_SuccessPassesThrough(t *testing.T) {
	b := NewBreaker()

	result, err := b.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_CancelledContextFails(t *testing.T) {
	b := NewBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, context.Canceled)
}
