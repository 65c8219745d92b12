package kinic

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrBridgeOpen is returned when the breaker is open and calls to the
// SDK bridge are being rejected without attempting the network.
var ErrBridgeOpen = errors.New("kinic bridge circuit open")

// BreakerConfig tunes the circuit breaker guarding bridge calls. The
// breaker is an inner protection only: it stops a flapping bridge from
// being hammered between router attempts, while the router's health
// registry makes the once-per-lifetime demotion decision.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that trip the
	// circuit. Default: 3.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing probe
	// requests. Default: 30 seconds.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of successes in half-open state
	// required to close the circuit. Default: 2.
	HalfOpenMaxSuccesses uint32
}

// Breaker wraps gobreaker around SDK bridge calls.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker with the default configuration.
func NewBreaker() *Breaker {
	return NewBreakerWithConfig(BreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	})
}

// NewBreakerWithConfig creates a breaker with explicit settings.
func NewBreakerWithConfig(config BreakerConfig) *Breaker {
	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "KinicBridge",
			MaxRequests: config.HalfOpenMaxSuccesses,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
		}),
	}
}

// Execute runs fn through the breaker. When the circuit is open it
// returns ErrBridgeOpen without invoking fn. A cancelled context counts
// as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrBridgeOpen
	}
	return result, err
}

// State reports the breaker state as "closed", "open" or "half-open".
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
