// Package resilience provides retry with exponential backoff and a logged circuit breaker
// for calls that leave the process (queue publish, directory lookups).
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"tradeledger/pkg/logger"
)

// ErrCircuitOpen is returned when the breaker rejects a call without attempting it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RetryConfig bounds an exponential backoff loop.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Retryable decides whether an error is worth another attempt. nil retries everything.
	Retryable func(error) bool
	// OnRetry is called before sleeping; attempt is 1-based.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig mirrors the queue client: 3 attempts, 1s, 2s backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}
}

// Retry runs fn until it succeeds, the attempts run out or ctx is done.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// BreakerConfig holds the trip rules of a circuit breaker.
type BreakerConfig struct {
	Name                  string
	MaxRequests           uint32        // allowed in half-open state
	Interval              time.Duration // failure count reset period in closed state
	Timeout               time.Duration // open -> half-open
	FailureThreshold      uint32        // consecutive failures to trip
	FailureRatioThreshold float64
	MinRequestsToTrip     uint32
}

// DefaultBreakerConfig returns the settings used for HTTP collaborators.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                  name,
		MaxRequests:           3,
		Interval:              time.Minute,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.6,
		MinRequestsToTrip:     10,
	}
}

// Breaker wraps gobreaker with logging.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// NewBreaker creates a circuit breaker that logs its state changes.
func NewBreaker(cfg BreakerConfig, log *logger.Logger) *Breaker {
	if log == nil {
		log = logger.Default()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if cfg.MinRequestsToTrip > 0 && counts.Requests >= cfg.MinRequestsToTrip {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= cfg.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), name: cfg.Name}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
	}
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
