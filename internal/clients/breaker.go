package clients

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned when a call is rejected by an open breaker.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout passes.
	BreakerOpen
	// BreakerHalfOpen lets a few trial calls through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration
	// HalfOpenMaxCalls is the number of successful trial calls that close it again.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Breaker guards best-effort outbound calls so a dead webhook does not
// slow every task down.
type Breaker struct {
	mu           sync.Mutex
	name         string
	state        BreakerState
	failureCount int
	successCount int
	lastFailure  time.Time
	config       BreakerConfig
	logger       zerolog.Logger
	now          func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config BreakerConfig, logger zerolog.Logger) *Breaker {
	return &Breaker{
		name:   name,
		state:  BreakerClosed,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Allow reports whether a call may go through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) >= b.config.ResetTimeout {
			b.state = BreakerHalfOpen
			b.successCount = 0
			b.logger.Info().Str("circuit_breaker", b.name).Msg("Circuit breaker transitioning to half-open")
			return true
		}
		return false
	case BreakerHalfOpen:
		return b.successCount < b.config.HalfOpenMaxCalls
	default:
		return false
	}
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failureCount = 0
	case BreakerHalfOpen:
		b.successCount++
		if b.successCount >= b.config.HalfOpenMaxCalls {
			b.state = BreakerClosed
			b.successCount = 0
			b.failureCount = 0
			b.logger.Info().Str("circuit_breaker", b.name).Msg("Circuit breaker closing after successful recovery")
		}
	}
}

// RecordFailure records a failed call.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = b.now()

	switch b.state {
	case BreakerClosed:
		if b.failureCount >= b.config.MaxFailures {
			b.state = BreakerOpen
			b.logger.Warn().
				Err(err).
				Str("circuit_breaker", b.name).
				Int("failure_count", b.failureCount).
				Dur("reset_timeout", b.config.ResetTimeout).
				Msg("Circuit breaker opening after max failures")
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.successCount = 0
		b.logger.Warn().Err(err).Str("circuit_breaker", b.name).Msg("Circuit breaker re-opening after failure in half-open state")
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
