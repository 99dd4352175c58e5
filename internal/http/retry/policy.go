// Package retry provides the retry policy applied around every outbound call:
// archive downloads, prepare and activated callbacks, franz events and tool
// notifications.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Policy describes how an outbound call is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential delay.
	MaxBackoff time.Duration
	// AttemptTimeout bounds each attempt (0 = only the parent context).
	AttemptTimeout time.Duration
	// Retryable decides whether an attempt outcome is worth another try.
	// Nil means DefaultRetryable.
	Retryable func(status int, err error) bool
}

// DefaultPolicy returns four attempts with a short exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Error is returned when the call did not succeed.
type Error struct {
	Attempts   int
	LastStatus int
	LastErr    error
	// Timeout is set when the last attempt timed out, or answered 408/504.
	Timeout bool
}

func (e *Error) Error() string {
	msg := "call failed after " + strconv.Itoa(e.Attempts) + " attempts"
	if e.LastStatus != 0 {
		msg += " (HTTP " + strconv.Itoa(e.LastStatus) + ")"
	}
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.LastErr
}

// Attempt performs one try. It returns the HTTP status it observed (0 when
// no response arrived) and an error when the try failed.
type Attempt func(ctx context.Context, attempt int) (status int, err error)

// Do runs fn until it succeeds, the outcome is not retryable, or the attempt
// budget is spent.
func (p Policy) Do(ctx context.Context, fn Attempt) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var last Error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		status, err := p.runAttempt(ctx, fn, attempt)
		if err == nil {
			return nil
		}

		last = Error{
			Attempts:   attempt + 1,
			LastStatus: status,
			LastErr:    err,
			Timeout:    IsTimeout(err) || status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout,
		}

		if ctx.Err() != nil || !retryable(status, err) || attempt == maxAttempts-1 {
			break
		}

		if err := sleep(ctx, CalculateBackoff(attempt, p)); err != nil {
			last.LastErr = err
			break
		}
	}
	return &last
}

func (p Policy) runAttempt(ctx context.Context, fn Attempt, attempt int) (int, error) {
	if p.AttemptTimeout <= 0 {
		return fn(ctx, attempt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx, attempt)
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.Status)
}

// DefaultRetryable retries timeouts and retryable statuses. Every other
// transport error (DNS, refused connection, redirect) is final.
func DefaultRetryable(status int, err error) bool {
	if status != 0 {
		return IsRetryableStatus(status)
	}
	if err == nil {
		return false
	}
	return IsTimeout(err)
}

// IsRetryableStatus reports whether an HTTP status is worth retrying:
// 408, 429 and every 5xx.
func IsRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status < 600)
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// CalculateBackoff returns the exponential delay for an attempt with 0-25% jitter.
func CalculateBackoff(attempt int, p Policy) time.Duration {
	base := float64(p.InitialBackoff) * math.Pow(2.0, float64(attempt))
	if p.MaxBackoff > 0 {
		base = math.Min(base, float64(p.MaxBackoff))
	}
	jitter := rand.Float64() * 0.25 * base
	return time.Duration(base + jitter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
