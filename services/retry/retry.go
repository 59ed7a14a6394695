// Package retry implements a bounded retry-with-backoff policy for calls to
// model backends. It reports what happened as a typed [Result] instead of
// swallowing errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt. The wait grows
	// linearly with the attempt number.
	InitialBackoff time.Duration

	// MaxBackoff caps a single wait. Zero means no cap.
	MaxBackoff time.Duration
}

// Enabled reports whether the policy allows more than one attempt.
func (p Policy) Enabled() bool {
	return p.MaxAttempts > 1
}

// Backoff returns the wait before the given attempt (1-based; attempt 1 has
// no wait).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.InitialBackoff * time.Duration(attempt-1)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Outcome classifies how a retry loop ended.
type Outcome int

const (
	// Succeeded means an attempt returned without error.
	Succeeded Outcome = iota
	// Exhausted means every attempt failed with a transient error.
	Exhausted
	// Permanent means an attempt failed with an error not worth retrying.
	Permanent
	// Canceled means the context ended before the loop finished.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Permanent:
		return "permanent"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is the typed outcome of [Do].
type Result[T any] struct {
	Value    T
	Attempts int
	Outcome  Outcome
	Err      error
}

// Classifier reports whether err is transient and worth another attempt.
type Classifier func(err error) bool

// Do calls fn until it succeeds, fails permanently, the context ends, or the
// policy runs out of attempts. A nil classifier uses [IsTransient].
func Do[T any](ctx context.Context, p Policy, transient Classifier, fn func(context.Context) (T, error)) Result[T] {
	if transient == nil {
		transient = IsTransient
	}
	attempts := max(p.MaxAttempts, 1)

	var res Result[T]
	for attempt := 1; attempt <= attempts; attempt++ {
		if wait := p.Backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				res.Outcome = Canceled
				res.Err = errors.Join(res.Err, ctx.Err())
				return res
			case <-timer.C:
			}
		}

		res.Attempts = attempt
		v, err := fn(ctx)
		if err == nil {
			res.Value = v
			res.Outcome = Succeeded
			res.Err = nil
			return res
		}
		res.Err = err

		if ctx.Err() != nil {
			res.Outcome = Canceled
			res.Err = errors.Join(err, ctx.Err())
			return res
		}
		if !transient(err) {
			res.Outcome = Permanent
			return res
		}
	}
	res.Outcome = Exhausted
	return res
}

// Retryable is implemented by errors that know whether they are transient.
type Retryable interface {
	Retryable() bool
}

// StatusError records the HTTP status of a failed backend call. Err, when
// set, is the SDK error it was derived from.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Backend, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Retryable reports true for rate limiting and server errors.
func (e *StatusError) Retryable() bool {
	return IsTransientStatus(e.StatusCode)
}

// IsTransientStatus reports whether an HTTP status is worth retrying.
func IsTransientStatus(code int) bool {
	return code == 429 || code >= 500
}

// IsTransient is the default classifier. Context errors are never transient;
// errors implementing [Retryable] decide for themselves; network timeouts are
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
