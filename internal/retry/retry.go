// Package retry holds the backoff discipline shared by the CRM sync worker and
// the client-side offline queue: attempt N waits BaseDelay * 2^(N-1), and no
// attempt is made past MaxAttempts.
package retry

import (
	"context"
	"time"
)

// Policy describes an exponential backoff with a fixed attempt ceiling.
type Policy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

// Default is used when a component is built without an explicit policy.
var Default = Policy{BaseDelay: time.Second, MaxAttempts: 5}

// Delay returns the wait before retrying after the attempt-th failure (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = Default.BaseDelay
	}
	// cap the shift so very large attempt counts cannot overflow
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	return base * time.Duration(1<<uint(shift))
}

// Exhausted reports whether attempts failed attempts reached the ceiling.
func (p Policy) Exhausted(attempts int) bool {
	max := p.MaxAttempts
	if max <= 0 {
		max = Default.MaxAttempts
	}
	return attempts >= max
}

// NextAt returns the earliest time the next attempt may run.
func (p Policy) NextAt(now time.Time, attempts int) time.Time {
	return now.Add(p.Delay(attempts))
}

// Do calls fn until it succeeds, ctx is done, or the ceiling is reached.
// The attempt passed to fn is 1-based. Returns the last error.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := fn(attempt); err != nil {
			lastErr = err
		} else {
			return nil
		}
		if p.Exhausted(attempt) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
}
