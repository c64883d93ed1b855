package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxAttempts: 4}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
}

func TestPolicy_Exhausted(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxAttempts: 3}
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(7))

	// zero value falls back to the default ceiling
	assert.False(t, Policy{}.Exhausted(Default.MaxAttempts-1))
	assert.True(t, Policy{}.Exhausted(Default.MaxAttempts))
}

func TestPolicy_Do_StopsAtCeiling(t *testing.T) {
	p := Policy{BaseDelay: time.Millisecond, MaxAttempts: 3}
	calls := 0
	boom := errors.New("boom")

	err := p.Do(context.Background(), func(attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestPolicy_Do_SucceedsAfterRetry(t *testing.T) {
	p := Policy{BaseDelay: time.Millisecond, MaxAttempts: 5}
	calls := 0

	err := p.Do(context.Background(), func(int) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPolicy_Do_HonorsContext(t *testing.T) {
	p := Policy{BaseDelay: time.Hour, MaxAttempts: 5}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(int) error { return errors.New("transient") })
	assert.ErrorIs(t, err, context.Canceled)
}
