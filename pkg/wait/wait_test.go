package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(timeout time.Duration) Config {
	return Config{Timeout: timeout, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestUntilSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Until(context.Background(), fast(time.Second), "third call", func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilTimesOut(t *testing.T) {
	err := Until(context.Background(), fast(30*time.Millisecond), "never", func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUntilStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Until(context.Background(), fast(time.Second), "failing", func(context.Context) (bool, error) {
		calls++
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUntilHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Until(ctx, fast(time.Second), "cancelled", func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValue(t *testing.T) {
	n := 0
	got, err := Value(context.Background(), fast(time.Second), "counter", func(context.Context) (int, error) {
		n++
		return n, nil
	}, func(v int) bool { return v >= 2 })
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	gotStr, err := Value(context.Background(), fast(20*time.Millisecond), "constant", func(context.Context) (string, error) {
		return "stale", nil
	}, func(v string) bool { return v == "fresh" })
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "stale", gotStr)
}
