package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0,
	}
}

func TestDoVal_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(5), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("rate limited"), http.StatusTooManyRequests)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_DoesNotRetryAuthErrors(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewAuthError(errors.New("invalid credentials"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, IsAuth(err))
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("upstream 503"), http.StatusServiceUnavailable)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastRetry(10), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("timeout"), 0)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentErrorReturnedImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(5), func(ctx context.Context) error {
		calls++
		return errors.New("malformed request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("bad input")))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 503)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))

	// Auth wins even when wrapping a transient-looking error.
	assert.False(t, IsTransient(NewAuthError(errors.New("i/o timeout"))))
}

func TestStatusClassifiers(t *testing.T) {
	assert.True(t, IsTransientHTTPStatus(429))
	assert.True(t, IsTransientHTTPStatus(503))
	assert.False(t, IsTransientHTTPStatus(404))

	assert.True(t, IsAuthHTTPStatus(401))
	assert.True(t, IsAuthHTTPStatus(403))
	assert.False(t, IsAuthHTTPStatus(500))
}
