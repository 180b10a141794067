package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) *Config {
	return &Config{MaxRetries: retries, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.MaxDelay)
}

func TestDoIfRetryable_SucceedsFirstTime(t *testing.T) {
	calls := 0
	got, err := DoIfRetryable(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		return "rows", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "rows", got)
	assert.Equal(t, 1, calls)
}

func TestDoIfRetryable_RetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := DoIfRetryable(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("mssql: Transaction (Process ID 61) was deadlocked on lock resources with another process and has been chosen as the deadlock victim")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDoIfRetryable_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("mssql: Invalid object name 'SUS_ORDER_JRNL'")
	calls := 0
	_, err := DoIfRetryable(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		return 0, permanent
	})

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDoIfRetryable_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := DoIfRetryable(context.Background(), fastConfig(2), func() (int, error) {
		calls++
		return 0, fmt.Errorf("read tcp 10.0.0.5:1433: connection reset by peer (attempt %d)", calls)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Equal(t, 3, calls)
}

func TestDoIfRetryable_NoRetry(t *testing.T) {
	calls := 0
	_, err := DoIfRetryable(context.Background(), NoRetry(), func() (int, error) {
		calls++
		return 0, errors.New("i/o timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoIfRetryable_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}

	calls := 0
	_, err := DoIfRetryable(ctx, cfg, func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("i/o timeout")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", errors.New("chosen as the deadlock victim"), true},
		{"reset", errors.New("connection reset by peer"), true},
		{"azure unavailable", errors.New("Database 'Orders' on server 'sql01' is not currently available"), true},
		{"login failed", errors.New("Login failed for user 'app'"), false},
		{"syntax", errors.New("Incorrect syntax near 'FROM'"), false},
		{"canceled", context.Canceled, false},
		{"deadline wrapped", fmt.Errorf("query: %w", context.DeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestApplyJitterBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := applyJitter(100*time.Millisecond, 0.1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
	assert.Equal(t, time.Second, applyJitter(time.Second, 0))
}
