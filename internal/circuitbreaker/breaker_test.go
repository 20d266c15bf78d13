package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
)

func TestBreaker(t *testing.T) {
	logger := logging.NewNopLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := New("test-basic", Config{MaxFailures: 2, Timeout: 100 * time.Millisecond, MaxConcurrentRequests: 1}, logger, nil)

		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("returns the wrapped error", func(t *testing.T) {
		cb := New("test-passthrough", DefaultConfig(), logger, nil)
		sentinel := errors.New("dial tcp: refused")

		err := cb.Execute(func() error { return sentinel })
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		cb := New("test-failures", Config{MaxFailures: 3, Timeout: time.Minute, MaxConcurrentRequests: 1}, logger, nil)

		for i := 0; i < 3; i++ {
			err := cb.Execute(func() error { return fmt.Errorf("failure %d", i) })
			require.Error(t, err)
		}

		assert.Equal(t, StateOpen, cb.State())
		assert.True(t, cb.IsOpen())

		called := false
		err := cb.Execute(func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrOpen)
		assert.False(t, called)
	})

	t.Run("half-open trial request closes the breaker", func(t *testing.T) {
		cb := New("test-recovery", Config{MaxFailures: 1, Timeout: 20 * time.Millisecond, MaxConcurrentRequests: 1}, logger, nil)

		_ = cb.Execute(func() error { return errors.New("down") })
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("cancellation does not count as failure", func(t *testing.T) {
		cb := New("test-cancel", Config{MaxFailures: 1, Timeout: time.Minute, MaxConcurrentRequests: 1}, logger, nil)

		err := cb.Execute(func() error { return context.Canceled })
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("data errors do not count as failures", func(t *testing.T) {
		cb := New("test-data", Config{MaxFailures: 1, Timeout: time.Minute, MaxConcurrentRequests: 1}, logger, nil)

		for i := 0; i < 3; i++ {
			err := cb.Execute(func() error {
				return fmt.Errorf("increment: %w", apperrors.DataError("increment window k", errors.New("WRONGTYPE")))
			})
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeData))
		}
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, uint32(0), cb.Stats().ConsecutiveFailures)
	})

	t.Run("state change hook", func(t *testing.T) {
		var mu sync.Mutex
		var transitions []string
		cb := New("test-hook", Config{MaxFailures: 1, Timeout: time.Minute, MaxConcurrentRequests: 1}, logger,
			func(from, to State) {
				mu.Lock()
				defer mu.Unlock()
				transitions = append(transitions, from.String()+"->"+to.String())
			})

		_ = cb.Execute(func() error { return errors.New("down") })

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"closed->open"}, transitions)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := New("test-invalid", Config{}, logger, nil)
		assert.Equal(t, StateClosed, cb.State())

		for i := 0; i < 4; i++ {
			_ = cb.Execute(func() error { return errors.New("down") })
		}
		assert.Equal(t, StateClosed, cb.State())

		_ = cb.Execute(func() error { return errors.New("down") })
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("stats", func(t *testing.T) {
		cb := New("test-stats", DefaultConfig(), logger, nil)
		_ = cb.Execute(func() error { return nil })
		_ = cb.Execute(func() error { return errors.New("down") })

		stats := cb.Stats()
		assert.Equal(t, "test-stats", stats.Name)
		assert.Equal(t, "closed", stats.State)
		assert.Equal(t, uint32(2), stats.Requests)
		assert.Equal(t, uint32(1), stats.ConsecutiveFailures)
		assert.Equal(t, uint32(1), stats.TotalFailures)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
