package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/RkayG/Cxperia-sub002/internal/circuitbreaker"
	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/metrics"
)

// DefaultStoreTimeout bounds every remote call before it falls back to memory.
const DefaultStoreTimeout = 100 * time.Millisecond

// WindowCounter is the subset of the Redis client the remote store needs.
type WindowCounter interface {
	IncrementWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, time.Time, error)
	GetWindow(ctx context.Context, key string, now time.Time) (int64, time.Time, bool, error)
	Health(ctx context.Context) error
}

// RemoteStore keeps counters in Redis so every process shares them. Any
// failure, timeout or open breaker sends that single call to a private
// MemoryStore; the next call tries Redis again.
type RemoteStore struct {
	counter  WindowCounter
	fallback *MemoryStore
	breaker  *circuitbreaker.Breaker
	timeout  time.Duration
	now      func() time.Time
	logger   logging.Logger
	recorder metrics.Recorder

	degraded atomic.Bool
	warn     rate.Sometimes
}

type remoteOptions struct {
	timeout  time.Duration
	breaker  circuitbreaker.Config
	now      func() time.Time
	logger   logging.Logger
	recorder metrics.Recorder
	fallback *MemoryStore
}

// fallbackWarnInterval limits how often repeated fallback warnings are logged.
const fallbackWarnInterval = 30 * time.Second

// RemoteOption configures a RemoteStore.
type RemoteOption func(*remoteOptions)

// WithStoreTimeout sets the per-call Redis timeout.
func WithStoreTimeout(d time.Duration) RemoteOption {
	return func(o *remoteOptions) { o.timeout = d }
}

// WithBreakerConfig sets the circuit breaker guarding Redis.
func WithBreakerConfig(c circuitbreaker.Config) RemoteOption {
	return func(o *remoteOptions) { o.breaker = c }
}

// WithRemoteClock replaces time.Now for both Redis and the fallback.
func WithRemoteClock(now func() time.Time) RemoteOption {
	return func(o *remoteOptions) { o.now = now }
}

func WithRemoteLogger(logger logging.Logger) RemoteOption {
	return func(o *remoteOptions) { o.logger = logger }
}

func WithRemoteRecorder(r metrics.Recorder) RemoteOption {
	return func(o *remoteOptions) { o.recorder = r }
}

// WithFallbackStore supplies the fallback instead of creating one. The
// RemoteStore takes ownership and closes it.
func WithFallbackStore(s *MemoryStore) RemoteOption {
	return func(o *remoteOptions) { o.fallback = s }
}

// NewRemoteStore wraps counter and checks it once. An unreachable server is
// logged and never fails construction.
func NewRemoteStore(ctx context.Context, counter WindowCounter, opts ...RemoteOption) *RemoteStore {
	o := remoteOptions{
		timeout:  DefaultStoreTimeout,
		breaker:  circuitbreaker.DefaultConfig(),
		now:      time.Now,
		recorder: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.GetGlobalLogger()
	}
	if o.timeout <= 0 {
		o.timeout = DefaultStoreTimeout
	}
	if o.fallback == nil {
		o.fallback = NewMemoryStore(
			WithMemoryClock(o.now),
			WithSweepInterval(DefaultSweepInterval),
			WithMemoryLogger(o.logger),
		)
	}

	logger := o.logger.WithFields(logging.Field{Key: "component", Value: "remote_store"})
	recorder := o.recorder
	s := &RemoteStore{
		counter:  counter,
		fallback: o.fallback,
		timeout:  o.timeout,
		now:      o.now,
		logger:   logger,
		recorder: recorder,
		warn:     rate.Sometimes{First: 1, Interval: fallbackWarnInterval},
	}
	s.breaker = circuitbreaker.New("counter-store", o.breaker, logger, func(_, to circuitbreaker.State) {
		recorder.BreakerState(to.String())
	})

	err := s.breaker.Execute(func() error {
		checkCtx, cancel := context.WithTimeout(ctx, s.healthTimeout())
		defer cancel()
		return classify(checkCtx, "counter store health check", counter.Health(checkCtx))
	})
	if err != nil {
		s.degraded.Store(true)
		logger.Warn("Counter store unreachable at startup, counting in memory until it recovers",
			logging.Field{Key: "error", Value: err.Error()},
		)
	} else {
		logger.Info("Counter store connected", logging.Field{Key: "backend", Value: BackendRedis})
	}
	return s
}

// The startup check gets more time than a request path call.
func (s *RemoteStore) healthTimeout() time.Duration {
	if s.timeout < time.Second {
		return time.Second
	}
	return s.timeout
}

// Increment implements Store. It never returns an error.
func (s *RemoteStore) Increment(ctx context.Context, key string, window time.Duration) (Bucket, error) {
	if window < MinWindow {
		return Bucket{}, apperrors.ValidationError(fmt.Sprintf("window must be at least %v, got %v", MinWindow, window))
	}
	now := s.now()
	start := time.Now()

	var count int64
	var reset time.Time
	err := s.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var err error
		count, reset, err = s.counter.IncrementWindow(callCtx, key, now, window)
		return classify(callCtx, "counter store increment", err)
	})
	if err == nil {
		s.recorder.StoreLatency(BackendRedis, time.Since(start))
		s.recovered()
		return Bucket{Count: uint64(count), ResetTime: reset}, nil
	}

	s.fellBack(err)
	start = time.Now()
	b, ferr := s.fallback.Increment(ctx, key, window)
	s.recorder.StoreLatency(BackendMemory, time.Since(start))
	return b, ferr
}

// Get implements Store.
func (s *RemoteStore) Get(ctx context.Context, key string) (Bucket, bool, error) {
	now := s.now()

	var count int64
	var reset time.Time
	var found bool
	err := s.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var err error
		count, reset, found, err = s.counter.GetWindow(callCtx, key, now)
		return classify(callCtx, "counter store read", err)
	})
	if err == nil {
		s.recovered()
		if !found {
			return Bucket{}, false, nil
		}
		return Bucket{Count: uint64(count), ResetTime: reset}, true, nil
	}

	s.fellBack(err)
	return s.fallback.Get(ctx, key)
}

// Health implements HealthReporter.
func (s *RemoteStore) Health(ctx context.Context) StoreHealth {
	h := StoreHealth{Backend: BackendRedis}

	if s.breaker.IsOpen() {
		h.Degraded = true
		h.Detail = "circuit breaker open, serving from memory"
		return h
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.healthTimeout())
	defer cancel()
	if err := s.counter.Health(pingCtx); err != nil {
		h.Degraded = true
		h.Detail = err.Error()
	}
	return h
}

// Degraded reports whether the last remote call fell back to memory.
func (s *RemoteStore) Degraded() bool {
	return s.degraded.Load()
}

// BreakerStats returns the breaker counters guarding Redis.
func (s *RemoteStore) BreakerStats() circuitbreaker.Stats {
	return s.breaker.Stats()
}

// Close stops the fallback sweep. The Redis client belongs to the caller.
func (s *RemoteStore) Close() error {
	return s.fallback.Close()
}

func (s *RemoteStore) fellBack(err error) {
	reason := fallbackReason(err)
	s.recorder.StoreFallback(reason)

	// The server answered, so the store is not degraded; only this key is.
	if reason == metrics.ReasonData {
		s.warn.Do(func() {
			s.logger.Warn("Counter store rejected a bucket, counting it in memory",
				logging.Field{Key: "error", Value: err.Error()},
			)
		})
		return
	}

	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("Counter store unavailable, falling back to memory",
			logging.Field{Key: "reason", Value: reason},
			logging.Field{Key: "error", Value: err.Error()},
		)
		return
	}
	s.warn.Do(func() {
		s.logger.Warn("Counter store still unavailable, serving from memory",
			logging.Field{Key: "reason", Value: reason},
			logging.Field{Key: "error", Value: err.Error()},
		)
	})
}

func (s *RemoteStore) recovered() {
	if s.degraded.CompareAndSwap(true, false) {
		s.logger.Info("Counter store recovered", logging.Field{Key: "backend", Value: BackendRedis})
	}
}

// classify turns a Redis error into a typed AppError. A call whose context
// ran out of time is a timeout even when the driver reports a network error.
// Data errors from the counter pass through unchanged.
func classify(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsType(err, apperrors.ErrTypeData) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.TimeoutError(operation, err)
	}
	return apperrors.ConnectionError(operation+" failed", err)
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return metrics.ReasonBreakerOpen
	case apperrors.IsType(err, apperrors.ErrTypeData):
		return metrics.ReasonData
	case apperrors.IsType(err, apperrors.ErrTypeTimeout):
		return metrics.ReasonTimeout
	case apperrors.IsType(err, apperrors.ErrTypeConnection):
		return metrics.ReasonUnavailable
	default:
		return metrics.ReasonError
	}
}
