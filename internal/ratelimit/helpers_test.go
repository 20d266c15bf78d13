package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingRecorder struct {
	mu        sync.Mutex
	decisions map[string]int
	fallbacks []string
	states    []string
}

func newRecordingRecorder() *recordingRecorder {
	return &recordingRecorder{decisions: make(map[string]int)}
}

func (r *recordingRecorder) Decision(limiter, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions[limiter+"/"+outcome]++
}

func (r *recordingRecorder) StoreFallback(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, reason)
}

func (r *recordingRecorder) StoreLatency(string, time.Duration) {}

func (r *recordingRecorder) BreakerState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decisions[key]
}

func (r *recordingRecorder) fallbackReasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fallbacks...)
}

// failingStore always errors, as a third-party store might.
type failingStore struct{ err error }

func (s failingStore) Increment(context.Context, string, time.Duration) (Bucket, error) {
	return Bucket{}, s.err
}

func (s failingStore) Get(context.Context, string) (Bucket, bool, error) {
	return Bucket{}, false, s.err
}

func (s failingStore) Close() error { return nil }

func newTestMemoryStore(clock *fakeClock) *MemoryStore {
	return NewMemoryStore(
		WithMemoryClock(clock.Now),
		WithSweepInterval(0),
		WithMemoryLogger(logging.NewNopLogger()),
	)
}

func requestFrom(ip string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/feedback", nil)
	if ip != "" {
		r.Header.Set("X-Forwarded-For", ip)
	}
	return r
}
