package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/robfig/cron/v3"

	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
)

const (
	shardCount           = 64
	DefaultSweepInterval = 5 * time.Minute
	// sweepBatch caps the deletions made under one stripe lock hold.
	sweepBatch = 128
)

type shard struct {
	mu      sync.Mutex
	buckets map[string]Bucket
}

// MemoryStore is a process-local Store. Keys are spread over lock stripes so
// increments of different keys rarely contend. Expired buckets are ignored on
// read and removed by a periodic sweep.
type MemoryStore struct {
	shards    [shardCount]*shard
	now       func() time.Time
	logger    logging.Logger
	interval  time.Duration
	scheduler *cron.Cron
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock replaces time.Now.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithSweepInterval sets how often expired buckets are removed. Zero or
// negative disables the background sweep.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.interval = d }
}

// WithMemoryLogger sets the logger used by the sweep.
func WithMemoryLogger(logger logging.Logger) MemoryOption {
	return func(s *MemoryStore) { s.logger = logger }
}

// NewMemoryStore creates the store and starts its sweep.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:      time.Now,
		interval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.GetGlobalLogger()
	}
	for i := range s.shards {
		s.shards[i] = &shard{buckets: make(map[string]Bucket)}
	}

	if s.interval > 0 {
		s.scheduler = cron.New()
		schedule := fmt.Sprintf("@every %s", s.interval)
		if _, err := s.scheduler.AddFunc(schedule, func() { s.Sweep() }); err != nil {
			s.logger.Error("Failed to schedule counter sweep", err, logging.Field{Key: "interval", Value: s.interval.String()})
		} else {
			s.scheduler.Start()
		}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%shardCount]
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Bucket, error) {
	if window < MinWindow {
		return Bucket{}, apperrors.ValidationError(fmt.Sprintf("window must be at least %v, got %v", MinWindow, window))
	}

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()
	b, ok := sh.buckets[key]
	if !ok || !now.Before(b.ResetTime) {
		b = Bucket{Count: 1, ResetTime: now.Add(window)}
	} else {
		b.Count++
	}
	sh.buckets[key] = b
	return b, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (Bucket, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[key]
	if !ok {
		return Bucket{}, false, nil
	}
	if !s.now().Before(b.ResetTime) {
		delete(sh.buckets, key)
		return Bucket{}, false, nil
	}
	return b, true, nil
}

// Sweep removes expired buckets and returns how many it removed. It holds one
// stripe lock at a time and releases it after every sweepBatch deletions.
func (s *MemoryStore) Sweep() int {
	removed := 0
	for _, sh := range s.shards {
		for {
			n, more := s.sweepShard(sh)
			removed += n
			if !more {
				break
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("Swept expired rate limit buckets", logging.Field{Key: "removed", Value: removed})
	}
	return removed
}

// sweepShard deletes up to sweepBatch expired buckets and reports whether it
// stopped because the batch was full.
func (s *MemoryStore) sweepShard(sh *shard) (int, bool) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := s.now()
	n := 0
	for key, b := range sh.buckets {
		if now.Before(b.ResetTime) {
			continue
		}
		delete(sh.buckets, key)
		n++
		if n == sweepBatch {
			return n, true
		}
	}
	return n, false
}

// Len returns the number of buckets held, expired or not.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.buckets)
		sh.mu.Unlock()
	}
	return n
}

// Health implements HealthReporter.
func (s *MemoryStore) Health(context.Context) StoreHealth {
	return StoreHealth{Backend: BackendMemory}
}

// Close stops the sweep and waits for a running sweep to finish.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		if s.scheduler != nil {
			<-s.scheduler.Stop().Done()
		}
	})
	return nil
}
