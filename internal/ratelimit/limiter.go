package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/metrics"
)

const (
	DefaultWindow  = 15 * time.Minute
	DefaultMessage = "Too many requests, please try again later."
	// MinWindow is the smallest window both stores can represent; Redis
	// keeps reset times and TTLs in milliseconds.
	MinWindow    = time.Millisecond
	keyNamespace = "ratelimit:"
)

// Config describes one limiter. It is copied at construction and never changes afterwards.
type Config struct {
	Name         string        `json:"name"`
	Window       time.Duration `json:"window"`
	MaxRequests  int           `json:"maxRequests"`
	Message      string        `json:"message"`
	KeyGenerator KeyGenerator  `json:"-"`
	// KeyPrefix namespaces store keys. Defaults to "ratelimit:<name>:".
	KeyPrefix string `json:"keyPrefix"`

	// Accepted for compatibility with callers that set them. Every request
	// is counted regardless.
	SkipSuccessfulRequests bool `json:"skipSuccessfulRequests,omitempty"`
	SkipFailedRequests     bool `json:"skipFailedRequests,omitempty"`

	// Disabled makes every check allow without touching the store.
	Disabled bool `json:"disabled,omitempty"`
}

// Validate fills defaults and rejects unusable limits.
func (c *Config) Validate() error {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MaxRequests <= 0 {
		return apperrors.ConfigError(fmt.Sprintf("limiter %q: MaxRequests must be positive, got %d", c.Name, c.MaxRequests))
	}
	if c.Window < 0 || (c.Window > 0 && c.Window < MinWindow) {
		return apperrors.ConfigError(fmt.Sprintf("limiter %q: Window must be at least %v, got %v", c.Name, MinWindow, c.Window))
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Message == "" {
		c.Message = DefaultMessage
	}
	if c.KeyGenerator == nil {
		c.KeyGenerator = DefaultKeyGenerator
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = keyNamespace + c.Name + ":"
	}
	return nil
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
	// RetryAfter is whole seconds until ResetTime, set only when the request is rejected.
	RetryAfter int `json:"retryAfter,omitempty"`
}

// Limiter applies one Config against a Store.
type Limiter struct {
	config   Config
	store    Store
	now      func() time.Time
	logger   logging.Logger
	recorder metrics.Recorder
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(logger logging.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(l *Limiter) { l.recorder = r }
}

// NewLimiter validates config and binds it to store.
func NewLimiter(config Config, store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, apperrors.ConfigError("rate limiter store is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		config:   config,
		store:    store,
		now:      time.Now,
		recorder: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.GetGlobalLogger()
	}
	l.logger = l.logger.WithFields(logging.Field{Key: "limiter", Value: config.Name})

	if config.SkipSuccessfulRequests || config.SkipFailedRequests {
		l.logger.Info("Skip options are accepted but every request is counted",
			logging.Field{Key: "skip_successful", Value: config.SkipSuccessfulRequests},
			logging.Field{Key: "skip_failed", Value: config.SkipFailedRequests},
		)
	}
	return l, nil
}

// Name returns the limiter name.
func (l *Limiter) Name() string {
	return l.config.Name
}

// Config returns a copy of the limiter configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// CheckLimit counts r against its key and decides whether it may proceed.
// Rejected requests are counted too.
func (l *Limiter) CheckLimit(r *http.Request) Decision {
	key := l.config.KeyGenerator(r)
	if key == "" {
		key = UnknownClient
	}
	return l.Check(r.Context(), key)
}

// Check is CheckLimit for callers that already derived the key.
func (l *Limiter) Check(ctx context.Context, key string) Decision {
	if l.config.Disabled {
		return l.open()
	}

	bucket, err := l.store.Increment(ctx, l.config.KeyPrefix+key, l.config.Window)
	if err != nil {
		l.logger.WithContext(ctx).Error("Rate limit store failed, allowing request", err,
			logging.Field{Key: "key", Value: key},
		)
		l.recorder.Decision(l.config.Name, metrics.OutcomeError)
		return l.open()
	}

	d := l.decide(bucket)
	if d.Allowed {
		l.recorder.Decision(l.config.Name, metrics.OutcomeAllowed)
		return d
	}

	l.recorder.Decision(l.config.Name, metrics.OutcomeRejected)
	l.logger.WithContext(ctx).Warn("Rate limit exceeded",
		logging.Field{Key: "key", Value: key},
		logging.Field{Key: "count", Value: bucket.Count},
		logging.Field{Key: "limit", Value: l.config.MaxRequests},
		logging.Field{Key: "retry_after", Value: d.RetryAfter},
	)
	return d
}

func (l *Limiter) decide(b Bucket) Decision {
	limit := uint64(l.config.MaxRequests)
	d := Decision{
		Allowed:   b.Count <= limit,
		Limit:     l.config.MaxRequests,
		ResetTime: b.ResetTime,
	}
	if b.Count < limit {
		d.Remaining = int(limit - b.Count)
	}
	if !d.Allowed {
		d.RetryAfter = retryAfterSeconds(b.ResetTime.Sub(l.now()))
	}
	return d
}

// open is the decision used when limiting is off or the store failed.
func (l *Limiter) open() Decision {
	return Decision{
		Allowed:   true,
		Limit:     l.config.MaxRequests,
		Remaining: l.config.MaxRequests,
		ResetTime: l.now().Add(l.config.Window),
	}
}

// retryAfterSeconds rounds up and never returns less than one second for a rejection.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
