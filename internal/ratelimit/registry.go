package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RkayG/Cxperia-sub002/internal/circuitbreaker"
	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
	"github.com/RkayG/Cxperia-sub002/internal/metrics"
)

// Preset limiter names.
const (
	PresetFeedback = "feedback"
	PresetGeneral  = "general"
	PresetStrict   = "strict"
)

// DefaultPresets returns the built-in limiter configurations.
func DefaultPresets() map[string]Config {
	return map[string]Config{
		PresetFeedback: {
			Name:        PresetFeedback,
			Window:      15 * time.Minute,
			MaxRequests: 3,
			Message:     "Too many feedback submissions, please try again later.",
		},
		PresetGeneral: {
			Name:        PresetGeneral,
			Window:      15 * time.Minute,
			MaxRequests: 100,
			Message:     DefaultMessage,
		},
		PresetStrict: {
			Name:        PresetStrict,
			Window:      time.Minute,
			MaxRequests: 10,
			Message:     "Too many requests to this endpoint, please slow down.",
		},
	}
}

// Registry hands out one Limiter per name for the lifetime of the process,
// all sharing a single Store.
type Registry struct {
	mu       sync.Mutex
	store    Store
	presets  map[string]Config
	limiters map[string]*Limiter
	opts     []Option
	// keyGenerator, when set, replaces the default generator of configs that leave it empty.
	keyGenerator KeyGenerator
	disabled     bool
	closed       bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPreset adds or replaces a preset.
func WithPreset(config Config) RegistryOption {
	return func(r *Registry) { r.presets[config.Name] = config }
}

// WithLimiterOptions passes options to every limiter the registry creates.
func WithLimiterOptions(opts ...Option) RegistryOption {
	return func(r *Registry) { r.opts = append(r.opts, opts...) }
}

// WithDefaultKeyGenerator sets the generator used when a config has none.
func WithDefaultKeyGenerator(kg KeyGenerator) RegistryOption {
	return func(r *Registry) { r.keyGenerator = kg }
}

// WithLimitingDisabled makes every limiter allow all requests.
func WithLimitingDisabled(disabled bool) RegistryOption {
	return func(r *Registry) { r.disabled = disabled }
}

func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:    store,
		presets:  DefaultPresets(),
		limiters: make(map[string]*Limiter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the limiter registered under name, creating it on first
// use. config is used only on creation; nil means the preset of that name.
// Later calls return the existing limiter and ignore config.
func (r *Registry) GetOrCreate(name string, config *Config) (*Limiter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[name]; ok {
		return l, nil
	}
	if r.closed {
		return nil, apperrors.InternalError("rate limiter registry is closed", nil)
	}

	var cfg Config
	if config != nil {
		cfg = *config
	} else {
		preset, ok := r.presets[name]
		if !ok {
			return nil, apperrors.ConfigError("no rate limiter preset named " + name)
		}
		cfg = preset
	}
	cfg.Name = name
	if cfg.KeyGenerator == nil && r.keyGenerator != nil {
		cfg.KeyGenerator = r.keyGenerator
	}
	if r.disabled {
		cfg.Disabled = true
	}

	l, err := NewLimiter(cfg, r.store, r.opts...)
	if err != nil {
		return nil, err
	}
	r.limiters[name] = l
	return l, nil
}

// MustGet is GetOrCreate(name, nil) for presets known to exist.
func (r *Registry) MustGet(name string) *Limiter {
	l, err := r.GetOrCreate(name, nil)
	if err != nil {
		panic(err)
	}
	return l
}

// Store returns the shared store.
func (r *Registry) Store() Store {
	return r.store
}

// LimiterStats describes one registered limiter.
type LimiterStats struct {
	Name        string `json:"name"`
	MaxRequests int    `json:"maxRequests"`
	WindowMs    int64  `json:"windowMs"`
	Message     string `json:"message"`
	Disabled    bool   `json:"disabled,omitempty"`
}

// Stats is a snapshot of the registry.
type Stats struct {
	Limiters []LimiterStats        `json:"limiters"`
	Store    StoreHealth           `json:"store"`
	Breaker  *circuitbreaker.Stats `json:"breaker,omitempty"`
}

// Stats lists the created limiters sorted by name together with the store state.
func (r *Registry) Stats(ctx context.Context) Stats {
	r.mu.Lock()
	limiters := make([]LimiterStats, 0, len(r.limiters))
	for _, l := range r.limiters {
		c := l.Config()
		limiters = append(limiters, LimiterStats{
			Name:        c.Name,
			MaxRequests: c.MaxRequests,
			WindowMs:    c.Window.Milliseconds(),
			Message:     c.Message,
			Disabled:    c.Disabled,
		})
	}
	r.mu.Unlock()

	sort.Slice(limiters, func(i, j int) bool { return limiters[i].Name < limiters[j].Name })

	stats := Stats{Limiters: limiters, Store: r.Health(ctx)}
	if remote, ok := r.store.(*RemoteStore); ok {
		b := remote.BreakerStats()
		stats.Breaker = &b
	}
	return stats
}

// Health reports the shared store's backend.
func (r *Registry) Health(ctx context.Context) StoreHealth {
	if hr, ok := r.store.(HealthReporter); ok {
		return hr.Health(ctx)
	}
	return StoreHealth{Backend: "custom"}
}

// Close closes the store once. Limiters already handed out keep their store reference.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.store.Close()
}

// NewStoreOptions carries what BuildStore needs to pick a backend.
type NewStoreOptions struct {
	Counter       WindowCounter
	Timeout       time.Duration
	SweepInterval time.Duration
	Breaker       circuitbreaker.Config
	Logger        logging.Logger
	Recorder      metrics.Recorder
}

// BuildStore returns a RemoteStore when a counter is given and a MemoryStore otherwise.
func BuildStore(ctx context.Context, o NewStoreOptions) Store {
	if o.Recorder == nil {
		o.Recorder = metrics.Noop{}
	}
	if o.Logger == nil {
		o.Logger = logging.GetGlobalLogger()
	}
	memory := NewMemoryStore(WithSweepInterval(o.SweepInterval), WithMemoryLogger(o.Logger))
	if o.Counter == nil {
		o.Logger.Info("Using in-memory rate limit store", logging.Field{Key: "sweep_interval", Value: o.SweepInterval.String()})
		return memory
	}
	return NewRemoteStore(ctx, o.Counter,
		WithStoreTimeout(o.Timeout),
		WithBreakerConfig(o.Breaker),
		WithFallbackStore(memory),
		WithRemoteLogger(o.Logger),
		WithRemoteRecorder(o.Recorder),
	)
}
