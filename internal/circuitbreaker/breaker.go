// Package circuitbreaker isolates calls to the shared counter store using Sony's gobreaker
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
	"github.com/RkayG/Cxperia-sub002/internal/common/logging"
)

// ErrOpen is returned by Execute while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures uint32
	// Timeout is how long the breaker stays open before letting a trial request through
	Timeout time.Duration
	// MaxConcurrentRequests is the number of trial requests allowed while half-open
	MaxConcurrentRequests uint32
}

// DefaultConfig returns the configuration used for the counter store
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures == 0 {
		return apperrors.ConfigError("circuit breaker MaxFailures must be positive")
	}
	if c.Timeout <= 0 {
		return apperrors.ConfigError(fmt.Sprintf("circuit breaker Timeout must be positive, got %v", c.Timeout))
	}
	if c.MaxConcurrentRequests == 0 {
		return apperrors.ConfigError("circuit breaker MaxConcurrentRequests must be positive")
	}
	return nil
}

// State represents the current state of the circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of the breaker counters
type Stats struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	TotalFailures       uint32 `json:"total_failures"`
}

// Breaker wraps gobreaker with the service logger and a state change hook
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// New creates a breaker. onChange, when non-nil, is called after every state transition.
func New(name string, config Config, logger logging.Logger, onChange func(from, to State)) *Breaker {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.Field{Key: "error", Value: err.Error()},
			logging.Field{Key: "breaker", Value: name},
		)
		config = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxConcurrentRequests,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Warn("Circuit breaker opened",
					logging.Field{Key: "breaker", Value: name},
					logging.Field{Key: "from", Value: from.String()},
					logging.Field{Key: "cooldown", Value: config.Timeout.String()},
				)
			} else {
				logger.Info("Circuit breaker state changed",
					logging.Field{Key: "breaker", Value: name},
					logging.Field{Key: "from", Value: from.String()},
					logging.Field{Key: "to", Value: to.String()},
				)
			}
			if onChange != nil {
				onChange(convertState(from), convertState(to))
			}
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation and rejected data say nothing about the store's health.
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				apperrors.IsType(err, apperrors.ErrTypeData)
		},
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs fn through the breaker. It returns ErrOpen without calling fn
// while the breaker is open or its half-open trial slots are taken.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	return err
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	return convertState(b.breaker.State())
}

// IsOpen returns true if the circuit breaker is open
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}

// Stats returns current statistics
func (b *Breaker) Stats() Stats {
	counts := b.breaker.Counts()
	return Stats{
		Name:                b.name,
		State:               b.State().String(),
		Requests:            counts.Requests,
		ConsecutiveFailures: counts.ConsecutiveFailures,
		TotalFailures:       counts.TotalFailures,
	}
}

func convertState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
