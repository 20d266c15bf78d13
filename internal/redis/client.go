package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/RkayG/Cxperia-sub002/internal/common/errors"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	URL      string `json:"url"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	// DialTimeout bounds connection establishment. Zero keeps the go-redis default.
	DialTimeout time.Duration `json:"dial_timeout"`
}

// fixedWindowScript increments the counter of a fixed window stored as a hash
// {count, reset}. reset is an absolute unix time in milliseconds and is never
// moved by an increment inside a live window.
//
// KEYS[1] bucket key, ARGV[1] now (ms), ARGV[2] window (ms).
// Returns {count, reset}.
var fixedWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local stored = redis.call('HGET', KEYS[1], 'reset')
local reset = nil
if stored then
	reset = tonumber(stored)
end
if reset == nil or reset <= now then
	reset = now + window
	redis.call('HSET', KEYS[1], 'count', 1, 'reset', reset)
	redis.call('PEXPIRE', KEYS[1], window)
	return {1, reset}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
local ttl = reset - now
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return {count, reset}
`)

// New builds a client without contacting the server. Connection problems
// surface on the first command.
func New(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	var opts *redis.Options
	if config.URL != "" {
		parsed, err := redis.ParseURL(config.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL: %w", err)
		}
		opts = parsed
		if config.Password != "" && opts.Password == "" {
			opts.Password = config.Password
		}
	} else {
		if config.Address == "" {
			config.Address = "localhost:6379"
		}
		opts = &redis.Options{
			Addr:     config.Address,
			Password: config.Password,
			DB:       config.DB,
		}
	}

	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	opts.PoolSize = config.PoolSize
	if config.DialTimeout > 0 {
		opts.DialTimeout = config.DialTimeout
	}

	return &Client{
		rdb:    redis.NewClient(opts),
		config: config,
	}, nil
}

// NewClient builds a client and verifies the server answers a PING.
func NewClient(config *Config) (*Client, error) {
	client, err := New(config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.rdb.Ping(ctx).Err(); err != nil {
		_ = client.rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Addr returns the server address the client talks to.
func (c *Client) Addr() string {
	return c.rdb.Options().Addr
}

// IncrementWindow atomically increments the fixed window counter at key and
// returns the new count and the window's reset time.
func (c *Client) IncrementWindow(ctx context.Context, key string, now time.Time, window time.Duration) (int64, time.Time, error) {
	if window.Milliseconds() <= 0 {
		return 0, time.Time{}, fmt.Errorf("window %v for %s is shorter than one millisecond", window, key)
	}
	res, err := fixedWindowScript.Run(ctx, c.rdb, []string{key}, now.UnixMilli(), window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, wrapError("increment window "+key, err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return 0, time.Time{}, apperrors.DataError("increment window "+key, fmt.Errorf("unexpected script reply %v", res))
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, time.Time{}, apperrors.DataError("increment window "+key, fmt.Errorf("unexpected count %v", values[0]))
	}
	resetMs, ok := values[1].(int64)
	if !ok {
		return 0, time.Time{}, apperrors.DataError("increment window "+key, fmt.Errorf("unexpected reset %v", values[1]))
	}

	return count, time.UnixMilli(resetMs), nil
}

// GetWindow reads the counter at key without modifying it. found is false when
// the key is missing or its window has ended at now.
func (c *Client) GetWindow(ctx context.Context, key string, now time.Time) (count int64, reset time.Time, found bool, err error) {
	values, err := c.rdb.HMGet(ctx, key, "count", "reset").Result()
	if err != nil {
		return 0, time.Time{}, false, wrapError("read window "+key, err)
	}
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return 0, time.Time{}, false, nil
	}

	count, err = parseInt(values[0])
	if err != nil {
		return 0, time.Time{}, false, apperrors.DataError("read window "+key, err)
	}
	resetMs, err := parseInt(values[1])
	if err != nil {
		return 0, time.Time{}, false, apperrors.DataError("read window "+key, err)
	}

	reset = time.UnixMilli(resetMs)
	if !now.Before(reset) {
		return 0, time.Time{}, false, nil
	}
	return count, reset, true, nil
}

// wrapError marks error replies sent by the server, such as WRONGTYPE, as data
// errors. Anything else is a transport failure.
func wrapError(operation string, err error) error {
	var reply redis.Error
	if errors.As(err, &reply) && !errors.Is(err, redis.Nil) {
		return apperrors.DataError(operation, err)
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func parseInt(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}
