// Package broker wraps the Redis connection shared with the worker
// process. Every round-trip is bounded by the configured operation
// timeout so a dead broker fails submissions fast instead of hanging
// request handlers.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable wraps connectivity failures (refused, timed out,
	// connection reset). Callers distinguish these from application
	// errors like a missing key.
	ErrUnavailable = errors.New("broker unavailable")

	// ErrKeyNotFound is returned by GetJSON when the key does not
	// exist or has expired.
	ErrKeyNotFound = errors.New("key not found")
)

// Config holds broker connection settings
type Config struct {
	Addr      string
	Password  string
	DB        int
	OpTimeout time.Duration // Per-operation upper bound
}

// Client is a thin wrapper around go-redis, safe for concurrent use.
type Client struct {
	rdb     *redis.Client
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a broker client. The connection pool is established
// lazily; use Ping to verify reachability at startup.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 3 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.OpTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	return &Client{
		rdb:     rdb,
		timeout: cfg.OpTimeout,
		log:     log.With().Str("component", "broker").Logger(),
	}
}

// Publish sends a payload on a pub/sub channel.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("%w: publish on %s: %v", ErrUnavailable, channel, err)
	}
	return nil
}

// PublishJSON marshals a value and publishes it.
func (c *Client) PublishJSON(ctx context.Context, channel string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", channel, err)
	}
	return c.Publish(ctx, channel, payload)
}

// SetJSON stores a value as JSON under a key with a TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// GetJSON loads a key and unmarshals it into dest. Returns
// ErrKeyNotFound for missing or expired keys.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value at %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Ping verifies broker reachability.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Subscribe opens a pub/sub subscription. The caller owns the
// returned handle; Subscriber wraps this with reconnect handling.
func (c *Client) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channel)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
