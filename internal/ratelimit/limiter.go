package ratelimit

import (
	"context"
	"time"

	"github.com/frahmantamala/acuhire/internal"
)

// Result of a single Take.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is a keyed token bucket. Every key starts full with Capacity tokens
// and regains RefillTokens every RefillInterval.
type Limiter interface {
	Take(ctx context.Context, key string) (Result, error)
}

type Config struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	// TTL bounds how long an idle bucket is remembered.
	TTL    time.Duration
	Prefix string
}

func ConfigFrom(c internal.RateLimitConfig) Config {
	cfg := Config{
		Capacity:       c.Capacity,
		RefillTokens:   c.RefillTokens,
		RefillInterval: c.RefillInterval,
		TTL:            c.TTL,
		Prefix:         c.Prefix,
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
	if c.RefillTokens <= 0 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = 6 * time.Second
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "rl"
	}
	return c
}

func (c Config) key(k string) string {
	return c.Prefix + ":" + k
}
