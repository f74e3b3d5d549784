package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
)

const (
	keyAPIOrg = "api:limit:org:%s"
	keyAPIKey = "api:limit:key:%s"
)

// APILimiter throttles authenticated API traffic with a shared Redis
// token bucket. Limits apply per organization and, for programmatic
// callers, per API key so one runaway integration cannot exhaust the
// whole org budget.
type APILimiter struct {
	enabled bool

	bucket *TokenBucket

	rate  float64
	burst int
}

func NewAPILimiter(cfg config.Config) (*APILimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.APIRate <= 0 || limitCfg.APIBurst <= 0 {
		return nil, errors.New("api rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &APILimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.APIRate,
		burst:   limitCfg.APIBurst,
	}, nil
}

func (l *APILimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *APILimiter) AllowOrg(ctx context.Context, orgID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAPIOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
}

func (l *APILimiter) AllowKey(ctx context.Context, keyID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAPIKey, strings.TrimSpace(keyID)), l.rate, l.burst)
}
