package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// rateLimitIPPrefix is the Redis key prefix for per-client rate limits.
	rateLimitIPPrefix = "jobsift:ratelimit:ip:"
	// rateLimitIPTTL is the TTL for per-client rate limit keys.
	rateLimitIPTTL = 10 * time.Second
)

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes a token bucket atomically.
// Returns {allowed, retry_after_seconds, remaining_tokens}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	tokens = math.min(burst, tokens + ((now - last_update) * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// CheckIPRateLimit consumes one token from the bucket of the given client IP.
// The IP is hashed so raw addresses are never stored.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", ratePerSecond)
	}

	key := rateLimitIPPrefix + hashIP(ip)
	now := time.Now()

	reply, err := tokenBucketScript.Run(ctx, c.client,
		[]string{key},
		ratePerSecond, burst, now.Unix(), int(rateLimitIPTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("run token bucket: %w", err)
	}

	return bucketResult(reply, float64(ratePerSecond), now)
}

// bucketResult decodes the token bucket script reply.
func bucketResult(reply []int64, rate float64, now time.Time) (*RateLimitResult, error) {
	if len(reply) != 3 {
		return nil, fmt.Errorf("unexpected token bucket reply length %d", len(reply))
	}

	return &RateLimitResult{
		Allowed:    reply[0] == 1,
		Remaining:  reply[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(reply[1]) * time.Second,
	}, nil
}

// hashIP creates a truncated SHA256 hash of an IP address.
func hashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(hash[:8])
}
