package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"inkwell/api/internal/proofread"
)

// Service is what the rest of the application consumes. *Client and
// *CachedClient both satisfy it.
type Service interface {
	Proofread(ctx context.Context, text string) ([]proofread.Span, error)
	Readability(ctx context.Context, text string) (Metrics, error)
	Rewrite(ctx context.Context, text, sample string) (string, error)
}

// CachedClient caches deterministic analysis results in Redis, keyed by a
// content hash. Proofread and Readability run at low temperature so a cache
// hit is as good as a fresh call; Rewrite is intentionally uncached, its
// output varies per call. Redis failures degrade to the uncached path.
type CachedClient struct {
	inner  Service
	client redis.Cmdable
	ttl    time.Duration
}

// NewCachedClient wraps inner with a Redis result cache.
func NewCachedClient(inner Service, client redis.Cmdable, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, client: client, ttl: ttl}
}

func cacheKey(kind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "analysis:" + kind + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedClient) Proofread(ctx context.Context, text string) ([]proofread.Span, error) {
	key := cacheKey("proofread", text)
	if data, err := c.client.Get(ctx, key).Result(); err == nil {
		var spans []proofread.Span
		if err := json.Unmarshal([]byte(data), &spans); err == nil {
			return spans, nil
		}
	} else if err != redis.Nil {
		log.Printf("analysis: cache lookup: %v", err)
	}

	spans, err := c.inner.Proofread(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, spans)
	return spans, nil
}

func (c *CachedClient) Readability(ctx context.Context, text string) (Metrics, error) {
	key := cacheKey("readability", text)
	if data, err := c.client.Get(ctx, key).Result(); err == nil {
		var m Metrics
		if err := json.Unmarshal([]byte(data), &m); err == nil {
			return m, nil
		}
	} else if err != redis.Nil {
		log.Printf("analysis: cache lookup: %v", err)
	}

	m, err := c.inner.Readability(ctx, text)
	if err != nil {
		return Metrics{}, err
	}
	c.store(ctx, key, m)
	return m, nil
}

func (c *CachedClient) Rewrite(ctx context.Context, text, sample string) (string, error) {
	return c.inner.Rewrite(ctx, text, sample)
}

func (c *CachedClient) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("analysis: marshal cache entry: %v", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("analysis: cache store: %v", err)
	}
}

// NewRedis connects a Redis client from a URL, verifying the connection the
// same way the session store does.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
