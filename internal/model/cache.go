package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCacheTTL  = 24 * time.Hour
	cachePingTimeout = 5 * time.Second
	cacheKeyPrefix   = "membench:gen:"
	defaultRedisPool = 10
)

// CacheOptions configures the Redis-backed generation cache.
type CacheOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// cachedGenerator serves repeated generation requests from Redis.
// Identical (provider, model, system, prompt) requests within the TTL
// return the stored response instead of calling the provider. Redis
// failures degrade to a pass-through: generation always proceeds.
type cachedGenerator struct {
	next    Generator
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewCacheMiddleware returns caching middleware backed by Redis. If
// client is nil a new client is created from opts; a failed ping
// disables the cache rather than failing construction.
func NewCacheMiddleware(ctx context.Context, opts CacheOptions, client *redis.Client) Middleware {
	enabled := true
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
			PoolSize: defaultRedisPool,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			slog.Warn("redis unreachable, generation cache disabled", "addr", opts.Addr, "error", err)
			enabled = false
		}
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return func(next Generator) Generator {
		return &cachedGenerator{
			next:    next,
			client:  client,
			ttl:     ttl,
			enabled: enabled,
			logger:  slog.Default().With("component", "cache"),
		}
	}
}

func (g *cachedGenerator) Info() Info { return g.next.Info() }

func (g *cachedGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	if !g.enabled {
		return g.next.Generate(ctx, req)
	}

	key := g.cacheKey(req)

	if resp, ok := g.lookup(ctx, key); ok {
		g.hits.Add(1)
		resp.FromCache = true
		return resp, nil
	}
	g.misses.Add(1)

	resp, err := g.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	g.store(ctx, key, resp)
	return resp, nil
}

// cacheKey digests the full request identity. Provider and model are
// part of the key so distinct generators never share entries.
func (g *cachedGenerator) cacheKey(req *Request) string {
	info := g.next.Info()
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%g|%s|%s",
		info.Provider, info.Model, req.MaxTokens, req.Temperature, req.System, req.Prompt)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (g *cachedGenerator) lookup(ctx context.Context, key string) (*Response, bool) {
	data, err := g.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			g.errors.Add(1)
			g.logger.Warn("cache lookup failed", "error", err)
		}
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		g.errors.Add(1)
		g.client.Del(ctx, key)
		return nil, false
	}
	return &resp, true
}

func (g *cachedGenerator) store(ctx context.Context, key string, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		g.errors.Add(1)
		return
	}
	if err := g.client.Set(ctx, key, data, g.ttl).Err(); err != nil {
		g.errors.Add(1)
		g.logger.Warn("cache store failed", "error", err)
	}
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// Stats returns a snapshot of the cache counters.
func (g *cachedGenerator) Stats() CacheStats {
	return CacheStats{
		Hits:   g.hits.Load(),
		Misses: g.misses.Load(),
		Errors: g.errors.Load(),
	}
}
