package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMiddlewareDisabledOnUnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Nothing listens here; the failed ping must disable the cache and
	// leave generation working.
	mw := NewCacheMiddleware(ctx, CacheOptions{Addr: "127.0.0.1:1"}, nil)
	core := newFakeGenerator()
	g := mw(core)

	for i := 0; i < 2; i++ {
		resp, err := g.Generate(context.Background(), &Request{Prompt: "same prompt"})
		require.NoError(t, err)
		assert.False(t, resp.FromCache)
	}
	assert.Equal(t, int64(2), core.calls.Load())
}

func TestCacheKeyIdentity(t *testing.T) {
	core := newFakeGenerator()
	g := &cachedGenerator{next: core}

	base := &Request{Prompt: "solve the task", System: "be brief", MaxTokens: 64, Temperature: 0.2}

	t.Run("deterministic", func(t *testing.T) {
		clone := *base
		assert.Equal(t, g.cacheKey(base), g.cacheKey(&clone))
	})

	t.Run("prompt changes the key", func(t *testing.T) {
		changed := *base
		changed.Prompt = "solve the other task"
		assert.NotEqual(t, g.cacheKey(base), g.cacheKey(&changed))
	})

	t.Run("system prompt changes the key", func(t *testing.T) {
		changed := *base
		changed.System = "be verbose"
		assert.NotEqual(t, g.cacheKey(base), g.cacheKey(&changed))
	})

	t.Run("model changes the key", func(t *testing.T) {
		other := &cachedGenerator{next: &fakeGenerator{info: Info{Provider: "fake", Model: "other-model"}}}
		assert.NotEqual(t, g.cacheKey(base), other.cacheKey(base))
	})

	t.Run("trace id does not change the key", func(t *testing.T) {
		traced := *base
		traced.TraceID = "trace-456"
		assert.Equal(t, g.cacheKey(base), g.cacheKey(&traced))
	})
}
