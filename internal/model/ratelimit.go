package model

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedGenerator enforces a token-bucket request rate in front of
// a provider. Callers block until the bucket has capacity or their
// context is cancelled, keeping bursty worker pools within provider
// quotas.
type rateLimitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// NewRateLimitMiddleware returns middleware that bounds the request rate
// to requestsPerSecond with the given burst capacity. A non-positive
// rate disables limiting.
func NewRateLimitMiddleware(requestsPerSecond float64, burst int) Middleware {
	return func(next Generator) Generator {
		if requestsPerSecond <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		return &rateLimitedGenerator{
			next:    next,
			limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		}
	}
}

func (g *rateLimitedGenerator) Info() Info { return g.next.Info() }

func (g *rateLimitedGenerator) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return g.next.Generate(ctx, req)
}
