package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig bounds request rate and retry behavior for a provider.
type RateLimiterConfig struct {
	RequestsPerMinute int
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// RateLimitedProvider wraps a Provider with a token-bucket limiter and
// bounded exponential-backoff retries.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	cfg     RateLimiterConfig
}

// NewRateLimitedProvider validates the config and wraps the provider.
func NewRateLimitedProvider(inner Provider, cfg RateLimiterConfig) (*RateLimitedProvider, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("requests per minute must be positive, got %d", cfg.RequestsPerMinute)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	limit := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		cfg:     cfg,
	}, nil
}

func (r *RateLimitedProvider) Name() string         { return r.inner.Name() }
func (r *RateLimitedProvider) DefaultModel() string { return r.inner.DefaultModel() }

// Complete waits for a limiter token, then delegates. Failed calls are
// retried up to MaxRetries times with doubling backoff.
func (r *RateLimitedProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == r.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return nil, fmt.Errorf("completion failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
