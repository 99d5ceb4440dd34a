package iam

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"accessgate.org/internal/obs"
)

// Backoff is the retry schedule for transient permission-service failures.
// The zero value is not usable; take DefaultBackoff and adjust.
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultBackoff waits 1s, 2s, 4s between at most three attempts.
func DefaultBackoff() Backoff {
	return Backoff{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2}
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(b.BaseDelay) * math.Pow(mult, float64(attempt-1)))
}

type retryClient struct {
	Client
	backoff Backoff
	log     *zap.SugaredLogger
	sleep   func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps a client so CreateRole and AttachPolicy survive transient
// failures. Permanent errors abort immediately; exhausting the schedule
// surfaces the last error. Detach and delete are rollback operations and
// pass through untouched: rollback is attempted exactly once.
func WithRetry(c Client, b Backoff, log *zap.SugaredLogger) Client {
	return &retryClient{Client: c, backoff: b, log: log, sleep: sleepCtx}
}

func (r *retryClient) CreateRole(ctx context.Context, name, description string) (Role, error) {
	var role Role
	err := r.do(ctx, "create_role", func() error {
		var err error
		role, err = r.Client.CreateRole(ctx, name, description)
		return err
	})
	return role, err
}

func (r *retryClient) AttachPolicy(ctx context.Context, roleName, policyARN string) error {
	return r.do(ctx, "attach_policy", func() error {
		return r.Client.AttachPolicy(ctx, roleName, policyARN)
	})
}

func (r *retryClient) do(ctx context.Context, operation string, fn func() error) error {
	attempts := r.backoff.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = fn()
		if last == nil {
			return nil
		}
		if IsPermanent(last) {
			return last
		}
		if attempt == attempts {
			break
		}
		delay := r.backoff.Delay(attempt)
		r.log.Warnw("permission service call failed, retrying",
			"operation", operation, "attempt", attempt, "delay", delay, "error", last)
		obs.IAMRetries.WithLabelValues(operation).Inc()
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
