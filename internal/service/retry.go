package service

import (
	"context"
	"time"

	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/registry"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds the attempts made against a registry inside one stage.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	AttemptTimeout time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		InitialBackoff: time.Second,
		AttemptTimeout: 60 * time.Second,
	}
}

func NewRetryPolicy(rc internal.RegistryConfig) RetryPolicy {
	return RetryPolicy{
		Attempts:       rc.Attempts,
		InitialBackoff: rc.InitialBackoff,
		AttemptTimeout: rc.AttemptTimeout,
	}
}

// Do calls fn until it succeeds, fails with a non-transient error or the
// attempts run out. Each call gets its own AttemptTimeout. The final error
// is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.Attempts, 1)
	base := p.InitialBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		defer cancel()

		err := fn(attemptCtx, attempt)
		if err != nil && ctx.Err() == nil && registry.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
