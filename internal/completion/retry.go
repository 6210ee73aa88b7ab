package completion

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds how a completion call is retried.
type RetryPolicy struct {
	MaxAttempts int
	Timeout     time.Duration // per attempt
	Delay       time.Duration // multiplied by the attempt number
}

// DefaultRetryPolicy is three attempts of 30s each with a 500ms linear delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Timeout: 30 * time.Second, Delay: 500 * time.Millisecond}
}

// Retrying wraps a Completer with bounded attempts and per-attempt timeouts.
type Retrying struct {
	inner  Completer
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps inner. Zero fields in policy take their defaults.
func NewRetrying(inner Completer, policy RetryPolicy) *Retrying {
	def := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.Timeout <= 0 {
		policy.Timeout = def.Timeout
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	return &Retrying{inner: inner, policy: policy, sleep: sleepContext}
}

// Complete implements Completer.
func (r *Retrying) Complete(ctx context.Context, prompt string) (string, error) {
	return r.do(ctx, "complete", func(ctx context.Context) (string, error) {
		return r.inner.Complete(ctx, prompt)
	})
}

// CompleteJSON implements StructuredCompleter. Completers without structured
// support get a plain Complete call.
func (r *Retrying) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	sc, ok := r.inner.(StructuredCompleter)
	if !ok {
		return r.Complete(ctx, prompt)
	}
	return r.do(ctx, "complete_json", func(ctx context.Context) (string, error) {
		return sc.CompleteJSON(ctx, prompt)
	})
}

// Name reports the wrapped adapter's name when it has one.
func (r *Retrying) Name() string {
	if n, ok := r.inner.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}

func (r *Retrying) do(ctx context.Context, op string, call func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		text, err := call(attemptCtx)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		slog.Warn("completion attempt failed",
			"op", op,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"error", err,
		)
		if IsPermanent(err) {
			break
		}
		if attempt < r.policy.MaxAttempts {
			if err := r.sleep(ctx, time.Duration(attempt)*r.policy.Delay); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("completion failed after retries: %w", lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
