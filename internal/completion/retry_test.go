package completion

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyCompleter struct {
	mu       sync.Mutex
	failures []error
	calls    int
	jsonCall int
	deadline []bool
}

func (f *flakyCompleter) Complete(ctx context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	f.deadline = append(f.deadline, hasDeadline)
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return "", err
	}
	return "ok", nil
}

func (f *flakyCompleter) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.jsonCall++
	f.mu.Unlock()
	return f.Complete(ctx, prompt)
}

func newTestRetrying(inner Completer, attempts int) (*Retrying, *[]time.Duration) {
	r := NewRetrying(inner, RetryPolicy{MaxAttempts: attempts, Timeout: time.Second, Delay: 100 * time.Millisecond})
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetrying_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyCompleter{failures: []error{errors.New("reset"), &StatusError{StatusCode: http.StatusServiceUnavailable}}}
	r, slept := newTestRetrying(inner, 3)

	text, err := r.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
	assert.Equal(t, []bool{true, true, true}, inner.deadline, "every attempt gets its own timeout")
}

func TestRetrying_GivesUpAfterMaxAttempts(t *testing.T) {
	boom := errors.New("boom")
	inner := &flakyCompleter{failures: []error{boom, boom, boom, boom}}
	r, _ := newTestRetrying(inner, 3)

	_, err := r.Complete(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, inner.calls)
}

func TestRetrying_StopsOnPermanentError(t *testing.T) {
	inner := &flakyCompleter{failures: []error{&StatusError{StatusCode: http.StatusUnauthorized, Body: "bad key"}}}
	r, slept := newTestRetrying(inner, 3)

	_, err := r.Complete(context.Background(), "p")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, *slept)
}

func TestRetrying_ReturnsContextErrorWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &flakyCompleter{failures: []error{errors.New("slow")}}
	r, _ := newTestRetrying(inner, 3)
	r.inner = completerFunc(func(ctx context.Context, p string) (string, error) {
		cancel()
		return inner.Complete(ctx, p)
	})

	_, err := r.Complete(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetrying_CompleteJSON(t *testing.T) {
	structured := &flakyCompleter{}
	r, _ := newTestRetrying(structured, 2)
	_, err := r.CompleteJSON(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 1, structured.jsonCall)

	plain := completerFunc(func(context.Context, string) (string, error) { return "text", nil })
	r, _ = newTestRetrying(plain, 2)
	text, err := r.CompleteJSON(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "text", text)
	assert.Equal(t, "unknown", r.Name())
}

func TestNewRetrying_Defaults(t *testing.T) {
	r := NewRetrying(NewMockCompleter(), RetryPolicy{Delay: -1})
	assert.Equal(t, DefaultRetryPolicy().MaxAttempts, r.policy.MaxAttempts)
	assert.Equal(t, DefaultRetryPolicy().Timeout, r.policy.Timeout)
	assert.Zero(t, r.policy.Delay)
	assert.Equal(t, "mock", r.Name())
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(context.Canceled))
	assert.True(t, IsPermanent(&StatusError{StatusCode: http.StatusBadRequest}))
	assert.False(t, IsPermanent(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsPermanent(&StatusError{StatusCode: http.StatusBadGateway}))
	assert.False(t, IsPermanent(context.DeadlineExceeded))
	assert.False(t, IsPermanent(errors.New("network")))
}

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
