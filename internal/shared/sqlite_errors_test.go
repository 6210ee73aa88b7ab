package shared

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY: database busy"), true},
		{errors.New("database is locked (5)"), true},
		{errors.New("UNIQUE constraint failed"), false},
	}
	for _, tt := range tests {
		if got := IsSQLiteConflictError(tt.err); got != tt.want {
			t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryOnConflict(t *testing.T) {
	t.Run("retries conflicts then succeeds", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(context.Background(), "op", 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("err = %v, calls = %d; want nil, 3", err, calls)
		}
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := RetryOnConflict(context.Background(), "op", 3, time.Millisecond, func() error {
			calls++
			return boom
		})
		if !errors.Is(err, boom) || calls != 1 {
			t.Fatalf("err = %v, calls = %d; want boom, 1", err, calls)
		}
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(context.Background(), "op", 2, time.Millisecond, func() error {
			calls++
			return errors.New("SQLITE_BUSY")
		})
		if err == nil || calls != 2 {
			t.Fatalf("err = %v, calls = %d; want error, 2", err, calls)
		}
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryOnConflict(ctx, "op", 5, time.Hour, func() error {
			return errors.New("SQLITE_BUSY")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}
