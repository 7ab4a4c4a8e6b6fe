package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoReturnsValue(t *testing.T) {
	t.Parallel()

	got, err := Do(context.Background(), "echo", time.Second, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestDoPassesThroughErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, err := Do(context.Background(), "fail", time.Second, func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if IsFatal(err) {
		t.Fatalf("plain errors must not be fatal")
	}
}

func TestDoTimesOutIgnoringCall(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	_, err := Do(context.Background(), "stuck", 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !IsFatal(err) {
		t.Fatalf("timeouts must be fatal")
	}
}

func TestDoWrapsDeadlineFromCooperativeCall(t *testing.T) {
	t.Parallel()

	_, err := Do(context.Background(), "cooperative", 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestDoWithoutTimeout(t *testing.T) {
	t.Parallel()

	got, err := Do(context.Background(), "unbounded", 0, func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Fatalf("unexpected result: %v, %v", got, err)
	}
}

func TestDoHonorsParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, "cancelled", time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("cancellation must not be reported as timeout")
	}
}
