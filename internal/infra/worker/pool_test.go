//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func TestPool_SubmitAndRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPool(2, testLogger())
	p.Start(ctx)
	defer p.Stop()

	var ran int32
	done := make(chan struct{})
	err := p.Submit(func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Errorf("expected exactly one run, got %d", ran)
	}
}

func TestPool_SubmitRejectsNil(t *testing.T) {
	p := NewPool(1, testLogger())
	if err := p.Submit(nil); err == nil {
		t.Error("expected an error for a nil task")
	}
}

func TestPool_DropsWhenSaturated(t *testing.T) {
	// Never started, so the queue only drains by capacity.
	p := NewPool(1, testLogger())

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = p.Submit(func(ctx context.Context) error { return nil })
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull once saturated, got: %v", err)
	}
}

func TestRetry(t *testing.T) {
	t.Run("should stop after the first success", func(t *testing.T) {
		var calls int32
		task := Retry(5, time.Millisecond, func(ctx context.Context) error {
			if atomic.AddInt32(&calls, 1) < 3 {
				return errors.New("not yet")
			}
			return nil
		})

		if err := task(context.Background()); err != nil {
			t.Fatalf("expected eventual success, got: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 attempts, got %d", calls)
		}
	})

	t.Run("should return the last error when attempts run out", func(t *testing.T) {
		boom := errors.New("boom")
		task := Retry(2, time.Millisecond, func(ctx context.Context) error { return boom })

		if err := task(context.Background()); !errors.Is(err, boom) {
			t.Errorf("expected the task error, got: %v", err)
		}
	})

	t.Run("should give up when the context is cancelled between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		task := Retry(3, time.Hour, func(ctx context.Context) error { return errors.New("always") })

		if err := task(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}
