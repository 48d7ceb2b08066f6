package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunExecutesImmediatelyWhenConfigured(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ticks := 0
	s := New(Options{Interval: time.Hour, RunOnStart: true}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context) error {
			ticks++
			cancel()
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("scheduler did not stop in time")
	}

	if ticks != 1 {
		t.Fatalf("expected exactly one immediate tick, got %d", ticks)
	}
}

func TestRunTickErrorsAreNotFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	s := New(Options{Interval: time.Millisecond, RunOnStart: true}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context) error {
			ticks++
			if ticks >= 3 {
				cancel()
			}
			return errors.New("tick failed")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}

	if ticks < 3 {
		t.Fatalf("failing ticks must not stop the loop, got %d ticks", ticks)
	}
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive interval")
		}
	}()
	New(Options{Interval: 0}, zerolog.Nop())
}
