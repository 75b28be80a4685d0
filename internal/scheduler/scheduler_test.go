package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsInvalidSchedule(t *testing.T) {
	t.Parallel()

	_, err := New("every now and then", func(context.Context) error { return nil }, nil)
	if err == nil {
		t.Fatalf("expected error for an invalid schedule")
	}
}

func TestRunExecutesImmediatelyAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s, err := New("@every 1h", func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected an immediate run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 run, got %d", got)
	}
}

func TestRunLogsTaskErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())

	s, err := New("@every 1h", func(context.Context) error {
		defer cancel()
		return errors.New("search api: rate limited")
	}, zap.New(core))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if n := logs.FilterMessage("scheduled run failed").Len(); n != 1 {
		t.Fatalf("expected 1 failure log, got %d", n)
	}
}

func TestRunOnceSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	var calls atomic.Int32

	s, err := New("@every 1h", func(context.Context) error {
		calls.Add(1)
		return nil
	}, zap.New(core))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.running.Lock()
	s.runOnce(context.Background())
	s.running.Unlock()

	if calls.Load() != 0 {
		t.Fatalf("expected overlapping tick to be skipped")
	}
	if logs.FilterMessage("previous run still in progress, skipping tick").Len() != 1 {
		t.Fatalf("expected a skip warning")
	}
}
