package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/voicegate/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegister_RejectsDuplicateName(t *testing.T) {
	s := New(testLogger())
	fn := func(ctx context.Context) error { return nil }

	if err := s.Register("purge", "@hourly", fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Register("purge", "@hourly", fn); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegister_RejectsBadSchedule(t *testing.T) {
	s := New(testLogger())
	err := s.Register("purge", "not a schedule", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRun_ExecutesAndRecordsLastRun(t *testing.T) {
	s := New(testLogger())
	var calls int32
	fn := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	if err := s.Register("purge", "@every 1h", fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.LastRun("purge").IsZero() {
		t.Error("expected zero last run before first execution")
	}

	s.run(s.tasks["purge"])

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if s.LastRun("purge").IsZero() {
		t.Error("expected last run to be recorded")
	}
}

func TestRun_SurvivesErrorAndPanic(t *testing.T) {
	s := New(testLogger())
	if err := s.Register("failing", "@every 1h", func(ctx context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Register("panicking", "@every 1h", func(ctx context.Context) error {
		panic("boom")
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.run(s.tasks["failing"])
	s.run(s.tasks["panicking"])
}

func TestStop_WaitsForRunningTask(t *testing.T) {
	s := New(testLogger())
	done := make(chan struct{})
	if err := s.Register("slow", "@every 1ms", func(ctx context.Context) error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
