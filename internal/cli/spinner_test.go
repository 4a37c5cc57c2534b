package cli

import (
	"context"
	"testing"
	"time"
)

func TestSpinnerStartStop(t *testing.T) {
	s := newSpinner("exporting...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if s.Cancelled() {
		t.Error("plain Stop() should not count as cancelled")
	}
}

func TestSpinnerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinnerWithContext(ctx, "exporting...")
	s.Start()

	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should report cancelled after context cancellation")
	}
}

func TestSpinnerContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinnerWithContext(ctx, "exporting...")
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("spinner should report cancelled after context timeout")
	}
}

func TestSpinnerStopIdempotent(t *testing.T) {
	s := newSpinner("exporting...")
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithOutcome(t *testing.T) {
	s := newSpinner("rendering...")
	s.Start()
	s.StopWithSuccess("rendered")

	s2 := newSpinner("rendering...")
	s2.Start()
	s2.StopWithError("render failed")
}
