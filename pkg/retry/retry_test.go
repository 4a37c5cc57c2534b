package retry

import (
	"context"
	"testing"
	"time"

	"github.com/viewgrid/viewgrid/pkg/errors"
)

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrCodeNetwork, "connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoFailsFastOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New(errors.ErrCodeInvalidViewID, "bad view id")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New(errors.ErrCodeTimeout, "deadline exceeded")
	})
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("err = %v, want last timeout error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, 5, time.Minute, func() error {
		return errors.New(errors.ErrCodeNetwork, "down")
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", errors.New(errors.ErrCodeNetwork, "x"), true},
		{"timeout", errors.New(errors.ErrCodeTimeout, "x"), true},
		{"validation", errors.New(errors.ErrCodeInvalidGUID, "x"), false},
		{"corrupt", errors.New(errors.ErrCodeCorruptSnapshot, "x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient = %v, want %v", got, tt.want)
			}
		})
	}
}
