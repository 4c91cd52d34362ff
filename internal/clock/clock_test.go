package clock

import (
	"context"
	"testing"
	"time"
)

func TestRealSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Real().Sleep(ctx, time.Minute); err != context.Canceled {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on a cancelled context")
	}
}

func TestFakeSleepAdvancesTime(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f := NewFake(start)

	for i := 0; i < 3; i++ {
		if err := f.Sleep(context.Background(), 2*time.Second); err != nil {
			t.Fatalf("Sleep() error = %v", err)
		}
	}

	if got := f.Now().Sub(start); got != 6*time.Second {
		t.Errorf("elapsed = %v, want 6s", got)
	}
	if n := len(f.Sleeps()); n != 3 {
		t.Errorf("recorded %d sleeps, want 3", n)
	}
}
