package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_NewTicker(t *testing.T) {
	ticker := RealClock{}.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(200 * time.Millisecond):
		t.Error("ticker did not fire")
	}
}

func TestMicroClock_Monotonic(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC))
	mc := NewMicroClock(clock)

	if got := mc.Micros(); got != 0 {
		t.Fatalf("Micros() = %d at start, want 0", got)
	}
	clock.Advance(2500 * time.Microsecond)
	if got := mc.Micros(); got != 2500 {
		t.Errorf("Micros() = %d, want 2500", got)
	}
	clock.Advance(time.Second)
	if got := mc.Micros(); got != 1_002_500 {
		t.Errorf("Micros() = %d, want 1002500", got)
	}
}

func TestMicroClock_NilUsesRealClock(t *testing.T) {
	mc := NewMicroClock(nil)
	if _, ok := mc.Clock().(RealClock); !ok {
		t.Fatalf("Clock() = %T, want RealClock", mc.Clock())
	}
	if mc.Micros() < 0 {
		t.Error("Micros() went negative")
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Sleep(time.Second)
	clock.Sleep(2 * time.Second)

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Fatalf("Sleeps() = %v, want [1s 2s]", sleeps)
	}
	if d := clock.Since(start); d != 3*time.Second {
		t.Errorf("Since(start) = %v, want 3s", d)
	}
}

func TestMockClock_Ticker(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)

	select {
	case <-ticker.C():
		t.Fatal("ticker fired too early")
	default:
	}

	clock.Advance(time.Minute)
	select {
	case <-ticker.C():
	default:
		t.Error("ticker did not fire after first interval")
	}
}

func TestMockClock_TickerStop(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()
	clock.Advance(5 * time.Second)

	select {
	case <-ticker.C():
		t.Error("stopped ticker should not tick")
	default:
	}
}

func TestMockTicker_Trigger(t *testing.T) {
	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	now := clock.Now()
	ticker.Trigger(now)
	ticker.Trigger(now) // dropped, one pending

	if got := <-ticker.C(); !got.Equal(now) {
		t.Errorf("tick = %v, want %v", got, now)
	}
	select {
	case <-ticker.C():
		t.Error("second trigger should have been dropped")
	default:
	}
}
