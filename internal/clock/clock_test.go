package clock

import (
	"testing"
	"time"
)

func TestVersionClockMonotonic(t *testing.T) {
	c := NewVersionClock()
	prev := c.Next()
	for i := 0; i < 100; i++ {
		v := c.Next()
		if v <= prev {
			t.Fatalf("version %d issued after %d", v, prev)
		}
		prev = v
	}
}

func TestVersionClockSurvivesBackwardWallClock(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	c := NewVersionClockAt(func() time.Time { return current })

	first := c.Next()
	current = base.Add(-time.Hour) // wall clock stepped back
	second := c.Next()

	if second <= first {
		t.Errorf("version went backwards: %d then %d", first, second)
	}
}

func TestVersionClockObserve(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewVersionClockAt(func() time.Time { return base })

	remote := base.Add(time.Hour).UnixMilli()
	c.Observe(remote)
	if v := c.Next(); v <= remote {
		t.Errorf("Next() = %d, want > observed %d", v, remote)
	}

	// Observing an older version must not move the clock back.
	c.Observe(1)
	if v := c.Next(); v <= remote {
		t.Errorf("Next() = %d after stale observe, want > %d", v, remote)
	}
}

func TestVersionClockSameMillisecond(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewVersionClockAt(func() time.Time { return base })

	a := c.Next()
	b := c.Next()
	if b != a+1 {
		t.Errorf("same-millisecond versions %d, %d; want consecutive", a, b)
	}
}

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	f := NewFake()
	var fired []string

	f.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	f.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	f.AfterFunc(10*time.Second, func() { fired = append(fired, "never") })

	f.Advance(3 * time.Second)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Errorf("fired = %v, want [a b] in deadline order", fired)
	}
}

func TestFakeTimerStopAndReset(t *testing.T) {
	f := NewFake()
	count := 0

	timer := f.AfterFunc(time.Second, func() { count++ })
	if !timer.Stop() {
		t.Error("Stop on an active timer should report true")
	}
	f.Advance(2 * time.Second)
	if count != 0 {
		t.Error("stopped timer fired")
	}

	timer.Reset(time.Second)
	f.Advance(time.Second)
	if count != 1 {
		t.Errorf("reset timer fired %d times, want 1", count)
	}
}
