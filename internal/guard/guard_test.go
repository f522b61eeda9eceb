package guard

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestGuard(t *testing.T) (*Guard, *time.Time) {
	t.Helper()
	g := New(0, 0)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return clock }
	return g, &clock
}

func TestClearInitially(t *testing.T) {
	g, _ := newTestGuard(t)
	if err := g.Check("10.0.0.1"); err != nil {
		t.Errorf("fresh address should be clear, got %v", err)
	}
}

func TestNotLockedBelowThreshold(t *testing.T) {
	g, _ := newTestGuard(t)
	for i := 0; i < DefaultThreshold-1; i++ {
		g.RecordFailure("10.0.0.1")
	}
	if err := g.Check("10.0.0.1"); err != nil {
		t.Errorf("4 failures should not lock, got %v", err)
	}
}

func TestLockedAtThreshold(t *testing.T) {
	g, _ := newTestGuard(t)
	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure("10.0.0.1")
	}

	err := g.Check("10.0.0.1")
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *LockedError, got %v", err)
	}
	if locked.RetryAfter != DefaultWindow {
		t.Errorf("got retry-after %s, want %s", locked.RetryAfter, DefaultWindow)
	}
}

func TestFurtherFailuresDoNotExtendWindow(t *testing.T) {
	g, clock := newTestGuard(t)
	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure("10.0.0.1")
	}

	// Ten minutes later another failure lands; the window stays anchored to
	// the failure that tripped it.
	*clock = clock.Add(10 * time.Minute)
	g.RecordFailure("10.0.0.1")

	err := g.Check("10.0.0.1")
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected *LockedError, got %v", err)
	}
	if want := DefaultWindow - 10*time.Minute; locked.RetryAfter != want {
		t.Errorf("got retry-after %s, want %s", locked.RetryAfter, want)
	}
}

func TestOtherAddressesUnaffected(t *testing.T) {
	g, _ := newTestGuard(t)
	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure("10.0.0.1")
	}
	if err := g.Check("10.0.0.2"); err != nil {
		t.Errorf("unrelated address should be clear, got %v", err)
	}
}

func TestSuccessResets(t *testing.T) {
	g, _ := newTestGuard(t)
	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure("10.0.0.1")
	}
	g.RecordSuccess("10.0.0.1")
	if err := g.Check("10.0.0.1"); err != nil {
		t.Errorf("success should clear the lock, got %v", err)
	}
	if got := g.Failures("10.0.0.1"); got != 0 {
		t.Errorf("got %d failures after success, want 0", got)
	}
}

func TestLockExpiresLazily(t *testing.T) {
	g, clock := newTestGuard(t)
	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure("10.0.0.1")
	}

	*clock = clock.Add(DefaultWindow - time.Second)
	if err := g.Check("10.0.0.1"); err == nil {
		t.Error("still inside the window, should be locked")
	}

	*clock = clock.Add(2 * time.Second)
	if err := g.Check("10.0.0.1"); err != nil {
		t.Errorf("window passed, should be clear, got %v", err)
	}
	// The expired entry is dropped entirely, so the counter restarts at 0.
	if got := g.Failures("10.0.0.1"); got != 0 {
		t.Errorf("got %d failures after expiry, want 0", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	g := New(0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ip := "10.0.0.1"
			if n%2 == 0 {
				ip = "10.0.0.2"
			}
			g.RecordFailure(ip)
			g.Check(ip)
			g.RecordSuccess(ip)
		}(i)
	}
	wg.Wait()
}
