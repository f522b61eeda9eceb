// Package guard tracks consecutive admin login failures per source IP and
// locks an address out after too many in a row. State lives only in process
// memory: a restart clears every lockout, which is intended — durability
// would need a shared store out of proportion to a single login endpoint.
package guard

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the number of consecutive failures that trips a
	// lockout.
	DefaultThreshold = 5
	// DefaultWindow is how long a tripped address stays locked. The window
	// is fixed from the failure that tripped it; later attempts do not
	// extend it.
	DefaultWindow = 30 * time.Minute
)

// LockedError reports that an address is locked out, with a hint for how
// long the caller should wait.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed login attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

type attempt struct {
	failures    int
	lockedUntil time.Time
}

// Guard is a concurrency-safe per-IP failure counter. The zero value is not
// usable; call New.
type Guard struct {
	mu        sync.Mutex
	attempts  map[string]*attempt
	threshold int
	window    time.Duration

	now func() time.Time
}

// New creates a Guard with the given threshold and lockout window. Zero
// values select the defaults.
func New(threshold int, window time.Duration) *Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{
		attempts:  make(map[string]*attempt),
		threshold: threshold,
		window:    window,
		now:       time.Now,
	}
}

// Check reports whether the address may attempt a login. It returns a
// *LockedError while the address is locked. An expired lock transitions the
// address back to clear lazily here; there is no background sweep.
func (g *Guard) Check(ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[ip]
	if !ok || a.failures < g.threshold {
		return nil
	}
	now := g.now()
	if now.Before(a.lockedUntil) {
		return &LockedError{RetryAfter: a.lockedUntil.Sub(now)}
	}
	delete(g.attempts, ip)
	return nil
}

// RecordFailure counts one failed attempt. Crossing the threshold locks the
// address for the full window; failures past the threshold leave the window
// untouched.
func (g *Guard) RecordFailure(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.attempts[ip]
	if !ok {
		a = &attempt{}
		g.attempts[ip] = a
	}
	a.failures++
	if a.failures == g.threshold {
		a.lockedUntil = g.now().Add(g.window)
	}
}

// RecordSuccess resets the address to clear, dropping any lock.
func (g *Guard) RecordSuccess(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.attempts, ip)
}

// Failures returns the current consecutive failure count for an address.
func (g *Guard) Failures(ip string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a, ok := g.attempts[ip]; ok {
		return a.failures
	}
	return 0
}
