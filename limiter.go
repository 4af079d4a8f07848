package posterkit

import (
	"sync"
	"time"
)

// RemovalLimiter rate-limits background removal calls per IP address.
// Each call costs remote API credits.
type RemovalLimiter struct {
	mu     sync.Mutex
	calls  map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

// NewRemovalLimiter creates a RemovalLimiter that allows max calls per window.
// Call Close to stop its cleanup goroutine.
func NewRemovalLimiter(max int, window time.Duration) *RemovalLimiter {
	l := &RemovalLimiter{
		calls:  make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *RemovalLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			for ip := range l.calls {
				l.prune(ip)
			}
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

// prune drops calls outside the window and returns how many remain.
// l.mu must be held.
func (l *RemovalLimiter) prune(ip string) int {
	cutoff := l.now().Add(-l.window)
	hits := l.calls[ip]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.calls, ip)
	} else {
		l.calls[ip] = kept
	}
	return len(kept)
}

// Allow records a call for ip and reports whether it is within the limit.
// Rejected calls are not recorded.
func (l *RemovalLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prune(ip) >= l.max {
		return false
	}
	l.calls[ip] = append(l.calls[ip], l.now())
	return true
}

// Close stops the cleanup goroutine.
func (l *RemovalLimiter) Close() {
	l.once.Do(func() { close(l.done) })
}
