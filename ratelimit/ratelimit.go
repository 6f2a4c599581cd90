// ratelimit/ratelimit.go
package ratelimit

import (
	"sync"
	"time"
)

type windowKey struct {
	UserID int64
	Event  string
}

// window is one fixed counting window. The first request after Reset
// has elapsed starts a fresh window rather than sliding the old one.
type window struct {
	Count int
	Reset time.Time
}

// Limiter counts events per (user, event kind) against caller-supplied
// ceilings. It carries no policy of its own; each call site passes the
// ceiling that applies to it.
type Limiter struct {
	windows map[windowKey]*window
	mutex   sync.Mutex
	now     func() time.Time // test hook
}

func NewLimiter() *Limiter {
	return &Limiter{
		windows: make(map[windowKey]*window),
		now:     time.Now,
	}
}

// Check records one request and reports whether it is within the
// ceiling. maxRequests is the number of requests allowed per window.
func (l *Limiter) Check(userID int64, event string, maxRequests int, windowSize time.Duration) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	key := windowKey{UserID: userID, Event: event}

	w, exists := l.windows[key]
	if !exists || now.After(w.Reset) || now.Equal(w.Reset) {
		l.windows[key] = &window{Count: 1, Reset: now.Add(windowSize)}
		return true
	}

	w.Count++
	return w.Count <= maxRequests
}

// Cleanup drops windows whose reset deadline has passed. Called on the
// server's periodic sweep; bounds memory to recently active users.
func (l *Limiter) Cleanup() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if now.After(w.Reset) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// RemoveUser drops every window held for a user. Called when the user's
// last endpoint disconnects so churn does not accumulate dead windows.
func (l *Limiter) RemoveUser(userID int64) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for key := range l.windows {
		if key.UserID == userID {
			delete(l.windows, key)
		}
	}
}
