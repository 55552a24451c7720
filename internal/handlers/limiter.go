package handlers

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiters hands out one token bucket per participant so a single client
// cannot flood the tick loop with commands.
type limiters struct {
	mu      sync.Mutex
	entries map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

func newLimiters(limit rate.Limit, burst int) *limiters {
	return &limiters{
		entries: make(map[string]*clientLimiter),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

func (l *limiters) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	l.prune(now)
	return entry.limiter.AllowN(now, 1)
}

// forget drops the bucket of a participant that disconnected.
func (l *limiters) forget(key string) {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

func (l *limiters) prune(now time.Time) {
	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > limiterIdle {
			delete(l.entries, key)
		}
	}
}

func (l *limiters) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
