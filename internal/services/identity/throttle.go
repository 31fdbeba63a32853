package identity

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type attempts struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// failureThrottle limits failed sign-in attempts per email. Successful
// attempts cost nothing; entries expire after ttl of inactivity.
type failureThrottle struct {
	mu       sync.Mutex
	visitors map[string]*attempts
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func newFailureThrottle(perMinute int, ttl time.Duration) *failureThrottle {
	if perMinute <= 0 {
		perMinute = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &failureThrottle{
		visitors: make(map[string]*attempts),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Blocked reports whether key has exhausted its failure budget
func (t *failureThrottle) Blocked(key string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.gcLocked(now)
	v, ok := t.visitors[key]
	if !ok {
		return false
	}
	return v.limiter.TokensAt(now) < 1
}

// Fail records a failed attempt for key
func (t *failureThrottle) Fail(key string) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.visitors[key]
	if !ok {
		v = &attempts{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.visitors[key] = v
	}
	v.lastSeen = now
	v.limiter.AllowN(now, 1)
}

// Reset forgets key's failures
func (t *failureThrottle) Reset(key string) {
	t.mu.Lock()
	delete(t.visitors, key)
	t.mu.Unlock()
}

func (t *failureThrottle) gcLocked(now time.Time) {
	for key, v := range t.visitors {
		if now.Sub(v.lastSeen) > t.ttl {
			delete(t.visitors, key)
		}
	}
}
