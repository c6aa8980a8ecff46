package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bhavik262/pizza-delivery/internal/apperr"
)

// Limiter counts attempts per key in fixed windows. State is process-local.
type Limiter struct {
	mu          sync.Mutex
	maxAttempts int
	window      time.Duration
	entries     map[string]*window
	now         func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

func NewLimiter(maxAttempts int, w time.Duration) *Limiter {
	return &Limiter{
		maxAttempts: maxAttempts,
		window:      w,
		entries:     make(map[string]*window),
		now:         time.Now,
	}
}

// Key joins an identity and a client address.
func Key(identity, ip string) string {
	return identity + "|" + ip
}

// Allow records one attempt for key. Once the cap is exceeded it returns a
// RateLimited error carrying the time left until the window resets.
func (l *Limiter) Allow(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &window{count: 1, resetAt: now.Add(l.window)}
		return nil
	}

	if e.count >= l.maxAttempts {
		return apperr.Throttled("too many attempts, please try again later", e.resetAt.Sub(now))
	}
	e.count++
	return nil
}

// Sweep drops expired windows and returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables sweeping.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("auth: rate limit sweeping disabled")
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Msg("auth: swept rate limit windows")
			}
		}
	}
}
