package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Guard admits one write per player per interval.
type Guard struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	limiters map[string]*rate.Limiter
}

func NewGuard(interval time.Duration) *Guard {
	return &Guard{interval: interval, now: time.Now, limiters: map[string]*rate.Limiter{}}
}

func (g *Guard) limiter(playerID string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[playerID]
	if !ok {
		l = rate.NewLimiter(rate.Every(g.interval), 1)
		g.limiters[playerID] = l
	}
	return l
}

func (g *Guard) Allow(playerID string) bool {
	if g.interval <= 0 {
		return true
	}
	return g.limiter(playerID).AllowN(g.now(), 1)
}
