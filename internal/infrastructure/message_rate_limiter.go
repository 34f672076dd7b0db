package infrastructure

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const staleAfter = 10 * time.Minute

// MessageRateLimiter keeps one token bucket per Telegram chat
type MessageRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*chatLimiter
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMessageRateLimiter allows perSecond messages per chat with the given burst
func NewMessageRateLimiter(perSecond float64, burst int) *MessageRateLimiter {
	return &MessageRateLimiter{
		limiters: make(map[int64]*chatLimiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *MessageRateLimiter) get(chatID int64) *chatLimiter {
	cl, ok := rl.limiters[chatID]
	if !ok {
		cl = &chatLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[chatID] = cl
	}
	cl.lastSeen = rl.now()
	return cl
}

// Allow consumes one token for the chat if available
func (rl *MessageRateLimiter) Allow(chatID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.get(chatID).limiter.AllowN(rl.now(), 1)
}

// WaitTime returns how long until the chat may send again
func (rl *MessageRateLimiter) WaitTime(chatID int64) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[chatID]
	if !ok {
		return 0
	}
	now := rl.now()
	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return 0
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

func (rl *MessageRateLimiter) Reset(chatID int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, chatID)
}

// Cleanup drops limiters idle for longer than ten minutes and reports how many were removed
func (rl *MessageRateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for id, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > staleAfter {
			delete(rl.limiters, id)
			removed++
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until stop is closed
func (rl *MessageRateLimiter) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

func (rl *MessageRateLimiter) Stats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"active_chats": len(rl.limiters),
		"rate":         float64(rl.rate),
		"burst":        rl.burst,
	}
}
