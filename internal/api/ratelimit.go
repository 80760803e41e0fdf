package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket guarding the mutating endpoints.
// Buckets refill continuously; idle buckets are pruned.
type RateLimiter struct {
	capacity int
	window   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewRateLimiter allows capacity requests per window per client.
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		capacity: capacity,
		window:   window,
		buckets:  make(map[string]*bucket),
	}
	go rl.prune()
	return rl
}

// Allow spends one token for the client, reporting whether it had one.
func (rl *RateLimiter) Allow(client string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: float64(rl.capacity), lastFill: now}
		rl.buckets[client] = b
	}

	refill := now.Sub(b.lastFill).Seconds() / rl.window.Seconds() * float64(rl.capacity)
	b.tokens += refill
	if b.tokens > float64(rl.capacity) {
		b.tokens = float64(rl.capacity)
	}
	b.lastFill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Middleware wraps a handler, answering 429 with Retry-After when the
// client's bucket is dry.
func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			retry := int(rl.window.Seconds()) / rl.capacity
			if retry < 1 {
				retry = 1
			}
			rw.Header().Set("Retry-After", strconv.Itoa(retry))
			http.Error(rw, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(rw, r)
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) prune() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-2 * rl.window)
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if b.lastFill.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
