package middleware

import (
	"net/http"
	"sync"
	"time"
)

// All webhook traffic arrives from Twilio's proxy fleet, so limiting by peer
// address would throttle every customer together. The limiter keys on the
// sending WhatsApp number carried in the form body instead, falling back to
// the client address for requests without one.
type senderLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    float64 // tokens per second
	burst   float64
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

func newSenderLimiter(rate float64, burst int) *senderLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &senderLimiter{
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   float64(burst),
	}
	go l.evictIdle()
	return l
}

func (l *senderLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: l.burst, seen: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.seen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdle drops buckets idle for over ten minutes so one-off senders do
// not accumulate.
func (l *senderLimiter) evictIdle() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		l.mu.Lock()
		for key, b := range l.buckets {
			if b.seen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimit returns an HTTP middleware that rejects senders exceeding rate
// messages/sec (with the given burst) with 429 Too Many Requests.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	limiter := newSenderLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(senderKey(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// senderKey extracts the sending WhatsApp number from the webhook form.
// ParseForm caches the parsed body, so downstream signature validation sees
// the same form values.
func senderKey(r *http.Request) string {
	if err := r.ParseForm(); err == nil {
		if from := r.PostForm.Get("From"); from != "" {
			return from
		}
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
