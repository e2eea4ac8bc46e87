package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPerMinute is the refill rate applied to buckets created on first use.
const DefaultPerMinute = 30

// DomainLimiter manages one token bucket per request domain. Buckets are
// created lazily at the default rate and can be garbage-collected once idle.
// State is process-local: limits reset on restart and are best-effort, not a
// hard external-API contract.
type DomainLimiter struct {
	mu               sync.Mutex
	buckets          map[string]*bucket
	defaultPerMinute int
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewDomainLimiter creates a limiter whose unseen domains start at
// defaultPerMinute requests per minute. Zero or negative falls back to
// DefaultPerMinute.
func NewDomainLimiter(defaultPerMinute int) *DomainLimiter {
	if defaultPerMinute <= 0 {
		defaultPerMinute = DefaultPerMinute
	}
	return &DomainLimiter{
		buckets:          make(map[string]*bucket),
		defaultPerMinute: defaultPerMinute,
	}
}

func perMinuteLimit(requestsPerMinute int) rate.Limit {
	return rate.Limit(float64(requestsPerMinute) / 60.0)
}

func burstFor(requestsPerMinute int) int {
	if requestsPerMinute < 1 {
		return 1
	}
	return requestsPerMinute
}

func (d *DomainLimiter) get(domain string) *bucket {
	b, ok := d.buckets[domain]
	if !ok {
		b = &bucket{
			limiter: rate.NewLimiter(perMinuteLimit(d.defaultPerMinute), burstFor(d.defaultPerMinute)),
		}
		d.buckets[domain] = b
	}
	b.lastAccess = time.Now()
	return b
}

// CanMakeRequest reports whether a token is currently available for the
// domain without consuming it.
func (d *DomainLimiter) CanMakeRequest(domain string) bool {
	d.mu.Lock()
	b := d.get(domain)
	d.mu.Unlock()

	return b.limiter.Tokens() >= 1
}

// ConsumeToken attempts to atomically consume one token for the domain.
func (d *DomainLimiter) ConsumeToken(domain string) bool {
	d.mu.Lock()
	b := d.get(domain)
	d.mu.Unlock()

	return b.limiter.Allow()
}

// WaitForAvailability suspends the caller until a token is available for the
// domain or the context is cancelled. Other domains are unaffected.
func (d *DomainLimiter) WaitForAvailability(ctx context.Context, domain string) error {
	d.mu.Lock()
	b := d.get(domain)
	d.mu.Unlock()

	return b.limiter.Wait(ctx)
}

// SetDomainLimit hot-swaps the refill rate for a domain. The bucket's current
// token count is preserved; the burst cap only ever grows so no accumulated
// tokens are dropped.
func (d *DomainLimiter) SetDomainLimit(domain string, requestsPerMinute int) {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}

	d.mu.Lock()
	b := d.get(domain)
	d.mu.Unlock()

	b.limiter.SetLimit(perMinuteLimit(requestsPerMinute))
	if burst := burstFor(requestsPerMinute); burst > b.limiter.Burst() {
		b.limiter.SetBurst(burst)
	}
}

// Cleanup removes buckets that have not been touched for at least idleFor and
// returns how many were dropped.
func (d *DomainLimiter) Cleanup(idleFor time.Duration) int {
	cutoff := time.Now().Add(-idleFor)

	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for domain, b := range d.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(d.buckets, domain)
			removed++
		}
	}
	return removed
}

// StartJanitor runs Cleanup every interval until the returned stop function
// is called.
func (d *DomainLimiter) StartJanitor(interval, idleFor time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Cleanup(idleFor)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Len returns the number of live buckets.
func (d *DomainLimiter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buckets)
}

// Domain extracts the host from a URL for per-domain throttling. Bare hosts
// pass through unchanged; unparseable input falls back to the raw string.
func Domain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		return strings.ToLower(strings.TrimSuffix(rawURL, "/"))
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Host)
}
