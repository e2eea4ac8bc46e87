package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(d *DomainLimiter, domain string) int {
	n := 0
	for d.ConsumeToken(domain) {
		n++
	}
	return n
}

func TestConsumeToken_ExhaustionAndRefill(t *testing.T) {
	// 6000/min = 100/s, so one token refills within ~10ms.
	d := NewDomainLimiter(6000)

	consumed := drain(d, "api.example.com")
	assert.Greater(t, consumed, 0, "fresh bucket should hold tokens")

	assert.False(t, d.CanMakeRequest("api.example.com"),
		"exhausted bucket should report no availability")
	assert.False(t, d.ConsumeToken("api.example.com"))

	time.Sleep(50 * time.Millisecond)

	assert.True(t, d.CanMakeRequest("api.example.com"),
		"bucket should refill at the configured rate")
	assert.True(t, d.ConsumeToken("api.example.com"))
}

func TestCanMakeRequest_DoesNotConsume(t *testing.T) {
	d := NewDomainLimiter(2)

	// Peeking any number of times must not deplete the bucket.
	for i := 0; i < 10; i++ {
		assert.True(t, d.CanMakeRequest("example.org"))
	}
	assert.True(t, d.ConsumeToken("example.org"))
	assert.True(t, d.ConsumeToken("example.org"))
	assert.False(t, d.ConsumeToken("example.org"))
}

func TestSetDomainLimit_PreservesTokens(t *testing.T) {
	d := NewDomainLimiter(2) // burst 2, very slow refill

	require.True(t, d.ConsumeToken("slow.example.com"))
	// One token left. A rate swap must not drop it.
	d.SetDomainLimit("slow.example.com", 6000)

	assert.True(t, d.CanMakeRequest("slow.example.com"))
	assert.True(t, d.ConsumeToken("slow.example.com"))
	assert.False(t, d.ConsumeToken("slow.example.com"))

	// New rate is in effect: 100/s refills quickly.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, d.CanMakeRequest("slow.example.com"))
}

func TestWaitForAvailability_Refills(t *testing.T) {
	d := NewDomainLimiter(6000)
	drain(d, "wait.example.com")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := d.WaitForAvailability(ctx, "wait.example.com")
	assert.NoError(t, err)
}

func TestWaitForAvailability_ContextCancelled(t *testing.T) {
	d := NewDomainLimiter(1) // 1/min: no refill within the test window
	drain(d, "stalled.example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := d.WaitForAvailability(ctx, "stalled.example.com")
	assert.Error(t, err)
}

func TestWait_DoesNotBlockOtherDomains(t *testing.T) {
	d := NewDomainLimiter(1)
	drain(d, "busy.example.com")

	// A drained bucket on one domain must not affect another.
	assert.True(t, d.CanMakeRequest("idle.example.com"))
	assert.True(t, d.ConsumeToken("idle.example.com"))
}

func TestCleanup_RemovesIdleBuckets(t *testing.T) {
	d := NewDomainLimiter(10)
	d.ConsumeToken("old.example.com")
	d.ConsumeToken("fresh.example.com")

	d.mu.Lock()
	d.buckets["old.example.com"].lastAccess = time.Now().Add(-time.Hour)
	d.mu.Unlock()

	removed := d.Cleanup(30 * time.Minute)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, d.Len())
}

func TestDomain(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.artconnect.com/opportunities?page=2", "www.artconnect.com"},
		{"http://example.org/path", "example.org"},
		{"api.collabfinder.com", "api.collabfinder.com"},
		{"API.Example.COM/", "api.example.com"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Domain(c.in), "Domain(%q)", c.in)
	}
}
