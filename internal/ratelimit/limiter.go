// Package ratelimit provides per-source-IP token bucket rate limiting for
// the gossip node's UDP listener (C12), sitting in front of the wire codec
// so a flood of garbage datagrams never reaches JSON decode.
//
// Adapted from the teacher repo's pkg/ratelimit: same token-bucket + LRU
// design, applied here ahead of the dispatcher rather than a WireGuard
// discovery listener, and re-tuned for gossip traffic (DefaultRate/
// DefaultBurst are higher than the teacher's, since a gossip node's fanout
// sends bursts of PING/GOSSIP/IHAVE from each peer rather than one
// discovery exchange at a time). The bucket/LRU mechanics themselves are
// left untouched: a token bucket is a solved problem, and the teacher's is
// already exercised and correct.
package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultRate is the default allowed messages per second per source IP.
	DefaultRate = 20
	// DefaultBurst is the default burst size (token bucket depth) per source IP.
	DefaultBurst = 40
	// DefaultMaxIPs is the maximum number of source IPs tracked simultaneously.
	// When the cache is full the least-recently-used entry is evicted.
	DefaultMaxIPs = 4096
)

type bucket struct {
	tokens   float64
	lastFill time.Time
}

type entry struct {
	ip  string
	bkt *bucket
}

// IPRateLimiter rate-limits incoming datagrams on a per-source-IP basis
// using token buckets, with LRU eviction to bound memory.
type IPRateLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	maxIPs  int
	buckets map[string]*list.Element
	lru     *list.List
}

// New creates an IPRateLimiter with the given rate, burst, and maximum
// number of tracked IPs.
func New(rate, burst float64, maxIPs int) *IPRateLimiter {
	if rate <= 0 {
		rate = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if maxIPs <= 0 {
		maxIPs = DefaultMaxIPs
	}
	return &IPRateLimiter{
		rate:    rate,
		burst:   burst,
		maxIPs:  maxIPs,
		buckets: make(map[string]*list.Element, maxIPs),
		lru:     list.New(),
	}
}

// NewDefault creates an IPRateLimiter with DefaultRate, DefaultBurst, and DefaultMaxIPs.
func NewDefault() *IPRateLimiter {
	return New(DefaultRate, DefaultBurst, DefaultMaxIPs)
}

// Allow returns true if a datagram from ip should be processed, consuming
// one token from its bucket.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	elem, exists := l.buckets[ip]
	if exists {
		bkt := elem.Value.(*entry).bkt
		elapsed := now.Sub(bkt.lastFill).Seconds()
		bkt.tokens += elapsed * l.rate
		if bkt.tokens > l.burst {
			bkt.tokens = l.burst
		}
		bkt.lastFill = now
		l.lru.MoveToFront(elem)

		if bkt.tokens < 1 {
			return false
		}
		bkt.tokens--
		return true
	}

	if l.lru.Len() >= l.maxIPs {
		oldest := l.lru.Back()
		if oldest != nil {
			l.lru.Remove(oldest)
			delete(l.buckets, oldest.Value.(*entry).ip)
		}
	}

	bkt := &bucket{tokens: l.burst - 1, lastFill: now}
	e := &entry{ip: ip, bkt: bkt}
	elem = l.lru.PushFront(e)
	l.buckets[ip] = elem
	return true
}

// Reset clears all state. Useful for testing.
func (l *IPRateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*list.Element, l.maxIPs)
	l.lru.Init()
}
