// Package peerview implements the bounded peer table (C3): a mapping from
// UDP address to Peer, capped at a configured limit, with priority-based
// eviction and liveness bookkeeping.
package peerview

import (
	"math/rand"
	"sort"
	"sync"
	"time"
)

// MaxMissedPongs is the missed-pong threshold past which a peer is removed
// by expire(), per spec.md §4.3.
const MaxMissedPongs = 3

// Peer is one entry in the view, keyed externally by Addr.
type Peer struct {
	NodeID           string
	Addr             string
	LastSeenMs       int64
	LastPingMs       int64
	MissedPongs      int
	VerifiedViaHello bool

	pingOutstanding bool
}

// UpsertResult reports what Upsert did.
type UpsertResult int

const (
	Ignored UpsertResult = iota
	Added
	Updated
)

// View is the bounded, address-keyed peer table. Safe for concurrent use;
// every exported method takes its own lock (grounded on pkg/daemon/peerstore.go's
// PeerStore, replumbed from pubkey-keying to address-keying per spec.md §9's
// canonical-key open question).
type View struct {
	mu        sync.RWMutex
	selfAddr  string
	limit     int
	peerTimeoutMs int64
	peers     map[string]*Peer
	rng       *rand.Rand
}

// New creates a View bound to selfAddr (never admitted) with the given
// capacity and a PRNG seeded per spec.md §4.3 ("seeded by seed+port").
func New(selfAddr string, limit int, peerTimeoutMs int64, seed int64) *View {
	return &View{
		selfAddr:      selfAddr,
		limit:         limit,
		peerTimeoutMs: peerTimeoutMs,
		peers:         make(map[string]*Peer),
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Upsert inserts or updates the peer at addr. It never admits selfAddr.
// On insertion at capacity it evicts the candidate with the highest
// (missed_pongs desc, staleness desc, addr asc) score, but only when that
// candidate's missed_pongs >= MaxMissedPongs or its staleness exceeds
// peerTimeoutMs — otherwise the new peer is rejected (Ignored, no evicted).
func (v *View) Upsert(addr, nodeID string, verifiedHello bool, nowMs int64) (result UpsertResult, evictedAddr string) {
	if addr == v.selfAddr {
		return Ignored, ""
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.peers[addr]; ok {
		existing.LastSeenMs = nowMs
		if nodeID != "" {
			existing.NodeID = nodeID
		}
		if verifiedHello {
			existing.VerifiedViaHello = true
		}
		return Updated, ""
	}

	if len(v.peers) >= v.limit {
		candidateAddr, ok := v.pickEvictionCandidateLocked(nowMs)
		if !ok {
			return Ignored, ""
		}
		delete(v.peers, candidateAddr)
		evictedAddr = candidateAddr
	}

	v.peers[addr] = &Peer{
		NodeID:           nodeID,
		Addr:             addr,
		LastSeenMs:       nowMs,
		VerifiedViaHello: verifiedHello,
	}
	return Added, evictedAddr
}

// pickEvictionCandidateLocked returns the address of the peer to evict, and
// whether any candidate qualifies at all (caller holds v.mu).
func (v *View) pickEvictionCandidateLocked(nowMs int64) (string, bool) {
	type scored struct {
		addr        string
		missedPongs int
		stalenessMs int64
	}
	candidates := make([]scored, 0, len(v.peers))
	for addr, p := range v.peers {
		candidates = append(candidates, scored{
			addr:        addr,
			missedPongs: p.MissedPongs,
			stalenessMs: nowMs - p.LastSeenMs,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].missedPongs != candidates[j].missedPongs {
			return candidates[i].missedPongs > candidates[j].missedPongs
		}
		if candidates[i].stalenessMs != candidates[j].stalenessMs {
			return candidates[i].stalenessMs > candidates[j].stalenessMs
		}
		return candidates[i].addr < candidates[j].addr
	})
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	if best.missedPongs >= MaxMissedPongs || best.stalenessMs > v.peerTimeoutMs {
		return best.addr, true
	}
	return "", false
}

// Sample returns up to k peers chosen uniformly at random, excluding the
// peer whose NodeID equals excludeNodeID (when non-empty).
func (v *View) Sample(k int, excludeNodeID string) []Peer {
	v.mu.RLock()
	defer v.mu.RUnlock()

	pool := make([]Peer, 0, len(v.peers))
	for _, p := range v.peers {
		if excludeNodeID != "" && p.NodeID == excludeNodeID {
			continue
		}
		pool = append(pool, *p)
	}
	// Stable base order before shuffling, so the seeded RNG replay is
	// deterministic regardless of map iteration order.
	sort.Slice(pool, func(i, j int) bool { return pool[i].Addr < pool[j].Addr })

	v.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if k > len(pool) {
		k = len(pool)
	}
	return pool[:k]
}

// Expire increments missed_pongs for peers pinged more than peerTimeoutMs
// ago without a corresponding pong, and removes any peer whose missed_pongs
// reaches MaxMissedPongs. Returns the addresses removed. Peers never pinged,
// or whose last ping was answered by a pong, are skipped.
func (v *View) Expire(nowMs int64) []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	var removed []string
	for addr, p := range v.peers {
		if !p.pingOutstanding {
			continue
		}
		if nowMs-p.LastPingMs < v.peerTimeoutMs {
			continue
		}
		p.MissedPongs++
		if p.MissedPongs >= MaxMissedPongs {
			delete(v.peers, addr)
			removed = append(removed, addr)
		}
	}
	return removed
}

// MarkPinged stamps last_ping_ms for addr, called right after sending a PING.
func (v *View) MarkPinged(addr string, nowMs int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok := v.peers[addr]; ok {
		p.LastPingMs = nowMs
		p.pingOutstanding = true
	}
}

// ResetMissedPongsByNodeID clears missed_pongs and the outstanding ping for
// the peer whose NodeID matches id (PONG is identified by sender_id, not
// address).
func (v *View) ResetMissedPongsByNodeID(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, p := range v.peers {
		if p.NodeID == id {
			p.MissedPongs = 0
			p.pingOutstanding = false
			return
		}
	}
}

// SnapshotForPeersList returns up to limit {node_id, addr} records,
// excluding self and requesterAddr.
func (v *View) SnapshotForPeersList(limit int, requesterAddr string) []Peer {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Peer, 0, limit)
	addrs := make([]string, 0, len(v.peers))
	for addr := range v.peers {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		if addr == requesterAddr || addr == v.selfAddr {
			continue
		}
		out = append(out, *v.peers[addr])
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Len returns the current peer count.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.peers)
}

// Get returns a copy of the peer at addr, if present.
func (v *View) Get(addr string) (Peer, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	p, ok := v.peers[addr]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// NowMs returns the current wall-clock time in Unix milliseconds, the clock
// convention of the nowMs arguments taken by the View's methods.
func NowMs() int64 {
	return time.Now().UnixMilli()
}
