package node

import (
	"net"
	"time"

	"github.com/atvirokodosprendimai/gossipd/internal/eventlog"
	"github.com/atvirokodosprendimai/gossipd/internal/peerview"
	"github.com/atvirokodosprendimai/gossipd/internal/pow"
	"github.com/atvirokodosprendimai/gossipd/internal/telemetry"
	"github.com/atvirokodosprendimai/gossipd/internal/wire"
	"github.com/google/uuid"
)

// handleHello requires capabilities to include udp+json, and (when pow_k>0)
// a valid PoW credential. On acceptance it upserts the sender as verified
// and replies with a PEERS_LIST. Rejected HELLOs have no side effect on the
// peer view (spec.md §4.5).
func (n *Node) handleHello(env *wire.Envelope, src *net.UDPAddr) {
	var payload wire.HelloPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		n.events.Log("hello_rejected", eventlog.Fields{"peer": src.String(), "msg_id": env.MsgID, "reason": "invalid_payload_shape"})
		return
	}

	if !hasCapability(payload.Capabilities, "udp") || !hasCapability(payload.Capabilities, "json") {
		n.events.Log("hello_rejected", eventlog.Fields{"peer": src.String(), "msg_id": env.MsgID, "reason": "missing_capabilities"})
		return
	}

	if n.cfg.PowK > 0 {
		if payload.Pow == nil {
			n.events.Log("hello_rejected", eventlog.Fields{"peer": src.String(), "msg_id": env.MsgID, "reason": "pow_missing"})
			return
		}
		cred := pow.Credential{
			HashAlg:     payload.Pow.HashAlg,
			DifficultyK: payload.Pow.DifficultyK,
			Nonce:       payload.Pow.Nonce,
			DigestHex:   payload.Pow.DigestHex,
		}
		verifyStart := time.Now()
		ok := pow.Verify(env.SenderID, cred, n.cfg.PowK)
		telemetry.PowVerifyDurationMs.Record(n.ctx, float64(time.Since(verifyStart).Microseconds())/1000.0)
		if !ok {
			n.events.Log("hello_rejected", eventlog.Fields{"peer": src.String(), "msg_id": env.MsgID, "reason": "pow_invalid"})
			return
		}
	}

	n.upsertSender(src.String(), env.SenderID, true)
	n.events.Log("hello_accepted", eventlog.Fields{"peer": src.String(), "msg_id": env.MsgID})

	snapshot := n.peers.SnapshotForPeersList(n.cfg.PeerLimit, src.String())
	n.sendPeersList(src, snapshot)
}

// handleGetPeers replies with up to min(max_peers, peer_limit) peers,
// excluding self and the requester.
func (n *Node) handleGetPeers(env *wire.Envelope, src *net.UDPAddr) {
	var payload wire.GetPeersPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		return
	}
	limit := payload.MaxPeers
	if limit <= 0 || limit > n.cfg.PeerLimit {
		limit = n.cfg.PeerLimit
	}
	snapshot := n.peers.SnapshotForPeersList(limit, src.String())
	n.sendPeersList(src, snapshot)
	n.events.Log("peers_list_sent", eventlog.Fields{"peer": src.String(), "count": len(snapshot)})
}

func (n *Node) sendPeersList(dest *net.UDPAddr, peers []peerview.Peer) {
	records := make([]wire.PeerRecord, 0, len(peers))
	for _, p := range peers {
		records = append(records, wire.PeerRecord{NodeID: p.NodeID, Addr: p.Addr})
	}
	env := n.newEnvelope(wire.KindPeersList, wire.PeersListPayload{Peers: records})
	n.sendTo(dest, env)
}

// handlePeersList upserts each unfamiliar entry (not verified) and sends a
// HELLO to any peer not previously known.
func (n *Node) handlePeersList(env *wire.Envelope, src *net.UDPAddr) {
	var payload wire.PeersListPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		return
	}
	n.events.Log("peers_list_received", eventlog.Fields{"peer": src.String(), "count": len(payload.Peers)})

	seen := make(map[string]bool, len(payload.Peers))
	for _, rec := range payload.Peers {
		if rec.Addr == n.identity.Addr || rec.Addr == "" || seen[rec.Addr] {
			continue
		}
		seen[rec.Addr] = true

		if _, known := n.peers.Get(rec.Addr); known {
			continue
		}
		result, evicted := n.peers.Upsert(rec.Addr, rec.NodeID, false, n.nowMs())
		if result == peerview.Added {
			n.events.Log("peer_add", eventlog.Fields{"peer": rec.Addr, "node_id": rec.NodeID, "reason": "peers_list"})
			telemetry.PeersActive.Add(n.ctx, 1)
			if evicted != "" {
				n.events.Log("peer_evict", eventlog.Fields{"peer": evicted, "reason": "capacity"})
				telemetry.PeersActive.Add(n.ctx, -1)
			}
			if addr, err := net.ResolveUDPAddr("udp", rec.Addr); err == nil {
				n.sendHello(addr)
			}
		}
	}
}

// handlePing replies with a PONG echoing ping_id and seq to the datagram's
// source address.
func (n *Node) handlePing(env *wire.Envelope, src *net.UDPAddr) {
	var payload wire.PingPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		return
	}
	reply := n.newEnvelope(wire.KindPong, wire.PongPayload{PingID: payload.PingID, Seq: payload.Seq})
	n.sendTo(src, reply)
}

// handlePong resets the sender's missed_pongs to 0. The sender is
// identified by sender_id, since that is what PONG carries, even though
// the view is keyed by address (spec.md §9 open question on canonical key).
func (n *Node) handlePong(env *wire.Envelope, src *net.UDPAddr) {
	var payload wire.PongPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		return
	}
	n.peers.ResetMissedPongsByNodeID(env.SenderID)
}

// handleGossip dedups by msg_id, caches the body, emits gossip_first_seen,
// and forwards with ttl-1 when ttl > 0, excluding the immediate sender.
func (n *Node) handleGossip(env *wire.Envelope, src *net.UDPAddr) {
	if env.TTL == nil {
		return
	}
	if n.seen.Contains(env.MsgID) {
		return
	}

	var payload wire.GossipPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		return
	}

	n.seen.Add(env.MsgID)
	n.gossipCache.Put(env.MsgID, env)

	n.events.Log("gossip_first_seen", eventlog.Fields{
		"msg_id":     env.MsgID,
		"from":       src.String(),
		"at_ms":      n.nowMs(),
		"origin_ts":  payload.OriginTimestampMs,
	})
	telemetry.GossipFirstSeen.Add(n.ctx, 1)

	if *env.TTL > 0 {
		forwarded := *env.TTL - 1
		n.pushForward(env, forwarded, env.SenderID)
	}
}

// handleIHave computes the ids unknown to this node's SeenSet and, if any,
// requests them with an IWANT sent back to the advertiser.
func (n *Node) handleIHave(env *wire.Envelope, src *net.UDPAddr) {
	var payload wire.IHavePayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		return
	}
	var unknown []string
	for _, id := range payload.IDs {
		if !n.seen.Contains(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) == 0 {
		return
	}
	reply := n.newEnvelope(wire.KindIWant, wire.IWantPayload{IDs: unknown})
	n.sendTo(src, reply)
}

// handleIWant re-sends the cached envelope for each requested id found in
// the GossipCache, verbatim, to the requester.
func (n *Node) handleIWant(env *wire.Envelope, src *net.UDPAddr) {
	var payload wire.IWantPayload
	if err := wire.DecodePayload(env, &payload); err != nil {
		return
	}
	for _, id := range payload.IDs {
		cached, ok := n.gossipCache.Get(id)
		if !ok {
			continue
		}
		n.sendTo(src, cached)
	}
}

func hasCapability(caps []string, want string) bool {
	for _, c := range caps {
		if c == want {
			return true
		}
	}
	return false
}

// newEnvelope builds an outbound envelope with a fresh msg_id, this node's
// identity, and the current timestamp.
func (n *Node) newEnvelope(kind wire.Kind, payload interface{}) *wire.Envelope {
	raw, _ := wire.EncodePayload(payload)
	return &wire.Envelope{
		Version:     wire.Version,
		MsgID:       uuid.New().String(),
		MsgType:     kind,
		SenderID:    n.identity.ID,
		SenderAddr:  n.identity.Addr,
		TimestampMs: n.nowMs(),
		Payload:     raw,
	}
}

func (n *Node) sendHello(dest *net.UDPAddr) {
	payload := wire.HelloPayload{Capabilities: []string{"udp", "json"}}
	if n.cfg.PowK > 0 {
		cred := pow.Generate(n.identity.ID, n.cfg.PowK)
		payload.Pow = &wire.PowCredential{
			HashAlg:     cred.HashAlg,
			DifficultyK: cred.DifficultyK,
			Nonce:       cred.Nonce,
			DigestHex:   cred.DigestHex,
		}
	}
	env := n.newEnvelope(wire.KindHello, payload)
	n.sendTo(dest, env)
}
