package node

import (
	"net"
	"time"

	"github.com/atvirokodosprendimai/gossipd/internal/eventlog"
	"github.com/atvirokodosprendimai/gossipd/internal/peerview"
	"github.com/atvirokodosprendimai/gossipd/internal/telemetry"
	"github.com/atvirokodosprendimai/gossipd/internal/wire"
)

const maxDatagramSize = 65536

// receiveLoop reads datagrams off the UDP socket and dispatches each on its
// own goroutine, per pkg/discovery/exchange.go's "go pe.handleMessage(...)"
// idiom — unlike the single-threaded Python original, this Go port accepts
// goroutine-per-datagram concurrency and pushes the locking down into
// peerview/cache/ratelimit themselves (see SPEC_FULL.md §5).
func (n *Node) receiveLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-n.ctx.Done():
			return
		default:
		}

		_ = n.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		size, srcAddr, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-n.ctx.Done():
				return
			default:
			}
			continue
		}

		data := make([]byte, size)
		copy(data, buf[:size])
		go n.handleDatagram(data, srcAddr)
	}
}

func (n *Node) handleDatagram(data []byte, src *net.UDPAddr) {
	if !n.limiter.Allow(src.IP.String()) {
		// Rate-limited datagrams are dropped silently before decode, per
		// SPEC_FULL.md §4.12 — logging every dropped flood packet would
		// itself be a resource exhaustion vector. The counter still gives
		// an aggregate signal without per-packet log volume.
		telemetry.DatagramsRateLimited.Add(n.ctx, 1)
		return
	}

	env, err := wire.Decode(data)
	if err != nil {
		ve, _ := err.(*wire.ValidationError)
		reason := "bad_json"
		var msgType, msgID string
		if ve != nil {
			reason = ve.Reason
			msgType = string(ve.MsgType)
			msgID = ve.MsgID
		}
		event := "recv_invalid_schema"
		if reason == "bad_json" || reason == "not_object" {
			event = "recv_invalid_json"
		}
		if reason == "unknown_type" {
			event = "recv_unknown_type"
		}
		n.events.Log(event, eventlog.Fields{
			"peer":     src.String(),
			"bytes":    len(data),
			"msg_type": nilIfEmpty(msgType),
			"msg_id":   nilIfEmpty(msgID),
			"reason":   reason,
		})
		return
	}

	n.events.Log("recv_ok", eventlog.Fields{
		"peer":     src.String(),
		"bytes":    len(data),
		"msg_type": string(env.MsgType),
		"msg_id":   env.MsgID,
	})

	// Every sender other than self is upserted into the peer view using the
	// datagram's source address (authoritative), except a HELLO that fails
	// PoW, which is rejected without side effect in handleHello itself.
	if env.SenderID != n.identity.ID && env.MsgType != wire.KindHello {
		n.upsertSender(src.String(), env.SenderID, false)
	}

	switch env.MsgType {
	case wire.KindHello:
		n.handleHello(env, src)
	case wire.KindGetPeers:
		n.handleGetPeers(env, src)
	case wire.KindPeersList:
		n.handlePeersList(env, src)
	case wire.KindPing:
		n.handlePing(env, src)
	case wire.KindPong:
		n.handlePong(env, src)
	case wire.KindGossip:
		n.handleGossip(env, src)
	case wire.KindIHave:
		n.handleIHave(env, src)
	case wire.KindIWant:
		n.handleIWant(env, src)
	default:
		n.events.Log("recv_unknown_type", eventlog.Fields{
			"peer":        src.String(),
			"msg_type":    string(env.MsgType),
			"known_types": knownTypesJoined(),
		})
	}
}

func knownTypesJoined() string {
	return "HELLO,GET_PEERS,PEERS_LIST,PING,PONG,GOSSIP,IHAVE,IWANT"
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// sendTo encodes env and writes it to dest, logging send_ok/send_error.
// Best-effort: a failure is logged and dropped, never retried, per
// spec.md §4.2/§7.
func (n *Node) sendTo(dest *net.UDPAddr, env *wire.Envelope) {
	data, err := wire.Encode(env)
	if err != nil {
		n.events.Log("send_error", eventlog.Fields{
			"peer":     dest.String(),
			"msg_type": string(env.MsgType),
			"msg_id":   env.MsgID,
			"reason":   "encode_error",
		})
		telemetry.SendErrors.Add(n.ctx, 1)
		return
	}
	if _, err := n.conn.WriteToUDP(data, dest); err != nil {
		n.events.Log("send_error", eventlog.Fields{
			"peer":     dest.String(),
			"msg_type": string(env.MsgType),
			"msg_id":   env.MsgID,
			"reason":   err.Error(),
		})
		telemetry.SendErrors.Add(n.ctx, 1)
		return
	}
	n.events.Log("send_ok", eventlog.Fields{
		"peer":     dest.String(),
		"msg_type": string(env.MsgType),
		"msg_id":   env.MsgID,
		"bytes":    len(data),
	})
}

func (n *Node) upsertSender(addr, nodeID string, verifiedHello bool) {
	result, evicted := n.peers.Upsert(addr, nodeID, verifiedHello, n.nowMs())
	switch result {
	case peerview.Added:
		n.events.Log("peer_add", eventlog.Fields{"peer": addr, "node_id": nodeID, "reason": "observed"})
		telemetry.PeersActive.Add(n.ctx, 1)
		if evicted != "" {
			n.events.Log("peer_evict", eventlog.Fields{"peer": evicted, "reason": "capacity"})
			telemetry.PeersActive.Add(n.ctx, -1)
		}
	case peerview.Updated:
		n.events.Log("peer_update", eventlog.Fields{"peer": addr, "node_id": nodeID, "reason": "observed"})
	}
}
