package node

import (
	"github.com/atvirokodosprendimai/gossipd/internal/eventlog"
	"github.com/atvirokodosprendimai/gossipd/internal/telemetry"
	"github.com/atvirokodosprendimai/gossipd/internal/wire"
)

// pushForward sends env (with ttl replaced by forwardedTTL) to up to
// min(fanout, |peers \ {excludeNodeID}|) randomly sampled peers, per
// spec.md §4.7 PUSH mode. Best-effort: a send failure for one peer never
// blocks another.
func (n *Node) pushForward(env *wire.Envelope, forwardedTTL int, excludeNodeID string) {
	targets := n.peers.Sample(n.cfg.Fanout, excludeNodeID)
	if len(targets) == 0 {
		return
	}

	out := *env
	ttl := forwardedTTL
	out.TTL = &ttl

	for _, p := range targets {
		addr, err := resolveAddr(p.Addr)
		if err != nil {
			continue
		}
		n.sendTo(addr, &out)
	}
	n.events.Log("gossip_forwarded", eventlog.Fields{
		"msg_id":  env.MsgID,
		"ttl":     forwardedTTL,
		"targets": len(targets),
	})
	telemetry.GossipForwarded.Add(n.ctx, int64(len(targets)))
}

// originate builds a fresh GOSSIP envelope for data under topic, adds it to
// this node's own SeenSet/GossipCache so a later IHAVE from a peer won't
// re-request it, and pushes it out immediately (spec.md §4.7/§4.8).
func (n *Node) originate(topic, data string) {
	env := n.newEnvelope(wire.KindGossip, wire.GossipPayload{
		Topic:             topic,
		Data:              data,
		OriginID:          n.identity.ID,
		OriginTimestampMs: n.nowMs(),
	})
	ttl := n.cfg.TTL
	env.TTL = &ttl

	n.seen.Add(env.MsgID)
	n.gossipCache.Put(env.MsgID, env)

	n.events.Log("gossip_originated", eventlog.Fields{
		"msg_id": env.MsgID,
		"data":   data,
		"at_ms":  env.TimestampMs,
	})

	if ttl > 0 {
		n.pushForward(env, ttl, n.identity.ID)
	}
}

// pushDigest builds an IHAVE advertising up to ihave_max_ids recently-seen
// message ids and sends it to up to fanout random peers, per spec.md §4.8
// HYBRID mode's periodic anti-entropy tick.
func (n *Node) pushDigest() {
	ids := n.seen.AllIDs()
	if len(ids) == 0 {
		return
	}
	n.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > n.cfg.IHaveMaxIDs {
		ids = ids[:n.cfg.IHaveMaxIDs]
	}
	targets := n.peers.Sample(n.cfg.Fanout, n.identity.ID)
	if len(targets) == 0 {
		return
	}

	env := n.newEnvelope(wire.KindIHave, wire.IHavePayload{IDs: ids, MaxIDs: n.cfg.IHaveMaxIDs})
	for _, p := range targets {
		addr, err := resolveAddr(p.Addr)
		if err != nil {
			continue
		}
		n.sendTo(addr, env)
	}
	n.events.Log("ihave_sent", eventlog.Fields{"msg_id": env.MsgID, "count": len(ids), "targets": len(targets)})
}
