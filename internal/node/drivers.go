package node

import (
	"bufio"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/gossipd/internal/eventlog"
	"github.com/atvirokodosprendimai/gossipd/internal/telemetry"
	"github.com/atvirokodosprendimai/gossipd/internal/wire"
)

func resolveAddr(addr string) (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", addr)
}

// bootstrap sends an initial HELLO and GET_PEERS to cfg.Bootstrap, if one
// was configured and it is not this node's own address. Absent bootstrap
// means this node is a seed, per spec.md §4.9.
func (n *Node) bootstrap() {
	if n.cfg.Bootstrap == "" || n.cfg.Bootstrap == n.identity.Addr {
		return
	}
	addr, err := resolveAddr(n.cfg.Bootstrap)
	if err != nil {
		n.events.Log("bootstrap_failed", eventlog.Fields{"bootstrap": n.cfg.Bootstrap, "reason": err.Error()})
		return
	}
	n.sendHello(addr)
	getPeers := n.newEnvelope(wire.KindGetPeers, wire.GetPeersPayload{MaxPeers: n.cfg.PeerLimit})
	n.sendTo(addr, getPeers)
	n.events.Log("bootstrap_started", eventlog.Fields{"bootstrap": n.cfg.Bootstrap})
}

// pingLoop expires stale peers and pings a fanout-sized sample of the
// remaining peers on each tick, per spec.md §4.4's liveness check. Always
// runs, even in pure PUSH mode.
func (n *Node) pingLoop() {
	interval := time.Duration(n.cfg.PingIntervalSec * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			now := n.nowMs()
			for _, addr := range n.peers.Expire(now) {
				n.events.Log("peer_expired", eventlog.Fields{"peer": addr, "reason": "missed_pongs"})
				telemetry.PeersActive.Add(n.ctx, -1)
			}

			seq++
			targets := n.peers.Sample(n.cfg.Fanout, n.identity.ID)
			for _, p := range targets {
				addr, err := resolveAddr(p.Addr)
				if err != nil {
					continue
				}
				pingID := uuid.New().String()
				env := n.newEnvelope(wire.KindPing, wire.PingPayload{PingID: pingID, Seq: seq})
				n.sendTo(addr, env)
				n.peers.MarkPinged(p.Addr, now)
			}
		}
	}
}

// pullLoop periodically broadcasts an IHAVE digest (HYBRID anti-entropy).
// Only started when cfg.PullIntervalSec > 0.
func (n *Node) pullLoop() {
	interval := time.Duration(n.cfg.PullIntervalSec * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.pushDigest()
		}
	}
}

// discoveryLoop periodically sends GET_PEERS to a random sample of known
// peers, to keep the view populated beyond what HELLO/PEERS_LIST exchange
// alone provides. Only started when cfg.DiscoveryIntervalSec > 0.
func (n *Node) discoveryLoop() {
	interval := time.Duration(n.cfg.DiscoveryIntervalSec * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			targets := n.peers.Sample(n.cfg.Fanout, n.identity.ID)
			for _, p := range targets {
				addr, err := resolveAddr(p.Addr)
				if err != nil {
					continue
				}
				env := n.newEnvelope(wire.KindGetPeers, wire.GetPeersPayload{MaxPeers: n.cfg.PeerLimit})
				n.sendTo(addr, env)
			}
		}
	}
}

// originationLoop reads newline-delimited lines from stdin and originates
// one GOSSIP message per line, on the "topic:data" or bare "data" shape
// (bare lines are originated on the empty topic). Only started when
// cfg.Stdin is true.
func (n *Node) originationLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	lineCh := make(chan string)

	go func() {
		defer close(lineCh)
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
	}()

	for {
		select {
		case <-n.ctx.Done():
			return
		case line, ok := <-lineCh:
			if !ok {
				return
			}
			if line == "" {
				continue
			}
			topic, data := splitTopic(line)
			n.originate(topic, data)
		}
	}
}

func splitTopic(line string) (topic, data string) {
	for i := 0; i < len(line); i++ {
		if line[i] == ':' {
			return line[:i], line[i+1:]
		}
	}
	return "", line
}
