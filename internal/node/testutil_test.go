package node

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/gossipd/internal/config"
	"github.com/atvirokodosprendimai/gossipd/internal/wire"
	"github.com/google/uuid"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	cfg := &config.Config{
		Port:                 0,
		Fanout:               3,
		TTL:                  4,
		PeerLimit:            10,
		PingIntervalSec:      2,
		PeerTimeoutSec:       6,
		Seed:                 1,
		PullIntervalSec:      0,
		DiscoveryIntervalSec: 0,
		IHaveMaxIDs:          32,
		PowK:                 0,
		Stdin:                false,
		LogLevel:             "error",
	}
	n, err := New(cfg, t.TempDir())
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}
	t.Cleanup(func() {
		n.events.Close()
		n.conn.Close()
	})
	return n
}

// newLoopbackListener opens a bare UDP socket on 127.0.0.1 to stand in for
// a remote peer in tests, without spinning up a second full Node.
func newLoopbackListener(t *testing.T) (*net.UDPConn, *net.UDPAddr) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr)
}

func buildEnvelope(t *testing.T, kind wire.Kind, senderID, senderAddr string, payload interface{}, ttl *int) *wire.Envelope {
	t.Helper()
	raw, err := wire.EncodePayload(payload)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return &wire.Envelope{
		Version:     wire.Version,
		MsgID:       uuid.New().String(),
		MsgType:     kind,
		SenderID:    senderID,
		SenderAddr:  senderAddr,
		TimestampMs: time.Now().UnixMilli(),
		Payload:     raw,
		TTL:         ttl,
	}
}

func intPtr(v int) *int { return &v }

func timeNowPlus200ms() time.Time { return time.Now().Add(200 * time.Millisecond) }

// readEnvelope reads one datagram from conn with a short deadline and
// decodes it as a wire envelope.
func readEnvelope(t *testing.T, conn *net.UDPConn) *wire.Envelope {
	t.Helper()
	buf := make([]byte, 65536)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	size, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := wire.Decode(buf[:size])
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return env
}

func decodePayload(t *testing.T, env *wire.Envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Payload, v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}
