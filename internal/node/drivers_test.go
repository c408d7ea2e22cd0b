package node

import (
	"testing"

	"github.com/atvirokodosprendimai/gossipd/internal/wire"
)

func TestSplitTopic(t *testing.T) {
	t.Parallel()
	cases := []struct {
		line, wantTopic, wantData string
	}{
		{"news:hello", "news", "hello"},
		{"bare line", "", "bare line"},
		{"a:b:c", "a", "b:c"},
	}
	for _, c := range cases {
		topic, data := splitTopic(c.line)
		if topic != c.wantTopic || data != c.wantData {
			t.Errorf("splitTopic(%q) = (%q, %q), want (%q, %q)", c.line, topic, data, c.wantTopic, c.wantData)
		}
	}
}

func TestBootstrapSendsHelloAndGetPeers(t *testing.T) {
	t.Parallel()
	n := newTestNode(t)
	seedConn, seedAddr := newLoopbackListener(t)
	n.cfg.Bootstrap = seedAddr.String()

	n.bootstrap()

	first := readEnvelope(t, seedConn)
	second := readEnvelope(t, seedConn)
	kinds := map[wire.Kind]bool{first.MsgType: true, second.MsgType: true}
	if !kinds[wire.KindHello] || !kinds[wire.KindGetPeers] {
		t.Fatalf("expected HELLO and GET_PEERS, got %s and %s", first.MsgType, second.MsgType)
	}
}

func TestBootstrapSkippedWhenUnset(t *testing.T) {
	t.Parallel()
	n := newTestNode(t)
	seedConn, _ := newLoopbackListener(t)
	n.cfg.Bootstrap = ""

	n.bootstrap()

	_ = seedConn.SetReadDeadline(timeNowPlus200ms())
	buf := make([]byte, 1024)
	if _, _, err := seedConn.ReadFromUDP(buf); err == nil {
		t.Fatal("expected no datagrams when bootstrap is unset")
	}
}
