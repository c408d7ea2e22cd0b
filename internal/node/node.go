// Package node wires together the wire codec, peer view, message caches,
// PoW module, and dissemination engine into a running gossip node (C2, C5,
// C7, C8, C13).
//
// Grounded on pkg/discovery/exchange.go's handleMessage dispatch shape and
// goroutine-per-datagram receive loop, and pkg/daemon/daemon.go's Run()
// signal-handling/shutdown shape (signal.Notify + select + cancel + wg.Wait).
package node

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/gossipd/internal/cache"
	"github.com/atvirokodosprendimai/gossipd/internal/config"
	"github.com/atvirokodosprendimai/gossipd/internal/eventlog"
	"github.com/atvirokodosprendimai/gossipd/internal/peerview"
	"github.com/atvirokodosprendimai/gossipd/internal/ratelimit"
	"github.com/atvirokodosprendimai/gossipd/internal/telemetry"
)

// Identity is the node's stable identifier and bound address, immutable for
// the process lifetime (spec.md §3 NodeIdentity).
type Identity struct {
	ID   string
	Addr string
}

// Node owns the UDP endpoint, peer view, message caches, and every
// periodic driver for one gossip participant.
type Node struct {
	cfg      *config.Config
	identity Identity

	conn *net.UDPConn

	peers       *peerview.View
	seen        *cache.SeenSet
	gossipCache *cache.GossipCache
	limiter     *ratelimit.IPRateLimiter

	events *eventlog.Logger

	rng *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ConfigureLogging sets up the global slog logger and redirects stdlib
// log.Printf output through it, matching pkg/daemon/daemon.go's
// configureLogging/slogWriter pair. Call once at process startup.
func ConfigureLogging(level string) {
	lvl := parseLogLevel(level)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
	log.SetOutput(&slogWriter{level: lvl})
	log.SetFlags(0)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type slogWriter struct {
	level slog.Level
}

func (w *slogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	slog.Log(context.Background(), w.level, msg)
	return len(p), nil
}

// New binds the UDP socket and assembles a Node from cfg. logDir is where
// the JSONL event sink writes its per-node file.
func New(cfg *config.Config, logDir string) (*Node, error) {
	addr := &net.UDPAddr{Port: cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind :%d: %w", cfg.Port, err)
	}

	id := uuid.New().String()
	selfAddr := conn.LocalAddr().String()

	events, err := eventlog.Create(logDir, cfg.Port, id)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("event log: %w", err)
	}

	seenCapacity := cfg.PeerLimit * cache.DefaultSeenSetMultiplier
	gossipCacheCapacity := cache.DefaultGossipCacheSize

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		cfg:         cfg,
		identity:    Identity{ID: id, Addr: selfAddr},
		conn:        conn,
		peers:       peerview.New(selfAddr, cfg.PeerLimit, int64(cfg.PeerTimeoutSec*1000), cfg.Seed+int64(cfg.Port)),
		seen:        cache.NewSeenSet(seenCapacity),
		gossipCache: cache.NewGossipCache(gossipCacheCapacity),
		limiter:     ratelimit.NewDefault(),
		events:      events,
		rng:         rand.New(rand.NewSource(cfg.Seed + int64(cfg.Port))),
		ctx:         ctx,
		cancel:      cancel,
	}
	return n, nil
}

// Run binds is already done by New; Run starts the receive loop and all
// periodic drivers, blocking until a shutdown signal arrives or ctx is
// cancelled externally.
func (n *Node) Run() error {
	n.events.Log("node_listening", eventlog.Fields{
		"addr":                n.identity.Addr,
		"node_id":             n.identity.ID,
		"fanout":              n.cfg.Fanout,
		"ttl":                 n.cfg.TTL,
		"peer_limit":          n.cfg.PeerLimit,
		"ping_interval":       n.cfg.PingIntervalSec,
		"peer_timeout":        n.cfg.PeerTimeoutSec,
		"seed":                n.cfg.Seed,
		"pull_interval":       n.cfg.PullIntervalSec,
		"discovery_interval":  n.cfg.DiscoveryIntervalSec,
		"ihave_max_ids":       n.cfg.IHaveMaxIDs,
		"pow_k":               n.cfg.PowK,
		"stdin":               n.cfg.Stdin,
	})
	log.Printf("gossipd listening on %s (node_id=%s)", n.identity.Addr, n.identity.ID)

	shutdownTelemetry, err := telemetry.Init(n.ctx, "gossipd", "dev")
	if err != nil {
		log.Printf("telemetry init failed, continuing without it: %v", err)
		shutdownTelemetry = func(context.Context) {}
	}

	n.bootstrap()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.receiveLoop()
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.pingLoop()
	}()

	if n.cfg.PullIntervalSec > 0 {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.pullLoop()
		}()
	}

	if n.cfg.DiscoveryIntervalSec > 0 {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.discoveryLoop()
		}()
	}

	if n.cfg.Stdin {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.originationLoop()
		}()
	}

	select {
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down", sig)
	case <-n.ctx.Done():
		log.Printf("context cancelled, shutting down")
	}

	n.cancel()
	_ = n.conn.SetReadDeadline(time.Now())
	n.wg.Wait()

	n.events.Log("node_shutdown", nil)
	shutdownTelemetry(context.Background())
	n.events.Close()
	return n.conn.Close()
}

// Shutdown cancels the node's context, asking all loops to stop at their
// next suspension point.
func (n *Node) Shutdown() {
	n.cancel()
}

func (n *Node) nowMs() int64 {
	return time.Now().UnixMilli()
}
