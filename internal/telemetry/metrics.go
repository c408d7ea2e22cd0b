package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments for the gossip node. When no MeterProvider is
// configured (noop), all recording is zero-cost.
//
// Grounded on pkg/daemon/metrics.go's init()-time instrument registration
// pattern (package-level meter, panic on instrument-creation error).
var (
	meter = otel.Meter("gossipd.node")

	PeersActive          metric.Int64UpDownCounter
	GossipForwarded      metric.Int64Counter
	GossipFirstSeen      metric.Int64Counter
	SendErrors           metric.Int64Counter
	PowVerifyDurationMs  metric.Float64Histogram
	DatagramsRateLimited metric.Int64Counter
)

func init() {
	var err error

	PeersActive, err = meter.Int64UpDownCounter("gossipd.peers.active",
		metric.WithDescription("Number of peers currently in the view"),
		metric.WithUnit("{peers}"),
	)
	if err != nil {
		panic("telemetry meter: " + err.Error())
	}

	GossipForwarded, err = meter.Int64Counter("gossipd.gossip.forwarded",
		metric.WithDescription("Total GOSSIP messages forwarded"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		panic("telemetry meter: " + err.Error())
	}

	GossipFirstSeen, err = meter.Int64Counter("gossipd.gossip.first_seen",
		metric.WithDescription("Total distinct GOSSIP messages seen for the first time"),
		metric.WithUnit("{messages}"),
	)
	if err != nil {
		panic("telemetry meter: " + err.Error())
	}

	SendErrors, err = meter.Int64Counter("gossipd.send.errors",
		metric.WithDescription("Total UDP send errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		panic("telemetry meter: " + err.Error())
	}

	PowVerifyDurationMs, err = meter.Float64Histogram("gossipd.pow.verify_duration_ms",
		metric.WithDescription("Time spent verifying a proof-of-work credential"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("telemetry meter: " + err.Error())
	}

	DatagramsRateLimited, err = meter.Int64Counter("gossipd.datagrams.rate_limited",
		metric.WithDescription("Total inbound datagrams dropped by the per-IP rate limiter"),
		metric.WithUnit("{datagrams}"),
	)
	if err != nil {
		panic("telemetry meter: " + err.Error())
	}
}
