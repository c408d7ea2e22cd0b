// Package config implements C10: CLI flag parsing, defaults, and the
// optional config-file base layer for the gossip node.
//
// Grounded on main.go's flag.NewFlagSet + manual validation + os.Exit(1)
// usage-message pattern (see joinCmd), and pkg/daemon/config.go's
// LoadConfigFile for the config-file layer.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Config is the validated, immutable runtime configuration for one node.
type Config struct {
	Port                 int
	Bootstrap            string
	Fanout               int
	TTL                  int
	PeerLimit            int
	PingIntervalSec      float64
	PeerTimeoutSec       float64
	Seed                 int64
	PullIntervalSec      float64
	DiscoveryIntervalSec float64
	IHaveMaxIDs          int
	PowK                 int
	Stdin                bool
	LogLevel             string
}

// configKeyToFlag maps a config-file key (underscore style, matching
// pkg/daemon/config.go's convention) to the flag.FlagSet name that owns it
// (dash style). Keys absent from this map are ignored rather than rejected,
// the same forgiving behavior pkg/daemon/config.go's LoadConfigFile has.
var configKeyToFlag = map[string]string{
	"port":               "port",
	"bootstrap":          "bootstrap",
	"fanout":             "fanout",
	"ttl":                "ttl",
	"peer_limit":         "peer-limit",
	"ping_interval":      "ping-interval",
	"peer_timeout":       "peer-timeout",
	"seed":               "seed",
	"pull_interval":      "pull-interval",
	"discovery_interval": "discovery-interval",
	"ihave_max_ids":      "ihave-max-ids",
	"pow_k":              "pow-k",
	"stdin":              "stdin",
	"log_level":          "log-level",
}

// Parse parses args (typically os.Args[1:]) into a Config, applying the
// defaults from SPEC_FULL.md §4.10. On a flag-parsing error the FlagSet
// (flag.ExitOnError) prints its usage and exits the process with status 2;
// validation
// failures after parsing return an error instead, since they are not
// usage mistakes in the flag-library sense.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("gossipd", flag.ExitOnError)

	port := fs.Int("port", 0, "UDP port to bind (required)")
	bootstrap := fs.String("bootstrap", "", "bootstrap peer host:port (absent means this is a seed node)")
	fanout := fs.Int("fanout", 3, "number of peers contacted per emission event")
	ttl := fs.Int("ttl", 8, "hop budget for originated GOSSIP messages")
	peerLimit := fs.Int("peer-limit", 50, "maximum size of the peer view")
	pingInterval := fs.Float64("ping-interval", 2, "seconds between ping loop ticks")
	peerTimeout := fs.Float64("peer-timeout", 6, "seconds of silence before a ping is considered missed")
	seed := fs.Int64("seed", 42, "seed for all per-node PRNGs (combined with port)")
	pullInterval := fs.Float64("pull-interval", 2, "seconds between HYBRID pull-digest ticks (<=0 disables, pure PUSH)")
	discoveryInterval := fs.Float64("discovery-interval", 4, "seconds between discovery loop ticks (<=0 disables)")
	ihaveMaxIDs := fs.Int("ihave-max-ids", 32, "maximum ids advertised per IHAVE digest")
	powK := fs.Int("pow-k", 0, "required proof-of-work difficulty for admission (0 disables)")
	stdin := fs.Bool("stdin", true, "enable the stdin origination loop")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	configFile := fs.String("config", "", "optional config file (key=value) applied before flags")

	// Reject the competing spelling from spec.md §9's second open question
	// explicitly, rather than silently ignoring it.
	fs.Func("interval_pull", "rejected: use --pull-interval instead", func(string) error {
		return fmt.Errorf("interval_pull is not a supported flag; use --pull-interval")
	})

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Flags the user actually typed take precedence over the config file;
	// track them before the file is applied so fs.Set below only fills in
	// flags the caller did not pass.
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if *configFile != "" {
		fileValues, err := loadConfigFile(*configFile)
		if err != nil {
			return nil, err
		}
		if v, ok := fileValues["interval_pull"]; ok && v != "" {
			return nil, fmt.Errorf("config file uses interval_pull; rename the key to pull_interval")
		}
		for key, value := range fileValues {
			flagName, known := configKeyToFlag[key]
			if !known || explicit[flagName] {
				continue
			}
			if err := fs.Set(flagName, value); err != nil {
				return nil, fmt.Errorf("config file: %s=%s: %w", key, value, err)
			}
		}
	}

	cfg := &Config{
		Port:                 *port,
		Bootstrap:            *bootstrap,
		Fanout:               *fanout,
		TTL:                  *ttl,
		PeerLimit:            *peerLimit,
		PingIntervalSec:      *pingInterval,
		PeerTimeoutSec:       *peerTimeout,
		Seed:                 *seed,
		PullIntervalSec:      *pullInterval,
		DiscoveryIntervalSec: *discoveryInterval,
		IHaveMaxIDs:          *ihaveMaxIDs,
		PowK:                 *powK,
		Stdin:                *stdin,
		LogLevel:             *logLevel,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("--port is required and must be > 0")
	}
	if c.Fanout < 1 {
		return fmt.Errorf("--fanout must be >= 1")
	}
	if c.TTL < 0 {
		return fmt.Errorf("--ttl must be >= 0")
	}
	if c.PeerLimit < 1 {
		return fmt.Errorf("--peer-limit must be >= 1")
	}
	if c.PingIntervalSec <= 0 {
		return fmt.Errorf("--ping-interval must be > 0")
	}
	if c.PeerTimeoutSec <= 0 {
		return fmt.Errorf("--peer-timeout must be > 0")
	}
	if c.IHaveMaxIDs <= 0 {
		return fmt.Errorf("--ihave-max-ids must be > 0")
	}
	if c.PowK < 0 {
		return fmt.Errorf("--pow-k must be >= 0")
	}
	return nil
}

// loadConfigFile parses key=value lines (# comments, quote-stripping),
// matching pkg/daemon/config.go's LoadConfigFile.
func loadConfigFile(path string) (map[string]string, error) {
	out := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
			value = value[1 : len(value)-1]
		}
		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return out, nil
}
