package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]string{"--port", "9000"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Fanout != 3 || cfg.TTL != 8 || cfg.PeerLimit != 50 || cfg.Seed != 42 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestParseRequiresPort(t *testing.T) {
	t.Parallel()
	_, err := Parse([]string{})
	if err == nil {
		t.Fatal("expected error when --port is missing")
	}
}

func TestParsePullIntervalOverride(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]string{"--port", "9000", "--pull-interval", "0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PullIntervalSec != 0 {
		t.Errorf("expected pull interval 0 (pure PUSH), got %f", cfg.PullIntervalSec)
	}
}

func TestParseRejectsIntervalPullConfigKey(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "gossipd.conf")
	if err := os.WriteFile(path, []byte("interval_pull=5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Parse([]string{"--port", "9000", "--config", path})
	if err == nil {
		t.Fatal("expected error rejecting interval_pull config key")
	}
}

func TestParseAcceptsConfigFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "gossipd.conf")
	if err := os.WriteFile(path, []byte("# comment\nlog_level=debug\nfanout=7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Parse([]string{"--port", "9000", "--config", path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected config file to set log_level=debug, got %q", cfg.LogLevel)
	}
	if cfg.Fanout != 7 {
		t.Errorf("expected config file to set fanout=7, got %d", cfg.Fanout)
	}
}

func TestParseFlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "gossipd.conf")
	if err := os.WriteFile(path, []byte("fanout=7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Parse([]string{"--port", "9000", "--config", path, "--fanout", "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Fanout != 2 {
		t.Errorf("expected explicit --fanout=2 to win over the config file's fanout=7, got %d", cfg.Fanout)
	}
}
