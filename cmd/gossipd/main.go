// Command gossipd runs one participant of a UDP epidemic gossip network.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/atvirokodosprendimai/gossipd/internal/config"
	"github.com/atvirokodosprendimai/gossipd/internal/node"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "gossipd: %v\n", err)
		os.Exit(1)
	}

	node.ConfigureLogging(cfg.LogLevel)

	logDir := os.Getenv("GOSSIPD_LOG_DIR")
	if logDir == "" {
		logDir = "./gossipd-logs"
	}

	n, err := node.New(cfg, logDir)
	if err != nil {
		log.Fatalf("gossipd: %v", err)
	}

	if err := n.Run(); err != nil {
		log.Fatalf("gossipd: %v", err)
	}
}
