// Command proxy runs the caching forward proxy server.
//
// Signal handling and graceful shutdown are owned by proxy.Server itself
// (spec 4.G), so main is a thin loader: parse the config path, build the
// server, run it, and translate a startup/accept failure into a non-zero
// exit code (spec 6).
package main

import (
	"flag"
	"log"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/config"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/proxy"
)

func main() {
	configPath := flag.String("config", "config.txt", "Path to configuration file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GetInstance()

	server, err := proxy.NewServer(cfg)
	if err != nil {
		log.Fatalf("create proxy server: %v", err)
	}

	if err := server.Start(); err != nil {
		log.Fatalf("proxy server exited: %v", err)
	}
}
