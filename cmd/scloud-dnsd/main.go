package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2SCloud/scloud-dns/internal/config"
	"github.com/2SCloud/scloud-dns/internal/server"
)

var (
	configPath = flag.String("config", "", "Path to YAML configuration file (optional, defaults used otherwise)")
	zoneFile   = flag.String("zone", "", "Zone file to load at startup (optional)")
	zoneOrigin = flag.String("origin", "", "Origin for the zone file named by -zone")
	stats      = flag.Bool("stats", true, "Print statistics periodically")
)

func main() {
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []config.ListenerConfig{{Name: "default", Address: "0.0.0.0", Port: cfg.Server.BindPort}}
	}

	log.Info("starting scloud-dnsd",
		"bind_port", cfg.Server.BindPort,
		"max_concurrent_requests", cfg.Server.MaxConcurrentRequests,
		"cache_enabled", cfg.Cache.Enabled,
		"recursion_enabled", cfg.Recursion.Enabled,
	)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("create server", "error", err)
		os.Exit(1)
	}

	if *zoneFile != "" {
		if *zoneOrigin == "" {
			log.Error("-origin is required when -zone is set")
			os.Exit(1)
		}
		log.Info("loading zone", "file", *zoneFile, "origin", *zoneOrigin)
		if err := srv.LoadZone(*zoneFile, *zoneOrigin); err != nil {
			log.Error("load zone", "error", err)
			os.Exit(1)
		}
	}

	if err := srv.Start(); err != nil {
		log.Error("start server", "error", err)
		os.Exit(1)
	}
	log.Info("server started")

	if *stats {
		go printStats(log, srv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	if err := srv.Stop(); err != nil {
		log.Error("stop server", "error", err)
		os.Exit(1)
	}
}

func printStats(log *slog.Logger, srv *server.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var lastQueries uint64
	lastTime := time.Now()

	for range ticker.C {
		s := srv.GetStats()
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()
		qps := float64(s.Queries-lastQueries) / elapsed

		log.Info("stats",
			"queries", s.Queries,
			"qps", fmt.Sprintf("%.0f", qps),
			"answers", s.Answers,
			"errors", s.Errors,
			"cache_hits", s.Cache.Hits,
			"cache_misses", s.Cache.Misses,
			"cache_size", s.Cache.Size,
		)

		lastQueries = s.Queries
		lastTime = now
	}
}
