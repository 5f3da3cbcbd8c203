// cmd/netmon/main.go
package main

import (
	"context"
	"flag"
	"log"

	"github.com/mfreeman451/netmon/pkg/api"
	"github.com/mfreeman451/netmon/pkg/collector"
	"github.com/mfreeman451/netmon/pkg/config"
	"github.com/mfreeman451/netmon/pkg/db"
	"github.com/mfreeman451/netmon/pkg/lifecycle"
	"github.com/mfreeman451/netmon/pkg/monitor"
	"github.com/mfreeman451/netmon/pkg/scheduler"
)

func main() {
	log.Printf("Starting netmon...")

	configPath := flag.String("config", "/etc/netmon/netmon.json", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	var cfg config.Config

	if err := config.LoadAndValidate(configPath, &cfg); err != nil {
		return err
	}

	store, err := db.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	client := collector.NewClient(cfg.Source)
	sched := scheduler.New()

	mon, err := monitor.NewService(store, client, &cfg, sched)
	if err != nil {
		return err
	}

	apiServer := api.NewAPIServer(store, client, mon, cfg.Source)

	// Stored snapshots stream out over /api/live.
	mon.SetSnapshotListener(apiServer.Hub().Broadcast)
	defer apiServer.Hub().Shutdown()

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: "netmon",
		Service:     mon,
		Handler:     apiServer.Router(),
	})
}
