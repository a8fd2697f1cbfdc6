// Package main provides the arena server binary: the WebSocket session
// coordinator with its control and snapshot broadcast ticks.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spritefight/arena/internal/config"
	"github.com/spritefight/arena/internal/frontend/ws"
	"github.com/spritefight/arena/internal/game/arena"
	"github.com/spritefight/arena/internal/game/lobby"
	"github.com/spritefight/arena/internal/game/session"
	"github.com/spritefight/arena/internal/gameserver"
	"github.com/spritefight/arena/internal/observability"
	"github.com/spritefight/arena/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	arenasDir := flag.String("arenas", "", "path to arena YAML files directory; overrides content.arenas_dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *arenasDir != "" {
		cfg.Content.ArenasDir = *arenasDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting arena server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("max_players", cfg.Game.MaxPlayers),
		zap.Int("lobby_capacity", cfg.Game.LobbyCapacity),
	)

	// Load arena catalog
	arenaStart := time.Now()
	catalog, err := arena.LoadCatalogFromDir(cfg.Content.ArenasDir)
	if err != nil {
		logger.Fatal("loading arenas", zap.Error(err))
	}
	if !catalog.Has(cfg.Game.DefaultArena) {
		logger.Fatal("default arena missing from catalog",
			zap.String("arena", cfg.Game.DefaultArena),
			zap.Strings("available", catalog.IDs()),
		)
	}
	logger.Info("arenas loaded",
		zap.Int("count", catalog.Count()),
		zap.Strings("arenas", catalog.IDs()),
		zap.Duration("elapsed", time.Since(arenaStart)),
	)

	// Assemble the coordinator stack
	registry := session.NewRegistry()
	broadcaster := gameserver.NewBroadcaster(registry, logger)
	coordinator := lobby.NewCoordinator(cfg.Game, catalog, broadcaster, logger)
	handler := gameserver.NewHandler(coordinator, registry, broadcaster, logger)
	acceptor := ws.NewAcceptor(cfg.Server, handler, logger)

	controlTick := gameserver.NewTicker("control", cfg.Game.ControlTick, coordinator.ControlTick, logger)
	snapshotTick := gameserver.NewTicker("snapshot", cfg.Game.SnapshotTick, coordinator.SnapshotTick, logger)

	lc := server.NewLifecycle(logger)
	lc.Add("control-tick", controlTick)
	lc.Add("snapshot-tick", snapshotTick)
	lc.Add("websocket-acceptor", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	coordinator.StartWarmup(cfg.Server.WarmupDelay)

	if err := lc.Run(context.Background()); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}
