package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mindbridge/signaling/config"
	"github.com/mindbridge/signaling/dispatch"
	"github.com/mindbridge/signaling/registry"
	"github.com/mindbridge/signaling/relay"
	httpServer "github.com/mindbridge/signaling/server/http"
	websocketServer "github.com/mindbridge/signaling/server/websocket"
	"github.com/mindbridge/signaling/service"
	store "github.com/mindbridge/signaling/storage/memory"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	var (
		reg   = registry.New(&logger)
		rooms = store.NewStore()
	)
	svc := service.New(service.Config{
		Registry:   reg,
		Rooms:      rooms,
		Relay:      relay.New(&logger, reg),
		Dispatcher: dispatch.New(&logger, reg, rooms),
		Logger:     &logger,
	})
	apiSrv := httpServer.NewServer(httpServer.Config{
		Logger:        &logger,
		RoomDirectory: rooms,
		ListenAddr:    cfg.APIListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:           &logger,
		SignalingService: svc,
		ListenAddr:       cfg.WSListenAddr,
		SendQueueDepth:   cfg.SendQueueDepth,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go apiSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
