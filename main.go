package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mimicbot/internal/collector_client"
	"mimicbot/internal/config"
	"mimicbot/internal/generator"
	"mimicbot/internal/history"
	"mimicbot/internal/listen"
	"mimicbot/internal/markov_client"
	"mimicbot/internal/repository"
	"mimicbot/internal/server"
	"mimicbot/internal/service"
	"mimicbot/internal/telegram_bot"
	"mimicbot/internal/trainer"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig("configs/config.yml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repository.MigrateDB(db, logger)

	communityRepo := repository.NewCommunityRepository(db, logger)
	channelRepo := repository.NewChannelRepository(db, logger)
	authRepo := repository.NewAuthRepository(db, logger)

	markovClient := markov_client.NewClient(cfg.Markov.URL, cfg.Markov.StateSize, logger)
	collectorClient := collector_client.NewClient(cfg.Collector.URL, logger)

	gate := listen.NewGate(channelRepo, cfg.Training.DefaultListen, logger)
	walker := history.NewWalker(collectorClient, cfg.Collector.PageSize, logger)

	communityTrainer := trainer.NewTrainer(walker, markovClient, channelRepo, collectorClient, cfg.Training.UpdateRate, logger)
	manager := trainer.NewManager(communityTrainer, logger)

	coordinator := generator.NewCoordinator(markovClient, cfg.Markov.MinScore, cfg.Markov.MaxTries, logger)
	ingestService := service.NewIngestService(gate, communityRepo, markovClient, manager, logger)
	authService := service.NewAuthService(authRepo, cfg.Server.JWTSecret, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := telegram_bot.NewBot(cfg, ingestService, manager, coordinator, gate, communityRepo, logger)
	if err != nil {
		logger.Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	srv := server.NewServer(ctx, server.Deps{
		AuthService: authService,
		Ingest:      ingestService,
		Manager:     manager,
		Coordinator: coordinator,
		Gate:        gate,
		Channels:    channelRepo,
		Communities: communityRepo,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Server.Port)
	})
	g.Go(func() error {
		return bot.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Service stopped", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
