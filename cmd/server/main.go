package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/rps-party-backend/internal/config"
	"github.com/DoyleJ11/rps-party-backend/internal/engine"
	"github.com/DoyleJ11/rps-party-backend/internal/history"
	"github.com/DoyleJ11/rps-party-backend/internal/httpapi"
	"github.com/DoyleJ11/rps-party-backend/internal/hub"
	"github.com/DoyleJ11/rps-party-backend/internal/lobby"
	"github.com/DoyleJ11/rps-party-backend/internal/logger"
	"github.com/DoyleJ11/rps-party-backend/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Config{
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Backend:   logger.Backend(cfg.Logging.Backend),
		Debug:     cfg.Logging.Debug,
		AddSource: cfg.Logging.AddSource,
	})

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	rounds := history.NewQueue(store, cfg.History.QueueSize, log)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	h := hub.NewHub(hubCtx, hubOptions(cfg, rounds, log))

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Rooms:     h,
		Rounds:    rounds,
		WS:        wsConfig(cfg),
		Origins:   cfg.HTTP.AllowedOrigins,
		StaticDir: cfg.HTTP.StaticDir,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	historyCtx, stopHistory := context.WithCancel(context.Background())
	defer stopHistory()

	g.Go(func() error {
		return rounds.Run(historyCtx)
	})
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		// Closing every room closes every outbox, which ends each session.
		h.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopHistory()
		return err
	})

	return g.Wait()
}

func hubOptions(cfg *config.Config, rec history.Recorder, log *slog.Logger) hub.Options {
	return hub.Options{
		MaxRooms:     cfg.Game.MaxRooms,
		CodeAttempts: cfg.Game.CodeAttempts,
		Rules:        engine.Rules{MinPlayers: cfg.Game.MinPlayers},
		Lobby: lobby.Options{
			RoundTimeout: cfg.Game.RoundTimeout,
			Dealer:       engine.RandomDealer,
			Recorder:     rec,
		},
		Logger: log,
	}
}

func wsConfig(cfg *config.Config) ws.Config {
	return ws.Config{
		OutboxSize:     cfg.Game.OutboxSize,
		PingEvery:      cfg.WS.PingEvery,
		WriteTimeout:   cfg.WS.WriteTimeout,
		ReadLimit:      cfg.WS.ReadLimit,
		RatePerSec:     cfg.WS.RatePerSec,
		Burst:          cfg.WS.Burst,
		OriginPatterns: cfg.HTTP.AllowedOrigins,
	}
}

func openStore(cfg *config.Config) (history.Store, error) {
	if cfg.History.DSN == "" {
		return history.NewMemory(cfg.History.Keep), nil
	}
	return history.OpenPostgres(cfg.History.DSN)
}
