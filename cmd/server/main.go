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

	"github.com/diltdicker/redot-signalling-server/internal/config"
	"github.com/diltdicker/redot-signalling-server/internal/server"
	"github.com/diltdicker/redot-signalling-server/internal/signaling"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	hub := signaling.NewHub(cfg, signaling.RealClock, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(hub, logger),
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "nodeEnv", cfg.NodeEnv)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	cancel()
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelDebug
	if cfg.Production() {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
