// Command ocr-watchdog runs a reverse proxy in front of a HunyuanOCR
// server container. It starts the container on the first request, holds
// clients until the model is loaded, and stops the container again once
// traffic has been idle long enough to give the GPU back.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hunyuanocr/hunyuanocr-go/internal/config"
	"github.com/hunyuanocr/hunyuanocr-go/internal/proxy"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "ocr-watchdog").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend := proxy.NewBackend(cfg.Proxy.BackendURL, cfg.Proxy.ContainerName, cfg.Proxy.StartupTimeout(), log)
	srv := proxy.NewServer(cfg.Proxy, backend, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Proxy.Port),
		Handler: srv.Router(),
	}

	go srv.MonitorIdle(ctx)

	go func() {
		log.Info().
			Int("port", cfg.Proxy.Port).
			Str("backend", cfg.Proxy.BackendURL).
			Str("container", cfg.Proxy.ContainerName).
			Dur("idle_timeout", cfg.Proxy.IdleTimeout()).
			Msg("watchdog proxy listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("proxy server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Proxy.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
