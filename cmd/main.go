package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"live-transcription-service/internal/app"
	"live-transcription-service/internal/config"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		application.Shutdown(shutdownCtx)
		cancel()
		log.Fatal().Err(err).Msg("Failed to start live transcription service")
	}

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	application.Shutdown(shutdownCtx)
	os.Exit(0)
}
