package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pharmacontrol/identity-service/internal/app"
	"github.com/pharmacontrol/identity-service/internal/infrastructure/config"
	"github.com/pharmacontrol/identity-service/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity",
		Env:     cfg.Env,
	})

	log.Info().
		Str("grpc_addr", cfg.GRPCAddr()).
		Str("http_addr", cfg.HTTPAddr()).
		Msg("starting identity service")

	a, err := app.New(ctx, cfg, logger.Component("app"))
	if err != nil {
		log.Fatal().Err(err).Msg("initialise application")
	}

	if err := a.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}
}
