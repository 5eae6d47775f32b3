package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"craftgate/server/internal/app"
	"craftgate/server/internal/telemetry"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, telemetry.WrapLogger(log.Default())); err != nil {
		log.Fatalf("%v", err)
	}
}
