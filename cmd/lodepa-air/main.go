package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lodepa-air/internal/app"
	"lodepa-air/internal/config"
	"lodepa-air/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// 1. config
	cfg := config.Load()

	// 2. logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "lodepa-air")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. service
	airService, err := app.NewAirService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create air service", zap.Error(err))
	}
	defer airService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceErrChan := make(chan error, 1)
	go func() {
		serviceErrChan <- airService.Start(ctx)
	}()

	// 4. wait for a signal or a failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-serviceErrChan:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
		cancel()
	}

	log.Info("Air service stopped")
}
