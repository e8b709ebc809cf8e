package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/mfriis/spotwatch/service"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcCfg := service.ServiceConfig{
		AccountIDs:         cfg.Accounts,
		LiveToken:          cfg.LiveToken,
		SandboxToken:       cfg.SandboxToken,
		DatabaseEndpoint:   cfg.DBEndpoint,
		DatabaseUser:       cfg.DBUser,
		DatabasePass:       cfg.DBPass,
		PositionsInterval:  time.Duration(cfg.PositionsIntervalSecs) * time.Second,
		QuotesInterval:     time.Duration(cfg.QuotesIntervalSecs) * time.Second,
		SpotInterval:       time.Duration(cfg.SpotIntervalSecs) * time.Second,
		IndicatorsInterval: time.Duration(cfg.IndicatorsIntervalSecs) * time.Second,
		TradesInterval:     time.Duration(cfg.TradesIntervalSecs) * time.Second,
	}
	svc, err := service.NewService(ctx, &svcCfg)
	if err != nil {
		log.Printf("creating spotwatch service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	if err := svc.Run(ctx); err != nil {
		log.Printf("running spotwatch service: %v", err)
	}
}
