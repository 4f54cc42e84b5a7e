package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"relief-route-viewer/internal/config"
	"relief-route-viewer/internal/logging"
	"relief-route-viewer/internal/server"
)

var log = logrus.WithField("component", "main")

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("Fatal error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:              cfg.Addr,
		DBPath:            cfg.DBPath,
		Style:             cfg.Style,
		ToleranceKm:       cfg.ToleranceKm,
		HoverEventsPerSec: cfg.HoverEventsPerSec,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	actualAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Open browser after a short delay to ensure server is ready
	go func() {
		time.Sleep(500 * time.Millisecond)
		url := fmt.Sprintf("http://%s", actualAddr)
		if err := server.OpenBrowser(url); err != nil {
			log.WithError(err).Warn("Could not open browser")
		} else {
			log.WithField("url", url).Info("Opened browser")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	log.WithField("signal", sig.String()).Info("Starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
