package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"relief-route-viewer/internal/config"
	"relief-route-viewer/internal/logging"
	"relief-route-viewer/internal/server"
)

var log = logrus.WithField("component", "app")

// App struct holds the Wails application state
type App struct {
	ctx    context.Context
	server *server.Server
	url    string
}

// NewApp creates a new App application struct
func NewApp() *App {
	app := &App{}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}

	// Start the HTTP server immediately (before window opens)
	srv, err := server.New(server.Config{
		Addr:              "127.0.0.1:0", // 0 = random available port
		DBPath:            cfg.DBPath,
		Style:             cfg.Style,
		ToleranceKm:       cfg.ToleranceKm,
		HoverEventsPerSec: cfg.HoverEventsPerSec,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create server")
	}

	addr, err := srv.Start()
	if err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}

	app.server = srv
	app.url = fmt.Sprintf("http://%s", addr)
	log.WithField("url", app.url).Info("Internal HTTP server running")

	return app
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	// Navigate the WebView to the internal server immediately
	go func() {
		runtime.WindowExecJS(ctx, fmt.Sprintf(`window.location.href = "%s"`, a.url))
	}()
}

// shutdown is called when the app closes
func (a *App) shutdown(ctx context.Context) {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Error shutting down server")
		}
	}
}
