package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (yaml or json)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		return err
	}
	defer SyncLogger()

	params := cfg.Locomotion.Params()
	layout, err := LoadLayout(cfg.LayoutPath, params.PlayerRadius)
	if err != nil {
		return err
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	analytics := NewAnalytics(db)
	defer analytics.Stop()

	auth := NewAuth(db, cfg.Admin, cfg.TokenExpiry)
	if !auth.AdminEnabled() {
		Log.Warn("admin.passHash is empty: operator API is disabled")
	}

	SessionIdleTimeout = cfg.IdleTimeout
	sessions := NewSessionManager(layout, params, cfg.MaxSessions, db, analytics,
		Log.Desugar().Named("loco"))
	stopReaper := make(chan struct{})
	defer close(stopReaper)
	go sessions.RunReaper(time.Minute, stopReaper)

	hub := NewHub(sessions, auth, analytics, cfg.PublicURL)
	go hub.Run()
	defer hub.Stop()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           SetupRoutes(hub, cfg.ClientDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errc := make(chan error, 1)
	go func() {
		Log.Infow("server starting", "addr", cfg.Addr, "client", cfg.ClientDir, "room", layout.Name)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-stop:
	}

	Log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
