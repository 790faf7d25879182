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

	"github.com/Tyrowin/gochat/internal/server"
	"github.com/Tyrowin/gochat/internal/store"
	"github.com/mama165/sdk-go/logs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("GOCHAT_CONFIG"), "path to a TOML configuration file")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	st, err := store.Open(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		log.Info("closing message store")
		if err := st.Close(); err != nil {
			log.Error("close message store", "error", err)
		}
	}()

	srv := server.New(cfg, st, log)
	hub := srv.Hub()
	go hub.Run()
	log.Info("hub started", "store", cfg.Store.Driver, "origins", cfg.AllowedOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := server.CreateServer(cfg.Port, srv.Routes())
	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err := <-errChan:
		_ = hub.Shutdown(shutdownTimeout)
		return err
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout, log); err != nil {
		log.Error("HTTP server did not stop cleanly", "error", err)
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Warn("hub did not stop cleanly", "error", err)
	}
	log.Info("server stopped")
	return nil
}
