// Command pulsekit-sink is a local PulseKit-compatible receiver for
// development: it accepts SDK events, stores them and serves them back.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pulsekit/pulsekit-go/pkg/config"
	"github.com/pulsekit/pulsekit-go/pkg/server"
)

func main() {
	cfg, err := parseFlags(os.Args[1:], server.LoadConfig())
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Invalid arguments: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, nil); err != nil {
		log.Fatalf("Sink failed: %v", err)
	}
}

// parseFlags overrides env-derived defaults with command line flags
func parseFlags(args []string, cfg server.Config) (server.Config, error) {
	fs := pflag.NewFlagSet("pulsekit-sink", pflag.ContinueOnError)
	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend: badger or memory")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "BadgerDB data directory")
	fs.DurationVar(&cfg.Retention, "retention", cfg.Retention, "delete events older than this (0 keeps forever)")
	fs.StringSliceVar(&cfg.APIKeys, "api-key", cfg.APIKeys, "accepted API key (repeatable; none accepts any non-empty key)")
	fs.Int64Var(&cfg.MaxMemoryMB, "max-memory-mb", cfg.MaxMemoryMB, "BadgerDB memory budget in MB")
	fs.Int64Var(&cfg.MaxStorageGB, "max-storage-gb", cfg.MaxStorageGB, "reject ingestion once the data directory reaches this size (0 disables)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// run serves the sink until ctx is done. When ready is non-nil it receives
// the bound address once the listener is up.
func run(ctx context.Context, cfg server.Config, ready chan<- string) error {
	log.Println("Starting PulseKit dev sink...")

	store, err := server.InitializeStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	c := server.InitializeComponents(cfg, store)

	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Hub.Run(hubCtx)
	}()
	log.Println("WebSocket hub started for live event tail")

	stopTasks := make(chan struct{})
	wg.Add(2)
	go server.RunRetention(store, cfg.Retention, config.RetentionInterval, c.RetentionMonitor, stopTasks, &wg)
	go server.RunBadgerGC(store, config.BadgerGCInterval, stopTasks, &wg)

	listener, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		cancelHub()
		close(stopTasks)
		wg.Wait()
		return fmt.Errorf("failed to listen on port %s: %w", cfg.Port, err)
	}

	srv := &http.Server{
		Handler:      server.NewRouter(c, cfg.Port),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		addr := listener.Addr().String()
		log.Printf("Sink listening on http://%s", addr)
		log.Println("API endpoints:")
		log.Println("   POST /api/v1/events        - Ingest one event")
		log.Println("   POST /api/v1/events/batch  - Ingest a batch")
		log.Println("   GET  /api/v1/events        - Query events")
		log.Println("   GET  /api/v1/stats         - Event statistics")
		log.Println("   GET  /api/v1/ws            - Live tail (WebSocket)")
		log.Println("   GET  /api/v1/export        - Backup (JSON/CSV)")
		log.Println("   POST /api/v1/import        - Restore a JSON backup")
		if ready != nil {
			ready <- addr
		}

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received...")
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	// Stop background tasks before waiting on them
	cancelHub()
	close(stopTasks)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("Sink exited cleanly")
	return runErr
}
