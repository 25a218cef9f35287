// Package main is the entry point for the FrameSeal preview server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/config"
	"github.com/fleveque/frameseal/internal/frame"
	"github.com/fleveque/frameseal/internal/icon"
	"github.com/fleveque/frameseal/internal/server"
	"github.com/fleveque/frameseal/internal/service"
	"github.com/fleveque/frameseal/internal/storage"
)

func main() {
	// run() is separate so deferred cleanup executes before os.Exit, which
	// skips deferred functions.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// reload carries a re-read config from Viper's watcher goroutine to the
// main loop.
type reload struct {
	cfg *config.Config
	err error
}

func run() error {
	configPath := os.Getenv("FRAMESEAL_CONFIG_PATH")

	// With an explicit config file, edits to it are picked up live: frame
	// defaults are swapped in, everything else needs a restart.
	reloads := make(chan reload, 1)
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Watch(configPath, func(c *config.Config, err error) {
			latest(reloads, reload{cfg: c, err: err})
		})
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync flushes buffered log entries. It commonly fails on stdout/stderr,
	// which is not a real problem.
	defer func() { _ = logger.Sync() }()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	frames := service.NewFrameService(frame.NewCompositor(logger), cfg.Output.AutoOrient, logger)
	deps := server.Deps{
		Previews: service.NewPreviewHub(frames, cfg.Preview.Debounce, cfg.Preview.MaxEdge),
		Runs:     storage.NewRunRepository(db),
		Icons:    icon.NewLoader(logger),
	}

	srv, err := server.New(context.Background(), cfg, deps, logger)
	if err != nil {
		return err
	}

	// Graceful shutdown: listen for SIGINT (Ctrl+C) or SIGTERM (docker stop).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// select waits on whichever channel is ready first; config reloads are
	// handled here so they never race with shutdown.
loop:
	for {
		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
			break loop
		case err := <-errChan:
			return err
		case r := <-reloads:
			if r.err != nil {
				logger.Warn("config reload failed", zap.Error(r.err))
				continue
			}
			// The error is already logged by ReloadFrame.
			_ = srv.ReloadFrame(context.Background(), r.cfg.Frame)
		}
	}

	// Give in-flight requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

// latest puts r on ch, replacing a value nobody has read yet. Only the
// newest configuration matters.
func latest(ch chan reload, r reload) {
	for {
		select {
		case ch <- r:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
