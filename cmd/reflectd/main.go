// Command reflectd is the coordinator process. It accepts playback nodes on
// /nodes/{nodeID}, control lines on POST /commands, and optionally reloads
// the installation file when it changes.
//
// Usage:
//
//	reflectd -config install.toml [-watch]
//
// Example:
//
//	curl --data-binary 'emitAtPos 2.5 2.5' http://localhost:8080/commands
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/algo-reflect/config"
	"github.com/cwbudde/algo-reflect/rendezvous"
)

func main() {
	configPath := flag.String("config", "", "installation file (TOML)")
	watch := flag.Bool("watch", false, "reload the installation file when it changes")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*configPath, *watch, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool, logger *slog.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}

	s, err := newServer(&cfg, rendezvous.NewWallClock(), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch && configPath != "" {
		go func() {
			err := config.Watch(ctx, configPath, logger, func(next *config.Config, err error) {
				if err == nil {
					s.reload(ctx, next)
				}
			})
			if err != nil {
				logger.Error("config watch stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() { errc <- s.serve(ctx) }()

	select {
	case <-ctx.Done():
	case err = <-errc:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.hub.Close()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}
