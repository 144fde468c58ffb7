// Command reflectnode is a playback node. It loads the WAV clips of its
// asset directory, connects to the coordinator and plays rendered
// reflections on the default audio device at each rendezvous.
//
// Usage:
//
//	reflectnode -config install.toml [-id 2] [-server ws://host:8080]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/algo-reflect/audio/asset"
	"github.com/cwbudde/algo-reflect/config"
	"github.com/cwbudde/algo-reflect/node"
	"github.com/cwbudde/algo-reflect/rendezvous"
	"github.com/cwbudde/algo-reflect/transport/ws"
	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

func main() {
	configPath := flag.String("config", "", "installation file (TOML)")
	id := flag.Int("id", -1, "node id (default: node.id from the config)")
	server := flag.String("server", "", "coordinator URL (default: node.server from the config)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	if *id >= 0 {
		cfg.Node.ID = *id
	}
	if *server != "" {
		cfg.Node.Server = *server
	}

	if err := run(cfg.Node, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(nc config.Node, logger *slog.Logger) error {
	assets := asset.NewRegistry(nc.SampleRate)
	names, err := assets.LoadDir(nc.Assets)
	if err != nil {
		return err
	}
	logger.Info("assets loaded", "dir", nc.Assets, "clips", names)

	opts := []node.Option{
		node.WithLogger(logger),
		node.WithFeedback(func(f node.Feedback) {
			logger.Warn("playback feedback", "kind", f.Kind, "emission", f.Emission, "source", f.Source, "err", f.Err)
		}),
	}
	if nc.CacheSize > 0 {
		opts = append(opts, node.WithCacheSize(nc.CacheSize))
	}
	if nc.MaxDuration > 0 {
		opts = append(opts, node.WithMaxDuration(nc.MaxDuration))
	}
	n := node.New(nc.ID, rendezvous.NewWallClock(), assets, opts...)

	sr := beep.SampleRate(int(nc.SampleRate))
	if err := speaker.Init(sr, sr.N(time.Second/20)); err != nil {
		return fmt.Errorf("speaker: %w", err)
	}
	speaker.Play(n.Streamer())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// In-flight emissions belong to the lost session.
	return ws.Connect(ctx, ws.NodeURL(nc.Server, nc.ID), n, logger, n.Reset)
}
