// Command qrd serves the collections declared in a YAML file over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/oshokin/xk6-qr/internal/config"
	"github.com/oshokin/xk6-qr/internal/gateway"
	"github.com/oshokin/xk6-qr/qr/pool"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "qrd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	stores := pool.New(nil)
	defer func() {
		if closeErr := stores.Close(); closeErr != nil {
			logger.Error("close stores", slog.Any("error", closeErr))
		}
	}()

	st, err := stores.Acquire(ctx, cfg.Store)
	if err != nil {
		return err
	}

	srv, err := gateway.New(st, cfg.Collections,
		gateway.WithLogger(logger),
		gateway.WithMaxWait(cfg.MaxWait),
	)
	if err != nil {
		return err
	}

	logger.Info("qrd starting",
		slog.String("backend", cfg.Store.Backend),
		slog.Int("collections", len(cfg.Collections)),
	)

	return srv.ListenAndServe(ctx, cfg.Listen)
}
