// Command qrtail consumes one collection declared in a qrd config file and
// prints every element it pops as a JSON line.
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

	"github.com/oshokin/xk6-qr/internal/config"
	"github.com/oshokin/xk6-qr/qr/pool"
)

func main() {
	var (
		configPath = flag.String("config", "config.yml", "path to the YAML config file")
		key        = flag.String("key", "", "key of the collection to consume")
		count      = flag.Int64("n", 0, "stop after n elements; 0 runs until interrupted")
		poll       = flag.Duration("poll", time.Second, "blocking pop timeout per attempt")
	)

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *key, *count, *poll); err != nil {
		fmt.Fprintln(os.Stderr, "qrtail:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, key string, count int64, poll time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	coll, ok := cfg.Collection(key)
	if !ok {
		return fmt.Errorf("collection %q is not declared in %s", key, configPath)
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	stores := pool.New(nil)
	defer stores.Close()

	st, err := stores.Acquire(ctx, cfg.Store)
	if err != nil {
		return err
	}

	stats, err := tail(ctx, st, coll, tailOptions{
		out:    os.Stdout,
		count:  count,
		poll:   poll,
		logger: logger,
	})

	logger.Info("qrtail stopped",
		slog.Int64("received", stats.Received),
		slog.Int64("processed", stats.Processed),
		slog.Int64("failed", stats.Failed),
	)

	return err
}
