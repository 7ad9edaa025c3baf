// Command archiver stays connected to an Eludris gateway and stores every
// message it sees in PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rickgao/eludris-client/internal/archive"
	"github.com/rickgao/eludris-client/internal/client"
	"github.com/rickgao/eludris-client/internal/config"
	"github.com/rickgao/eludris-client/internal/database"
	"github.com/rickgao/eludris-client/internal/event"
	"github.com/rickgao/eludris-client/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("archiver", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "configs/archiver.yaml", "path to config file")
	logLevel := flags.String("log-level", "", "override log.level from the config file")
	showVersion := flags.Bool("version", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Println("archiver", version.String())
		return nil
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		if _, err := config.ParseLevel(*logLevel); err != nil {
			return err
		}
		cfg.Log.Level = *logLevel
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting archiver",
		version.Attr(),
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("database connected")

	c, err := client.FromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if info, err := c.REST().GetInstanceInfo(ctx, false); err != nil {
		logger.Warn("failed to fetch instance info", "error", err)
	} else {
		logger.Info("instance info",
			"name", info.InstanceName,
			"version", info.Version,
			"message_limit", info.MessageLimit,
		)
	}

	writer := archive.NewWriter(archive.Config{
		Instance:      cfg.Instance.ID,
		BatchSize:     cfg.Archive.BatchSize,
		FlushInterval: cfg.Archive.FlushInterval,
		BufferSize:    cfg.Archive.BufferSize,
	}, pool, logger)

	if err := writer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := writer.Stop(stopCtx); err != nil {
			logger.Error("archive writer stop failed", "error", err)
		}
	}()

	if err := subscribe(c, writer.Handle, logger); err != nil {
		return err
	}

	var consumerErrors atomic.Int64
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.Errors():
				consumerErrors.Add(1)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(cfg.Health.Path, healthHandler(c, pool, writer, &consumerErrors))
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		healthServer.Shutdown(shutdownCtx)
	}()

	logger.Info("archiver running", "gateway", cfg.API.GatewayURL)

	// Blocks until a shutdown signal.
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run client: %w", err)
	}

	logger.Info("archiver stopped")
	return nil
}

// subscribe attaches the archive handler and logs listener failures.
func subscribe(c *client.Client, handle func(context.Context, event.MessageCreateEvent) error, logger *slog.Logger) error {
	if _, err := client.Listen(c, handle); err != nil {
		return fmt.Errorf("subscribe archive writer: %w", err)
	}
	_, err := client.Listen(c, func(_ context.Context, ev event.ExceptionEvent) error {
		logger.Warn("listener failed", "event", fmt.Sprintf("%T", ev.FailedEvent), "error", ev.Err)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe exception logger: %w", err)
	}
	return nil
}
