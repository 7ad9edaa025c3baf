// Command tail connects to an Eludris gateway and prints every message and
// connection event to stdout.
//
// Usage:
//
//	ELUDRIS_TOKEN=... go run ./cmd/tail
//	go run ./cmd/tail --config configs/archiver.yaml --verbose
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rickgao/eludris-client/internal/client"
	"github.com/rickgao/eludris-client/internal/config"
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
	flags := pflag.NewFlagSet("tail", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path to config file (optional)")
	token := flags.StringP("token", "t", os.Getenv("ELUDRIS_TOKEN"), "session token (default $ELUDRIS_TOKEN)")
	gatewayURL := flags.String("gateway-url", "", "gateway URL (default "+config.DefaultGatewayURL+")")
	restURL := flags.String("rest-url", "", "REST API URL (default "+config.DefaultRestURL+")")
	send := flags.String("send", "", "send this message once connected")
	verbose := flags.BoolP("verbose", "v", false, "print full event JSON")
	logLevel := flags.String("log-level", "warn", "log level")
	showVersion := flags.Bool("version", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Println("tail", version.String())
		return nil
	}

	cfg := &config.Config{}
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadWithDefaults(*configPath); err != nil {
			return err
		}
	}
	if *token != "" {
		cfg.API.Token = *token
	}
	if *gatewayURL != "" {
		cfg.API.GatewayURL = *gatewayURL
	}
	if *restURL != "" {
		cfg.API.RestURL = *restURL
	}
	if cfg.API.Token == "" {
		return errors.New("a token is required (--token or $ELUDRIS_TOKEN)")
	}
	if flags.Changed("log-level") || *configPath == "" {
		cfg.Log.Level = *logLevel
	}

	logger := cfg.Log.NewLogger(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	c, err := client.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	p := &printer{out: os.Stdout, verbose: *verbose}
	if err := subscribe(c, p); err != nil {
		return err
	}

	if err := c.Start(ctx); err != nil {
		return err
	}

	user, err := c.User()
	if err == nil {
		fmt.Printf("connected as %s (%d) - press Ctrl+C to stop\n", user.Username, user.ID)
	}

	if *send != "" {
		if _, err := c.REST().CreateMessage(ctx, *send); err != nil {
			logger.Error("failed to send message", "error", err)
		}
	}

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-c.Errors():
			logger.Warn("consumer error", "error", err)
		case <-ticker.C:
			logger.Info("stats",
				"state", c.State(),
				"latency", c.HeartbeatLatency(),
			)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return c.Close(shutdownCtx)
}

func subscribe(c *client.Client, p *printer) error {
	if _, err := client.Listen(c, p.message); err != nil {
		return err
	}
	if _, err := client.Listen(c, p.presence); err != nil {
		return err
	}
	if _, err := client.Listen(c, p.userUpdate); err != nil {
		return err
	}
	if _, err := client.Listen(c, p.ratelimit); err != nil {
		return err
	}
	if _, err := client.Listen(c, p.exception); err != nil {
		return err
	}
	_, err := client.Listen(c, p.lifecycle, event.TypeConnection, event.TypeDisconnect)
	return err
}
