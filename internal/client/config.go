package client

import (
	"log/slog"
	"time"

	"github.com/rickgao/eludris-client/internal/api"
	"github.com/rickgao/eludris-client/internal/config"
	"github.com/rickgao/eludris-client/internal/gateway"
)

// GatewayConfig converts the YAML settings into a gateway.Config.
func GatewayConfig(cfg *config.Config) gateway.Config {
	gw := gateway.DefaultConfig()
	gw.URL = cfg.API.GatewayURL
	gw.Token = cfg.API.Token
	gw.BackoffBase = cfg.Gateway.BackoffBase
	gw.BackoffMax = cfg.Gateway.BackoffMax
	gw.BackoffWindow = cfg.Gateway.BackoffWindow
	gw.HandshakeTimeout = cfg.Gateway.HandshakeTimeout
	gw.AuthTimeout = cfg.Gateway.AuthTimeout
	gw.CloseTimeout = cfg.Gateway.CloseTimeout
	return gw
}

// FromConfig builds a Client from a loaded configuration. Zero API
// settings keep the REST client defaults.
func FromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	apiOpts := []api.ClientOption{
		api.WithCDNURL(cfg.API.CDNURL),
		api.WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst),
	}
	if cfg.API.Timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.API.Timeout))
	}
	if cfg.API.MaxRetries > 0 {
		apiOpts = append(apiOpts, api.WithRetries(cfg.API.MaxRetries, time.Second))
	}

	base := []Option{
		WithLogger(logger),
		WithGatewayConfig(GatewayConfig(cfg)),
		WithRestURL(cfg.API.RestURL),
		WithAPIOptions(apiOpts...),
	}
	return New(cfg.API.Token, append(base, opts...)...)
}
