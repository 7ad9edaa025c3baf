package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL          = "https://api.eludris.gay"
	DefaultGatewayURL       = "wss://ws.eludris.gay"
	DefaultCDNURL           = "https://cdn.eludris.gay"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultBackoffBase      = 2.0
	DefaultBackoffMax       = 60.0
	DefaultBackoffWindow    = 15 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultAuthTimeout      = 10 * time.Second
	DefaultCloseTimeout     = 5 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultApplicationName  = "eludris-archiver"
	DefaultConnectTimeout   = 10 * time.Second
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 10000
	DefaultHealthPort       = 8080
	DefaultHealthPath       = "/health"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.GatewayURL == "" {
		c.API.GatewayURL = DefaultGatewayURL
	}
	if c.API.CDNURL == "" {
		c.API.CDNURL = DefaultCDNURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RequestsPerSecond > 0 && c.API.Burst == 0 {
		c.API.Burst = 1
	}

	// Gateway defaults
	if c.Gateway.BackoffBase == 0 {
		c.Gateway.BackoffBase = DefaultBackoffBase
	}
	if c.Gateway.BackoffMax == 0 {
		c.Gateway.BackoffMax = DefaultBackoffMax
	}
	if c.Gateway.BackoffWindow == 0 {
		c.Gateway.BackoffWindow = DefaultBackoffWindow
	}
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.AuthTimeout == 0 {
		c.Gateway.AuthTimeout = DefaultAuthTimeout
	}
	if c.Gateway.CloseTimeout == 0 {
		c.Gateway.CloseTimeout = DefaultCloseTimeout
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
	if c.Database.ApplicationName == "" {
		c.Database.ApplicationName = DefaultApplicationName
		if c.Instance.ID != "" {
			c.Database.ApplicationName += "/" + c.Instance.ID
		}
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = DefaultConnectTimeout
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
