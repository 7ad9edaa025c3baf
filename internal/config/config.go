package config

import "time"

// Config is the root configuration of a client binary.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DBConfig       `yaml:"database"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Health   HealthConfig   `yaml:"health"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this process.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Eludris endpoint and REST settings.
type APIConfig struct {
	RestURL           string        `yaml:"rest_url"`
	GatewayURL        string        `yaml:"gateway_url"`
	CDNURL            string        `yaml:"cdn_url"`
	Token             string        `yaml:"token"` // Session token, sent verbatim
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 disables the limiter
	Burst             int           `yaml:"burst"`
}

// GatewayConfig holds connection manager settings.
type GatewayConfig struct {
	BackoffBase      float64       `yaml:"backoff_base"`
	BackoffMax       float64       `yaml:"backoff_max"` // Seconds
	BackoffWindow    time.Duration `yaml:"backoff_window"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	AuthTimeout      time.Duration `yaml:"auth_timeout"`
	CloseTimeout     time.Duration `yaml:"close_timeout"`
}

// DBConfig holds the archive database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`

	ApplicationName string        `yaml:"application_name"` // Shown in pg_stat_activity
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// ArchiveConfig holds batch writer settings.
type ArchiveConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
