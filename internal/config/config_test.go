package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv(EnvRestURL, "")
	yaml := `
instance:
  id: test-archiver
api:
  rest_url: https://api.example.com
  token: abc
  requests_per_second: 2.5
gateway:
  backoff_max: 30
  auth_timeout: 3s
database:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-archiver" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-archiver")
	}
	if cfg.API.RestURL != "https://api.example.com" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://api.example.com")
	}
	if cfg.API.RequestsPerSecond != 2.5 {
		t.Errorf("API.RequestsPerSecond = %v, want 2.5", cfg.API.RequestsPerSecond)
	}
	if cfg.Gateway.BackoffMax != 30 {
		t.Errorf("Gateway.BackoffMax = %v, want 30", cfg.Gateway.BackoffMax)
	}
	if cfg.Gateway.AuthTimeout != 3*time.Second {
		t.Errorf("Gateway.AuthTimeout = %v, want 3s", cfg.Gateway.AuthTimeout)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv(EnvToken, "")
	t.Setenv("TEST_ELUDRIS_TOKEN", "secret-token")
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
api:
  token: ${TEST_ELUDRIS_TOKEN}
database:
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Token != "secret-token" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "secret-token")
	}
	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) expected error, got nil")
	}

	path := writeTempFile(t, "api: [unclosed")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load(invalid) error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	t.Setenv(EnvRestURL, "")
	t.Setenv(EnvGatewayURL, "")
	path := writeTempFile(t, "instance:\n  id: test\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.GatewayURL != DefaultGatewayURL {
		t.Errorf("API.GatewayURL = %q, want default %q", cfg.API.GatewayURL, DefaultGatewayURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.API.Burst != 0 {
		t.Errorf("API.Burst = %d, want 0 without a rate", cfg.API.Burst)
	}
	if cfg.Gateway.BackoffBase != DefaultBackoffBase || cfg.Gateway.BackoffMax != DefaultBackoffMax {
		t.Errorf("Gateway backoff = %v/%v, want defaults", cfg.Gateway.BackoffBase, cfg.Gateway.BackoffMax)
	}
	if cfg.Gateway.BackoffWindow != DefaultBackoffWindow {
		t.Errorf("Gateway.BackoffWindow = %v, want default %v", cfg.Gateway.BackoffWindow, DefaultBackoffWindow)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Archive.BatchSize != DefaultBatchSize {
		t.Errorf("Archive.BatchSize = %d, want default %d", cfg.Archive.BatchSize, DefaultBatchSize)
	}
	if cfg.Health.Port != DefaultHealthPort || cfg.Health.Path != DefaultHealthPath {
		t.Errorf("Health = %+v, want defaults", cfg.Health)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v, want defaults", cfg.Log)
	}
	if cfg.Database.ApplicationName != DefaultApplicationName+"/test" {
		t.Errorf("Database.ApplicationName = %q, want %q", cfg.Database.ApplicationName, DefaultApplicationName+"/test")
	}
	if cfg.Database.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("Database.ConnectTimeout = %v, want default %v", cfg.Database.ConnectTimeout, DefaultConnectTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvToken, "from-env")
	t.Setenv(EnvGatewayURL, "wss://gateway.example.com")
	t.Setenv(EnvRestURL, "")

	path := writeTempFile(t, "api:\n  token: from-file\n  rest_url: https://api.example.com\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.Token != "from-env" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "from-env")
	}
	if cfg.API.GatewayURL != "wss://gateway.example.com" {
		t.Errorf("API.GatewayURL = %q, want the env value", cfg.API.GatewayURL)
	}
	if cfg.API.RestURL != "https://api.example.com" {
		t.Errorf("API.RestURL = %q, want the file value", cfg.API.RestURL)
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeTempFile(t, "api:\n  tokn: typo\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "tokn") {
		t.Errorf("Load() error = %v, want an unknown field error", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Setenv(EnvToken, "")

	cfg, err := Load(writeTempFile(t, ""))
	if err != nil {
		t.Fatalf("Load(empty) error = %v", err)
	}
	if cfg.API.Token != "" || cfg.Instance.ID != "" {
		t.Errorf("Load(empty) = %+v, want zero config", cfg)
	}
}

func TestApplyDefaults_Burst(t *testing.T) {
	cfg := Config{API: APIConfig{RequestsPerSecond: 3}}
	cfg.applyDefaults()
	if cfg.API.Burst != 1 {
		t.Errorf("API.Burst = %d, want 1", cfg.API.Burst)
	}
}

func validConfig() Config {
	cfg := Config{
		Instance: InstanceConfig{ID: "test"},
		API:      APIConfig{Token: "token"},
		Database: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.API.Token = "" },
			wantErr: "api.token is required",
		},
		{
			name:    "backoff base below one",
			mutate:  func(c *Config) { c.Gateway.BackoffBase = 0.5 },
			wantErr: "gateway.backoff_base must be >= 1, got 0.5",
		},
		{
			name:    "missing database password",
			mutate:  func(c *Config) { c.Database.Password = "" },
			wantErr: "database.password is required",
		},
		{
			name:    "min_conns exceeds max_conns",
			mutate:  func(c *Config) { c.Database.MinConns, c.Database.MaxConns = 10, 5 },
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "bad health port",
			mutate:  func(c *Config) { c.Health.Port = 70000 },
			wantErr: "health.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) expected error, got nil")
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Setenv(EnvToken, "")
	path := writeTempFile(t, "instance:\n  id: test\n")
	_, err := LoadAndValidate(path)
	if err == nil || !strings.Contains(err.Error(), "validate config: api.token is required") {
		t.Errorf("LoadAndValidate() error = %v", err)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf strings.Builder

	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("output = %s, want a JSON record", out)
	}

	buf.Reset()
	LogConfig{Level: "bogus", Format: "text"}.NewLogger(&buf).Info("text record")
	if !strings.Contains(buf.String(), "msg=\"text record\"") {
		t.Errorf("output = %s, want a text record", buf.String())
	}
}
