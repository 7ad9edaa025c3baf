package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that take precedence over the file.
const (
	EnvToken      = "ELUDRIS_TOKEN"
	EnvRestURL    = "ELUDRIS_REST_URL"
	EnvGatewayURL = "ELUDRIS_GATEWAY_URL"
)

// Load reads the YAML file at path. ${VAR} references are expanded before
// parsing, unknown keys are rejected, and the ELUDRIS_* variables override
// the API settings they name.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := parse([]byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		EnvToken:      &c.API.Token,
		EnvRestURL:    &c.API.RestURL,
		EnvGatewayURL: &c.API.GatewayURL,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// LoadWithDefaults is Load followed by filling unset fields.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate is LoadWithDefaults followed by Validate.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
