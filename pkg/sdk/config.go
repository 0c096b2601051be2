package sdk

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulsekit/pulsekit-go/pkg/config"
)

// LoadConfig reads a YAML config file and then applies PULSEKIT_* environment
// overrides. An empty path skips the file.
//
//	endpoint: https://pulse.example.com
//	api_key: pk_live_123
//	environment: staging
//	release: 1.4.0
//	batch_size: 25
//	flush_interval: 5s
//	debug: false
func LoadConfig(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ConfigFromEnv builds a Config from PULSEKIT_* environment variables only
func ConfigFromEnv() (Config, error) {
	return LoadConfig("")
}

// applyEnv overrides cfg with any PULSEKIT_* variables that are set
func applyEnv(cfg *Config) error {
	if v := os.Getenv(config.EnvEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(config.EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(config.EnvEnvironment); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv(config.EnvRelease); v != "" {
		cfg.Release = v
	}
	if v := os.Getenv(config.EnvBatchSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", config.EnvBatchSize, v, err)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv(config.EnvFlushInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", config.EnvFlushInterval, v, err)
		}
		cfg.FlushInterval = d
	}
	if v := os.Getenv(config.EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", config.EnvDebug, v, err)
		}
		cfg.Debug = b
	}
	return nil
}
