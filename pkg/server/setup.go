package server

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/config"
	"github.com/pulsekit/pulsekit-go/pkg/export"
	"github.com/pulsekit/pulsekit-go/pkg/ingest"
	"github.com/pulsekit/pulsekit-go/pkg/server/monitor"
	"github.com/pulsekit/pulsekit-go/pkg/storage"
	"github.com/pulsekit/pulsekit-go/pkg/storage/badger"
	"github.com/pulsekit/pulsekit-go/pkg/storage/memory"
)

// Storage backends
const (
	StorageBadger = "badger"
	StorageMemory = "memory"
)

// Config holds sink configuration.
type Config struct {
	Port         string
	Storage      string
	DataDir      string
	Retention    time.Duration
	APIKeys      []string
	MaxMemoryMB  int64
	MaxStorageGB int64
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Port:         getEnv(config.EnvPort, config.DefaultPort),
		Storage:      getEnv(config.EnvSinkStorage, config.DefaultStorage),
		DataDir:      getEnv(config.EnvSinkDataDir, config.DefaultDataDir),
		Retention:    getEnvDuration(config.EnvSinkRetention, config.DefaultRetention),
		APIKeys:      splitKeys(os.Getenv(config.EnvSinkAPIKeys)),
		MaxMemoryMB:  getEnvInt64(config.EnvSinkMaxMemoryMB, config.DefaultMaxMemoryMB),
		MaxStorageGB: getEnvInt64(config.EnvSinkMaxStorageGB, config.DefaultMaxStorageGB),
	}
}

// Validate checks the configuration for values the sink cannot run with.
func (c Config) Validate() error {
	if c.Storage != StorageBadger && c.Storage != StorageMemory {
		return fmt.Errorf("unknown storage backend %q (want %s or %s)", c.Storage, StorageBadger, StorageMemory)
	}
	if c.Storage == StorageBadger && c.DataDir == "" {
		return fmt.Errorf("data directory is required for %s storage", StorageBadger)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %v", c.Retention)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// InitializeStorage opens the configured storage backend.
func InitializeStorage(cfg Config) (storage.Storage, error) {
	if cfg.Storage == StorageMemory {
		log.Println("Using in-memory storage (events are lost on restart)")
		return memory.New(), nil
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log.Println("Initializing BadgerDB storage with Snappy compression...")
	store, err := badger.New(badger.Config{
		Path:        cfg.DataDir,
		MaxMemoryMB: cfg.MaxMemoryMB,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("BadgerDB storage initialized at %s", cfg.DataDir)
	return store, nil
}

// Components are the handlers and monitors the router serves.
type Components struct {
	Ingest           *ingest.Handler
	Export           *export.Handler
	Hub              *ingest.EventHub
	StorageMonitor   *monitor.StorageMonitor
	RetentionMonitor *monitor.TaskMonitor
}

// InitializeComponents creates the request handlers, live tail hub and monitors.
func InitializeComponents(cfg Config, store storage.Storage) Components {
	handler := ingest.NewHandler(store, cfg.APIKeys)
	if len(cfg.APIKeys) == 0 {
		log.Println("No API keys configured, accepting any non-empty key")
	} else {
		log.Printf("Ingest handler accepting %d API key(s)", len(cfg.APIKeys))
	}

	var storageMonitor *monitor.StorageMonitor
	if cfg.Storage == StorageBadger {
		storageMonitor = monitor.NewStorageMonitor(cfg.DataDir, cfg.MaxStorageGB<<30)
		handler.SetStorageChecker(storageMonitor)
		log.Printf("Storage limit enforcement enabled: %d GB max", cfg.MaxStorageGB)
	}

	hub := ingest.NewEventHub()
	handler.SetHub(hub)

	return Components{
		Ingest:           handler,
		Export:           export.NewHandler(store),
		Hub:              hub,
		StorageMonitor:   storageMonitor,
		RetentionMonitor: monitor.NewTaskMonitor("retention", config.RetentionInterval),
	}
}

// getEnv gets a string from environment variable or returns default.
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getEnvDuration gets a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %v", key, val, defaultValue)
	}
	return defaultValue
}

// splitKeys parses a comma-separated key list, dropping blanks.
func splitKeys(val string) []string {
	var keys []string
	for _, k := range strings.Split(val, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
