package config

import "time"

// SDK defaults
const (
	DefaultEnvironment = "production"
	DefaultBatchSize   = 10
	DebugLogPrefix     = "[PulseKit] "
)

// SDK environment variables
const (
	EnvEndpoint      = "PULSEKIT_ENDPOINT"
	EnvAPIKey        = "PULSEKIT_API_KEY"
	EnvEnvironment   = "PULSEKIT_ENVIRONMENT"
	EnvRelease       = "PULSEKIT_RELEASE"
	EnvBatchSize     = "PULSEKIT_BATCH_SIZE"
	EnvFlushInterval = "PULSEKIT_FLUSH_INTERVAL"
	EnvDebug         = "PULSEKIT_DEBUG"
)

// Sink defaults
const (
	DefaultPort         = "4000"
	DefaultStorage      = "badger"
	DefaultDataDir      = "./data/pulsekit"
	DefaultRetention    = 7 * 24 * time.Hour
	DefaultMaxMemoryMB  = 48
	DefaultMaxStorageGB = 1
)

// Sink environment variables
const (
	EnvPort             = "PORT"
	EnvSinkStorage      = "PULSEKIT_SINK_STORAGE"
	EnvSinkDataDir      = "PULSEKIT_SINK_DATA_DIR"
	EnvSinkRetention    = "PULSEKIT_SINK_RETENTION"
	EnvSinkAPIKeys      = "PULSEKIT_SINK_API_KEYS"
	EnvSinkMaxMemoryMB  = "PULSEKIT_SINK_MAX_MEMORY_MB"
	EnvSinkMaxStorageGB = "PULSEKIT_SINK_MAX_STORAGE_GB"
)

// Sink server timeouts
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second
	ShutdownTimeout    = 30 * time.Second
	IngestTimeout      = 5 * time.Second
	QueryTimeout       = 10 * time.Second
)

// Sink background tasks
const (
	RetentionInterval = 1 * time.Hour
	BadgerGCInterval  = 10 * time.Minute
)

// Sink query defaults
const (
	QueryDefaultLimit = 100
	QueryMaxLimit     = 1000
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
