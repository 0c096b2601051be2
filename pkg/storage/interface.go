package storage

import (
	"context"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

// Storage defines the interface for event storage backends.
// Implementations: memory (testing), badger (persistent)
type Storage interface {
	// Write stores records
	Write(ctx context.Context, records []Record) error

	// Query retrieves records matching the request, newest first
	Query(ctx context.Context, req QueryRequest) ([]Record, error)

	// Delete removes records received before the given time and reports
	// how many were removed
	Delete(ctx context.Context, before time.Time) (int, error)

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// Record is an event as accepted by the sink
type Record struct {
	ID         string      `json:"id"`
	Group      string      `json:"group"`
	ReceivedAt time.Time   `json:"received_at"`
	Event      event.Event `json:"event"`
}

// QueryRequest specifies what records to retrieve. Zero fields don't filter.
type QueryRequest struct {
	// Received-at range
	Since time.Time
	Until time.Time

	Type        string
	Level       event.Level
	Environment string
	Group       string

	// Limit number of results (0 = no limit)
	Limit int
}

// Stats provides storage health and usage info
type Stats struct {
	TotalEvents uint64            `json:"total_events"`
	TotalGroups uint64            `json:"total_groups"`
	ByType      map[string]uint64 `json:"by_type"`
	ByLevel     map[string]uint64 `json:"by_level"`
	SizeBytes   uint64            `json:"size_bytes"`
	Oldest      time.Time         `json:"oldest"`
	Newest      time.Time         `json:"newest"`
}
