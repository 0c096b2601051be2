package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/storage"
)

// Storage stores records in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	records []storage.Record
	mu      sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		records: make([]storage.Record, 0, 1024),
	}
}

// Write stores records in memory
func (s *Storage) Write(ctx context.Context, records []storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, records...)
	return nil
}

// Query retrieves records matching the request, newest first
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []storage.Record
	for _, r := range s.records {
		if storage.Matches(r, req) {
			results = append(results, r)
		}
	}

	return storage.NewestFirst(results, req.Limit), nil
}

// Delete removes records received before the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]storage.Record, 0, len(s.records))
	for _, r := range s.records {
		if !r.ReceivedAt.Before(before) {
			kept = append(kept, r)
		}
	}

	removed := len(s.records) - len(kept)
	s.records = kept
	return removed, nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		ByType:  make(map[string]uint64),
		ByLevel: make(map[string]uint64),
	}

	groups := make(map[string]struct{})
	for _, r := range s.records {
		stats.Accumulate(r)
		groups[r.Group] = struct{}{}
	}
	stats.TotalGroups = uint64(len(groups))

	// Rough size estimate (each record ~512 bytes)
	stats.SizeBytes = uint64(len(s.records)) * 512

	return stats, nil
}
