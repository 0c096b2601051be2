package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/pulsekit/pulsekit-go/pkg/storage"
)

// keyLen is [type_hash (8 bytes)][received_at (8 bytes)][seq (8 bytes)]
const keyLen = 24

// Storage implements storage.Storage using BadgerDB (LSM tree)
type Storage struct {
	db  *badger.DB
	seq atomic.Uint64
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = 48 MB laptop default)
	MaxMemoryMB int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLoggingLevel(badger.WARNING)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// BadgerDB defaults to a 64 MB memtable x 5; keep it bounded for laptops.
	// Below 16 MB the memtable flushes too often.
	memTableSize := int64(16 << 20)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB << 20 / 3
	}
	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s := &Storage{db: db}
	s.seq.Store(uint64(time.Now().UnixNano()))
	return s, nil
}

// Write stores records in a single transaction
func (s *Storage) Write(ctx context.Context, records []storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for i, r := range records {
			// Check context periodically (every 100 records)
			if i%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			value, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode record: %w", err)
			}

			key := makeKey(r.Event.Type, r.ReceivedAt, s.seq.Add(1))
			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
		return nil
	})
}

// Query retrieves records matching the request, newest first.
// A type filter is served by a prefix scan over that type's keys.
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type queryResult struct {
		records []storage.Record
		err     error
	}
	done := make(chan queryResult, 1)

	go func() {
		var res queryResult
		res.err = s.scan(ctx, typePrefix(req.Type), func(r storage.Record) {
			if storage.Matches(r, req) {
				res.records = append(res.records, r)
			}
		})
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return storage.NewestFirst(res.records, req.Limit), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("query operation cancelled: %w", ctx.Err())
	}
}

// Delete removes records received before the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			key := it.Item().Key()
			if len(key) != keyLen || !parseTime(key).Before(before) {
				continue
			}
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	// WriteBatch splits large deletions across transactions
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("failed to delete record: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush deletes: %w", err)
	}

	return len(keys), nil
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection.
// discardRatio: run GC if this fraction of a file can be discarded (0.5 = 50%).
// Returns badger.ErrNoRewrite when there was nothing to collect.
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &storage.Stats{
		ByType:  make(map[string]uint64),
		ByLevel: make(map[string]uint64),
	}
	groups := make(map[string]struct{})

	err := s.scan(ctx, nil, func(r storage.Record) {
		stats.Accumulate(r)
		groups[r.Group] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	stats.TotalGroups = uint64(len(groups))

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)

	return stats, nil
}

// scan decodes every record under prefix (all records if nil) and hands it to fn
func (s *Storage) scan(ctx context.Context, prefix []byte, fn func(storage.Record)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Rewind(); it.Valid(); it.Next() {
			iterCount++
			// Check for cancellation every 1000 iterations
			if iterCount%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			err := it.Item().Value(func(val []byte) error {
				var r storage.Record
				if err := json.Unmarshal(val, &r); err != nil {
					return fmt.Errorf("failed to decode record: %w", err)
				}
				fn(r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// makeKey creates a sortable key: type_hash + received_at + seq.
// Records of one type are contiguous and ordered by receipt time.
func makeKey(typ string, receivedAt time.Time, seq uint64) []byte {
	key := make([]byte, keyLen)
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(typ))
	binary.BigEndian.PutUint64(key[8:16], uint64(receivedAt.UnixNano()))
	binary.BigEndian.PutUint64(key[16:24], seq)
	return key
}

// typePrefix returns the key prefix for one event type, or nil for all types
func typePrefix(typ string) []byte {
	if typ == "" {
		return nil
	}
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(typ))
	return prefix
}

// parseTime extracts the receipt time from a storage key
func parseTime(key []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(key[8:16])))
}
