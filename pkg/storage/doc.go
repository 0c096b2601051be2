/*
Package storage provides the pluggable storage abstraction for the PulseKit
dev sink.

# Storage Interface

All backends implement the Storage interface:

	type Storage interface {
	    Write(ctx context.Context, records []Record) error
	    Query(ctx context.Context, req QueryRequest) ([]Record, error)
	    Delete(ctx context.Context, before time.Time) (int, error)
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

Available backends:

  - memory: in-memory slice, for tests and throwaway sessions
  - badger: BadgerDB (LSM tree + Snappy compression) for persistent storage

# Records

A Record wraps an accepted event with the time the sink received it and its
issue group. Groups come from GroupKey: the event's fingerprint when set,
otherwise its type and message, hashed with xxhash.

# Querying

QueryRequest fields that are zero don't filter. Results are returned newest
first and truncated to Limit:

	recent, err := store.Query(ctx, storage.QueryRequest{
	    Type:  "error",
	    Since: time.Now().Add(-time.Hour),
	    Limit: 50,
	})

The badger backend keys records by [xxhash(type)][received_at][seq], so a
type filter is a prefix scan.

# Retention

Delete removes everything received before a cutoff. The sink runs it hourly
with the configured retention window.
*/
package storage
