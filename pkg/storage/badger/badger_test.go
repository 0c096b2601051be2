package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
	"github.com/pulsekit/pulsekit-go/pkg/storage"
)

func newMemStore(t *testing.T) *Storage {
	t.Helper()
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func record(id, typ string, level event.Level, at time.Time) storage.Record {
	e := event.Event{
		Type:        typ,
		Level:       level,
		Message:     "msg " + id,
		Environment: "production",
		Tags:        map[string]string{"id": id},
	}
	return storage.Record{ID: id, Group: storage.GroupKey(e), ReceivedAt: at, Event: e}
}

func TestBadgerStorage_WriteAndQuery(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	now := time.Now()

	err := store.Write(ctx, []storage.Record{
		record("1", "error", event.LevelError, now.Add(-2*time.Second)),
		record("2", "user.signup", event.LevelInfo, now.Add(-1*time.Second)),
		record("3", "error", event.LevelFatal, now),
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(results))
	}
	if results[0].ID != "3" || results[2].ID != "1" {
		t.Errorf("Expected newest first, got %s..%s", results[0].ID, results[2].ID)
	}

	// Event payload round-trips
	if results[0].Event.Tags["id"] != "3" || results[0].Event.Level != event.LevelFatal {
		t.Errorf("Event not decoded correctly: %+v", results[0].Event)
	}
}

func TestBadgerStorage_QueryByTypePrefix(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	now := time.Now()

	var records []storage.Record
	for i := 0; i < 10; i++ {
		typ := "error"
		if i%2 == 1 {
			typ = "message"
		}
		records = append(records, record(fmt.Sprint(i), typ, event.LevelInfo, now.Add(time.Duration(i)*time.Millisecond)))
	}
	_ = store.Write(ctx, records)

	results, err := store.Query(ctx, storage.QueryRequest{Type: "message"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("Expected 5 message records, got %d", len(results))
	}
	for _, r := range results {
		if r.Event.Type != "message" {
			t.Errorf("Got record of type %q from type query", r.Event.Type)
		}
	}

	limited, _ := store.Query(ctx, storage.QueryRequest{Type: "error", Limit: 2})
	if len(limited) != 2 || limited[0].ID != "8" || limited[1].ID != "6" {
		t.Errorf("Expected newest two errors [8 6], got %v", limited)
	}

	none, _ := store.Query(ctx, storage.QueryRequest{Type: "unknown"})
	if len(none) != 0 {
		t.Errorf("Expected no records for unknown type, got %d", len(none))
	}
}

func TestBadgerStorage_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	now := time.Now()

	store, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := store.Write(ctx, []storage.Record{record("persist", "error", event.LevelError, now)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	store.Close()

	store2, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer store2.Close()

	results, err := store2.Query(ctx, storage.QueryRequest{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "persist" {
		t.Fatalf("Expected persisted record, got %v", results)
	}
	if !results[0].ReceivedAt.Equal(now) {
		t.Errorf("ReceivedAt = %v, want %v", results[0].ReceivedAt, now)
	}
}

func TestBadgerStorage_Delete(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.Write(ctx, []storage.Record{
		record("old", "error", event.LevelError, now.Add(-48*time.Hour)),
		record("older", "message", event.LevelInfo, now.Add(-72*time.Hour)),
		record("new", "error", event.LevelError, now),
	})

	removed, err := store.Delete(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}

	results, _ := store.Query(ctx, storage.QueryRequest{})
	if len(results) != 1 || results[0].ID != "new" {
		t.Errorf("Expected only 'new' to remain, got %v", results)
	}

	removed, err = store.Delete(ctx, now.Add(-24*time.Hour))
	if err != nil || removed != 0 {
		t.Errorf("Second delete = (%d, %v), want (0, nil)", removed, err)
	}
}

func TestBadgerStorage_Stats(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.Write(ctx, []storage.Record{
		record("1", "error", event.LevelError, now.Add(-time.Minute)),
		record("2", "error", event.LevelWarning, now),
		record("3", "user.signup", event.LevelInfo, now),
	})

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.TotalEvents != 3 {
		t.Errorf("TotalEvents = %d, want 3", stats.TotalEvents)
	}
	if stats.TotalGroups != 3 {
		t.Errorf("TotalGroups = %d, want 3", stats.TotalGroups)
	}
	if stats.ByType["error"] != 2 {
		t.Errorf("ByType[error] = %d, want 2", stats.ByType["error"])
	}
	if stats.ByLevel["warning"] != 1 {
		t.Errorf("ByLevel[warning] = %d, want 1", stats.ByLevel["warning"])
	}
}

func TestBadgerStorage_LargeWrite(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	now := time.Now()

	records := make([]storage.Record, 1000)
	for i := range records {
		records[i] = record(fmt.Sprint(i), "load", event.LevelInfo, now)
	}

	if err := store.Write(ctx, records); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Identical receipt times must not collide
	results, _ := store.Query(ctx, storage.QueryRequest{Type: "load"})
	if len(results) != 1000 {
		t.Errorf("Expected 1000 records, got %d", len(results))
	}
}

func TestBadgerStorage_ConcurrentOperations(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				r := record(fmt.Sprintf("%d-%d", w, i), "concurrent", event.LevelInfo, time.Now())
				if err := store.Write(ctx, []storage.Record{r}); err != nil {
					t.Errorf("Write failed: %v", err)
				}
				if _, err := store.Query(ctx, storage.QueryRequest{Limit: 10}); err != nil {
					t.Errorf("Query failed: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	stats, _ := store.Stats(ctx)
	if stats.TotalEvents != 200 {
		t.Errorf("TotalEvents = %d, want 200", stats.TotalEvents)
	}
}

func TestBadgerStorage_CancelledContext(t *testing.T) {
	store := newMemStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Write(ctx, nil); err == nil {
		t.Error("Expected error from Write with cancelled context")
	}
	if _, err := store.Query(ctx, storage.QueryRequest{}); err == nil {
		t.Error("Expected error from Query with cancelled context")
	}
	if _, err := store.Delete(ctx, time.Now()); err == nil {
		t.Error("Expected error from Delete with cancelled context")
	}
}

func TestMakeKey(t *testing.T) {
	now := time.Now()
	key := makeKey("error", now, 7)

	if len(key) != keyLen {
		t.Fatalf("key length = %d, want %d", len(key), keyLen)
	}
	if !parseTime(key).Equal(time.Unix(0, now.UnixNano())) {
		t.Errorf("parseTime = %v, want %v", parseTime(key), now)
	}
	if string(key[:8]) != string(typePrefix("error")) {
		t.Error("key does not start with its type prefix")
	}
	if typePrefix("") != nil {
		t.Error("empty type should have nil prefix")
	}
}

func TestNew_OnDisk(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "defaults", cfg: Config{}},
		{name: "memory budget", cfg: Config{MaxMemoryMB: 96}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Path = t.TempDir()
			store, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}
