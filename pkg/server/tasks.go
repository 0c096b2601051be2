package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/pulsekit/pulsekit-go/pkg/config"
	"github.com/pulsekit/pulsekit-go/pkg/server/monitor"
	"github.com/pulsekit/pulsekit-go/pkg/storage"
	"github.com/pulsekit/pulsekit-go/pkg/storage/badger"
)

// gcDiscardRatio reclaims a value log file once half of it is garbage
const gcDiscardRatio = 0.5

// RunRetention deletes records older than retention once on startup and then
// every interval. A zero retention keeps records forever.
func RunRetention(store storage.Storage, retention, interval time.Duration, tm *monitor.TaskMonitor, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	if retention <= 0 {
		log.Println("Retention disabled, keeping events forever")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Retention scheduler started (keeps %v, runs every %v)", retention, interval)
	enforceRetention(store, retention, tm)

	for {
		select {
		case <-ticker.C:
			enforceRetention(store, retention, tm)
		case <-stop:
			log.Println("Stopping retention scheduler")
			return
		}
	}
}

func enforceRetention(store storage.Storage, retention time.Duration, tm *monitor.TaskMonitor) {
	ctx, cancel := context.WithTimeout(context.Background(), config.QueryTimeout)
	defer cancel()

	start := time.Now()
	removed, err := store.Delete(ctx, start.Add(-retention))
	if err != nil {
		tm.RecordFailure(err)
		log.Printf("Retention cleanup failed: %v", err)

		if status := tm.Status(); status.ConsecutiveErrors > 3 {
			log.Printf("ALERT: Retention has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
		}
		return
	}

	tm.RecordSuccess()
	if removed > 0 {
		log.Printf("Retention removed %d event(s) in %v", removed, time.Since(start).Round(time.Millisecond))
	}
}

// RunBadgerGC runs BadgerDB value log garbage collection every interval.
// Retention deletes leave garbage in the value log that only GC reclaims.
func RunBadgerGC(store storage.Storage, interval time.Duration, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("BadgerDB GC scheduler started (runs every %v)", interval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			err := badgerStore.RunGC(gcDiscardRatio)
			switch {
			case err == nil:
				log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
			case errors.Is(err, badgerdb.ErrNoRewrite), errors.Is(err, badgerdb.ErrGCInMemoryMode):
				// Nothing to collect
			default:
				log.Printf("BadgerDB GC failed: %v", err)
			}
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}
