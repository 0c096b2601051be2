package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/ingest"
	"github.com/pulsekit/pulsekit-go/pkg/storage"
)

// MaxImportBatchSize is the maximum number of records written at once
const MaxImportBatchSize = 5000

// Importer restores events from JSON backups
type Importer struct {
	storage storage.Storage
	now     func() time.Time
}

// NewImporter creates a new importer
func NewImporter(store storage.Storage) *Importer {
	return &Importer{storage: store, now: time.Now}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	EventsImported int       `json:"events_imported"`
	BatchesWritten int       `json:"batches_written"`
	TimeRange      string    `json:"time_range"`
	ImportedAt     time.Time `json:"imported_at"`
	Errors         []string  `json:"errors,omitempty"`
}

// ImportFromJSON imports a backup written by ExportToJSON. Invalid records are
// skipped and reported in Errors; a missing group is recomputed.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var backup Backup
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	now := im.now()
	if len(backup.Events) == 0 {
		return &ImportResult{TimeRange: "empty", ImportedAt: now}, nil
	}

	var validationErrors []string
	valid := make([]storage.Record, 0, len(backup.Events))
	for i, rec := range backup.Events {
		if err := validateImportedRecord(rec, now); err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("event %d: %v", i, err))
			continue
		}
		if rec.Group == "" {
			rec.Group = storage.GroupKey(rec.Event)
		}
		valid = append(valid, rec)
	}

	batchCount := 0
	for i := 0; i < len(valid); i += MaxImportBatchSize {
		end := min(i+MaxImportBatchSize, len(valid))
		if err := im.storage.Write(ctx, valid[i:end]); err != nil {
			return nil, fmt.Errorf("failed to write batch %d: %w", batchCount, err)
		}
		batchCount++
	}

	result := &ImportResult{
		EventsImported: len(valid),
		BatchesWritten: batchCount,
		TimeRange:      "empty",
		ImportedAt:     now,
		Errors:         validationErrors,
	}

	if len(valid) > 0 {
		minTime, maxTime := valid[0].ReceivedAt, valid[0].ReceivedAt
		for _, rec := range valid {
			if rec.ReceivedAt.Before(minTime) {
				minTime = rec.ReceivedAt
			}
			if rec.ReceivedAt.After(maxTime) {
				maxTime = rec.ReceivedAt
			}
		}
		result.TimeRange = fmt.Sprintf("%s to %s", minTime.Format(time.RFC3339), maxTime.Format(time.RFC3339))
	}

	return result, nil
}

// validateImportedRecord applies ingest validation plus receipt time sanity checks
func validateImportedRecord(rec storage.Record, now time.Time) error {
	if err := ingest.ValidateEvent(rec.Event); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if rec.ReceivedAt.IsZero() {
		return fmt.Errorf("received_at cannot be zero")
	}
	if rec.ReceivedAt.After(now.Add(24 * time.Hour)) {
		return fmt.Errorf("received_at too far in future: %s", rec.ReceivedAt.Format(time.RFC3339))
	}
	return nil
}
