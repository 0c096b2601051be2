package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/storage"
)

// FormatVersion is written into every JSON backup
const FormatVersion = "1.0"

// Exporter writes stored events out as JSON backups or CSV
type Exporter struct {
	storage storage.Storage
}

// NewExporter creates a new exporter
func NewExporter(store storage.Storage) *Exporter {
	return &Exporter{storage: store}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Received-at range
	Start time.Time
	End   time.Time

	// Filter by event type (empty = all types)
	Type string

	// Format: "json" or "csv"
	Format string
}

// ExportResult contains stats about the export
type ExportResult struct {
	EventsExported int       `json:"events_exported"`
	TimeRange      string    `json:"time_range"`
	Format         string    `json:"format"`
	ExportedAt     time.Time `json:"exported_at"`
}

// Metadata heads a JSON backup
type Metadata struct {
	ExportedAt time.Time `json:"exported_at"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	EventCount int       `json:"event_count"`
	Format     string    `json:"format"`
	Version    string    `json:"version"`
}

// Backup is the JSON backup document, read back by Importer
type Backup struct {
	Metadata Metadata         `json:"metadata"`
	Events   []storage.Record `json:"events"`
}

func (e *Exporter) query(ctx context.Context, opts ExportOptions) ([]storage.Record, error) {
	records, err := e.storage.Query(ctx, storage.QueryRequest{
		Since: opts.Start,
		Until: opts.End,
		Type:  opts.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	// Backups read oldest first
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ReceivedAt.Before(records[j].ReceivedAt)
	})
	return records, nil
}

// ExportToJSON exports events as a JSON backup to w
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	records, err := e.query(ctx, opts)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []storage.Record{}
	}

	backup := Backup{
		Metadata: Metadata{
			ExportedAt: time.Now().UTC(),
			StartTime:  opts.Start,
			EndTime:    opts.End,
			EventCount: len(records),
			Format:     "json",
			Version:    FormatVersion,
		},
		Events: records,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return newResult(len(records), "json", opts, backup.Metadata.ExportedAt), nil
}

// csvColumns precede one "tag:<key>" column per tag key seen
var csvColumns = []string{
	"received_at", "id", "group", "type", "level", "message",
	"environment", "release", "fingerprint", "timestamp",
}

// ExportToCSV exports events as CSV to w. Metadata and stack traces are omitted.
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	records, err := e.query(ctx, opts)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)

	tagKeys := collectTagKeys(records)
	header := append([]string{}, csvColumns...)
	for _, k := range tagKeys {
		header = append(header, "tag:"+k)
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		ev := r.Event
		row := []string{
			r.ReceivedAt.UTC().Format(time.RFC3339Nano),
			r.ID,
			r.Group,
			ev.Type,
			string(ev.Level),
			ev.Message,
			ev.Environment,
			ev.Release,
			ev.Fingerprint,
			ev.Timestamp,
		}
		for _, k := range tagKeys {
			row = append(row, ev.Tags[k])
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return newResult(len(records), "csv", opts, time.Now().UTC()), nil
}

func newResult(n int, format string, opts ExportOptions, at time.Time) *ExportResult {
	return &ExportResult{
		EventsExported: n,
		TimeRange:      fmt.Sprintf("%s to %s", opts.Start.Format(time.RFC3339), opts.End.Format(time.RFC3339)),
		Format:         format,
		ExportedAt:     at,
	}
}

// collectTagKeys gathers all unique tag keys and returns them sorted
func collectTagKeys(records []storage.Record) []string {
	keySet := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Event.Tags {
			keySet[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
