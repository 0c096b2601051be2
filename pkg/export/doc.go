// Package export provides event backup and restore for the dev sink.
//
// # Formats
//
// JSON backups hold every stored record (event, receipt time, group) plus a
// metadata header, and can be re-imported:
//
//	{
//	  "metadata": {"exported_at": "...", "event_count": 2, "format": "json", "version": "1.0"},
//	  "events": [{"id": "...", "group": "...", "received_at": "...", "event": {...}}]
//	}
//
// CSV flattens records into one row each with a "tag:<key>" column per tag
// key present. Metadata and stack traces are left out, so CSV is export-only.
//
// # HTTP API
//
// Export endpoint: GET /api/v1/export
//   - format: "json" or "csv" (default: json)
//   - start, end: RFC3339 receipt time range (default: last 24 hours, max 30 days)
//   - type: event type filter
//
// Import endpoint: POST /api/v1/import with Content-Type application/json.
// Records failing ingest validation are skipped and listed in the response;
// the rest are written in batches of MaxImportBatchSize.
package export
