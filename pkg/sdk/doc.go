/*
Package sdk provides the PulseKit client library for reporting errors and
events from Go applications.

# Quick Start

	package main

	import (
	    "github.com/pulsekit/pulsekit-go/pkg/sdk"
	    "github.com/pulsekit/pulsekit-go/pkg/sdk/event"
	)

	func main() {
	    client := sdk.New(sdk.Config{
	        Endpoint:    "https://pulse.example.com",
	        APIKey:      "pk_your_api_key",
	        Environment: "staging",
	        Release:     "1.0.0",
	    })
	    defer client.Close() // sends anything still queued

	    client.CaptureError("Something went wrong")

	    client.Capture(event.Event{
	        Type:    "payment.success",
	        Message: "Payment completed",
	    }, event.WithTags(map[string]string{"country": "US"}))
	}

# Capturing Events

Three entry points feed the same pipeline:

  - CaptureError / CaptureException: type "error", level error, with the
    caller's stack trace
  - CaptureMessage: type "message" at the given level, no stack trace
  - Capture: any caller-built event

Options such as event.WithTags, event.WithMetadata and event.WithFingerprint
are applied before enrichment.

# Enrichment

Before an event is queued the client:
 1. Sets Timestamp to the current UTC time (RFC3339), replacing any value
 2. Copies Environment from Config if the event has none
 3. Copies Release from Config if the event has none
 4. Defaults Level to info

# Batching & Flushing

Events are buffered in memory until:
 1. The queue reaches BatchSize (default: 10), which sends the whole queue
    on the goroutine that captured the last event, OR
 2. FlushInterval elapses, if configured (default: disabled), OR
 3. You flush manually

Manual flush:

	// Wait on the calling goroutine
	client.FlushBlocking()

	// Send on a background goroutine and wait with a deadline
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.Flush(ctx)

	// Fire and forget; the channel closes when the request completes
	done := client.FlushAsync()

A single queued event is posted to /api/v1/events. Two or more are posted to
/api/v1/events/batch as {"events": [...]} in capture order. Flushing an empty
queue makes no request.

# Error Handling

Delivery is best effort and at most once:

  - Network errors and non-2xx responses are logged when Debug is set
  - Failed events are dropped, never retried or re-queued
  - No capture or flush call returns a delivery error

# Shutdown

Close stops the periodic flusher, waits for in-flight FlushAsync sends and
then flushes the queue on the calling goroutine. Always defer it:

	client := sdk.New(cfg)
	defer client.Close()

Events captured between the last flush and a crash are lost.

# Package-Level Client

For applications that prefer a global:

	sdk.Init(sdk.Config{Endpoint: "...", APIKey: "..."})
	defer sdk.Close()

	sdk.CaptureException(err)

All package-level functions are no-ops before Init.

# Configuration Files

LoadConfig reads YAML and applies PULSEKIT_* environment overrides:

	cfg, err := sdk.LoadConfig("pulsekit.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	client := sdk.New(cfg)

# See Also

  - pkg/sdk/event for the event model and options
  - pkg/sdk/httpx for panic-capturing HTTP middleware
  - pkg/sdk/runtime for attaching Go runtime details to events
  - cmd/pulsekit-sink for a local ingestion server
*/
package sdk
