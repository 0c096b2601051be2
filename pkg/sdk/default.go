package sdk

import (
	"context"
	"sync"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

var (
	defaultMu     sync.RWMutex
	defaultClient *Client
)

// Init creates the package-level client used by the top-level Capture
// functions. A previously initialized client is closed.
func Init(cfg Config) *Client {
	c := New(cfg)

	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return c
}

// Default returns the package-level client, or nil before Init
func Default() *Client {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClient
}

// Capture queues e on the default client
func Capture(e event.Event, opts ...event.Option) {
	if c := Default(); c != nil {
		c.Capture(e, opts...)
	}
}

// CaptureError captures message with the caller's stack on the default client
func CaptureError(message string, opts ...event.Option) {
	if c := Default(); c != nil {
		c.captureError(message, event.CaptureStack(stackSkip), opts)
	}
}

// CaptureException captures err with the caller's stack on the default client
func CaptureException(err error, opts ...event.Option) {
	if err == nil {
		return
	}
	if c := Default(); c != nil {
		c.captureError(err.Error(), event.CaptureStack(stackSkip), opts)
	}
}

// CaptureMessage captures a message on the default client
func CaptureMessage(message string, level event.Level, opts ...event.Option) {
	if c := Default(); c != nil {
		c.CaptureMessage(message, level, opts...)
	}
}

// Flush flushes the default client and waits for delivery or ctx
func Flush(ctx context.Context) error {
	if c := Default(); c != nil {
		return c.Flush(ctx)
	}
	return nil
}

// FlushBlocking flushes the default client on the calling goroutine
func FlushBlocking() {
	if c := Default(); c != nil {
		c.FlushBlocking()
	}
}

// Close closes the default client and clears it
func Close() {
	defaultMu.Lock()
	c := defaultClient
	defaultClient = nil
	defaultMu.Unlock()

	if c != nil {
		c.Close()
	}
}
