package sdk

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/config"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/batch"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/transport"
)

// stackSkip drops runtime.Callers, event.CaptureStack and the capture method
// itself, so reported traces start at the caller's own frame.
const stackSkip = 3

// Config holds configuration for the PulseKit client
type Config struct {
	// Endpoint is the PulseKit server URL. It is not validated.
	Endpoint string `yaml:"endpoint"`
	// APIKey is sent as X-PulseKit-Key on every request
	APIKey string `yaml:"api_key"`
	// Environment is applied to events that don't set one (default "production")
	Environment string `yaml:"environment"`
	// Release is applied to events that don't set one
	Release string `yaml:"release"`
	// BatchSize is the queue length that triggers a send (default 10)
	BatchSize int `yaml:"batch_size"`
	// FlushInterval enables a background flush on this period when > 0
	FlushInterval time.Duration `yaml:"flush_interval"`
	// Debug enables diagnostic logging. It never changes what is sent.
	Debug bool `yaml:"debug"`

	// HTTPClient is used for delivery. Defaults to a client without a timeout.
	HTTPClient *http.Client `yaml:"-"`
	// Logger receives debug output. Defaults to stdout.
	Logger *log.Logger `yaml:"-"`
}

// withDefaults fills unset fields with their defaults
func (c Config) withDefaults() Config {
	if c.Environment == "" {
		c.Environment = config.DefaultEnvironment
	}
	if c.BatchSize < 1 {
		c.BatchSize = config.DefaultBatchSize
	}
	if c.FlushInterval < 0 {
		c.FlushInterval = 0
	}
	if c.Logger == nil {
		c.Logger = log.New(os.Stdout, config.DebugLogPrefix, 0)
	}
	return c
}

// Client enriches, buffers and delivers events. It is safe for concurrent use.
// Call Close before the process exits so queued events are sent.
type Client struct {
	config    Config
	queue     *batch.Queue
	transport transport.Transport
	now       func() time.Time

	// mu guards closed against in-flight registration
	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	done      chan struct{}
	loop      sync.WaitGroup
	closeOnce sync.Once
}

// New creates a client delivering over HTTP to cfg.Endpoint
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return NewWithTransport(cfg, transport.NewHTTP(cfg.Endpoint, cfg.APIKey, cfg.HTTPClient))
}

// NewWithTransport creates a client delivering through trans
func NewWithTransport(cfg Config, trans transport.Transport) *Client {
	cfg = cfg.withDefaults()

	c := &Client{
		config:    cfg,
		queue:     batch.NewQueue(cfg.BatchSize),
		transport: trans,
		now:       time.Now,
		done:      make(chan struct{}),
	}

	if cfg.FlushInterval > 0 {
		c.loop.Add(1)
		go c.flushLoop()
	}

	return c
}

// Config returns the client's effective configuration
func (c *Client) Config() Config {
	return c.config
}

// QueueLen returns the number of events waiting to be sent
func (c *Client) QueueLen() int {
	return c.queue.Len()
}

// CaptureError captures an error message together with the caller's stack
func (c *Client) CaptureError(message string, opts ...event.Option) {
	c.captureError(message, event.CaptureStack(stackSkip), opts)
}

// CaptureException captures err with the caller's stack. A nil err is ignored.
func (c *Client) CaptureException(err error, opts ...event.Option) {
	if err == nil {
		return
	}
	c.captureError(err.Error(), event.CaptureStack(stackSkip), opts)
}

// CaptureMessage captures a plain message at the given level
func (c *Client) CaptureMessage(message string, level event.Level, opts ...event.Option) {
	c.Capture(event.Event{
		Type:    event.TypeMessage,
		Level:   level,
		Message: message,
	}, opts...)
}

// Capture queues a caller-built event. Its timestamp is always replaced with
// the capture time.
func (c *Client) Capture(e event.Event, opts ...event.Option) {
	e.Apply(opts...)
	c.enqueue(e)
}

func (c *Client) captureError(message string, stack []event.StackFrame, opts []event.Option) {
	c.Capture(event.Event{
		Type:       event.TypeError,
		Level:      event.LevelError,
		Message:    message,
		Stacktrace: stack,
	}, opts...)
}

// enrich fills in the capture-time fields
func (c *Client) enrich(e *event.Event) {
	e.Timestamp = c.now().UTC().Format(time.RFC3339)
	if e.Environment == "" {
		e.Environment = c.config.Environment
	}
	if e.Release == "" {
		e.Release = c.config.Release
	}
	if e.Level == "" {
		e.Level = event.LevelInfo
	}
}

// enqueue enriches e, queues it and sends the whole backlog on the calling
// goroutine once the batch size is reached. The threshold is soft: racing
// pushes can produce a batch larger than BatchSize.
func (c *Client) enqueue(e event.Event) {
	c.enrich(&e)

	n := c.queue.Push(e)
	c.debugf("Event queued, queue size: %d", n)

	if n >= c.config.BatchSize {
		c.send(context.Background(), c.queue.DrainAll())
	}
}

// FlushBlocking sends everything queued and returns once the request has
// completed or failed. An empty queue makes no request.
func (c *Client) FlushBlocking() {
	c.send(context.Background(), c.queue.DrainAll())
}

// FlushAsync drains the queue immediately and sends it on a new goroutine.
// The returned channel is closed when the request completes. After Close the
// send happens on the calling goroutine instead.
func (c *Client) FlushAsync() <-chan struct{} {
	done := make(chan struct{})

	events := c.queue.DrainAll()
	if len(events) == 0 {
		close(done)
		return done
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		c.send(context.Background(), events)
		close(done)
		return done
	}
	c.inflight.Add(1)
	c.mu.RUnlock()

	go func() {
		defer c.inflight.Done()
		defer close(done)
		c.send(context.Background(), events)
	}()

	return done
}

// Flush sends everything queued and waits for the request to finish. If ctx
// ends first Flush returns ctx.Err(); the request itself is not cancelled.
// Delivery failures are never returned.
func (c *Client) Flush(ctx context.Context) error {
	select {
	case <-c.FlushAsync():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the periodic flusher, waits for in-flight sends and flushes
// what is left. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.loop.Wait()

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	})

	c.inflight.Wait()
	c.FlushBlocking()
}

// flushLoop periodically flushes queued events
func (c *Client) flushLoop() {
	defer c.loop.Done()

	ticker := time.NewTicker(c.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.FlushBlocking()
		case <-c.done:
			return
		}
	}
}

// send makes a single delivery attempt. Failures are only logged; the events
// are dropped either way.
func (c *Client) send(ctx context.Context, events []event.Event) {
	if len(events) == 0 {
		return
	}

	status, err := c.transport.Send(ctx, events)
	if err != nil {
		c.debugf("Failed to send events: %v", err)
		return
	}

	c.debugf("Sent %d event(s), status: %d", len(events), status)
}

func (c *Client) debugf(format string, args ...interface{}) {
	if c.config.Debug {
		c.config.Logger.Printf(format, args...)
	}
}
