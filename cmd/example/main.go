// Command example sends sample events to a PulseKit endpoint and can run a
// small demo app whose panics and 5xx responses are captured by middleware.
//
// Start a local sink first:
//
//	go run ./cmd/pulsekit-sink --storage memory
//
// Then:
//
//	go run ./cmd/example --api-key pk_test
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pulsekit/pulsekit-go/pkg/config"
	"github.com/pulsekit/pulsekit-go/pkg/sdk"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/httpx"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/runtime"
)

type options struct {
	endpoint    string
	apiKey      string
	environment string
	release     string
	debug       bool
	serve       string
	traffic     bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("example", pflag.ContinueOnError)
	fs.StringVar(&opts.endpoint, "endpoint", "http://localhost:4000", "PulseKit endpoint")
	fs.StringVar(&opts.apiKey, "api-key", os.Getenv(config.EnvAPIKey), "project API key")
	fs.StringVar(&opts.environment, "environment", "development", "environment attached to events")
	fs.StringVar(&opts.release, "release", "1.0.0", "release attached to events")
	fs.BoolVar(&opts.debug, "debug", true, "log SDK activity")
	fs.StringVar(&opts.serve, "serve", "", "run the demo app on this address (e.g. :3001) after sending samples")
	fs.BoolVar(&opts.traffic, "traffic", false, "generate requests against the demo app")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.apiKey == "" {
		opts.apiKey = "pk_YOUR_API_KEY_HERE"
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Invalid arguments: %v", err)
	}

	fmt.Println("PulseKit Go SDK example")
	fmt.Printf("Endpoint: %s\n", opts.endpoint)
	fmt.Printf("API Key: %s...\n\n", opts.apiKey[:min(10, len(opts.apiKey))])

	client := sdk.Init(sdk.Config{
		Endpoint:    opts.endpoint,
		APIKey:      opts.apiKey,
		Environment: opts.environment,
		Release:     opts.release,
		Debug:       opts.debug,
	})
	defer sdk.Close()

	sendSamples(client, os.Stdout)

	fmt.Println("Flushing remaining events...")
	client.FlushBlocking()
	fmt.Println("All events flushed")

	if opts.serve == "" {
		fmt.Printf("\nCheck %s/api/v1/events to see your events.\n", opts.endpoint)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serveDemo(ctx, client, opts); err != nil {
		log.Printf("Demo app failed: %v", err)
	}
}

// sendSamples captures one event of each kind the SDK supports
func sendSamples(client *sdk.Client, out io.Writer) {
	fmt.Fprintln(out, "Test 1: Sending custom info event...")
	client.Capture(event.Event{
		Type:    "test.info",
		Level:   event.LevelInfo,
		Message: "This is a test info event from Go SDK",
		Metadata: map[string]any{
			"test_id": 1,
			"sdk":     "go",
		},
		Tags: map[string]string{
			"source":   "test-script",
			"language": "go",
		},
	}, runtime.WithRuntime())

	fmt.Fprintln(out, "Test 2: Capturing exception...")
	client.CaptureException(errors.New("test error from Go SDK"))

	fmt.Fprintln(out, "Test 3: Sending business event...")
	client.Capture(event.Event{
		Type:    "payment.success",
		Level:   event.LevelInfo,
		Message: "Payment processed successfully",
		Metadata: map[string]any{
			"amount":         99.99,
			"currency":       "USD",
			"order_id":       "ORD-12345",
			"customer_email": "test@example.com",
		},
		Tags: map[string]string{
			"payment_method": "credit_card",
			"country":        "US",
		},
	})

	fmt.Fprintln(out, "Test 4: Sending warning event...")
	client.Capture(event.Event{
		Type:    "rate_limit.warning",
		Level:   event.LevelWarning,
		Message: "API rate limit approaching threshold",
		Metadata: map[string]any{
			"current_rate": 950,
			"limit":        1000,
			"reset_time":   "60s",
		},
	})
}

// serveDemo runs the demo app until ctx is done
func serveDemo(ctx context.Context, client *sdk.Client, opts options) error {
	mux := http.NewServeMux()
	setupHandlers(mux)

	server := &http.Server{
		Addr:              opts.serve,
		Handler:           httpx.Middleware(client)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Starting demo app on %s", opts.serve)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	if opts.traffic {
		go startTrafficSimulator(ctx, "http://localhost"+opts.serve)
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	log.Println("Shutting down demo app...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
