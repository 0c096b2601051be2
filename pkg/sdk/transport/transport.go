package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

// Ingestion paths relative to the configured endpoint
const (
	SingleEventPath = "/api/v1/events"
	BatchEventPath  = "/api/v1/events/batch"
)

// APIKeyHeader carries the project key on every request
const APIKeyHeader = "X-PulseKit-Key"

// ErrNoEvents is returned when asked to build or send an empty batch
var ErrNoEvents = errors.New("no events to send")

// StatusError reports a non-2xx response from the ingestion endpoint
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Code)
}

// Transport defines the interface for delivering drained events
type Transport interface {
	// Send makes one delivery attempt and returns the HTTP status code when
	// a response was received.
	Send(ctx context.Context, events []event.Event) (int, error)
}

// BatchRequest is the body posted to BatchEventPath
type BatchRequest struct {
	Events []event.Event `json:"events"`
}

// BuildRequest chooses the request shape for events: a single event is
// posted as-is to the single-event path, two or more are wrapped in
// {"events": [...]} and posted to the batch path in the given order.
func BuildRequest(endpoint string, events []event.Event) (string, []byte, error) {
	var url string
	var body interface{}

	switch len(events) {
	case 0:
		return "", nil, ErrNoEvents
	case 1:
		url = endpoint + SingleEventPath
		body = events[0]
	default:
		url = endpoint + BatchEventPath
		body = BatchRequest{Events: events}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal events: %w", err)
	}

	return url, jsonData, nil
}

// HTTPTransport implements Transport using HTTP
type HTTPTransport struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP creates a new HTTP transport. The endpoint is not validated; a bad
// value surfaces as a send error. A nil client means a plain http.Client
// with no timeout.
func NewHTTP(endpoint, apiKey string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   client,
	}
}

// Endpoint returns the base URL requests are sent to
func (t *HTTPTransport) Endpoint() string {
	return t.endpoint
}

// Send posts events to the ingestion endpoint. The response body is
// discarded unread; only the status code is inspected.
func (t *HTTPTransport) Send(ctx context.Context, events []event.Event) (int, error) {
	url, jsonData, err := BuildRequest(t.endpoint, events)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}

	return resp.StatusCode, nil
}
