package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/config"
	"github.com/pulsekit/pulsekit-go/pkg/httpx"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/transport"
	"github.com/pulsekit/pulsekit-go/pkg/storage"
)

// StorageChecker reports whether the sink has run out of disk quota
type StorageChecker interface {
	Exceeded() (bool, error)
}

// Handler serves event ingestion, query and stats
type Handler struct {
	store          storage.Storage
	apiKeys        map[string]struct{}
	hub            *EventHub
	storageChecker StorageChecker
	now            func() time.Time
	seq            atomic.Uint64
}

// NewHandler creates a new ingest handler. With no apiKeys, any non-empty
// key is accepted.
func NewHandler(store storage.Storage, apiKeys []string) *Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = struct{}{}
		}
	}
	return &Handler{
		store:   store,
		apiKeys: keys,
		now:     time.Now,
	}
}

// SetHub sets the websocket hub accepted events are broadcast to
func (h *Handler) SetHub(hub *EventHub) {
	h.hub = hub
}

// SetStorageChecker sets the disk quota check run before every write
func (h *Handler) SetStorageChecker(checker StorageChecker) {
	h.storageChecker = checker
}

// IngestResponse represents the response payload
type IngestResponse struct {
	Status string   `json:"status"`
	Count  int      `json:"count"`
	IDs    []string `json:"ids"`
}

// QueryResponse represents the response to an event query
type QueryResponse struct {
	Events []storage.Record `json:"events"`
	Count  int              `json:"count"`
}

// HandleEvent handles POST /api/v1/events with a single event body
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var e event.Event
	if err := decodeBody(w, r, &e); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := ValidateEvent(e); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid event: %v", err))
		return
	}

	h.ingest(w, r, []event.Event{e})
}

// HandleBatch handles POST /api/v1/events/batch with {"events":[...]}
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var req transport.BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if err := ValidateBatch(req.Events); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid batch: %v", err))
		return
	}

	h.ingest(w, r, req.Events)
}

// ingest stores validated events and broadcasts them to live tail clients
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, events []event.Event) {
	if h.storageChecker != nil {
		exceeded, err := h.storageChecker.Exceeded()
		if err != nil {
			log.Printf("Storage usage check failed: %v", err)
		} else if exceeded {
			httpx.RespondErrorString(w, http.StatusInsufficientStorage, "storage limit reached")
			return
		}
	}

	receivedAt := h.now().UTC()
	records := make([]storage.Record, len(events))
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = fmt.Sprintf("%d-%d", receivedAt.UnixNano(), h.seq.Add(1))
		records[i] = storage.Record{
			ID:         ids[i],
			Group:      storage.GroupKey(e),
			ReceivedAt: receivedAt,
			Event:      e,
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.IngestTimeout)
	defer cancel()

	if err := h.store.Write(ctx, records); err != nil {
		log.Printf("Failed to store %d event(s): %v", len(records), err)
		httpx.RespondErrorString(w, http.StatusInternalServerError, "failed to store events")
		return
	}

	if h.hub != nil && h.hub.HasClients() {
		if err := h.hub.Broadcast(LiveUpdate{Type: "events", Count: len(records), Events: records}); err != nil {
			log.Printf("Failed to broadcast events: %v", err)
		}
	}

	httpx.RespondJSON(w, http.StatusOK, IngestResponse{
		Status: "success",
		Count:  len(records),
		IDs:    ids,
	})
}

// HandleQuery handles GET /api/v1/events?type=&level=&environment=&group=&since=&until=&limit=
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := ParseQuery(r, h.now())
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	records, err := h.store.Query(ctx, req)
	if err != nil {
		log.Printf("Event query failed: %v", err)
		httpx.RespondErrorString(w, http.StatusInternalServerError, "query failed")
		return
	}
	if records == nil {
		records = []storage.Record{}
	}

	httpx.RespondJSON(w, http.StatusOK, QueryResponse{Events: records, Count: len(records)})
}

// HandleStats handles GET /api/v1/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), config.QueryTimeout)
	defer cancel()

	stats, err := h.store.Stats(ctx)
	if err != nil {
		log.Printf("Stats query failed: %v", err)
		httpx.RespondErrorString(w, http.StatusInternalServerError, "stats failed")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, stats)
}

// ParseQuery builds a storage query from URL parameters. since and until take
// RFC3339 timestamps or a duration ago ("15m").
func ParseQuery(r *http.Request, now time.Time) (storage.QueryRequest, error) {
	q := r.URL.Query()
	req := storage.QueryRequest{
		Type:        q.Get("type"),
		Environment: q.Get("environment"),
		Group:       q.Get("group"),
		Limit:       config.QueryDefaultLimit,
	}

	if v := q.Get("level"); v != "" {
		level, err := event.ParseLevel(v)
		if err != nil {
			return req, err
		}
		req.Level = level
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return req, fmt.Errorf("invalid limit %q", v)
		}
		req.Limit = min(limit, config.QueryMaxLimit)
	}

	var err error
	if req.Since, err = parseTimeParam(q.Get("since"), now); err != nil {
		return req, fmt.Errorf("invalid since: %w", err)
	}
	if req.Until, err = parseTimeParam(q.Get("until"), now); err != nil {
		return req, fmt.Errorf("invalid until: %w", err)
	}

	return req, nil
}

func parseTimeParam(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC3339 nor a duration", v)
	}
	return now.Add(-d), nil
}

// authorize checks the API key header and writes 401 on failure
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get(transport.APIKeyHeader)
	if key == "" {
		httpx.RespondErrorString(w, http.StatusUnauthorized, "missing "+transport.APIKeyHeader+" header")
		return false
	}
	if len(h.apiKeys) > 0 {
		if _, ok := h.apiKeys[key]; !ok {
			httpx.RespondErrorString(w, http.StatusUnauthorized, "invalid API key")
			return false
		}
	}
	return true
}

// decodeBody decodes a size-limited JSON body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, MaxRequestBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("body exceeds %d bytes", maxErr.Limit)
		}
		return err
	}
	return nil
}
