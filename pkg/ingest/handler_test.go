package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/transport"
	"github.com/pulsekit/pulsekit-go/pkg/storage"
	"github.com/pulsekit/pulsekit-go/pkg/storage/memory"
)

var fixedNow = time.Date(2026, 3, 14, 20, 9, 26, 0, time.UTC)

func newTestHandler(keys ...string) (*Handler, *memory.Storage) {
	store := memory.New()
	h := NewHandler(store, keys)
	h.now = func() time.Time { return fixedNow }
	return h, store
}

func post(t *testing.T, fn http.HandlerFunc, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf []byte
	switch b := body.(type) {
	case string:
		buf = []byte(b)
	default:
		var err error
		buf, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(transport.APIKeyHeader, key)
	}
	rr := httptest.NewRecorder()
	fn(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp["message"]
}

func TestHandleEvent_Single(t *testing.T) {
	handler, store := newTestHandler()

	rr := post(t, handler.HandleEvent, transport.SingleEventPath, "key", event.Event{
		Type:        "user.signup",
		Level:       event.LevelInfo,
		Message:     "new user",
		Fingerprint: "signup",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 1, resp.Count)
	assert.Len(t, resp.IDs, 1)

	records, err := store.Query(context.Background(), storage.QueryRequest{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user.signup", records[0].Event.Type)
	assert.Equal(t, fixedNow, records[0].ReceivedAt)
	assert.Equal(t, storage.GroupKey(records[0].Event), records[0].Group)
	assert.Equal(t, resp.IDs[0], records[0].ID)
}

func TestHandleBatch(t *testing.T) {
	handler, store := newTestHandler()

	rr := post(t, handler.HandleBatch, transport.BatchEventPath, "key", transport.BatchRequest{
		Events: []event.Event{{Type: "a"}, {Type: "b"}, {Type: "c"}},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.TotalEvents)
}

func TestHandleBatch_TooManyEvents(t *testing.T) {
	handler, _ := newTestHandler()

	events := make([]event.Event, MaxEventsPerRequest+1)
	for i := range events {
		events[i] = event.Event{Type: "load"}
	}

	rr := post(t, handler.HandleBatch, transport.BatchEventPath, "key", transport.BatchRequest{Events: events})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, errorMessage(t, rr), "too many events")
}

func TestHandleEvent_InvalidEvent(t *testing.T) {
	handler, store := newTestHandler()

	rr := post(t, handler.HandleEvent, transport.SingleEventPath, "key", event.Event{Level: event.LevelInfo})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, errorMessage(t, rr), "invalid event")

	stats, _ := store.Stats(context.Background())
	assert.Zero(t, stats.TotalEvents)
}

func TestHandleEvent_InvalidJSON(t *testing.T) {
	handler, _ := newTestHandler()

	rr := post(t, handler.HandleEvent, transport.SingleEventPath, "key", "{not json")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, errorMessage(t, rr), "invalid JSON")
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name       string
		configured []string
		key        string
		wantCode   int
	}{
		{"missing key, open sink", nil, "", http.StatusUnauthorized},
		{"any key, open sink", nil, "anything", http.StatusOK},
		{"configured key", []string{"k1", "k2"}, "k2", http.StatusOK},
		{"wrong key", []string{"k1"}, "k2", http.StatusUnauthorized},
		{"missing key, keyed sink", []string{"k1"}, "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newTestHandler(tt.configured...)
			rr := post(t, handler.HandleEvent, transport.SingleEventPath, tt.key, event.Event{Type: "x"})
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

type stubChecker struct {
	exceeded bool
	err      error
}

func (s stubChecker) Exceeded() (bool, error) { return s.exceeded, s.err }

func TestIngest_StorageLimit(t *testing.T) {
	handler, _ := newTestHandler()

	handler.SetStorageChecker(stubChecker{exceeded: true})
	rr := post(t, handler.HandleEvent, transport.SingleEventPath, "key", event.Event{Type: "x"})
	assert.Equal(t, http.StatusInsufficientStorage, rr.Code)

	// A failing check does not block ingestion
	handler.SetStorageChecker(stubChecker{err: errors.New("walk failed")})
	rr = post(t, handler.HandleEvent, transport.SingleEventPath, "key", event.Event{Type: "x"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandleQuery(t *testing.T) {
	handler, store := newTestHandler()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, []storage.Record{
		{ID: "1", ReceivedAt: fixedNow.Add(-2 * time.Hour), Event: event.Event{Type: "error", Level: event.LevelError}},
		{ID: "2", ReceivedAt: fixedNow.Add(-30 * time.Minute), Event: event.Event{Type: "error", Level: event.LevelWarning}},
		{ID: "3", ReceivedAt: fixedNow, Event: event.Event{Type: "message", Level: event.LevelInfo}},
	}))

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantIDs  []string
	}{
		{"all", "", http.StatusOK, []string{"3", "2", "1"}},
		{"type", "?type=error", http.StatusOK, []string{"2", "1"}},
		{"level case-insensitive", "?level=WARNING", http.StatusOK, []string{"2"}},
		{"since duration", "?since=1h", http.StatusOK, []string{"3", "2"}},
		{"since rfc3339", "?since=2026-03-14T20:00:00Z", http.StatusOK, []string{"3"}},
		{"limit", "?limit=1", http.StatusOK, []string{"3"}},
		{"empty result", "?type=nothing", http.StatusOK, []string{}},
		{"bad level", "?level=loud", http.StatusBadRequest, nil},
		{"bad limit", "?limit=zero", http.StatusBadRequest, nil},
		{"bad since", "?since=yesterday", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events"+tt.query, nil)
			rr := httptest.NewRecorder()
			handler.HandleQuery(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp QueryResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			ids := make([]string, 0, len(resp.Events))
			for _, r := range resp.Events {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), resp.Count)
		})
	}
}

func TestParseQuery_LimitClamped(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=999999", nil)
	q, err := ParseQuery(req, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1000, q.Limit)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	q, err = ParseQuery(req, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 100, q.Limit)
}

func TestHandleStats(t *testing.T) {
	handler, _ := newTestHandler()

	post(t, handler.HandleBatch, transport.BatchEventPath, "key", transport.BatchRequest{
		Events: []event.Event{
			{Type: "error", Level: event.LevelError, Message: "boom"},
			{Type: "error", Level: event.LevelError, Message: "boom"},
			{Type: "message", Level: event.LevelInfo, Message: "hi"},
		},
	})

	rr := httptest.NewRecorder()
	handler.HandleStats(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var stats storage.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, uint64(3), stats.TotalEvents)
	assert.Equal(t, uint64(2), stats.TotalGroups)
	assert.Equal(t, uint64(2), stats.ByType["error"])
	assert.Equal(t, uint64(1), stats.ByLevel["info"])
}
