package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
	"github.com/pulsekit/pulsekit-go/pkg/sdk/transport"
)

func TestEventHub_LiveTail(t *testing.T) {
	handler, _ := newTestHandler()
	hub := NewEventHub()
	handler.SetHub(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/ws", hub.HandleWebSocket)
	mux.HandleFunc(transport.BatchEventPath, handler.HandleBatch)
	server := httptest.NewServer(mux)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, hub.HasClients, 2*time.Second, 10*time.Millisecond)

	rr := post(t, handler.HandleBatch, transport.BatchEventPath, "key", transport.BatchRequest{
		Events: []event.Event{{Type: "a"}, {Type: "b"}},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var update LiveUpdate
	require.NoError(t, json.Unmarshal(msg, &update))
	assert.Equal(t, "events", update.Type)
	assert.Equal(t, 2, update.Count)
	require.Len(t, update.Events, 2)
	assert.Equal(t, "a", update.Events[0].Event.Type)
	assert.Equal(t, "b", update.Events[1].Event.Type)

	// Client disconnect is noticed
	conn.Close()
	require.Eventually(t, func() bool { return !hub.HasClients() }, 2*time.Second, 10*time.Millisecond)
}

func TestEventHub_BroadcastWithoutRun(t *testing.T) {
	hub := NewEventHub()

	// Buffer fills then drops instead of blocking
	for i := 0; i < 300; i++ {
		require.NoError(t, hub.Broadcast(map[string]int{"i": i}))
	}
	assert.False(t, hub.HasClients())
	assert.Equal(t, 0, hub.ClientCount())
}

func TestEventHub_RejectsCrossOrigin(t *testing.T) {
	hub := NewEventHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
