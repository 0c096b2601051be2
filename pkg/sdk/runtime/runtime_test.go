package runtime

import (
	"encoding/json"
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

func TestCollect(t *testing.T) {
	s := Collect()

	assert.Equal(t, goruntime.Version(), s.GoVersion)
	assert.Equal(t, goruntime.GOOS, s.OS)
	assert.Equal(t, goruntime.GOARCH, s.Arch)
	assert.Positive(t, s.NumCPU)
	assert.Positive(t, s.Goroutines)
	assert.Positive(t, s.HeapSysBytes)
}

func TestWithRuntime(t *testing.T) {
	e := event.Event{
		Type:     "error",
		Metadata: map[string]any{"order_id": "ORD-1"},
		Tags:     map[string]string{"service": "api"},
	}
	e.Apply(WithRuntime())

	assert.Equal(t, "ORD-1", e.Metadata["order_id"], "existing metadata is kept")
	rt, ok := e.Metadata[MetadataKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, goruntime.Version(), rt["go_version"])

	assert.Equal(t, "api", e.Tags["service"])
	assert.Equal(t, goruntime.GOOS, e.Tags["os"])
	assert.Equal(t, goruntime.GOARCH, e.Tags["arch"])

	_, err := json.Marshal(e)
	require.NoError(t, err)
}
