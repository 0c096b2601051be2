package runtime

import (
	"runtime"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

// MetadataKey is the metadata entry runtime details are stored under
const MetadataKey = "runtime"

// Snapshot describes the Go runtime at the moment an event is captured
type Snapshot struct {
	GoVersion      string `json:"go_version"`
	OS             string `json:"os"`
	Arch           string `json:"arch"`
	NumCPU         int    `json:"num_cpu"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes   uint64 `json:"heap_sys_bytes"`
	StackBytes     uint64 `json:"stack_bytes"`
	GCCount        uint32 `json:"gc_count"`
}

// Collect reads the current runtime state. It calls runtime.ReadMemStats,
// which briefly stops the world, so avoid it on hot paths.
func Collect() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Snapshot{
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
		NumCPU:         runtime.NumCPU(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: m.HeapAlloc,
		HeapSysBytes:   m.HeapSys,
		StackBytes:     m.StackInuse,
		GCCount:        m.NumGC,
	}
}

// Map converts the snapshot into JSON-friendly metadata
func (s Snapshot) Map() map[string]any {
	return map[string]any{
		"go_version":       s.GoVersion,
		"os":               s.OS,
		"arch":             s.Arch,
		"num_cpu":          s.NumCPU,
		"goroutines":       s.Goroutines,
		"heap_alloc_bytes": s.HeapAllocBytes,
		"heap_sys_bytes":   s.HeapSysBytes,
		"stack_bytes":      s.StackBytes,
		"gc_count":         s.GCCount,
	}
}

// WithRuntime attaches a runtime snapshot to the event's metadata under
// MetadataKey and tags it with the OS and architecture
//
//	client.CaptureError("out of workers", runtime.WithRuntime())
func WithRuntime() event.Option {
	return func(e *event.Event) {
		s := Collect()
		event.WithMetadata(map[string]any{MetadataKey: s.Map()})(e)
		event.WithTags(map[string]string{"os": s.OS, "arch": s.Arch})(e)
	}
}
