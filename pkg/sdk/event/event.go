package event

import (
	"fmt"
	"strings"
)

// Level represents the severity of an event
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// Type names produced by the client's convenience capture methods
const (
	TypeError   = "error"
	TypeMessage = "message"
)

// ErrInvalidLevel is returned when a string is not one of the known levels
var ErrInvalidLevel = fmt.Errorf("invalid level (want debug, info, warning, error or fatal)")

// Valid reports whether l is one of the five known levels.
// The empty level is not valid; it means "unset".
func (l Level) Valid() bool {
	switch l {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelFatal:
		return true
	}
	return false
}

// ParseLevel converts a case-insensitive level name into a Level
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

// StackFrame is a single frame of a captured stack trace
type StackFrame struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Function string `json:"function,omitempty"`
}

// Event is one telemetry record. Every field except Type is optional and is
// left out of the JSON form entirely when empty.
type Event struct {
	Type        string            `json:"type" yaml:"type"`
	Level       Level             `json:"level,omitempty" yaml:"level,omitempty"`
	Message     string            `json:"message,omitempty" yaml:"message,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Stacktrace  []StackFrame      `json:"stacktrace,omitempty" yaml:"stacktrace,omitempty"`
	Tags        map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Environment string            `json:"environment,omitempty" yaml:"environment,omitempty"`
	Release     string            `json:"release,omitempty" yaml:"release,omitempty"`
}

// Option modifies an event before it is enriched and queued
type Option func(*Event)

// Apply runs opts against e in order
func (e *Event) Apply(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
}

// WithTags merges tags into the event. The caller's map is not retained.
func WithTags(tags map[string]string) Option {
	return func(e *Event) {
		if len(tags) == 0 {
			return
		}
		merged := make(map[string]string, len(e.Tags)+len(tags))
		for k, v := range e.Tags {
			merged[k] = v
		}
		for k, v := range tags {
			merged[k] = v
		}
		e.Tags = merged
	}
}

// WithMetadata merges metadata into the event. The caller's map is not retained.
func WithMetadata(metadata map[string]any) Option {
	return func(e *Event) {
		if len(metadata) == 0 {
			return
		}
		merged := make(map[string]any, len(e.Metadata)+len(metadata))
		for k, v := range e.Metadata {
			merged[k] = v
		}
		for k, v := range metadata {
			merged[k] = v
		}
		e.Metadata = merged
	}
}

// WithType sets the event type
func WithType(eventType string) Option {
	return func(e *Event) {
		e.Type = eventType
	}
}

// WithLevel sets the event level
func WithLevel(level Level) Option {
	return func(e *Event) {
		e.Level = level
	}
}

// WithFingerprint sets the grouping fingerprint
func WithFingerprint(fingerprint string) Option {
	return func(e *Event) {
		e.Fingerprint = fingerprint
	}
}

// WithEnvironment sets the environment, overriding the client default
func WithEnvironment(environment string) Option {
	return func(e *Event) {
		e.Environment = environment
	}
}

// WithRelease sets the release, overriding the client default
func WithRelease(release string) Option {
	return func(e *Event) {
		e.Release = release
	}
}
