package ingest

import (
	"errors"
	"fmt"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

// Validation limits
const (
	// Per-event limits
	MaxTypeLength     = 256  // Maximum event type length
	MaxTagsPerEvent   = 50   // Maximum tags per event
	MaxTagKeyLength   = 256  // Maximum tag key length
	MaxTagValueLength = 1024 // Maximum tag value length

	// Per-request limits
	MaxEventsPerRequest = 1000    // Maximum events in one batch request
	MaxRequestBytes     = 5 << 20 // Maximum request body size
)

var (
	// ErrTypeEmpty is returned when an event has no type
	ErrTypeEmpty = errors.New("event type cannot be empty")

	// ErrTypeTooLong is returned when an event type is too long
	ErrTypeTooLong = fmt.Errorf("event type too long (max %d chars)", MaxTypeLength)

	// ErrInvalidLevel is returned when an event carries an unknown level
	ErrInvalidLevel = errors.New("invalid event level")

	// ErrTooManyTags is returned when an event has too many tags
	ErrTooManyTags = fmt.Errorf("too many tags (max %d)", MaxTagsPerEvent)

	// ErrTagKeyTooLong is returned when a tag key is too long
	ErrTagKeyTooLong = fmt.Errorf("tag key too long (max %d chars)", MaxTagKeyLength)

	// ErrTagValueTooLong is returned when a tag value is too long
	ErrTagValueTooLong = fmt.Errorf("tag value too long (max %d chars)", MaxTagValueLength)

	// ErrTooManyEvents is returned when a batch request contains too many events
	ErrTooManyEvents = fmt.Errorf("too many events in request (max %d)", MaxEventsPerRequest)

	// ErrNoEvents is returned when a batch request is empty
	ErrNoEvents = errors.New("batch contains no events")
)

// ValidateEvent validates an event against the sink's limits
func ValidateEvent(e event.Event) error {
	if e.Type == "" {
		return ErrTypeEmpty
	}
	if len(e.Type) > MaxTypeLength {
		return fmt.Errorf("%w: type has %d chars", ErrTypeTooLong, len(e.Type))
	}

	if e.Level != "" && !e.Level.Valid() {
		return fmt.Errorf("%w: %q in event %q", ErrInvalidLevel, e.Level, e.Type)
	}

	if len(e.Tags) > MaxTagsPerEvent {
		return fmt.Errorf("%w: event %q has %d tags", ErrTooManyTags, e.Type, len(e.Tags))
	}
	for k, v := range e.Tags {
		if len(k) > MaxTagKeyLength {
			return fmt.Errorf("%w: key %q in event %q", ErrTagKeyTooLong, k, e.Type)
		}
		if len(v) > MaxTagValueLength {
			return fmt.Errorf("%w: value for key %q in event %q", ErrTagValueTooLong, k, e.Type)
		}
	}

	return nil
}

// ValidateBatch validates batch size and every event in it
func ValidateBatch(events []event.Event) error {
	if len(events) == 0 {
		return ErrNoEvents
	}
	if len(events) > MaxEventsPerRequest {
		return fmt.Errorf("%w: got %d", ErrTooManyEvents, len(events))
	}
	for i, e := range events {
		if err := ValidateEvent(e); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}
