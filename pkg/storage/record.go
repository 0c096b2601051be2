package storage

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

// GroupKey derives the issue group for an event: the client-supplied
// fingerprint when present, otherwise type and message. The result is a
// stable 16-digit hex string.
func GroupKey(e event.Event) string {
	var h uint64
	if e.Fingerprint != "" {
		h = xxhash.Sum64String("fp\x00" + e.Fingerprint)
	} else {
		h = xxhash.Sum64String("tm\x00" + e.Type + "\x00" + e.Message)
	}
	return fmt.Sprintf("%016x", h)
}

// Matches reports whether r passes every filter set on req
func Matches(r Record, req QueryRequest) bool {
	if !req.Since.IsZero() && r.ReceivedAt.Before(req.Since) {
		return false
	}
	if !req.Until.IsZero() && r.ReceivedAt.After(req.Until) {
		return false
	}
	if req.Type != "" && r.Event.Type != req.Type {
		return false
	}
	if req.Level != "" && r.Event.Level != req.Level {
		return false
	}
	if req.Environment != "" && r.Event.Environment != req.Environment {
		return false
	}
	if req.Group != "" && r.Group != req.Group {
		return false
	}
	return true
}

// NewestFirst sorts records by receipt time, newest first, and applies limit
func NewestFirst(records []Record, limit int) []Record {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ReceivedAt.After(records[j].ReceivedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}

// Accumulate folds r into stats
func (s *Stats) Accumulate(r Record) {
	if s.ByType == nil {
		s.ByType = make(map[string]uint64)
	}
	if s.ByLevel == nil {
		s.ByLevel = make(map[string]uint64)
	}

	s.TotalEvents++
	s.ByType[r.Event.Type]++
	if r.Event.Level != "" {
		s.ByLevel[string(r.Event.Level)]++
	}

	if s.Oldest.IsZero() || r.ReceivedAt.Before(s.Oldest) {
		s.Oldest = r.ReceivedAt
	}
	if s.Newest.IsZero() || r.ReceivedAt.After(s.Newest) {
		s.Newest = r.ReceivedAt
	}
}
