package filter

import (
	"path/filepath"
	"time"

	"github.com/dyluth/huddle/pkg/room"
)

// Criteria defines filtering criteria for room events.
// All filters are ANDed together - an event must match ALL criteria to pass.
type Criteria struct {
	Since         time.Time // Inclusive lower bound, zero = no filter
	Until         time.Time // Inclusive upper bound, zero = no filter
	TypeGlob      string    // Glob pattern for event type, e.g. "TASK_*", empty = no filter
	ParticipantID string    // Exact match on the event's participant, empty = no filter
}

// Matches returns true if the event matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(ev *room.RoomEvent) bool {
	if !c.Since.IsZero() && ev.OccurredAt.Before(c.Since) {
		return false
	}
	if !c.Until.IsZero() && ev.OccurredAt.After(c.Until) {
		return false
	}

	if c.TypeGlob != "" {
		matched, err := filepath.Match(c.TypeGlob, string(ev.Type))
		if err != nil || !matched {
			return false
		}
	}

	if c.ParticipantID != "" && ev.ParticipantID != c.ParticipantID {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return !c.Since.IsZero() ||
		!c.Until.IsZero() ||
		c.TypeGlob != "" ||
		c.ParticipantID != ""
}

// Apply returns the matching events in their original order.
func (c *Criteria) Apply(events []room.RoomEvent) []room.RoomEvent {
	out := make([]room.RoomEvent, 0, len(events))
	for i := range events {
		if c.Matches(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out
}
