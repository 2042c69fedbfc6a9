// Package events appends entries to a room's immutable audit log.
package events

import (
	"fmt"
	"time"

	"github.com/dyluth/huddle/pkg/room"
)

// Refs carries the optional references of an event. Empty fields are omitted.
type Refs struct {
	ParticipantID string
	ArtifactID    string
	TaskLaneID    string
}

// Recorder stamps and appends RoomEvents.
type Recorder struct {
	now func() time.Time
}

// NewRecorder returns a recorder using the given clock.
// A nil clock uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// Record appends an event to the room and returns it.
// The room must be owned by the caller.
func (rec *Recorder) Record(r *room.Room, t room.EventType, description string, refs Refs) (room.RoomEvent, error) {
	ev := room.RoomEvent{
		ID:            room.NewID(),
		RoomID:        r.ID,
		Type:          t,
		Description:   description,
		OccurredAt:    rec.now(),
		ParticipantID: refs.ParticipantID,
		ArtifactID:    refs.ArtifactID,
		TaskLaneID:    refs.TaskLaneID,
	}
	if err := r.AddEvent(ev); err != nil {
		return room.RoomEvent{}, fmt.Errorf("failed to record %s event: %w", t, err)
	}
	return ev, nil
}

// Since returns the events appended after the first n, in order.
func Since(r *room.Room, n int) []room.RoomEvent {
	if n >= len(r.Events) {
		return nil
	}
	return append([]room.RoomEvent(nil), r.Events[n:]...)
}
