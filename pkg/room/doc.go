// Package room provides the domain types shared by every huddle component:
// rooms, participants, artifacts, task lanes, provider adapters, chat
// messages and the append-only room event log.
//
// # Overview
//
// A Room is the aggregate root. Humans and AI participants collaborate in a
// room by producing versioned artifacts (plans, patches, reviews, notes and
// tasks), posting chat messages, and scheduling TASK artifacts into lanes
// owned by an implementor.
//
// # Immutability
//
// Participants, artifacts, messages and events are immutable once appended.
// A revision of an artifact is a new artifact of the same type with an
// incremented version and a parent link. Task lanes are the only children
// whose state and task list change in place.
//
// # Driver status
//
// Each room embeds a DriverStatus: a small circuit breaker counting
// consecutive failures reported by the external driver. Reaching the retry
// budget trips the breaker to PAUSED and pauses the room with it.
//
// # Errors
//
// Failures are classified by Kind (NotFound, Validation, Conflict) so the
// transport layer can map them without string matching:
//
//	if room.IsConflict(err) {
//		// room is paused or the lane is not active
//	}
//
// # Snapshots
//
// The store never hands out the aggregate it guards. Callers receive deep
// copies produced by Room.Clone, so mutating a returned value has no effect
// on the store.
package room
