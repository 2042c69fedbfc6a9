package room

import (
	"fmt"
	"strings"
	"time"
)

// Room is the aggregate root of a collaboration.
// Children are appended through the Add* methods; task lanes are updated
// through Lane. A Room value handed out by the store is always a Clone.
type Room struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	CreatedAt        time.Time         `json:"created_at"`
	Paused           bool              `json:"paused"`
	Driver           DriverStatus      `json:"driver_status"`
	Participants     []Participant     `json:"participants"`
	Artifacts        []Artifact        `json:"artifacts"`
	Messages         []ChatMessage     `json:"messages"`
	TaskLanes        []TaskLane        `json:"task_lanes"`
	ProviderAdapters []ProviderAdapter `json:"provider_adapters"`
	Events           []RoomEvent       `json:"events"`
}

// New returns an empty, active room with a healthy driver.
func New(id, name string, createdAt time.Time, maxRetries int) *Room {
	return &Room{
		ID:               id,
		Name:             name,
		CreatedAt:        createdAt,
		Driver:           NewDriverStatus(maxRetries),
		Participants:     []Participant{},
		Artifacts:        []Artifact{},
		Messages:         []ChatMessage{},
		TaskLanes:        []TaskLane{},
		ProviderAdapters: []ProviderAdapter{},
		Events:           []RoomEvent{},
	}
}

// EnsureActive returns a KindConflict error when the room is paused.
func (r *Room) EnsureActive() error {
	if r.Paused {
		return Conflictf("room is paused; resume before making changes")
	}
	return nil
}

// Pause marks the room paused and forces the driver breaker to PAUSED.
func (r *Room) Pause() {
	r.Paused = true
	r.Driver.AsPaused()
}

// Resume unpauses the room and resets the driver breaker to HEALTHY.
func (r *Room) Resume() {
	r.Paused = false
	r.Driver.RecordRecovery()
}

// AddParticipant appends a participant after validating it.
func (r *Room) AddParticipant(p Participant) error {
	if err := p.Validate(); err != nil {
		return Validationf("%v", err)
	}
	p.Capabilities = cloneStrings(p.Capabilities)
	r.Participants = append(r.Participants, p)
	return nil
}

// AddArtifact appends an artifact after validating it.
func (r *Room) AddArtifact(a Artifact) error {
	if err := a.Validate(); err != nil {
		return Validationf("%v", err)
	}
	r.Artifacts = append(r.Artifacts, a)
	return nil
}

// AddMessage appends a chat message.
func (r *Room) AddMessage(m ChatMessage) {
	r.Messages = append(r.Messages, m)
}

// AddTaskLane appends a task lane after validating it.
func (r *Room) AddTaskLane(l TaskLane) error {
	if err := l.Validate(); err != nil {
		return Validationf("%v", err)
	}
	l.TaskArtifactIDs = cloneStrings(l.TaskArtifactIDs)
	r.TaskLanes = append(r.TaskLanes, l)
	return nil
}

// AddProviderAdapter appends a provider adapter.
func (r *Room) AddProviderAdapter(p ProviderAdapter) {
	p.Capabilities = cloneStrings(p.Capabilities)
	r.ProviderAdapters = append(r.ProviderAdapters, p)
}

// AddEvent appends an event to the audit log.
func (r *Room) AddEvent(e RoomEvent) error {
	if e.RoomID != r.ID {
		return fmt.Errorf("event belongs to room %s, not %s", e.RoomID, r.ID)
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	r.Events = append(r.Events, e)
	return nil
}

// Participant looks up a participant by id.
func (r *Room) Participant(id string) (Participant, bool) {
	for _, p := range r.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Artifact looks up an artifact by id.
func (r *Room) Artifact(id string) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.ID == id {
			return a, true
		}
	}
	return Artifact{}, false
}

// Lane returns a pointer to the lane with the given id so its state and task
// list can be updated in place. Only call on a room you own.
func (r *Room) Lane(id string) (*TaskLane, bool) {
	for i := range r.TaskLanes {
		if r.TaskLanes[i].ID == id {
			return &r.TaskLanes[i], true
		}
	}
	return nil, false
}

// ProviderAdapter looks up an adapter by its (case-insensitive name, mode) identity.
func (r *Room) ProviderAdapter(name string, mode AccessMode) (ProviderAdapter, bool) {
	for _, p := range r.ProviderAdapters {
		if p.AccessMode == mode && strings.EqualFold(p.ProviderName, name) {
			return p, true
		}
	}
	return ProviderAdapter{}, false
}

// FirstWithRole returns the first participant holding the role.
func (r *Room) FirstWithRole(role ParticipantRole) (Participant, bool) {
	for _, p := range r.Participants {
		if p.Role == role {
			return p, true
		}
	}
	return Participant{}, false
}

// MaxVersion returns the highest version among artifacts of the type, 0 if none.
func (r *Room) MaxVersion(t ArtifactType) int {
	highest := 0
	for _, a := range r.Artifacts {
		if a.Type == t && a.Version > highest {
			highest = a.Version
		}
	}
	return highest
}

// Summarize counts the room's children.
func (r *Room) Summarize() Summary {
	s := Summary{
		RoomID:             r.ID,
		RoomName:           r.Name,
		Paused:             r.Paused,
		ParticipantsByRole: make(map[ParticipantRole]int),
		ParticipantsByType: make(map[ParticipantType]int),
		ArtifactsByType:    make(map[ArtifactType]int),
		TaskLanesByState:   make(map[LaneState]int),
		MessageCount:       len(r.Messages),
		Driver:             r.Driver.Snapshot(),
	}
	for _, p := range r.Participants {
		s.ParticipantsByRole[p.Role]++
		s.ParticipantsByType[p.Type]++
	}
	for _, a := range r.Artifacts {
		s.ArtifactsByType[a.Type]++
	}
	for _, l := range r.TaskLanes {
		s.TaskLanesByState[l.State]++
	}
	return s
}

// Clone returns a deep copy of the room safe for independent mutation.
func (r *Room) Clone() *Room {
	clone := *r
	clone.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		p.Capabilities = cloneStrings(p.Capabilities)
		clone.Participants[i] = p
	}
	clone.Artifacts = append(make([]Artifact, 0, len(r.Artifacts)), r.Artifacts...)
	clone.Messages = append(make([]ChatMessage, 0, len(r.Messages)), r.Messages...)
	clone.TaskLanes = make([]TaskLane, len(r.TaskLanes))
	for i, l := range r.TaskLanes {
		l.TaskArtifactIDs = cloneStrings(l.TaskArtifactIDs)
		clone.TaskLanes[i] = l
	}
	clone.ProviderAdapters = make([]ProviderAdapter, len(r.ProviderAdapters))
	for i, p := range r.ProviderAdapters {
		p.Capabilities = cloneStrings(p.Capabilities)
		clone.ProviderAdapters[i] = p
	}
	clone.Events = append(make([]RoomEvent, 0, len(r.Events)), r.Events...)
	return &clone
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
