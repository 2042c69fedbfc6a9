package room

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ParticipantType distinguishes humans from AI participants.
type ParticipantType string

const (
	ParticipantTypeHuman ParticipantType = "HUMAN"
	ParticipantTypeAI    ParticipantType = "AI"
)

// Validate checks if the ParticipantType is a valid enum value.
func (pt ParticipantType) Validate() error {
	switch pt {
	case ParticipantTypeHuman, ParticipantTypeAI:
		return nil
	default:
		return fmt.Errorf("unknown participant type: %q", pt)
	}
}

// ParticipantRole determines what a participant may do in a room.
// Only implementors may own task lanes.
type ParticipantRole string

const (
	RoleObserver    ParticipantRole = "OBSERVER"
	RolePlanner     ParticipantRole = "PLANNER"
	RoleReviewer    ParticipantRole = "REVIEWER"
	RoleImplementor ParticipantRole = "IMPLEMENTOR"
)

// Validate checks if the ParticipantRole is a valid enum value.
func (r ParticipantRole) Validate() error {
	switch r {
	case RoleObserver, RolePlanner, RoleReviewer, RoleImplementor:
		return nil
	default:
		return fmt.Errorf("unknown participant role: %q", r)
	}
}

// ArtifactType is the kind of work product an artifact carries.
// Versions are numbered independently per type within a room.
type ArtifactType string

const (
	ArtifactPlan   ArtifactType = "PLAN"
	ArtifactPatch  ArtifactType = "PATCH"
	ArtifactReview ArtifactType = "REVIEW"
	ArtifactNote   ArtifactType = "NOTE"
	ArtifactTask   ArtifactType = "TASK"
)

// ArtifactTypes lists every artifact type in display order.
var ArtifactTypes = []ArtifactType{ArtifactPlan, ArtifactPatch, ArtifactReview, ArtifactNote, ArtifactTask}

// Validate checks if the ArtifactType is a valid enum value.
func (t ArtifactType) Validate() error {
	switch t {
	case ArtifactPlan, ArtifactPatch, ArtifactReview, ArtifactNote, ArtifactTask:
		return nil
	default:
		return fmt.Errorf("unknown artifact type: %q", t)
	}
}

// LaneState is the lifecycle state of a task lane. Any state may follow any
// other; only ACTIVE lanes accept new tasks.
type LaneState string

const (
	LaneActive    LaneState = "ACTIVE"
	LaneBlocked   LaneState = "BLOCKED"
	LaneCompleted LaneState = "COMPLETED"
)

// LaneStates lists every lane state in display order.
var LaneStates = []LaneState{LaneActive, LaneBlocked, LaneCompleted}

// Validate checks if the LaneState is a valid enum value.
func (s LaneState) Validate() error {
	switch s {
	case LaneActive, LaneBlocked, LaneCompleted:
		return nil
	default:
		return fmt.Errorf("unknown task lane state: %q", s)
	}
}

// AccessMode is how a provider is reached.
type AccessMode string

const (
	AccessWebUI AccessMode = "WEB_UI"
	AccessAPI   AccessMode = "API"
)

// Validate checks if the AccessMode is a valid enum value.
func (m AccessMode) Validate() error {
	switch m {
	case AccessWebUI, AccessAPI:
		return nil
	default:
		return fmt.Errorf("unknown access mode: %q", m)
	}
}

// EventType classifies a RoomEvent.
type EventType string

const (
	EventRoomCreated        EventType = "ROOM_CREATED"
	EventParticipantJoined  EventType = "PARTICIPANT_JOINED"
	EventProviderRegistered EventType = "PROVIDER_REGISTERED"
	EventArtifactCreated    EventType = "ARTIFACT_CREATED"
	EventTaskUpdated        EventType = "TASK_UPDATED"
	EventMessagePosted      EventType = "MESSAGE_POSTED"
	EventStateChanged       EventType = "STATE_CHANGED"
)

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventRoomCreated, EventParticipantJoined, EventProviderRegistered,
		EventArtifactCreated, EventTaskUpdated, EventMessagePosted, EventStateChanged:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Participant is a human or AI member of a room. Immutable once added.
type Participant struct {
	ID           string          `json:"id"`
	DisplayName  string          `json:"display_name"`
	Type         ParticipantType `json:"type"`
	Role         ParticipantRole `json:"role"`
	Provider     string          `json:"provider,omitempty"` // Provider backing this participant, e.g. "Claude"
	Capabilities []string        `json:"capabilities"`
}

// Validate checks if the Participant has valid field values.
func (p *Participant) Validate() error {
	if !isValidUUID(p.ID) {
		return fmt.Errorf("invalid participant ID: not a valid UUID")
	}
	if p.DisplayName == "" {
		return fmt.Errorf("participant display name cannot be empty")
	}
	if err := p.Type.Validate(); err != nil {
		return fmt.Errorf("invalid participant type: %w", err)
	}
	if err := p.Role.Validate(); err != nil {
		return fmt.Errorf("invalid participant role: %w", err)
	}
	return nil
}

// Artifact is an immutable, versioned work product.
type Artifact struct {
	ID               string       `json:"id"`
	Type             ArtifactType `json:"type"`
	Title            string       `json:"title"`
	Content          string       `json:"content"`
	Version          int          `json:"version"` // Per (room, type), starts at 1
	CreatedAt        time.Time    `json:"created_at"`
	ParentArtifactID string       `json:"parent_artifact_id,omitempty"` // Empty when the artifact has no provenance link
}

// HasParent reports whether the artifact links to a parent.
func (a *Artifact) HasParent() bool {
	return a.ParentArtifactID != ""
}

// Validate checks if the Artifact has valid field values.
func (a *Artifact) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid artifact ID: not a valid UUID")
	}
	if err := a.Type.Validate(); err != nil {
		return fmt.Errorf("invalid artifact type: %w", err)
	}
	if a.Version < 1 {
		return fmt.Errorf("invalid version: must be >= 1, got %d", a.Version)
	}
	if a.Title == "" {
		return fmt.Errorf("artifact title cannot be empty")
	}
	if a.HasParent() && !isValidUUID(a.ParentArtifactID) {
		return fmt.Errorf("invalid parent artifact ID: not a valid UUID")
	}
	return nil
}

// ChatMessage is a message posted by a participant.
type ChatMessage struct {
	ID              string    `json:"id"`
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

// TaskLane is a named queue of TASK artifacts owned by an implementor.
// Name and owner never change; state and task list do.
type TaskLane struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ImplementorID   string    `json:"implementor_id"`
	State           LaneState `json:"state"`
	TaskArtifactIDs []string  `json:"task_artifact_ids"`
}

// Validate checks if the TaskLane has valid field values.
func (l *TaskLane) Validate() error {
	if !isValidUUID(l.ID) {
		return fmt.Errorf("invalid task lane ID: not a valid UUID")
	}
	if l.Name == "" {
		return fmt.Errorf("task lane name cannot be empty")
	}
	if !isValidUUID(l.ImplementorID) {
		return fmt.Errorf("invalid implementor ID: not a valid UUID")
	}
	if err := l.State.Validate(); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}
	for i, taskID := range l.TaskArtifactIDs {
		if !isValidUUID(taskID) {
			return fmt.Errorf("invalid task artifact at index %d: not a valid UUID", i)
		}
	}
	return nil
}

// ProviderAdapter is a registered external AI/tool provider identity.
type ProviderAdapter struct {
	ID           string     `json:"id"`
	ProviderName string     `json:"provider_name"`
	AccessMode   AccessMode `json:"access_mode"`
	Capabilities []string   `json:"capabilities"`
	Endpoint     string     `json:"endpoint,omitempty"`
	Available    bool       `json:"available"`
}

// RoomEvent is one entry of a room's append-only audit log.
// The optional references identify what the event is about.
type RoomEvent struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	Type          EventType `json:"type"`
	Description   string    `json:"description"`
	OccurredAt    time.Time `json:"occurred_at"`
	ParticipantID string    `json:"participant_id,omitempty"`
	ArtifactID    string    `json:"artifact_id,omitempty"`
	TaskLaneID    string    `json:"task_lane_id,omitempty"`
}

// Validate checks if the RoomEvent has valid field values.
func (e *RoomEvent) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid event ID: not a valid UUID")
	}
	if !isValidUUID(e.RoomID) {
		return fmt.Errorf("invalid room ID: not a valid UUID")
	}
	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	return nil
}

// Summary aggregates counts over a room for dashboards.
type Summary struct {
	RoomID             string                  `json:"room_id"`
	RoomName           string                  `json:"room_name"`
	Paused             bool                    `json:"paused"`
	ParticipantsByRole map[ParticipantRole]int `json:"participants_by_role"`
	ParticipantsByType map[ParticipantType]int `json:"participants_by_type"`
	ArtifactsByType    map[ArtifactType]int    `json:"artifacts_by_type"`
	TaskLanesByState   map[LaneState]int       `json:"task_lanes_by_state"`
	MessageCount       int                     `json:"message_count"`
	Driver             DriverSnapshot          `json:"driver_status"`
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.New().String()
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
