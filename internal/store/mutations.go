package store

import (
	"fmt"
	"strings"

	"github.com/dyluth/huddle/internal/catalog"
	"github.com/dyluth/huddle/internal/events"
	"github.com/dyluth/huddle/internal/lanes"
	"github.com/dyluth/huddle/internal/provenance"
	"github.com/dyluth/huddle/pkg/room"
)

// AddParticipant adds a participant to the room and returns the updated room.
// An empty participant id is generated. A non-blank provider that the room
// does not know yet is registered as an available WEB_UI provider.
func (s *Store) AddParticipant(roomID string, p room.Participant) (*room.Room, error) {
	var adopted []room.ProviderAdapter
	rm, err := withRoomLock(s, roomID, func(r *room.Room) (*room.Room, error) {
		if err := r.EnsureActive(); err != nil {
			return nil, err
		}

		if p.ID == "" {
			p.ID = room.NewID()
		}
		p.DisplayName = strings.TrimSpace(p.DisplayName)
		p.Provider = strings.TrimSpace(p.Provider)
		if p.DisplayName == "" {
			return nil, room.Validationf("participant display name must not be blank")
		}
		if err := p.Validate(); err != nil {
			return nil, room.Validationf("%v", err)
		}
		if _, exists := r.Participant(p.ID); exists {
			return nil, room.Validationf("participant already in room: %s", p.ID)
		}

		if p.Provider != "" {
			adapter, created, err := s.registerProvider(r, catalog.Registration{
				Name:         p.Provider,
				AccessMode:   room.AccessWebUI,
				Capabilities: p.Capabilities,
				Available:    true,
			})
			if err != nil {
				return nil, err
			}
			if created {
				adopted = append(adopted, adapter)
			}
		}

		if err := r.AddParticipant(p); err != nil {
			return nil, err
		}
		if _, err := s.recorder.Record(r, room.EventParticipantJoined, "Participant joined: "+p.DisplayName, events.Refs{ParticipantID: p.ID}); err != nil {
			return nil, err
		}
		return r.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	s.adopt(adopted)
	return rm, nil
}

// RegisterProvider adds a provider adapter to the room. Registering an
// identity the room already has returns the existing adapter.
func (s *Store) RegisterProvider(roomID string, reg catalog.Registration) (room.ProviderAdapter, error) {
	var created bool
	adapter, err := withRoomLock(s, roomID, func(r *room.Room) (room.ProviderAdapter, error) {
		if err := r.EnsureActive(); err != nil {
			return room.ProviderAdapter{}, err
		}
		a, isNew, err := s.registerProvider(r, reg)
		created = isNew
		return a, err
	})
	if err != nil {
		return room.ProviderAdapter{}, err
	}
	if created {
		s.adopt([]room.ProviderAdapter{adapter})
	}
	return adapter, nil
}

// registerProvider records an event only when a new adapter is created.
// The catalog is left alone; see adopt.
func (s *Store) registerProvider(r *room.Room, reg catalog.Registration) (room.ProviderAdapter, bool, error) {
	adapter, created, err := s.catalog.Register(r, reg)
	if err != nil {
		return room.ProviderAdapter{}, false, err
	}
	if created {
		desc := fmt.Sprintf("Provider registered: %s (%s)", adapter.ProviderName, adapter.AccessMode)
		if _, err := s.recorder.Record(r, room.EventProviderRegistered, desc, events.Refs{}); err != nil {
			return room.ProviderAdapter{}, false, err
		}
	}
	return adapter, created, nil
}

// adopt adds newly created adapters to the process-wide catalog. Called
// only after the room change is committed, so a rejected mutation never
// grows the catalog.
func (s *Store) adopt(adapters []room.ProviderAdapter) {
	for _, a := range adapters {
		if s.catalog.Adopt(a) {
			s.logger.Printf("[RoomStore] Catalog gained provider %s (%s)", a.ProviderName, a.AccessMode)
		}
	}
}

// AddArtifact validates the proposal against the room's provenance rules
// and appends the resulting artifact.
func (s *Store) AddArtifact(roomID string, p provenance.Proposal) (room.Artifact, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (room.Artifact, error) {
		if err := r.EnsureActive(); err != nil {
			return room.Artifact{}, err
		}

		artifact, err := provenance.Validate(r, p, s.now())
		if err != nil {
			return room.Artifact{}, err
		}
		if err := r.AddArtifact(artifact); err != nil {
			return room.Artifact{}, err
		}
		if _, err := s.recorder.Record(r, room.EventArtifactCreated, "Artifact created: "+artifact.Title, events.Refs{ArtifactID: artifact.ID}); err != nil {
			return room.Artifact{}, err
		}
		return artifact, nil
	})
}

// CreateTaskLane adds an ACTIVE lane owned by an implementor.
func (s *Store) CreateTaskLane(roomID, name, implementorID string) (room.TaskLane, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (room.TaskLane, error) {
		if err := r.EnsureActive(); err != nil {
			return room.TaskLane{}, err
		}

		lane, err := lanes.CreateLane(r, name, implementorID)
		if err != nil {
			return room.TaskLane{}, err
		}
		refs := events.Refs{ParticipantID: implementorID, TaskLaneID: lane.ID}
		if _, err := s.recorder.Record(r, room.EventTaskUpdated, "Task lane created: "+lane.Name, refs); err != nil {
			return room.TaskLane{}, err
		}
		return lane, nil
	})
}

// AssignTaskToLane appends a TASK artifact to an ACTIVE lane.
func (s *Store) AssignTaskToLane(roomID, laneID, taskArtifactID string) (room.TaskLane, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (room.TaskLane, error) {
		if err := r.EnsureActive(); err != nil {
			return room.TaskLane{}, err
		}

		lane, task, err := lanes.AssignTask(r, laneID, taskArtifactID)
		if err != nil {
			return room.TaskLane{}, err
		}
		refs := events.Refs{ArtifactID: task.ID, TaskLaneID: lane.ID}
		if _, err := s.recorder.Record(r, room.EventTaskUpdated, "Task assigned to lane: "+task.Title, refs); err != nil {
			return room.TaskLane{}, err
		}
		return lane, nil
	})
}

// UpdateTaskLaneState sets a lane's state.
func (s *Store) UpdateTaskLaneState(roomID, laneID string, state room.LaneState) (room.TaskLane, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (room.TaskLane, error) {
		if err := r.EnsureActive(); err != nil {
			return room.TaskLane{}, err
		}

		lane, err := lanes.UpdateState(r, laneID, state)
		if err != nil {
			return room.TaskLane{}, err
		}
		if _, err := s.recorder.Record(r, room.EventTaskUpdated, fmt.Sprintf("Lane state updated to %s", lane.State), events.Refs{TaskLaneID: lane.ID}); err != nil {
			return room.TaskLane{}, err
		}
		return lane, nil
	})
}

// AddMessage posts a chat message on behalf of a participant of the room.
func (s *Store) AddMessage(roomID, participantID, content string) (room.ChatMessage, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (room.ChatMessage, error) {
		if err := r.EnsureActive(); err != nil {
			return room.ChatMessage{}, err
		}

		author, ok := r.Participant(participantID)
		if !ok {
			return room.ChatMessage{}, room.Validationf("participant not found in room: %s", participantID)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return room.ChatMessage{}, room.Validationf("message content must not be blank")
		}

		msg := room.ChatMessage{
			ID:              room.NewID(),
			ParticipantID:   author.ID,
			ParticipantName: author.DisplayName,
			Content:         content,
			CreatedAt:       s.now(),
		}
		r.AddMessage(msg)
		if _, err := s.recorder.Record(r, room.EventMessagePosted, "Message posted by "+author.DisplayName, events.Refs{ParticipantID: author.ID}); err != nil {
			return room.ChatMessage{}, err
		}
		return msg, nil
	})
}

// PauseRoom pauses the room and forces its driver into PAUSED.
func (s *Store) PauseRoom(roomID string) (*room.Room, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (*room.Room, error) {
		r.Pause()
		if _, err := s.recorder.Record(r, room.EventStateChanged, "Room paused", events.Refs{}); err != nil {
			return nil, err
		}
		s.logger.Printf("[RoomStore] Room %s paused", r.ID)
		s.logEvent("room_paused", map[string]interface{}{
			"room_id": r.ID,
			"reason":  "manual",
		})
		return r.Clone(), nil
	})
}

// ResumeRoom unpauses the room and resets its driver to HEALTHY.
func (s *Store) ResumeRoom(roomID string) (*room.Room, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (*room.Room, error) {
		r.Resume()
		if _, err := s.recorder.Record(r, room.EventStateChanged, "Room resumed", events.Refs{}); err != nil {
			return nil, err
		}
		s.logger.Printf("[RoomStore] Room %s resumed", r.ID)
		return r.Clone(), nil
	})
}

// RecordDriverFailure counts an externally reported driver failure. Once
// the failure budget is exhausted the room is paused.
func (s *Store) RecordDriverFailure(roomID, reason string) (*room.Room, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (*room.Room, error) {
		tripped := r.Driver.RecordFailure(reason, s.now())
		if r.Driver.State() == room.DriverPaused {
			r.Paused = true
		}

		desc := "Driver failure recorded: " + r.Driver.LastFailureReason()
		if _, err := s.recorder.Record(r, room.EventStateChanged, desc, events.Refs{}); err != nil {
			return nil, err
		}

		s.logEvent("driver_failure", map[string]interface{}{
			"room_id":              r.ID,
			"reason":               r.Driver.LastFailureReason(),
			"consecutive_failures": r.Driver.ConsecutiveFailures(),
			"max_retries":          r.Driver.MaxRetries(),
			"state":                string(r.Driver.State()),
		})
		if tripped {
			s.logger.Printf("[RoomStore] Driver for room %s failed %d times, pausing room", r.ID, r.Driver.ConsecutiveFailures())
			s.logEvent("driver_tripped", map[string]interface{}{
				"room_id":              r.ID,
				"consecutive_failures": r.Driver.ConsecutiveFailures(),
			})
		}
		return r.Clone(), nil
	})
}

// RecordDriverRecovery resets the driver to HEALTHY and resumes the room.
func (s *Store) RecordDriverRecovery(roomID string) (*room.Room, error) {
	return withRoomLock(s, roomID, func(r *room.Room) (*room.Room, error) {
		r.Resume()
		if _, err := s.recorder.Record(r, room.EventStateChanged, "Driver recovered", events.Refs{}); err != nil {
			return nil, err
		}
		s.logEvent("driver_recovered", map[string]interface{}{
			"room_id": r.ID,
		})
		return r.Clone(), nil
	})
}
