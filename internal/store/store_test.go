package store

import (
	"bytes"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/huddle/internal/catalog"
	"github.com/dyluth/huddle/internal/filter"
	"github.com/dyluth/huddle/internal/provenance"
	"github.com/dyluth/huddle/pkg/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances one second on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type capturePublisher struct {
	mu     sync.Mutex
	events []room.RoomEvent
}

func (p *capturePublisher) Publish(ev room.RoomEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) published() []room.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]room.RoomEvent(nil), p.events...)
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	clock := &stepClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	base := []Option{WithClock(clock.Now), WithLogger(log.New(io.Discard, "", 0))}
	return New(catalog.New(catalog.Defaults()), append(base, opts...)...)
}

func newTestRoom(t *testing.T, opts ...Option) (*Store, *room.Room) {
	t.Helper()
	s := newTestStore(t, opts...)
	r, err := s.CreateRoom("Test Room")
	require.NoError(t, err)
	return s, r
}

func artifactByTitle(t *testing.T, r *room.Room, title string) room.Artifact {
	t.Helper()
	for _, a := range r.Artifacts {
		if a.Title == title {
			return a
		}
	}
	t.Fatalf("artifact %q not found", title)
	return room.Artifact{}
}

func TestCreateRoom(t *testing.T) {
	t.Run("seeds the full profile", func(t *testing.T) {
		_, r := newTestRoom(t)

		assert.Equal(t, "Test Room", r.Name)
		assert.False(t, r.Paused)
		assert.Equal(t, room.DriverHealthy, r.Driver.State())
		assert.Equal(t, 3, r.Driver.MaxRetries())

		require.Len(t, r.Participants, 4)
		names := []string{}
		for _, p := range r.Participants {
			names = append(names, p.DisplayName)
		}
		assert.Equal(t, []string{"You", "Planner", "Reviewer", "Implementor"}, names)
		assert.Equal(t, room.ParticipantTypeHuman, r.Participants[0].Type)
		assert.Equal(t, room.RoleObserver, r.Participants[0].Role)
		assert.Equal(t, "Claude Code", r.Participants[3].Provider)

		require.Len(t, r.Artifacts, 2)
		plan := artifactByTitle(t, r, "Starter Plan")
		patch := artifactByTitle(t, r, "Patch Draft 1")
		assert.Equal(t, room.ArtifactPlan, plan.Type)
		assert.Equal(t, 1, plan.Version)
		assert.Equal(t, room.ArtifactPatch, patch.Type)
		assert.Equal(t, plan.ID, patch.ParentArtifactID)

		require.Len(t, r.TaskLanes, 1)
		assert.Equal(t, "Primary Lane", r.TaskLanes[0].Name)
		assert.Equal(t, room.LaneActive, r.TaskLanes[0].State)
		assert.Equal(t, r.Participants[3].ID, r.TaskLanes[0].ImplementorID)
		assert.Empty(t, r.TaskLanes[0].TaskArtifactIDs)

		assert.Len(t, r.ProviderAdapters, len(catalog.Defaults()))

		require.Len(t, r.Events, 1)
		assert.Equal(t, room.EventRoomCreated, r.Events[0].Type)
	})

	t.Run("observer profile skips AI participants and the lane", func(t *testing.T) {
		_, r := newTestRoom(t, WithProfile(ProfileObserver))

		require.Len(t, r.Participants, 1)
		assert.Equal(t, "You", r.Participants[0].DisplayName)
		assert.Len(t, r.Artifacts, 2)
		assert.Empty(t, r.TaskLanes)
	})

	t.Run("blank name uses the default", func(t *testing.T) {
		s := newTestStore(t)
		r, err := s.CreateRoom("   ")
		require.NoError(t, err)
		assert.Equal(t, DefaultRoomName, r.Name)

		s = newTestStore(t, WithDefaultName("Planning Room"))
		r, err = s.CreateRoom("")
		require.NoError(t, err)
		assert.Equal(t, "Planning Room", r.Name)
	})

	t.Run("single-room policy returns the earliest room", func(t *testing.T) {
		s, first := newTestRoom(t)

		again, err := s.CreateRoom("Another Room")
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, "Test Room", again.Name)
		assert.Len(t, s.FindAll(), 1)
	})

	t.Run("multi-room creates every time", func(t *testing.T) {
		s, first := newTestRoom(t, WithMultiRoom(true))

		second, err := s.CreateRoom("Second")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)

		all := s.FindAll()
		require.Len(t, all, 2)
		assert.Equal(t, first.ID, all[0].ID)
		assert.Equal(t, second.ID, all[1].ID)
	})

	t.Run("max retries option", func(t *testing.T) {
		_, r := newTestRoom(t, WithMaxRetries(5))
		assert.Equal(t, 5, r.Driver.MaxRetries())
	})

	t.Run("concurrent first creation yields one room", func(t *testing.T) {
		s := newTestStore(t)

		const n = 20
		ids := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := s.CreateRoom("Race")
				if err == nil {
					ids[i] = r.ID
				}
			}(i)
		}
		wg.Wait()

		require.Len(t, s.FindAll(), 1)
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
	})
}

func TestReads(t *testing.T) {
	s, r := newTestRoom(t)

	t.Run("unknown room is not found", func(t *testing.T) {
		_, err := s.GetRoom(room.NewID())
		assert.True(t, room.IsNotFound(err))

		_, err = s.SummarizeRoom(room.NewID())
		assert.True(t, room.IsNotFound(err))

		_, err = s.Events(room.NewID(), filter.Criteria{})
		assert.True(t, room.IsNotFound(err))

		_, err = s.PauseRoom(room.NewID())
		assert.True(t, room.IsNotFound(err))
	})

	t.Run("snapshots are isolated from the store", func(t *testing.T) {
		got, err := s.GetRoom(r.ID)
		require.NoError(t, err)
		got.Participants[0].DisplayName = "Mallory"
		got.Artifacts = nil
		got.TaskLanes[0].TaskArtifactIDs = append(got.TaskLanes[0].TaskArtifactIDs, "x")

		fresh, err := s.GetRoom(r.ID)
		require.NoError(t, err)
		assert.Equal(t, "You", fresh.Participants[0].DisplayName)
		assert.Len(t, fresh.Artifacts, 2)
		assert.Empty(t, fresh.TaskLanes[0].TaskArtifactIDs)
	})

	t.Run("summary counts", func(t *testing.T) {
		sum, err := s.SummarizeRoom(r.ID)
		require.NoError(t, err)

		assert.Equal(t, r.ID, sum.RoomID)
		assert.Equal(t, "Test Room", sum.RoomName)
		assert.Equal(t, 1, sum.ParticipantsByRole[room.RoleObserver])
		assert.Equal(t, 1, sum.ParticipantsByRole[room.RoleImplementor])
		assert.Equal(t, 1, sum.ParticipantsByType[room.ParticipantTypeHuman])
		assert.Equal(t, 3, sum.ParticipantsByType[room.ParticipantTypeAI])
		assert.Equal(t, 1, sum.ArtifactsByType[room.ArtifactPlan])
		assert.Equal(t, 1, sum.ArtifactsByType[room.ArtifactPatch])
		assert.Equal(t, 1, sum.TaskLanesByState[room.LaneActive])
		assert.Equal(t, 0, sum.MessageCount)
		assert.Equal(t, room.DriverHealthy, sum.Driver.State)
		assert.False(t, sum.Paused)
	})
}

func TestAddParticipant(t *testing.T) {
	t.Run("adds and records an event", func(t *testing.T) {
		s, r := newTestRoom(t)

		updated, err := s.AddParticipant(r.ID, room.Participant{
			DisplayName: "  Gemini Builder ",
			Type:        room.ParticipantTypeAI,
			Role:        room.RoleImplementor,
			Provider:    "Gemini",
		})
		require.NoError(t, err)
		require.Len(t, updated.Participants, 5)

		added := updated.Participants[4]
		assert.Equal(t, "Gemini Builder", added.DisplayName)
		assert.NotEmpty(t, added.ID)

		last := updated.Events[len(updated.Events)-1]
		assert.Equal(t, room.EventParticipantJoined, last.Type)
		assert.Equal(t, added.ID, last.ParticipantID)
		// Gemini is already in the room, so no provider event.
		assert.Len(t, updated.ProviderAdapters, len(catalog.Defaults()))
	})

	t.Run("registers an unknown provider implicitly", func(t *testing.T) {
		s, r := newTestRoom(t, WithMultiRoom(true))

		updated, err := s.AddParticipant(r.ID, room.Participant{
			DisplayName:  "Mixer",
			Type:         room.ParticipantTypeAI,
			Role:         room.RolePlanner,
			Provider:     "Mistral",
			Capabilities: []string{"planning"},
		})
		require.NoError(t, err)

		adapter, ok := updated.ProviderAdapter("mistral", room.AccessWebUI)
		require.True(t, ok)
		assert.True(t, adapter.Available)
		assert.Equal(t, []string{"planning"}, adapter.Capabilities)
		assert.True(t, s.Catalog().Contains(catalog.Identity{ProviderName: "Mistral", AccessMode: room.AccessWebUI}))

		types := []room.EventType{}
		for _, ev := range updated.Events {
			types = append(types, ev.Type)
		}
		assert.Equal(t, []room.EventType{room.EventRoomCreated, room.EventProviderRegistered, room.EventParticipantJoined}, types)

		// The catalog now seeds later rooms.
		next, err := s.CreateRoom("Next")
		require.NoError(t, err)
		_, ok = next.ProviderAdapter("Mistral", room.AccessWebUI)
		assert.True(t, ok)
	})

	t.Run("rejects invalid participants", func(t *testing.T) {
		s, r := newTestRoom(t)

		tests := []struct {
			name string
			p    room.Participant
		}{
			{"blank name", room.Participant{DisplayName: " ", Type: room.ParticipantTypeHuman, Role: room.RoleObserver}},
			{"bad role", room.Participant{DisplayName: "X", Type: room.ParticipantTypeHuman, Role: "BOSS"}},
			{"bad type", room.Participant{DisplayName: "X", Type: "ROBOT", Role: room.RoleObserver}},
			{"duplicate id", room.Participant{ID: r.Participants[0].ID, DisplayName: "X", Type: room.ParticipantTypeHuman, Role: room.RoleObserver}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.AddParticipant(r.ID, tt.p)
				assert.True(t, room.IsValidation(err), "got %v", err)
			})
		}

		fresh, err := s.GetRoom(r.ID)
		require.NoError(t, err)
		assert.Len(t, fresh.Participants, 4)
		assert.Len(t, fresh.Events, 1)
	})
}

func TestRegisterProvider(t *testing.T) {
	s, r := newTestRoom(t)

	t.Run("is idempotent per identity", func(t *testing.T) {
		reg := catalog.Registration{Name: "Ollama", AccessMode: room.AccessAPI, Endpoint: "http://localhost:11434", Available: true}
		first, err := s.RegisterProvider(r.ID, reg)
		require.NoError(t, err)

		reg.Name = "  OLLAMA "
		second, err := s.RegisterProvider(r.ID, reg)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		fresh, err := s.GetRoom(r.ID)
		require.NoError(t, err)
		count := 0
		for _, ev := range fresh.Events {
			if ev.Type == room.EventProviderRegistered {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("same name with another mode is distinct", func(t *testing.T) {
		web, err := s.RegisterProvider(r.ID, catalog.Registration{Name: "Claude"})
		require.NoError(t, err)
		api, err := s.RegisterProvider(r.ID, catalog.Registration{Name: "Claude", AccessMode: room.AccessAPI})
		require.NoError(t, err)
		assert.NotEqual(t, web.ID, api.ID)
		assert.Equal(t, room.AccessWebUI, web.AccessMode)
	})

	t.Run("validates identity", func(t *testing.T) {
		_, err := s.RegisterProvider(r.ID, catalog.Registration{Name: "  "})
		assert.True(t, room.IsValidation(err))

		_, err = s.RegisterProvider(r.ID, catalog.Registration{Name: "X", AccessMode: "FAX"})
		assert.True(t, room.IsValidation(err))
	})
}

func TestAddArtifact(t *testing.T) {
	t.Run("versions are per type", func(t *testing.T) {
		s, r := newTestRoom(t)
		plan := artifactByTitle(t, r, "Starter Plan")

		for _, tt := range []struct {
			p    provenance.Proposal
			want int
		}{
			{provenance.Proposal{Type: room.ArtifactNote, Title: "N1", Content: "c"}, 1},
			{provenance.Proposal{Type: room.ArtifactTask, Title: "T1", Content: "c"}, 1},
			{provenance.Proposal{Type: room.ArtifactNote, Title: "N2", Content: "c"}, 2},
			{provenance.Proposal{Type: room.ArtifactPlan, Title: "Revised Plan", Content: "c", ParentArtifactID: plan.ID}, 2},
			{provenance.Proposal{Type: room.ArtifactTask, Title: "T2", Content: "c"}, 2},
		} {
			a, err := s.AddArtifact(r.ID, tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.Version, tt.p.Title)
		}
	})

	t.Run("review requires a plan or patch parent", func(t *testing.T) {
		s, r := newTestRoom(t)
		plan := artifactByTitle(t, r, "Starter Plan")
		patch := artifactByTitle(t, r, "Patch Draft 1")

		_, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactReview, Title: "Review", Content: "Needs more detail"})
		assert.True(t, room.IsValidation(err))

		for _, parent := range []string{plan.ID, patch.ID} {
			a, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactReview, Title: "Plan Review", Content: "Solid outline", ParentArtifactID: parent})
			require.NoError(t, err)
			assert.Equal(t, parent, a.ParentArtifactID)
		}
	})

	t.Run("patch parents", func(t *testing.T) {
		s, r := newTestRoom(t)
		plan := artifactByTitle(t, r, "Starter Plan")

		task, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactTask, Title: "Task", Content: "do it"})
		require.NoError(t, err)
		review, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactReview, Title: "Review", Content: "ok", ParentArtifactID: plan.ID})
		require.NoError(t, err)

		_, err = s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactPatch, Title: "Patch", Content: "diff", ParentArtifactID: task.ID})
		assert.NoError(t, err)

		_, err = s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactPatch, Title: "Patch", Content: "diff", ParentArtifactID: review.ID})
		assert.True(t, room.IsValidation(err))
	})

	t.Run("unknown parent is not found", func(t *testing.T) {
		s, r := newTestRoom(t)
		_, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactNote, Title: "N", Content: "c", ParentArtifactID: room.NewID()})
		assert.True(t, room.IsNotFound(err))
	})

	t.Run("failure leaves the room unchanged", func(t *testing.T) {
		pub := &capturePublisher{}
		s, r := newTestRoom(t, WithPublisher(pub))
		before, err := s.GetRoom(r.ID)
		require.NoError(t, err)

		_, err = s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactReview, Title: "Review", Content: "c"})
		require.Error(t, err)

		after, err := s.GetRoom(r.ID)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Len(t, pub.published(), 1) // ROOM_CREATED only
	})

	t.Run("concurrent additions get distinct versions", func(t *testing.T) {
		s, r := newTestRoom(t)

		const n = 50
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactNote, Title: "Note", Content: "c"})
				assert.NoError(t, err)
			}()
			go func() {
				defer wg.Done()
				snap, err := s.GetRoom(r.ID)
				if assert.NoError(t, err) {
					// Two seeded artifacts, then one event per note.
					assert.Equal(t, len(snap.Artifacts), len(snap.Events)+1)
				}
			}()
		}
		wg.Wait()

		final, err := s.GetRoom(r.ID)
		require.NoError(t, err)
		seen := map[int]bool{}
		for _, a := range final.Artifacts {
			if a.Type == room.ArtifactNote {
				assert.False(t, seen[a.Version], "duplicate version %d", a.Version)
				seen[a.Version] = true
			}
		}
		assert.Len(t, seen, n)
		for v := 1; v <= n; v++ {
			assert.True(t, seen[v], "missing version %d", v)
		}
	})
}

func TestTaskLanes(t *testing.T) {
	t.Run("scenario: second lane with a task", func(t *testing.T) {
		s, r := newTestRoom(t)
		plan := artifactByTitle(t, r, "Starter Plan")

		updated, err := s.AddParticipant(r.ID, room.Participant{
			DisplayName: "Gemini Builder",
			Type:        room.ParticipantTypeAI,
			Role:        room.RoleImplementor,
			Provider:    "Gemini",
		})
		require.NoError(t, err)
		builder := updated.Participants[len(updated.Participants)-1]

		lane, err := s.CreateTaskLane(r.ID, "Lane Two", builder.ID)
		require.NoError(t, err)
		assert.Equal(t, room.LaneActive, lane.State)

		task, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactTask, Title: "Task Beta", Content: "Build it", ParentArtifactID: plan.ID})
		require.NoError(t, err)

		assigned, err := s.AssignTaskToLane(r.ID, lane.ID, task.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{task.ID}, assigned.TaskArtifactIDs)

		sum, err := s.SummarizeRoom(r.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.TaskLanesByState[room.LaneActive])
	})

	t.Run("lane owner must be an implementor", func(t *testing.T) {
		s, r := newTestRoom(t)
		_, err := s.CreateTaskLane(r.ID, "Lane", r.Participants[1].ID) // Planner
		assert.True(t, room.IsValidation(err))

		_, err = s.CreateTaskLane(r.ID, "Lane", room.NewID())
		assert.True(t, room.IsValidation(err))
	})

	t.Run("assignment requires an active lane", func(t *testing.T) {
		s, r := newTestRoom(t)
		laneID := r.TaskLanes[0].ID
		task, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactTask, Title: "Task", Content: "c"})
		require.NoError(t, err)

		for _, state := range []room.LaneState{room.LaneBlocked, room.LaneCompleted} {
			lane, err := s.UpdateTaskLaneState(r.ID, laneID, state)
			require.NoError(t, err)
			assert.Equal(t, state, lane.State)

			_, err = s.AssignTaskToLane(r.ID, laneID, task.ID)
			assert.True(t, room.IsConflict(err), "state %s", state)
		}

		_, err = s.UpdateTaskLaneState(r.ID, laneID, room.LaneActive)
		require.NoError(t, err)
		lane, err := s.AssignTaskToLane(r.ID, laneID, task.ID)
		require.NoError(t, err)
		assert.Len(t, lane.TaskArtifactIDs, 1)

		// Duplicate assignment appends again.
		lane, err = s.AssignTaskToLane(r.ID, laneID, task.ID)
		require.NoError(t, err)
		assert.Len(t, lane.TaskArtifactIDs, 2)
	})

	t.Run("assignment errors", func(t *testing.T) {
		s, r := newTestRoom(t)
		laneID := r.TaskLanes[0].ID
		plan := artifactByTitle(t, r, "Starter Plan")
		task, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactTask, Title: "Task", Content: "c"})
		require.NoError(t, err)

		_, err = s.AssignTaskToLane(r.ID, laneID, plan.ID)
		assert.True(t, room.IsValidation(err))
		_, err = s.AssignTaskToLane(r.ID, laneID, room.NewID())
		assert.True(t, room.IsValidation(err))
		_, err = s.AssignTaskToLane(r.ID, room.NewID(), task.ID)
		assert.True(t, room.IsNotFound(err))
	})

	t.Run("state update errors", func(t *testing.T) {
		s, r := newTestRoom(t)
		_, err := s.UpdateTaskLaneState(r.ID, r.TaskLanes[0].ID, "")
		assert.True(t, room.IsValidation(err))
		_, err = s.UpdateTaskLaneState(r.ID, r.TaskLanes[0].ID, "PARKED")
		assert.True(t, room.IsValidation(err))
		_, err = s.UpdateTaskLaneState(r.ID, room.NewID(), room.LaneBlocked)
		assert.True(t, room.IsNotFound(err))
	})
}

func TestAddMessage(t *testing.T) {
	s, r := newTestRoom(t)
	you := r.Participants[0]

	msg, err := s.AddMessage(r.ID, you.ID, "  hello team  ")
	require.NoError(t, err)
	assert.Equal(t, "hello team", msg.Content)
	assert.Equal(t, "You", msg.ParticipantName)

	_, err = s.AddMessage(r.ID, you.ID, "   ")
	assert.True(t, room.IsValidation(err))
	_, err = s.AddMessage(r.ID, room.NewID(), "hi")
	assert.True(t, room.IsValidation(err))

	sum, err := s.SummarizeRoom(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.MessageCount)

	evs, err := s.Events(r.ID, filter.Criteria{TypeGlob: "MESSAGE_*"})
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Message posted by You", evs[0].Description)
	assert.Equal(t, you.ID, evs[0].ParticipantID)
}

func TestPause(t *testing.T) {
	s, r := newTestRoom(t)
	task, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactTask, Title: "Task", Content: "c"})
	require.NoError(t, err)

	paused, err := s.PauseRoom(r.ID)
	require.NoError(t, err)
	assert.True(t, paused.Paused)
	assert.Equal(t, room.DriverPaused, paused.Driver.State())
	assert.Equal(t, 0, paused.Driver.ConsecutiveFailures())

	laneID := r.TaskLanes[0].ID
	you := r.Participants[0].ID
	mutations := map[string]func() error{
		"add participant": func() error {
			_, err := s.AddParticipant(r.ID, room.Participant{DisplayName: "X", Type: room.ParticipantTypeHuman, Role: room.RoleObserver})
			return err
		},
		"register provider": func() error {
			_, err := s.RegisterProvider(r.ID, catalog.Registration{Name: "Mistral"})
			return err
		},
		"add artifact": func() error {
			_, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactNote, Title: "N", Content: "c"})
			return err
		},
		"create lane": func() error {
			_, err := s.CreateTaskLane(r.ID, "Lane", r.Participants[3].ID)
			return err
		},
		"assign task": func() error {
			_, err := s.AssignTaskToLane(r.ID, laneID, task.ID)
			return err
		},
		"update lane": func() error {
			_, err := s.UpdateTaskLaneState(r.ID, laneID, room.LaneBlocked)
			return err
		},
		"add message": func() error {
			_, err := s.AddMessage(r.ID, you, "hi")
			return err
		},
	}
	for name, mutate := range mutations {
		t.Run(name+" is rejected", func(t *testing.T) {
			assert.True(t, room.IsConflict(mutate()))
		})
	}

	t.Run("exempt operations still succeed", func(t *testing.T) {
		_, err := s.PauseRoom(r.ID)
		assert.NoError(t, err)
		_, err = s.RecordDriverFailure(r.ID, "timeout")
		assert.NoError(t, err)
		_, err = s.RecordDriverRecovery(r.ID)
		assert.NoError(t, err)
		_, err = s.PauseRoom(r.ID)
		assert.NoError(t, err)
	})

	t.Run("resume restores mutation", func(t *testing.T) {
		resumed, err := s.ResumeRoom(r.ID)
		require.NoError(t, err)
		assert.False(t, resumed.Paused)
		assert.Equal(t, room.DriverHealthy, resumed.Driver.State())

		_, err = s.AddMessage(r.ID, you, "back")
		assert.NoError(t, err)
	})
}

func TestDriverFailures(t *testing.T) {
	t.Run("three failures pause the room", func(t *testing.T) {
		var logs bytes.Buffer
		s, r := newTestRoom(t, WithLogger(log.New(&logs, "", 0)))

		for i := 1; i <= 2; i++ {
			got, err := s.RecordDriverFailure(r.ID, " timeout ")
			require.NoError(t, err)
			assert.Equal(t, room.DriverRetrying, got.Driver.State())
			assert.Equal(t, i, got.Driver.ConsecutiveFailures())
			assert.False(t, got.Paused)
		}

		got, err := s.RecordDriverFailure(r.ID, "timeout")
		require.NoError(t, err)
		assert.Equal(t, room.DriverPaused, got.Driver.State())
		assert.True(t, got.Paused)
		assert.Equal(t, "timeout", got.Driver.LastFailureReason())
		assert.False(t, got.Driver.LastFailureAt().IsZero())

		_, err = s.AddMessage(r.ID, r.Participants[0].ID, "hi")
		assert.True(t, room.IsConflict(err))

		assert.Contains(t, logs.String(), `"event_type":"driver_tripped"`)
		assert.Contains(t, logs.String(), `"component":"room_store"`)
	})

	t.Run("recovery resets and resumes", func(t *testing.T) {
		s, r := newTestRoom(t)
		for i := 0; i < 4; i++ {
			_, err := s.RecordDriverFailure(r.ID, "boom")
			require.NoError(t, err)
		}

		got, err := s.RecordDriverRecovery(r.ID)
		require.NoError(t, err)
		assert.Equal(t, room.DriverHealthy, got.Driver.State())
		assert.Equal(t, 0, got.Driver.ConsecutiveFailures())
		assert.Empty(t, got.Driver.LastFailureReason())
		assert.True(t, got.Driver.LastFailureAt().IsZero())
		assert.False(t, got.Paused)

		last := got.Events[len(got.Events)-1]
		assert.Equal(t, room.EventStateChanged, last.Type)
		assert.Equal(t, "Driver recovered", last.Description)
	})

	t.Run("budget comes from the store", func(t *testing.T) {
		s, r := newTestRoom(t, WithMaxRetries(1))
		got, err := s.RecordDriverFailure(r.ID, "fatal")
		require.NoError(t, err)
		assert.True(t, got.Paused)
	})
}

func TestPublisher(t *testing.T) {
	pub := &capturePublisher{}
	s, r := newTestRoom(t, WithPublisher(pub))

	_, err := s.PauseRoom(r.ID)
	require.NoError(t, err)
	_, err = s.AddMessage(r.ID, r.Participants[0].ID, "rejected while paused")
	require.Error(t, err)
	_, err = s.ResumeRoom(r.ID)
	require.NoError(t, err)

	got := pub.published()
	require.Len(t, got, 3)
	assert.Equal(t, room.EventRoomCreated, got[0].Type)
	assert.Equal(t, "Room paused", got[1].Description)
	assert.Equal(t, "Room resumed", got[2].Description)

	final, err := s.GetRoom(r.ID)
	require.NoError(t, err)
	assert.Equal(t, final.Events, got)
}

func TestEvents(t *testing.T) {
	s, r := newTestRoom(t)
	task, err := s.AddArtifact(r.ID, provenance.Proposal{Type: room.ArtifactTask, Title: "Task", Content: "c"})
	require.NoError(t, err)
	_, err = s.AssignTaskToLane(r.ID, r.TaskLanes[0].ID, task.ID)
	require.NoError(t, err)

	all, err := s.Events(r.ID, filter.Criteria{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tasks, err := s.Events(r.ID, filter.Criteria{TypeGlob: "TASK_*"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Task assigned to lane: Task", tasks[0].Description)
	assert.Equal(t, task.ID, tasks[0].ArtifactID)
	assert.Equal(t, r.TaskLanes[0].ID, tasks[0].TaskLaneID)

	later, err := s.Events(r.ID, filter.Criteria{Since: all[1].OccurredAt})
	require.NoError(t, err)
	assert.Len(t, later, 2)
}

func TestRoomsAreIndependent(t *testing.T) {
	s, a := newTestRoom(t, WithMultiRoom(true))
	b, err := s.CreateRoom("B")
	require.NoError(t, err)

	_, err = s.PauseRoom(a.ID)
	require.NoError(t, err)

	_, err = s.AddMessage(b.ID, b.Participants[0].ID, "still open")
	assert.NoError(t, err)

	_, err = s.AddMessage(b.ID, a.Participants[0].ID, "wrong room")
	assert.True(t, room.IsValidation(err))

	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := s.RecordDriverFailure(id, "flaky")
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{a.ID, b.ID} {
		got, err := s.GetRoom(id)
		require.NoError(t, err)
		assert.Equal(t, 10, got.Driver.ConsecutiveFailures())
	}
}

func TestCatalogGrowsOnlyOnCommit(t *testing.T) {
	s, r := newTestRoom(t)
	before := s.Catalog().Len()
	ollama := catalog.Identity{ProviderName: "Ollama", AccessMode: room.AccessAPI}
	reg := catalog.Registration{Name: "Ollama", AccessMode: room.AccessAPI, Endpoint: "http://localhost:11434", Available: true}

	_, err := s.PauseRoom(r.ID)
	require.NoError(t, err)

	_, err = s.RegisterProvider(r.ID, reg)
	assert.True(t, room.IsConflict(err))
	_, err = s.AddParticipant(r.ID, room.Participant{DisplayName: "Mixer", Type: room.ParticipantTypeAI, Role: room.RolePlanner, Provider: "Mistral"})
	assert.True(t, room.IsConflict(err))
	assert.Equal(t, before, s.Catalog().Len(), "rejected mutations leave the catalog alone")

	_, err = s.ResumeRoom(r.ID)
	require.NoError(t, err)

	_, err = s.RegisterProvider(r.ID, reg)
	require.NoError(t, err)
	assert.True(t, s.Catalog().Contains(ollama))
	assert.Equal(t, before+1, s.Catalog().Len())

	// Re-registering the identity the room already has adds nothing.
	_, err = s.RegisterProvider(r.ID, reg)
	require.NoError(t, err)
	assert.Equal(t, before+1, s.Catalog().Len())
}

func TestUnknownRoomLeavesNoLock(t *testing.T) {
	s, r := newTestRoom(t)

	for i := 0; i < 20; i++ {
		_, err := s.AddMessage(room.NewID(), r.Participants[0].ID, "hello")
		require.True(t, room.IsNotFound(err))
		_, err = s.PauseRoom(room.NewID())
		require.True(t, room.IsNotFound(err))
	}

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	assert.Len(t, s.locks, 1)
	_, ok := s.locks[r.ID]
	assert.True(t, ok)
}
