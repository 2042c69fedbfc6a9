// Package store owns every room of the process.
//
// Each mutation runs under its room's mutex against a private working copy
// of the room. The copy is committed only if the action succeeds, so a
// rejected command leaves the room exactly as it was. Readers load the
// committed copy without taking the room lock and always see a consistent
// point-in-time view.
//
// No operation holds two room locks at once.
package store

import (
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/huddle/internal/catalog"
	"github.com/dyluth/huddle/internal/events"
	"github.com/dyluth/huddle/internal/filter"
	"github.com/dyluth/huddle/pkg/room"
)

// DefaultRoomName is used when CreateRoom is given a blank name.
const DefaultRoomName = "Local Collaboration Room"

// Profile selects which participants a new room is seeded with.
type Profile string

const (
	// ProfileFull seeds a human observer plus AI planner, reviewer and implementor.
	ProfileFull Profile = "full"
	// ProfileObserver seeds only the human observer, so no default lane is created.
	ProfileObserver Profile = "observer"
)

// Validate checks if the Profile is a valid enum value.
func (p Profile) Validate() error {
	switch p {
	case ProfileFull, ProfileObserver:
		return nil
	default:
		return room.Validationf("unknown room profile: %q", p)
	}
}

// Publisher receives events after the room change that produced them is
// committed. Implementations must not block.
type Publisher interface {
	Publish(ev room.RoomEvent)
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*atomic.Pointer[room.Room]

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// createMu serializes the single-room check-and-create.
	createMu sync.Mutex

	catalog     *catalog.Catalog
	recorder    *events.Recorder
	now         func() time.Time
	logger      *log.Logger
	publisher   Publisher
	profile     Profile
	multiRoom   bool
	maxRetries  int
	defaultName string
	instance    string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger for operational lines and structured events.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPublisher forwards committed events, typically to the event bus.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithProfile selects the seeding profile for new rooms.
func WithProfile(p Profile) Option {
	return func(s *Store) { s.profile = p }
}

// WithMultiRoom disables the single-room policy.
func WithMultiRoom(enabled bool) Option {
	return func(s *Store) { s.multiRoom = enabled }
}

// WithMaxRetries sets the driver failure budget of new rooms.
func WithMaxRetries(n int) Option {
	return func(s *Store) { s.maxRetries = n }
}

// WithDefaultName sets the name used when CreateRoom gets a blank name.
func WithDefaultName(name string) Option {
	return func(s *Store) { s.defaultName = name }
}

// WithInstance labels structured log events with the instance name.
func WithInstance(name string) Option {
	return func(s *Store) { s.instance = name }
}

// New creates an empty store seeded from the catalog.
// A nil catalog uses the built-in provider defaults.
func New(c *catalog.Catalog, opts ...Option) *Store {
	if c == nil {
		c = catalog.New(catalog.Defaults())
	}
	s := &Store{
		rooms:       make(map[string]*atomic.Pointer[room.Room]),
		locks:       make(map[string]*sync.Mutex),
		catalog:     c,
		now:         time.Now,
		logger:      log.Default(),
		profile:     ProfileFull,
		maxRetries:  room.DefaultMaxRetries,
		defaultName: DefaultRoomName,
		instance:    "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.recorder = events.NewRecorder(s.now)
	return s
}

// Catalog returns the provider catalog backing the store.
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

// CreateRoom builds and registers a seeded room.
//
// Unless multi-room is enabled, only the first call creates a room; later
// calls return the earliest-created room and ignore name.
func (s *Store) CreateRoom(name string) (*room.Room, error) {
	if !s.multiRoom {
		s.createMu.Lock()
		defer s.createMu.Unlock()
		if existing := s.earliest(); existing != nil {
			return existing.Clone(), nil
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = s.defaultName
	}

	now := s.now()
	r := room.New(room.NewID(), name, now, s.maxRetries)
	s.catalog.CloneInto(r)
	if err := s.seed(r, now); err != nil {
		return nil, err
	}
	if _, err := s.recorder.Record(r, room.EventRoomCreated, "Room created: "+r.Name, events.Refs{}); err != nil {
		return nil, err
	}

	ptr := &atomic.Pointer[room.Room]{}
	ptr.Store(r)

	s.mu.Lock()
	s.rooms[r.ID] = ptr
	s.mu.Unlock()
	s.lockFor(r.ID)

	s.logger.Printf("[RoomStore] Created room %s (%q) with %d participants", r.ID, r.Name, len(r.Participants))
	s.logEvent("room_created", map[string]interface{}{
		"room_id":   r.ID,
		"room_name": r.Name,
		"profile":   string(s.profile),
	})
	s.publish(r.Events)
	return r.Clone(), nil
}

type seedParticipant struct {
	name         string
	kind         room.ParticipantType
	role         room.ParticipantRole
	provider     string
	capabilities []string
}

func (s *Store) seedParticipants() []seedParticipant {
	seeds := []seedParticipant{
		{"You", room.ParticipantTypeHuman, room.RoleObserver, "local", []string{"dialog"}},
	}
	if s.profile == ProfileObserver {
		return seeds
	}
	return append(seeds,
		seedParticipant{"Planner", room.ParticipantTypeAI, room.RolePlanner, "ChatGPT", []string{"planning", "dialog"}},
		seedParticipant{"Reviewer", room.ParticipantTypeAI, room.RoleReviewer, "Claude", []string{"review", "dialog"}},
		seedParticipant{"Implementor", room.ParticipantTypeAI, room.RoleImplementor, "Claude Code", []string{"implementation", "patch", "dialog"}},
	)
}

// seed adds the default participants, starter artifacts and primary lane.
// Seeding records no events of its own.
func (s *Store) seed(r *room.Room, now time.Time) error {
	for _, sp := range s.seedParticipants() {
		p := room.Participant{
			ID:           room.NewID(),
			DisplayName:  sp.name,
			Type:         sp.kind,
			Role:         sp.role,
			Provider:     sp.provider,
			Capabilities: sp.capabilities,
		}
		if err := r.AddParticipant(p); err != nil {
			return err
		}
	}

	plan := room.Artifact{
		ID:        room.NewID(),
		Type:      room.ArtifactPlan,
		Title:     "Starter Plan",
		Content:   "1) Clarify the request.\n2) Outline a structured plan.\n3) Deliver the plan artifact for review.",
		Version:   1,
		CreatedAt: now,
	}
	if err := r.AddArtifact(plan); err != nil {
		return err
	}
	patch := room.Artifact{
		ID:               room.NewID(),
		Type:             room.ArtifactPatch,
		Title:            "Patch Draft 1",
		Content:          "Initial patch stub aligned to the starter plan.",
		Version:          1,
		CreatedAt:        now,
		ParentArtifactID: plan.ID,
	}
	if err := r.AddArtifact(patch); err != nil {
		return err
	}

	implementor, ok := r.FirstWithRole(room.RoleImplementor)
	if !ok {
		return nil
	}
	return r.AddTaskLane(room.TaskLane{
		ID:              room.NewID(),
		Name:            "Primary Lane",
		ImplementorID:   implementor.ID,
		State:           room.LaneActive,
		TaskArtifactIDs: []string{},
	})
}

// earliest returns the committed snapshot of the earliest-created room, or nil.
func (s *Store) earliest() *room.Room {
	var first *room.Room
	for _, r := range s.snapshots() {
		if first == nil || r.CreatedAt.Before(first.CreatedAt) {
			first = r
		}
	}
	return first
}

// lockFor returns the room's mutex, creating it on first use.
func (s *Store) lockFor(roomID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[roomID] = l
	}
	return l
}

func (s *Store) pointer(roomID string) (*atomic.Pointer[room.Room], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ptr, ok := s.rooms[roomID]
	if !ok {
		return nil, room.NotFoundf("room not found: %s", roomID)
	}
	return ptr, nil
}

// withRoomLock runs action against a working copy of the room while
// holding the room's lock. The copy is committed only when action
// succeeds; the events it recorded are then handed to the publisher.
func withRoomLock[T any](s *Store, roomID string, action func(r *room.Room) (T, error)) (T, error) {
	var zero T

	// Unknown ids must not leave a lock behind.
	ptr, err := s.pointer(roomID)
	if err != nil {
		return zero, err
	}

	lock := s.lockFor(roomID)
	lock.Lock()
	defer lock.Unlock()

	working := ptr.Load().Clone()
	before := len(working.Events)
	result, err := action(working)
	if err != nil {
		return zero, err
	}

	ptr.Store(working)
	s.publish(events.Since(working, before))
	return result, nil
}

func (s *Store) publish(evs []room.RoomEvent) {
	if s.publisher == nil {
		return
	}
	for _, ev := range evs {
		s.publisher.Publish(ev)
	}
}

func (s *Store) snapshots() []*room.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*room.Room, 0, len(s.rooms))
	for _, ptr := range s.rooms {
		out = append(out, ptr.Load())
	}
	return out
}

// FindAll returns a snapshot of every room ordered by creation time.
func (s *Store) FindAll() []*room.Room {
	rooms := s.snapshots()
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	for i, r := range rooms {
		rooms[i] = r.Clone()
	}
	return rooms
}

// GetRoom returns a snapshot of the room.
func (s *Store) GetRoom(roomID string) (*room.Room, error) {
	ptr, err := s.pointer(roomID)
	if err != nil {
		return nil, err
	}
	return ptr.Load().Clone(), nil
}

// SummarizeRoom returns the room's counts and driver status.
func (s *Store) SummarizeRoom(roomID string) (room.Summary, error) {
	ptr, err := s.pointer(roomID)
	if err != nil {
		return room.Summary{}, err
	}
	return ptr.Load().Summarize(), nil
}

// Events returns the room's events that match the criteria, oldest first.
func (s *Store) Events(roomID string, criteria filter.Criteria) ([]room.RoomEvent, error) {
	ptr, err := s.pointer(roomID)
	if err != nil {
		return nil, err
	}
	return criteria.Apply(ptr.Load().Events), nil
}

// logEvent logs a structured event in JSON format.
func (s *Store) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = s.now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "room_store"
	data["event_type"] = eventType
	data["instance"] = s.instance

	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("[RoomStore] Failed to marshal log event: %v", err)
		return
	}

	s.logger.Println(string(jsonData))
}
