// Package catalog keeps the process-wide registry of known provider
// identities. New rooms are seeded from it, and it grows whenever a room
// registers a provider it has not seen before.
package catalog

import (
	"strings"
	"sync"

	"github.com/dyluth/huddle/pkg/room"
)

// Identity is the deduplication key of a provider: its trimmed name and
// access mode. Names compare case-insensitively.
type Identity struct {
	ProviderName string
	AccessMode   room.AccessMode
}

// ParseIdentity trims the name and defaults an empty access mode to WEB_UI.
// A blank name or unknown access mode is a validation error.
func ParseIdentity(name string, mode room.AccessMode) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, room.Validationf("providerName is required")
	}
	if mode == "" {
		mode = room.AccessWebUI
	}
	if err := mode.Validate(); err != nil {
		return Identity{}, room.Validationf("%v", err)
	}
	return Identity{ProviderName: name, AccessMode: mode}, nil
}

// Entry is a catalog record. Catalog entries carry no id; each room gets
// its own adapter ids when the catalog is cloned into it.
type Entry struct {
	ProviderName string          `yaml:"name" json:"provider_name"`
	AccessMode   room.AccessMode `yaml:"access_mode" json:"access_mode"`
	Capabilities []string        `yaml:"capabilities" json:"capabilities"`
	Endpoint     string          `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Available    bool            `yaml:"available" json:"available"`
}

// Catalog is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries []Entry
}

// Defaults returns the built-in provider catalog.
func Defaults() []Entry {
	return []Entry{
		{ProviderName: "ChatGPT", AccessMode: room.AccessWebUI, Capabilities: []string{"dialog", "planning"}, Available: true},
		{ProviderName: "Claude", AccessMode: room.AccessWebUI, Capabilities: []string{"dialog", "review"}, Available: true},
		{ProviderName: "Claude Code", AccessMode: room.AccessWebUI, Capabilities: []string{"implementation", "patch"}, Available: true},
		{ProviderName: "Gemini", AccessMode: room.AccessWebUI, Capabilities: []string{"dialog", "planning", "review"}, Available: true},
		{ProviderName: "Local API", AccessMode: room.AccessAPI, Capabilities: []string{"dialog", "implementation", "patch"}, Endpoint: "http://localhost:11434/api", Available: true},
	}
}

// New builds a catalog from seed entries, dropping duplicates and entries
// with an invalid identity.
func New(seed []Entry) *Catalog {
	c := &Catalog{}
	for _, e := range seed {
		id, err := ParseIdentity(e.ProviderName, e.AccessMode)
		if err != nil {
			continue
		}
		e.ProviderName = id.ProviderName
		e.AccessMode = id.AccessMode
		c.AddIfAbsent(e)
	}
	return c
}

// Snapshot returns a copy of all entries in registration order.
func (c *Catalog) Snapshot() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		e.Capabilities = append([]string(nil), e.Capabilities...)
		out[i] = e
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Contains reports whether an entry with the identity exists.
func (c *Catalog) Contains(id Identity) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexLocked(id) >= 0
}

// AddIfAbsent appends the entry unless its identity is already present.
// Returns true if the entry was added.
func (c *Catalog) AddIfAbsent(e Entry) bool {
	id := Identity{ProviderName: e.ProviderName, AccessMode: e.AccessMode}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLocked(id) >= 0 {
		return false
	}
	e.Capabilities = append([]string{}, e.Capabilities...)
	c.entries = append(c.entries, e)
	return true
}

// CloneInto gives the room a fresh adapter for every catalog entry.
func (c *Catalog) CloneInto(r *room.Room) {
	for _, e := range c.Snapshot() {
		r.AddProviderAdapter(room.ProviderAdapter{
			ID:           room.NewID(),
			ProviderName: e.ProviderName,
			AccessMode:   e.AccessMode,
			Capabilities: e.Capabilities,
			Endpoint:     e.Endpoint,
			Available:    e.Available,
		})
	}
}

// indexLocked finds the entry position; caller must hold the lock.
func (c *Catalog) indexLocked(id Identity) int {
	for i, e := range c.entries {
		if e.AccessMode == id.AccessMode && strings.EqualFold(e.ProviderName, id.ProviderName) {
			return i
		}
	}
	return -1
}
