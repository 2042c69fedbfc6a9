package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dyluth/huddle/internal/catalog"
	"github.com/dyluth/huddle/internal/store"
	"github.com/dyluth/huddle/pkg/room"
	"gopkg.in/yaml.v3"
)

// DefaultInstance namespaces event bus channels when no instance is configured.
const DefaultInstance = "default"

// MaxInstanceNameLength is the maximum length for an instance name (DNS-compatible)
const MaxInstanceNameLength = 63

// InstanceNamePattern is the regex pattern for valid instance names.
// Lowercase alphanumeric, hyphens allowed (but not at start/end).
var InstanceNamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// HuddleConfig represents the top-level huddle.yml configuration
type HuddleConfig struct {
	Version   string           `yaml:"version"`
	Instance  string           `yaml:"instance,omitempty"`
	Room      *RoomConfig      `yaml:"room,omitempty"`
	Driver    *DriverConfig    `yaml:"driver,omitempty"`
	Providers []ProviderConfig `yaml:"providers,omitempty"` // Replaces the built-in catalog when set
	Events    *EventsConfig    `yaml:"events,omitempty"`
}

// RoomConfig controls how rooms are created
type RoomConfig struct {
	DefaultName string `yaml:"default_name,omitempty"`
	Profile     string `yaml:"profile,omitempty"` // "full" or "observer"
	MultiRoom   bool   `yaml:"multi_room,omitempty"`
}

// DriverConfig sets the driver circuit breaker budget of new rooms
type DriverConfig struct {
	MaxRetries *int `yaml:"max_retries,omitempty"` // Consecutive failures before the room pauses (default = 3)
}

// ProviderConfig is one entry of the provider catalog
type ProviderConfig struct {
	Name         string   `yaml:"name"`
	AccessMode   string   `yaml:"access_mode,omitempty"` // WEB_UI or API, default WEB_UI
	Capabilities []string `yaml:"capabilities,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	Available    *bool    `yaml:"available,omitempty"` // Default true
}

// EventsConfig enables the Redis event bus
type EventsConfig struct {
	RedisURL  string `yaml:"redis_url,omitempty"`
	QueueSize int    `yaml:"queue_size,omitempty"`
}

// Default returns a validated configuration with every default applied.
func Default() *HuddleConfig {
	c := &HuddleConfig{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return c
}

// Validate performs strict validation on the configuration and fills in
// defaults for omitted sections.
func (c *HuddleConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if err := ValidateInstanceName(c.Instance); err != nil {
		return err
	}

	if c.Room == nil {
		c.Room = &RoomConfig{}
	}
	c.Room.DefaultName = strings.TrimSpace(c.Room.DefaultName)
	if c.Room.DefaultName == "" {
		c.Room.DefaultName = store.DefaultRoomName
	}
	if c.Room.Profile == "" {
		c.Room.Profile = string(store.ProfileFull)
	}
	if err := store.Profile(c.Room.Profile).Validate(); err != nil {
		return fmt.Errorf("room.profile: invalid profile: %s (must be 'full' or 'observer')", c.Room.Profile)
	}

	if c.Driver == nil {
		c.Driver = &DriverConfig{}
	}
	if c.Driver.MaxRetries == nil {
		defaultRetries := room.DefaultMaxRetries
		c.Driver.MaxRetries = &defaultRetries
	}
	if *c.Driver.MaxRetries < 1 {
		return fmt.Errorf("driver.max_retries must be >= 1, got %d", *c.Driver.MaxRetries)
	}

	seen := make(map[catalog.Identity]bool)
	for i := range c.Providers {
		if err := c.Providers[i].Validate(i); err != nil {
			return err
		}
		id := c.Providers[i].identity()
		if seen[id] {
			return fmt.Errorf("providers[%d]: duplicate provider '%s' (%s)", i, c.Providers[i].Name, c.Providers[i].AccessMode)
		}
		seen[id] = true
	}

	if c.Events == nil {
		c.Events = &EventsConfig{}
	}
	if c.Events.QueueSize < 0 {
		return fmt.Errorf("events.queue_size must be >= 0, got %d", c.Events.QueueSize)
	}

	return nil
}

// Validate checks one provider entry and normalizes its name and mode.
func (p *ProviderConfig) Validate(index int) error {
	id, err := catalog.ParseIdentity(p.Name, room.AccessMode(p.AccessMode))
	if err != nil {
		return fmt.Errorf("providers[%d]: %w", index, err)
	}
	p.Name = id.ProviderName
	p.AccessMode = string(id.AccessMode)
	if p.Available == nil {
		available := true
		p.Available = &available
	}
	return nil
}

// identity is the case-insensitive dedup key of a validated entry.
func (p *ProviderConfig) identity() catalog.Identity {
	return catalog.Identity{ProviderName: strings.ToLower(p.Name), AccessMode: room.AccessMode(p.AccessMode)}
}

// ValidateInstanceName checks if an instance name is valid according to DNS naming rules.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxInstanceNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxInstanceNameLength)
	}

	if !InstanceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// CatalogEntries returns the configured providers, or the built-in
// catalog when none are configured. Call after Validate.
func (c *HuddleConfig) CatalogEntries() []catalog.Entry {
	if len(c.Providers) == 0 {
		return catalog.Defaults()
	}
	entries := make([]catalog.Entry, 0, len(c.Providers))
	for _, p := range c.Providers {
		entries = append(entries, catalog.Entry{
			ProviderName: p.Name,
			AccessMode:   room.AccessMode(p.AccessMode),
			Capabilities: append([]string{}, p.Capabilities...),
			Endpoint:     p.Endpoint,
			Available:    p.Available == nil || *p.Available,
		})
	}
	return entries
}

// StoreOptions translates the configuration into room store options.
// Call after Validate.
func (c *HuddleConfig) StoreOptions() []store.Option {
	return []store.Option{
		store.WithInstance(c.Instance),
		store.WithDefaultName(c.Room.DefaultName),
		store.WithProfile(store.Profile(c.Room.Profile)),
		store.WithMultiRoom(c.Room.MultiRoom),
		store.WithMaxRetries(*c.Driver.MaxRetries),
	}
}

// EventBusEnabled reports whether a Redis URL is configured.
func (c *HuddleConfig) EventBusEnabled() bool {
	return c.Events != nil && c.Events.RedisURL != ""
}

// Load reads and validates huddle.yml from the specified path
func Load(path string) (*HuddleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config HuddleConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
