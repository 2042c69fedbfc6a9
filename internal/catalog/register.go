package catalog

import "github.com/dyluth/huddle/pkg/room"

// Registration describes a provider a room wants to use.
type Registration struct {
	Name         string
	AccessMode   room.AccessMode
	Capabilities []string
	Endpoint     string
	Available    bool
}

// Register adds the provider to the room unless the room already has an
// adapter with the same identity, in which case that adapter is returned
// unchanged. The second return value is true when a new adapter was created.
// The room must be owned by the caller (held under its lock).
//
// Register never touches the catalog itself: the caller passes a created
// adapter to Adopt once the room change has been committed.
func (c *Catalog) Register(r *room.Room, reg Registration) (room.ProviderAdapter, bool, error) {
	id, err := ParseIdentity(reg.Name, reg.AccessMode)
	if err != nil {
		return room.ProviderAdapter{}, false, err
	}
	if existing, ok := r.ProviderAdapter(id.ProviderName, id.AccessMode); ok {
		return existing, false, nil
	}

	adapter := room.ProviderAdapter{
		ID:           room.NewID(),
		ProviderName: id.ProviderName,
		AccessMode:   id.AccessMode,
		Capabilities: append([]string{}, reg.Capabilities...),
		Endpoint:     reg.Endpoint,
		Available:    reg.Available,
	}
	r.AddProviderAdapter(adapter)
	return adapter, true, nil
}

// Adopt appends the adapter's provider to the catalog unless its identity
// is already present. Returns true if the catalog grew.
func (c *Catalog) Adopt(a room.ProviderAdapter) bool {
	return c.AddIfAbsent(Entry{
		ProviderName: a.ProviderName,
		AccessMode:   a.AccessMode,
		Capabilities: a.Capabilities,
		Endpoint:     a.Endpoint,
		Available:    a.Available,
	})
}
