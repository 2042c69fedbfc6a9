// Package resolver turns human-friendly references used in scenario files
// into room entity ids.
//
// A reference is tried, in order, as:
//  1. an alias bound by an earlier step
//  2. a full UUID, returned as-is so the store decides whether it exists
//  3. an exact, case-insensitive display name or title
//  4. a unique id prefix of at least MinShortIDLength characters
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/huddle/pkg/room"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Set to 6 characters to balance usability with collision avoidance.
const MinShortIDLength = 6

// Candidate is an entity a reference may name.
type Candidate struct {
	ID   string
	Name string
}

// Resolver holds the alias bindings of one scenario run.
// It is not safe for concurrent use.
type Resolver struct {
	aliases map[string]string
}

// New returns a resolver with no aliases.
func New() *Resolver {
	return &Resolver{aliases: make(map[string]string)}
}

// Bind associates alias with id. Rebinding an alias is an error.
func (r *Resolver) Bind(alias, id string) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return fmt.Errorf("alias cannot be empty")
	}
	if existing, ok := r.aliases[alias]; ok && existing != id {
		return fmt.Errorf("alias '%s' is already bound to %s", alias, existing)
	}
	r.aliases[alias] = id
	return nil
}

// Lookup returns the id bound to alias.
func (r *Resolver) Lookup(alias string) (string, bool) {
	id, ok := r.aliases[alias]
	return id, ok
}

// Resolve resolves ref against the candidates. kind names the entity type
// in error messages, e.g. "participant".
func (r *Resolver) Resolve(kind, ref string, candidates []Candidate) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%s reference cannot be empty", kind)
	}

	if id, ok := r.Lookup(ref); ok {
		return id, nil
	}

	if isFullUUID(ref) {
		return ref, nil
	}

	var byName []string
	for _, c := range candidates {
		if strings.EqualFold(c.Name, ref) {
			byName = append(byName, c.ID)
		}
	}
	switch len(byName) {
	case 0:
	case 1:
		return byName[0], nil
	default:
		return "", &AmbiguousError{Kind: kind, Ref: ref, Matches: byName}
	}

	if len(ref) < MinShortIDLength {
		return "", &NotFoundError{Kind: kind, Ref: ref}
	}

	var byPrefix []string
	for _, c := range candidates {
		if strings.HasPrefix(c.ID, ref) {
			byPrefix = append(byPrefix, c.ID)
		}
	}
	switch len(byPrefix) {
	case 0:
		return "", &NotFoundError{Kind: kind, Ref: ref}
	case 1:
		return byPrefix[0], nil
	default:
		return "", &AmbiguousError{Kind: kind, Ref: ref, Matches: byPrefix}
	}
}

func isFullUUID(s string) bool {
	if len(s) != 36 || strings.Count(s, "-") != 4 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// Participants lists the room's participants by display name.
func Participants(r *room.Room) []Candidate {
	out := make([]Candidate, 0, len(r.Participants))
	for _, p := range r.Participants {
		out = append(out, Candidate{ID: p.ID, Name: p.DisplayName})
	}
	return out
}

// Artifacts lists the room's artifacts by title.
func Artifacts(r *room.Room) []Candidate {
	out := make([]Candidate, 0, len(r.Artifacts))
	for _, a := range r.Artifacts {
		out = append(out, Candidate{ID: a.ID, Name: a.Title})
	}
	return out
}

// Lanes lists the room's task lanes by name.
func Lanes(r *room.Room) []Candidate {
	out := make([]Candidate, 0, len(r.TaskLanes))
	for _, l := range r.TaskLanes {
		out = append(out, Candidate{ID: l.ID, Name: l.Name})
	}
	return out
}

// NotFoundError indicates nothing matched the reference.
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching '%s'", e.Kind, e.Ref)
}

// AmbiguousError indicates several entities matched the reference.
type AmbiguousError struct {
	Kind    string
	Ref     string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous %s reference '%s' matches %d entries", e.Kind, e.Ref, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous references.
// Lists all matching ids (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous %s reference '%s' matches %d entries:\n", err.Kind, err.Ref, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse an alias or a longer id prefix to pick one."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
