// Package provenance decides whether a proposed artifact is well formed and
// computes its version. It is a pure rule table over a room snapshot and
// never mutates the room.
package provenance

import (
	"strings"
	"time"

	"github.com/dyluth/huddle/pkg/room"
)

// Rule describes the parent requirement of one artifact type.
// A nil Allowed set means any parent type is accepted.
type Rule struct {
	ParentRequired bool
	Allowed        map[room.ArtifactType]bool
	// Message is used for both a missing and an incompatible parent.
	Message string
}

// Rules is the parent compatibility table keyed by the new artifact's type.
// NOTE and TASK have no entry: a parent is optional and unconstrained.
var Rules = map[room.ArtifactType]Rule{
	room.ArtifactReview: {
		ParentRequired: true,
		Allowed:        set(room.ArtifactPlan, room.ArtifactPatch),
		Message:        "review artifacts must reference a plan or patch",
	},
	room.ArtifactPatch: {
		ParentRequired: true,
		Allowed:        set(room.ArtifactPlan, room.ArtifactPatch, room.ArtifactTask),
		Message:        "patch artifacts must reference a plan, task, or prior patch",
	},
	room.ArtifactPlan: {
		Allowed: set(room.ArtifactPlan),
		Message: "plan versions must reference a prior plan",
	},
}

// Proposal is a requested artifact creation.
type Proposal struct {
	Type             room.ArtifactType
	Title            string
	Content          string
	ParentArtifactID string
}

// Validate checks the proposal against the room and returns the artifact to
// append. All checks run before anything is built, so a rejected proposal
// has no side effects. An empty type defaults to NOTE.
func Validate(r *room.Room, p Proposal, now time.Time) (room.Artifact, error) {
	t := p.Type
	if t == "" {
		t = room.ArtifactNote
	}
	if err := t.Validate(); err != nil {
		return room.Artifact{}, room.Validationf("%v", err)
	}

	title := strings.TrimSpace(p.Title)
	content := strings.TrimSpace(p.Content)
	if title == "" {
		return room.Artifact{}, room.Validationf("artifact title must not be blank")
	}
	if content == "" {
		return room.Artifact{}, room.Validationf("artifact content must not be blank")
	}

	parentID := strings.TrimSpace(p.ParentArtifactID)
	if err := CheckParent(r, t, parentID); err != nil {
		return room.Artifact{}, err
	}

	return room.Artifact{
		ID:               room.NewID(),
		Type:             t,
		Title:            title,
		Content:          content,
		Version:          NextVersion(r, t),
		CreatedAt:        now,
		ParentArtifactID: parentID,
	}, nil
}

// CheckParent enforces the Rules table for a new artifact of type t.
func CheckParent(r *room.Room, t room.ArtifactType, parentID string) error {
	rule, constrained := Rules[t]
	if parentID == "" {
		if constrained && rule.ParentRequired {
			return room.Validationf("%s", rule.Message)
		}
		return nil
	}

	parent, ok := r.Artifact(parentID)
	if !ok {
		return room.NotFoundf("parent artifact not found in room: %s", parentID)
	}
	if constrained && rule.Allowed != nil && !rule.Allowed[parent.Type] {
		return room.Validationf("%s (parent %s is a %s)", rule.Message, parentID, parent.Type)
	}
	return nil
}

// NextVersion returns 1 + the highest version of type t in the room.
func NextVersion(r *room.Room, t room.ArtifactType) int {
	return r.MaxVersion(t) + 1
}

func set(types ...room.ArtifactType) map[room.ArtifactType]bool {
	m := make(map[room.ArtifactType]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}
