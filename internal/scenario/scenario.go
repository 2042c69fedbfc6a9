// Package scenario loads scripted room sessions from YAML and replays them
// against a room store.
//
// A scenario file looks like:
//
//	version: "1.0"
//	room: Design Review
//	steps:
//	  - add_participant: {name: Gemini Builder, type: AI, role: IMPLEMENTOR, provider: Gemini}
//	    as: builder
//	  - create_lane: {name: Lane Two, implementor: builder}
//	    as: lane
//	  - pause:
//	  - post_message: {participant: You, content: "hello?"}
//	    expect_error: conflict
package scenario

import (
	"fmt"
	"os"

	"github.com/dyluth/huddle/pkg/room"
	"gopkg.in/yaml.v3"
)

// Action names one store operation.
type Action string

const (
	ActionAddParticipant   Action = "add_participant"
	ActionRegisterProvider Action = "register_provider"
	ActionAddArtifact      Action = "add_artifact"
	ActionCreateLane       Action = "create_lane"
	ActionAssignTask       Action = "assign_task"
	ActionSetLaneState     Action = "set_lane_state"
	ActionPostMessage      Action = "post_message"
	ActionPause            Action = "pause"
	ActionResume           Action = "resume"
	ActionDriverFailure    Action = "driver_failure"
	ActionDriverRecovery   Action = "driver_recovery"
)

// Validate checks if the Action is a valid enum value.
func (a Action) Validate() error {
	switch a {
	case ActionAddParticipant, ActionRegisterProvider, ActionAddArtifact, ActionCreateLane,
		ActionAssignTask, ActionSetLaneState, ActionPostMessage, ActionPause, ActionResume,
		ActionDriverFailure, ActionDriverRecovery:
		return nil
	default:
		return fmt.Errorf("unknown action: %q", a)
	}
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Version string `yaml:"version"`
	Room    string `yaml:"room,omitempty"` // Passed to CreateRoom; blank uses the configured default
	Steps   []Step `yaml:"steps"`
}

// Step is one action plus its options. Exactly one action key is allowed.
type Step struct {
	Action      Action
	As          string // Alias bound to the created entity
	ExpectError string // not_found, validation or conflict

	args yaml.Node
}

// Arguments of each action. References (participant, implementor, parent,
// lane, task) are resolved by the resolver package.
type (
	ParticipantArgs struct {
		Name         string   `yaml:"name"`
		Type         string   `yaml:"type"`
		Role         string   `yaml:"role"`
		Provider     string   `yaml:"provider,omitempty"`
		Capabilities []string `yaml:"capabilities,omitempty"`
	}

	ProviderArgs struct {
		Name         string   `yaml:"name"`
		AccessMode   string   `yaml:"access_mode,omitempty"`
		Capabilities []string `yaml:"capabilities,omitempty"`
		Endpoint     string   `yaml:"endpoint,omitempty"`
		Available    *bool    `yaml:"available,omitempty"` // Default true
	}

	ArtifactArgs struct {
		Type    string `yaml:"type,omitempty"` // Default NOTE
		Title   string `yaml:"title"`
		Content string `yaml:"content"`
		Parent  string `yaml:"parent,omitempty"`
	}

	LaneArgs struct {
		Name        string `yaml:"name"`
		Implementor string `yaml:"implementor"`
	}

	AssignArgs struct {
		Lane string `yaml:"lane"`
		Task string `yaml:"task"`
	}

	LaneStateArgs struct {
		Lane  string `yaml:"lane"`
		State string `yaml:"state"`
	}

	MessageArgs struct {
		Participant string `yaml:"participant"`
		Content     string `yaml:"content"`
	}

	FailureArgs struct {
		Reason string `yaml:"reason,omitempty"`
	}
)

// UnmarshalYAML decodes a step mapping, keeping the action arguments for
// later decoding into the action's argument type.
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: step must be a mapping", value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch key.Value {
		case "as":
			if err := val.Decode(&s.As); err != nil {
				return fmt.Errorf("line %d: as: %w", key.Line, err)
			}
		case "expect_error":
			if err := val.Decode(&s.ExpectError); err != nil {
				return fmt.Errorf("line %d: expect_error: %w", key.Line, err)
			}
		default:
			action := Action(key.Value)
			if err := action.Validate(); err != nil {
				return fmt.Errorf("line %d: %w", key.Line, err)
			}
			if s.Action != "" {
				return fmt.Errorf("line %d: step has both %s and %s", key.Line, s.Action, action)
			}
			s.Action = action
			s.args = *val
		}
	}

	if s.Action == "" {
		return fmt.Errorf("line %d: step has no action", value.Line)
	}
	return nil
}

// decodeArgs decodes the action arguments into out. A missing or null
// argument mapping leaves out at its zero value.
func (s *Step) decodeArgs(out interface{}) error {
	if s.args.Kind == 0 || s.args.Tag == "!!null" {
		return nil
	}
	if err := s.args.Decode(out); err != nil {
		return fmt.Errorf("invalid %s arguments: %w", s.Action, err)
	}
	return nil
}

// Validate checks the scenario structure. It does not check references,
// which only resolve while the scenario runs.
func (sc *Scenario) Validate() error {
	if sc.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", sc.Version)
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("no steps defined")
	}

	aliases := make(map[string]int)
	for i, step := range sc.Steps {
		if step.ExpectError != "" {
			if _, err := room.ParseKind(step.ExpectError); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			if step.As != "" {
				return fmt.Errorf("step %d: a step expecting an error cannot bind alias '%s'", i+1, step.As)
			}
		}
		if step.As != "" {
			if prev, ok := aliases[step.As]; ok {
				return fmt.Errorf("step %d: alias '%s' already bound by step %d", i+1, step.As, prev)
			}
			aliases[step.As] = i + 1
		}
	}
	return nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}
