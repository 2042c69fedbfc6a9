package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dyluth/huddle/internal/catalog"
	"github.com/dyluth/huddle/internal/provenance"
	"github.com/dyluth/huddle/internal/resolver"
	"github.com/dyluth/huddle/internal/store"
	"github.com/dyluth/huddle/pkg/room"
)

// Outcome is the result class of one step.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeExpected Outcome = "expected_error"
	OutcomeFailed   Outcome = "failed"
)

// StepResult reports one executed step.
type StepResult struct {
	Index   int // 1-based
	Action  Action
	As      string
	Outcome Outcome
	ID      string // Id of the created or updated entity, if any
	Err     error
}

// Result reports a scenario run. Steps holds every executed step, including
// the failing one when the run stopped early.
type Result struct {
	RoomID string
	Steps  []StepResult
}

// Failed returns the failing step, if any.
func (r *Result) Failed() (StepResult, bool) {
	if len(r.Steps) == 0 {
		return StepResult{}, false
	}
	last := r.Steps[len(r.Steps)-1]
	return last, last.Outcome == OutcomeFailed
}

// Runner replays scenarios against a store.
type Runner struct {
	store  *store.Store
	logger *log.Logger
}

// NewRunner creates a runner. A nil logger uses log.Default().
func NewRunner(s *store.Store, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{store: s, logger: logger}
}

// referenceError marks a failure to resolve a reference. It never matches
// expect_error: an unresolvable reference is a mistake in the scenario.
type referenceError struct {
	err error
}

func (e *referenceError) Error() string { return e.err.Error() }
func (e *referenceError) Unwrap() error { return e.err }

// Run creates (or joins) the scenario room and executes the steps in order.
// It stops at the first step whose outcome differs from its expectation and
// returns the partial result together with an error describing that step.
func (rn *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	rm, err := rn.store.CreateRoom(sc.Room)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	result := &Result{RoomID: rm.ID}
	refs := resolver.New()

	rn.logger.Printf("[Scenario] Running %d steps in room %s", len(sc.Steps), rm.ID)

	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		step := &sc.Steps[i]
		res := StepResult{Index: i + 1, Action: step.Action, As: step.As}
		id, err := rn.execute(rm.ID, refs, step)
		res.ID = id
		res.Err = err

		var refErr *referenceError
		switch {
		case err == nil && step.ExpectError == "":
			res.Outcome = OutcomeOK
		case err == nil:
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("expected %s error, but the step succeeded", step.ExpectError)
		case errors.As(err, &refErr):
			res.Outcome = OutcomeFailed
		case step.ExpectError != "" && room.KindOf(err).String() == step.ExpectError:
			res.Outcome = OutcomeExpected
		default:
			res.Outcome = OutcomeFailed
		}
		result.Steps = append(result.Steps, res)

		if res.Outcome == OutcomeFailed {
			rn.logger.Printf("[Scenario] Step %d (%s) failed: %v", res.Index, res.Action, res.Err)
			return result, fmt.Errorf("step %d (%s): %w", res.Index, res.Action, res.Err)
		}

		if step.As != "" && res.ID != "" {
			if err := refs.Bind(step.As, res.ID); err != nil {
				return result, fmt.Errorf("step %d (%s): %w", res.Index, res.Action, err)
			}
		}
	}

	rn.logger.Printf("[Scenario] Completed %d steps", len(result.Steps))
	return result, nil
}

// execute runs one step and returns the id of the entity it produced.
func (rn *Runner) execute(roomID string, refs *resolver.Resolver, step *Step) (string, error) {
	switch step.Action {
	case ActionAddParticipant:
		var args ParticipantArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		p := room.Participant{
			ID:           room.NewID(),
			DisplayName:  args.Name,
			Type:         room.ParticipantType(args.Type),
			Role:         room.ParticipantRole(args.Role),
			Provider:     args.Provider,
			Capabilities: args.Capabilities,
		}
		if _, err := rn.store.AddParticipant(roomID, p); err != nil {
			return "", err
		}
		return p.ID, nil

	case ActionRegisterProvider:
		var args ProviderArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		adapter, err := rn.store.RegisterProvider(roomID, catalog.Registration{
			Name:         args.Name,
			AccessMode:   room.AccessMode(args.AccessMode),
			Capabilities: args.Capabilities,
			Endpoint:     args.Endpoint,
			Available:    args.Available == nil || *args.Available,
		})
		return adapter.ID, err

	case ActionAddArtifact:
		var args ArtifactArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		parentID := ""
		if args.Parent != "" {
			id, err := rn.resolve(roomID, refs, "artifact", args.Parent, resolver.Artifacts)
			if err != nil {
				return "", err
			}
			parentID = id
		}
		artifact, err := rn.store.AddArtifact(roomID, provenance.Proposal{
			Type:             room.ArtifactType(args.Type),
			Title:            args.Title,
			Content:          args.Content,
			ParentArtifactID: parentID,
		})
		return artifact.ID, err

	case ActionCreateLane:
		var args LaneArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		implementorID, err := rn.resolve(roomID, refs, "participant", args.Implementor, resolver.Participants)
		if err != nil {
			return "", err
		}
		lane, err := rn.store.CreateTaskLane(roomID, args.Name, implementorID)
		return lane.ID, err

	case ActionAssignTask:
		var args AssignArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		laneID, err := rn.resolve(roomID, refs, "lane", args.Lane, resolver.Lanes)
		if err != nil {
			return "", err
		}
		taskID, err := rn.resolve(roomID, refs, "artifact", args.Task, resolver.Artifacts)
		if err != nil {
			return "", err
		}
		lane, err := rn.store.AssignTaskToLane(roomID, laneID, taskID)
		return lane.ID, err

	case ActionSetLaneState:
		var args LaneStateArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		laneID, err := rn.resolve(roomID, refs, "lane", args.Lane, resolver.Lanes)
		if err != nil {
			return "", err
		}
		lane, err := rn.store.UpdateTaskLaneState(roomID, laneID, room.LaneState(args.State))
		return lane.ID, err

	case ActionPostMessage:
		var args MessageArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		participantID, err := rn.resolve(roomID, refs, "participant", args.Participant, resolver.Participants)
		if err != nil {
			return "", err
		}
		msg, err := rn.store.AddMessage(roomID, participantID, args.Content)
		return msg.ID, err

	case ActionPause:
		_, err := rn.store.PauseRoom(roomID)
		return "", err

	case ActionResume:
		_, err := rn.store.ResumeRoom(roomID)
		return "", err

	case ActionDriverFailure:
		var args FailureArgs
		if err := step.decodeArgs(&args); err != nil {
			return "", err
		}
		_, err := rn.store.RecordDriverFailure(roomID, args.Reason)
		return "", err

	case ActionDriverRecovery:
		_, err := rn.store.RecordDriverRecovery(roomID)
		return "", err

	default:
		return "", fmt.Errorf("unknown action: %q", step.Action)
	}
}

// resolve looks ref up against the room's current state.
func (rn *Runner) resolve(roomID string, refs *resolver.Resolver, kind, ref string, list func(*room.Room) []resolver.Candidate) (string, error) {
	rm, err := rn.store.GetRoom(roomID)
	if err != nil {
		return "", err
	}
	id, err := refs.Resolve(kind, ref, list(rm))
	if err != nil {
		return "", &referenceError{err: err}
	}
	return id, nil
}
