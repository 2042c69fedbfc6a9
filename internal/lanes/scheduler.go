// Package lanes schedules TASK artifacts into implementor-owned task lanes.
//
// Lane states form no transition graph: any state may follow any other.
// Only ACTIVE lanes accept tasks. A task id may be assigned more than once,
// to the same lane or to several lanes.
package lanes

import (
	"strings"

	"github.com/dyluth/huddle/pkg/room"
)

// CreateLane appends a new ACTIVE lane owned by the implementor.
func CreateLane(r *room.Room, name, implementorID string) (room.TaskLane, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return room.TaskLane{}, room.Validationf("task lane name must not be blank")
	}

	implementor, ok := r.Participant(implementorID)
	if !ok {
		return room.TaskLane{}, room.Validationf("implementor not found for lane: %s", implementorID)
	}
	if implementor.Role != room.RoleImplementor {
		return room.TaskLane{}, room.Validationf("task lanes must be owned by an implementor (%s is %s)", implementor.DisplayName, implementor.Role)
	}

	lane := room.TaskLane{
		ID:              room.NewID(),
		Name:            name,
		ImplementorID:   implementorID,
		State:           room.LaneActive,
		TaskArtifactIDs: []string{},
	}
	if err := r.AddTaskLane(lane); err != nil {
		return room.TaskLane{}, err
	}
	return lane, nil
}

// AssignTask appends a TASK artifact to an ACTIVE lane and returns the
// updated lane together with the task.
func AssignTask(r *room.Room, laneID, taskArtifactID string) (room.TaskLane, room.Artifact, error) {
	task, ok := r.Artifact(taskArtifactID)
	if !ok {
		return room.TaskLane{}, room.Artifact{}, room.Validationf("task artifact not found: %s", taskArtifactID)
	}
	if task.Type != room.ArtifactTask {
		return room.TaskLane{}, room.Artifact{}, room.Validationf("only task artifacts can be scheduled into a lane (%s is a %s)", taskArtifactID, task.Type)
	}

	lane, ok := r.Lane(laneID)
	if !ok {
		return room.TaskLane{}, room.Artifact{}, room.NotFoundf("task lane not found: %s", laneID)
	}
	if lane.State != room.LaneActive {
		return room.TaskLane{}, room.Artifact{}, room.Conflictf("tasks can only be assigned to active lanes (lane %q is %s)", lane.Name, lane.State)
	}

	lane.TaskArtifactIDs = append(lane.TaskArtifactIDs, taskArtifactID)
	return snapshot(lane), task, nil
}

// UpdateState sets the lane's state unconditionally.
func UpdateState(r *room.Room, laneID string, state room.LaneState) (room.TaskLane, error) {
	if state == "" {
		return room.TaskLane{}, room.Validationf("task lane state is required")
	}
	if err := state.Validate(); err != nil {
		return room.TaskLane{}, room.Validationf("%v", err)
	}

	lane, ok := r.Lane(laneID)
	if !ok {
		return room.TaskLane{}, room.NotFoundf("task lane not found: %s", laneID)
	}
	lane.State = state
	return snapshot(lane), nil
}

// snapshot copies a lane so the caller cannot reach the room's task list.
func snapshot(l *room.TaskLane) room.TaskLane {
	out := *l
	out.TaskArtifactIDs = append([]string{}, l.TaskArtifactIDs...)
	return out
}
