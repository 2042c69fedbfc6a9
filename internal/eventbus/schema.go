package eventbus

import "fmt"

// Redis channel helpers
//
// Channels are namespaced by instance name so several huddle processes can
// share one Redis server.
//
// Channel pattern: huddle:{instance_name}:room:{room_id}:events
// Instance-wide:   huddle:{instance_name}:room_events

// RoomEventsChannel returns the Pub/Sub channel carrying one room's events.
func RoomEventsChannel(instanceName, roomID string) string {
	return fmt.Sprintf("huddle:%s:room:%s:events", instanceName, roomID)
}

// InstanceEventsChannel returns the Pub/Sub channel carrying every room's events.
func InstanceEventsChannel(instanceName string) string {
	return fmt.Sprintf("huddle:%s:room_events", instanceName)
}
