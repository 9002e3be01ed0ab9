package mqtt

import "fmt"

// Topic prefixes for the AV Bridge MQTT hierarchy.
//
// Device traffic uses the flat scheme: avbridge/{category}/{device_id}.
// Room control traffic is scoped under avbridge/room/{room_id}.
const (
	// TopicPrefix is the base for all AV Bridge topics.
	TopicPrefix = "avbridge"

	// TopicPrefixRoom is the base for room control topics.
	TopicPrefixRoom = "avbridge/room"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "avbridge/system"
)

// Topics provides builders for AV Bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("proj-cinema")
//	// Returns: "avbridge/command/proj-cinema"
type Topics struct{}

// DeviceCommand returns the topic for commands to a device driver.
//
// Example: avbridge/command/proj-cinema
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// DeviceState returns the topic for device state updates from a driver.
//
// Example: avbridge/state/proj-cinema
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// RoomActivate returns the topic for scenario activation requests in a room.
//
// Example: avbridge/room/cinema/activate
func (Topics) RoomActivate(roomID string) string {
	return fmt.Sprintf("%s/%s/activate", TopicPrefixRoom, roomID)
}

// RoomDeactivate returns the topic for scenario deactivation requests in a room.
//
// Example: avbridge/room/cinema/deactivate
func (Topics) RoomDeactivate(roomID string) string {
	return fmt.Sprintf("%s/%s/deactivate", TopicPrefixRoom, roomID)
}

// RoomRole returns the topic for role-addressed actions in a room.
//
// Example: avbridge/room/cinema/role/volume/up
func (Topics) RoomRole(roomID, role, action string) string {
	return fmt.Sprintf("%s/%s/role/%s/%s", TopicPrefixRoom, roomID, role, action)
}

// RoomReport returns the topic for scenario run reports in a room.
// Reports are published retained so late subscribers see the last run.
//
// Example: avbridge/room/cinema/report
func (Topics) RoomReport(roomID string) string {
	return fmt.Sprintf("%s/%s/report", TopicPrefixRoom, roomID)
}

// RoomStatus returns the topic for room activity state changes.
//
// Example: avbridge/room/cinema/status
func (Topics) RoomStatus(roomID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixRoom, roomID)
}

// SystemStatus returns the system status topic.
//
// Example: avbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// ─── Wildcard Patterns for Subscriptions ───

// AllDeviceStates returns a pattern matching all device state updates.
//
// Pattern: avbridge/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllRoomActivations returns a pattern matching activation requests in any room.
//
// Pattern: avbridge/room/+/activate
func (Topics) AllRoomActivations() string {
	return fmt.Sprintf("%s/+/activate", TopicPrefixRoom)
}

// AllRoomDeactivations returns a pattern matching deactivation requests in any room.
//
// Pattern: avbridge/room/+/deactivate
func (Topics) AllRoomDeactivations() string {
	return fmt.Sprintf("%s/+/deactivate", TopicPrefixRoom)
}

// AllRoomRoleActions returns a pattern matching role actions in any room.
//
// Pattern: avbridge/room/+/role/+/+
func (Topics) AllRoomRoleActions() string {
	return fmt.Sprintf("%s/+/role/+/+", TopicPrefixRoom)
}

// AllTopics returns a pattern matching all AV Bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: avbridge/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
