// FilePath: internal/protocol/events.go
package protocol

import "encoding/json"

// Envelope is the JSON frame exchanged over every hub connection.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound events (device or viewer -> hub).
const (
	EventDeviceConnect      = "device:connect"
	EventClientConnect      = "client:connect"
	EventFeedingStart       = "feeding:start"
	EventBottlePlaced       = "bottle:placed"
	EventTemperatureUpdate  = "temperature:update"
	EventFeedingPickup      = "feeding:pickup"
	EventFeedingEnd         = "feeding:end"
	EventWeightGetResponse  = "weight:get:response"
	EventWeightTareResponse = "weight:tare:response"
)

// Outbound events (hub -> device).
const (
	EventDeviceConnected   = "device:connected"
	EventClientConnected   = "client:connected"
	EventFeedingReady      = "feeding:ready"
	EventLEDControl        = "led:control"
	EventWeightGet         = "weight:get"
	EventWeightTare        = "weight:tare"
	EventWeightMeasureStop = "weight:measure:stop"
)

// Outbound events (hub -> viewers; feeding:completed also goes to the device).
const (
	EventDeviceOnline      = "device:online"
	EventDeviceOffline     = "device:offline"
	EventDevicesStatus     = "devices:status"
	EventFeedingStarted    = "feeding:started"
	EventBottleStatus      = "bottle:status"
	EventTemperatureStatus = "temperature:status"
	EventFeedingInProgress = "feeding:in_progress"
	EventFeedingCompleted  = "feeding:completed"
	EventError             = "error"
)
