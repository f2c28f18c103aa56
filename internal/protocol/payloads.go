// FilePath: internal/protocol/payloads.go
package protocol

import (
	"time"

	"github.com/nestlink/bottlehub/internal/models"
)

// Inbound payloads.

type DeviceConnect struct {
	DeviceID string `json:"device_id"`
}

type ClientConnect struct {
	OwnerID string `json:"owner_id"`
}

type FeedingStart struct {
	DeviceID  string `json:"device_id"`
	SubjectID string `json:"subject_id"`
}

type BottlePlaced struct {
	SessionID   string  `json:"session_id"`
	Weight      float64 `json:"weight"`
	Temperature float64 `json:"temperature"`
}

type TemperatureUpdate struct {
	SessionID   string  `json:"session_id"`
	Temperature float64 `json:"temperature"`
}

type FeedingPickup struct {
	SessionID string `json:"session_id"`
}

type FeedingEnd struct {
	SessionID   string  `json:"session_id"`
	FinalWeight float64 `json:"final_weight"`
}

type WeightResponse struct {
	Weight float64 `json:"weight"`
}

type TareResponse struct {
	Success bool `json:"success"`
}

// Outbound payloads.

type Ack struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

type FeedingReady struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// LEDControl drives the device's three-color temperature indicator.
type LEDControl struct {
	Status    models.TemperatureStatus `json:"status"`
	Message   string                   `json:"message"`
	SafeRange string                   `json:"safe_range"`
}

type FeedingStarted struct {
	SessionID string               `json:"session_id"`
	DeviceID  string               `json:"device_id"`
	SubjectID string               `json:"subject_id"`
	Status    models.SessionStatus `json:"status"`
}

// BottleStatus carries both the raw scale weight and the tare-adjusted
// net weight so viewers can display either.
type BottleStatus struct {
	SessionID         string                   `json:"session_id"`
	Weight            float64                  `json:"weight"`
	WeightActual      float64                  `json:"weight_actual"`
	Temperature       float64                  `json:"temperature"`
	TemperatureSafe   bool                     `json:"temperature_safe"`
	TemperatureStatus models.TemperatureStatus `json:"temperature_status"`
	Status            models.SessionStatus     `json:"status"`
}

type TemperatureStatusUpdate struct {
	SessionID         string                   `json:"session_id"`
	Temperature       float64                  `json:"temperature"`
	TemperatureSafe   bool                     `json:"temperature_safe"`
	TemperatureStatus models.TemperatureStatus `json:"temperature_status"`
}

type FeedingInProgress struct {
	SessionID string               `json:"session_id"`
	StartedAt time.Time            `json:"started_at"`
	Status    models.SessionStatus `json:"status"`
}

type FeedingCompleted struct {
	SessionID      string    `json:"session_id"`
	SubjectID      string    `json:"subject_id,omitempty"`
	WeightBefore   float64   `json:"weight_before"`
	WeightAfter    float64   `json:"weight_after"`
	AmountConsumed float64   `json:"amount_consumed"`
	Duration       int64     `json:"duration"`
	Temperature    float64   `json:"temperature"`
	Timestamp      time.Time `json:"timestamp"`
}

type DevicePresence struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
}

type DevicesStatus struct {
	Devices []models.DeviceStatus `json:"devices"`
}

type ErrorPayload struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}
