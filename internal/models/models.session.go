// FilePath: internal/models/models.session.go
package models

import "time"

// SessionStatus is the lifecycle state of a feeding session. Transitions
// are strictly linear: ready -> bottle_placed -> in_progress -> completed.
type SessionStatus string

const (
	SessionReady        SessionStatus = "ready"
	SessionBottlePlaced SessionStatus = "bottle_placed"
	SessionInProgress   SessionStatus = "in_progress"
	SessionCompleted    SessionStatus = "completed"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted
}

// TemperatureStatus classifies a bottle temperature against the safe
// feeding range.
type TemperatureStatus string

const (
	TemperatureLow  TemperatureStatus = "low"
	TemperatureSafe TemperatureStatus = "safe"
	TemperatureHigh TemperatureStatus = "high"
)

// Safe feeding range bounds in degrees Celsius, both inclusive.
const (
	SafeTemperatureMin = 35.0
	SafeTemperatureMax = 43.0

	// SafeTemperatureRange is the human-readable range shown on device
	// indicators and viewer dashboards.
	SafeTemperatureRange = "35~43°C"
)

// ClassifyTemperature maps a temperature reading to its status.
// Boundary values 35 and 43 classify as safe.
func ClassifyTemperature(temperatureC float64) TemperatureStatus {
	switch {
	case temperatureC < SafeTemperatureMin:
		return TemperatureLow
	case temperatureC > SafeTemperatureMax:
		return TemperatureHigh
	default:
		return TemperatureSafe
	}
}

// FeedingSession tracks one physical feeding event from button press to
// bottle return. Weights are net values, the device tare offset is
// subtracted before persisting. A session becomes immutable once Status
// reaches SessionCompleted.
type FeedingSession struct {
	ID               string        `json:"id" db:"id"`
	DeviceID         string        `json:"device_id" db:"device_id"`
	SubjectID        string        `json:"subject_id" db:"subject_id"`
	Status           SessionStatus `json:"status" db:"status"`
	ButtonPressedAt  time.Time     `json:"button_pressed_at" db:"button_pressed_at"`
	BottlePlacedAt   *time.Time    `json:"bottle_placed_at,omitempty" db:"bottle_placed_at"`
	FeedingStartedAt *time.Time    `json:"feeding_started_at,omitempty" db:"feeding_started_at"`
	FeedingEndedAt   *time.Time    `json:"feeding_ended_at,omitempty" db:"feeding_ended_at"`
	InitialWeight    *float64      `json:"initial_weight,omitempty" db:"initial_weight"`
	FinalWeight      *float64      `json:"final_weight,omitempty" db:"final_weight"`
	Temperature      *float64      `json:"temperature,omitempty" db:"temperature"`
	TemperatureSafe  *bool         `json:"temperature_safe,omitempty" db:"temperature_safe"`
	AmountConsumed   *float64      `json:"amount_consumed,omitempty" db:"amount_consumed"`
	Duration         *int64        `json:"duration,omitempty" db:"duration"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
}
