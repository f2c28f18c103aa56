// FilePath: internal/models/models.device.go
package models

import "time"

// Device represents a registered feeding-bottle station. The liveness
// fields (IsOnline, ConnectionID, LastSeen) are owned by the hub and are
// only mutated on connect/disconnect; everything else is owned by the
// registration API.
type Device struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	TareOffset   float64   `json:"tare_offset" db:"tare_offset"`
	IsOnline     bool      `json:"is_online" db:"is_online"`
	ConnectionID *string   `json:"connection_id,omitempty" db:"connection_id" readxs:"owner,system,admin" writexs:"system"`
	LastSeen     time.Time `json:"last_seen" db:"last_seen"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// DeviceStatus combines a device with its currently active session, if any.
// Sent to a viewer right after it connects.
type DeviceStatus struct {
	Device        *Device         `json:"device"`
	ActiveSession *FeedingSession `json:"active_session,omitempty"`
}
