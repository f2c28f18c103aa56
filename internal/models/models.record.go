// FilePath: internal/models/models.record.go
package models

import "time"

// FeedingRecord is the immutable fact derived from a completed session.
// Inserted exactly once at finalize time, never updated.
type FeedingRecord struct {
	ID             string    `json:"id" db:"id"`
	SessionID      string    `json:"session_id" db:"session_id"`
	SubjectID      string    `json:"subject_id" db:"subject_id"`
	DeviceID       string    `json:"device_id" db:"device_id"`
	WeightBefore   float64   `json:"weight_before" db:"weight_before"`
	WeightAfter    float64   `json:"weight_after" db:"weight_after"`
	AmountConsumed float64   `json:"amount_consumed" db:"amount_consumed"`
	Temperature    float64   `json:"temperature" db:"temperature"`
	Duration       int64     `json:"duration" db:"duration"`
	RecordedAt     time.Time `json:"recorded_at" db:"recorded_at"`
}

// DailyStat holds per-subject, per-calendar-day aggregates over feeding
// records. It is recomputed from that day's records on every finalize
// rather than incrementally updated, so concurrent finalizations cannot
// make it drift from the underlying data.
type DailyStat struct {
	SubjectID      string    `json:"subject_id" db:"subject_id"`
	Day            time.Time `json:"day" db:"day"`
	TotalFeedings  int       `json:"total_feedings" db:"total_feedings"`
	TotalAmount    float64   `json:"total_amount" db:"total_amount"`
	AvgAmount      float64   `json:"avg_amount" db:"avg_amount"`
	AvgTemperature float64   `json:"avg_temperature" db:"avg_temperature"`
	AvgDuration    float64   `json:"avg_duration" db:"avg_duration"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}
