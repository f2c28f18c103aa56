package models

import "time"

// RecordFilters defines the available filter options when listing
// feeding records. Decoded from query strings by gorilla/schema.
type RecordFilters struct {
	DeviceID  string     `json:"device_id" schema:"device_id"`
	SubjectID string     `json:"subject_id" schema:"subject_id"`
	From      *time.Time `json:"from" schema:"from"`
	To        *time.Time `json:"to" schema:"to"`
	Limit     int        `json:"limit" schema:"limit"`
}
