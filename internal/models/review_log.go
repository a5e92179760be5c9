package models

import "time"

// ReviewLogEntry is an immutable record of one answer, written once after
// the progress record has been updated.
type ReviewLogEntry struct {
	ID             string    `json:"id" db:"id"`
	WordID         int64     `json:"word_id" db:"word_id"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
	Mode           Mode      `json:"mode" db:"mode"`
	Result         Result    `json:"result" db:"result"`
	Grade          *int      `json:"grade,omitempty" db:"grade"`
	EaseFactor     float64   `json:"ease_factor" db:"ease_factor"`
	IntervalDays   int       `json:"interval_days" db:"interval_days"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty" db:"response_time_ms"`
}
