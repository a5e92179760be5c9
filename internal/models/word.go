package models

import "time"

// Item is a vocabulary word. The scheduler core only reads items; they are
// created and removed by the surrounding application.
type Item struct {
	ID          int64     `json:"id" db:"id"`
	SetID       int64     `json:"set_id" db:"set_id"`
	Term        string    `json:"term" db:"term"`
	Translation string    `json:"translation" db:"translation"`
	Difficulty  *int      `json:"difficulty,omitempty" db:"difficulty"` // 1-5, nil when unrated
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
