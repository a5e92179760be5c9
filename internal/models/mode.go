package models

import (
	"database/sql/driver"
	"fmt"
)

// Mode is the study mode a scheduling request or an answer belongs to.
// The zero value means "no mode recorded yet".
type Mode uint8

const (
	// Drill is flashcard practice over everything in scope.
	Drill Mode = iota + 1
	// Quiz is a test session restricted by difficulty and mastery ranges.
	Quiz
	// Review revisits previously seen words, weighted by urgency.
	Review
)

// Modes lists every valid mode in declaration order.
var Modes = []Mode{Drill, Quiz, Review}

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case Drill:
		return "flashcard"
	case Quiz:
		return "test"
	case Review:
		return "review"
	}
	return ""
}

// Valid reports whether m is one of Drill, Quiz or Review.
func (m Mode) Valid() bool {
	return m >= Drill && m <= Review
}

// ParseMode maps a wire name back to its Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "flashcard", "drill":
		return Drill, nil
	case "test", "quiz":
		return Quiz, nil
	case "review":
		return Review, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string
// decodes to the zero Mode.
func (m *Mode) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = 0
		return nil
	}
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer so modes are stored by name.
func (m Mode) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner.
func (m *Mode) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
		return nil
	case string:
		return m.UnmarshalText([]byte(v))
	case []byte:
		return m.UnmarshalText(v)
	}
	return fmt.Errorf("cannot scan %T into Mode", src)
}

// Result is the outcome of a single answer.
type Result string

const (
	ResultCorrect Result = "correct"
	ResultWrong   Result = "wrong"
	ResultSkip    Result = "skip"
)

// Valid reports whether r is correct, wrong or skip.
func (r Result) Valid() bool {
	switch r {
	case ResultCorrect, ResultWrong, ResultSkip:
		return true
	}
	return false
}
