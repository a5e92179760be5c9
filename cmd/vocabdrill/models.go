package main

import (
	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/scheduler"
)

// ScheduleResponse is returned by the schedule_* tools. Exactly one of the
// per-mode results is set on success.
type ScheduleResponse struct {
	Success   bool                       `json:"success"`
	Mode      models.Mode                `json:"mode"`
	Flashcard *scheduler.FlashcardResult `json:"flashcard,omitempty"`
	Quiz      *scheduler.QuizResult      `json:"quiz,omitempty"`
	Review    *scheduler.ReviewResult    `json:"review,omitempty"`
	Error     string                     `json:"error,omitempty"`
}

// AnswerResponse is returned by submit_answer
type AnswerResponse struct {
	Success  bool                   `json:"success"`
	Progress *models.ProgressRecord `json:"progress,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// WordResponse is returned by create_word
type WordResponse struct {
	Success bool         `json:"success"`
	Word    *models.Item `json:"word,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// WordInfo is a word together with its learning state
type WordInfo struct {
	models.Item
	TimesSeen    int     `json:"times_seen"`
	Mastery      float64 `json:"mastery"`
	Mastered     bool    `json:"mastered"`
	Due          bool    `json:"due"`
	IntervalDays int     `json:"interval_days"`
}

// ListWordsResponse is returned by list_words
type ListWordsResponse struct {
	Success bool       `json:"success"`
	Words   []WordInfo `json:"words"`
	Error   string     `json:"error,omitempty"`
}

// Stats summarizes learning progress over a set, or all words
type Stats struct {
	SetID         int64   `json:"set_id,omitempty"`
	TotalWords    int     `json:"total_words"`
	NewWords      int     `json:"new_words"`
	DueWords      int     `json:"due_words"`
	MasteredWords int     `json:"mastered_words"`
	ReviewedToday int     `json:"reviewed_today"`
	AccuracyToday float64 `json:"accuracy_today"`
}

// StatsResponse is returned by get_stats
type StatsResponse struct {
	Success bool   `json:"success"`
	Stats   *Stats `json:"stats,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SetSummary is one entry of the vocab://sets resource
type SetSummary struct {
	SetID    int64 `json:"set_id"`
	Words    int   `json:"words"`
	Seen     int   `json:"seen"`
	Mastered int   `json:"mastered"`
}
