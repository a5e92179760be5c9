package models

import "time"

const (
	// DefaultEaseFactor is the ease every new progress record starts with.
	DefaultEaseFactor = 2.5

	// FastResponseMs and SlowResponseMs bound the "fast" and "slow" answer
	// buckets used by the speed telemetry.
	FastResponseMs = 3000
	SlowResponseMs = 10000

	// ResponseTimeAlpha is the smoothing factor of the response time EMA.
	ResponseTimeAlpha = 0.3

	// DefaultDifficulty stands in for words that carry no rating.
	DefaultDifficulty = 3
)

// ProgressRecord tracks one learner's history with one word.
type ProgressRecord struct {
	WordID int64 `json:"word_id" db:"word_id"`
	SetID  int64 `json:"set_id" db:"set_id"`

	EaseFactor   float64 `json:"ease_factor" db:"ease_factor"`
	IntervalDays int     `json:"interval_days" db:"interval_days"`
	Repetitions  int     `json:"repetitions" db:"repetitions"`

	TimesSeen     int `json:"times_seen" db:"times_seen"`
	TimesCorrect  int `json:"times_correct" db:"times_correct"`
	CorrectStreak int `json:"correct_streak" db:"correct_streak"`
	WrongStreak   int `json:"wrong_streak" db:"wrong_streak"`

	Difficulty   *int       `json:"difficulty,omitempty" db:"difficulty"`
	NextReviewAt *time.Time `json:"next_review_at,omitempty" db:"next_review_at"`

	// AverageResponseTime is an EMA in milliseconds over ResponseCount samples.
	AverageResponseTime float64 `json:"average_response_time" db:"average_response_time"`
	ResponseCount       int     `json:"response_count" db:"response_count"`
	FastResponseCount   int     `json:"fast_response_count" db:"fast_response_count"`
	SlowResponseCount   int     `json:"slow_response_count" db:"slow_response_count"`

	LastResult     Result     `json:"last_result,omitempty" db:"last_result"`
	LastMode       Mode       `json:"last_mode,omitempty" db:"last_mode"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty" db:"last_reviewed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewProgressRecord initializes the record for a word that has never been
// scheduled. The item's difficulty is copied so scoring never needs the item.
func NewProgressRecord(item Item, now time.Time) ProgressRecord {
	rec := ProgressRecord{
		WordID:     item.ID,
		SetID:      item.SetID,
		EaseFactor: DefaultEaseFactor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if item.Difficulty != nil {
		d := *item.Difficulty
		rec.Difficulty = &d
	}
	return rec
}

// Clone returns a deep copy; pointer fields are not shared with p.
func (p ProgressRecord) Clone() ProgressRecord {
	c := p
	if p.Difficulty != nil {
		d := *p.Difficulty
		c.Difficulty = &d
	}
	if p.NextReviewAt != nil {
		t := *p.NextReviewAt
		c.NextReviewAt = &t
	}
	if p.LastReviewedAt != nil {
		t := *p.LastReviewedAt
		c.LastReviewedAt = &t
	}
	return c
}

// IsNew reports whether the word has never been answered.
func (p ProgressRecord) IsNew() bool {
	return p.TimesSeen == 0
}

// IsMastered reports whether the word counts as mastered.
func (p ProgressRecord) IsMastered() bool {
	return p.Repetitions >= 3 || p.CorrectStreak >= 3
}

// EffectiveDifficulty returns the stored difficulty or DefaultDifficulty.
func (p ProgressRecord) EffectiveDifficulty() int {
	if p.Difficulty == nil {
		return DefaultDifficulty
	}
	return *p.Difficulty
}

// HasSpeedData reports whether any response time has been recorded. A 0 ms
// answer still counts. Records saved without a count fall back to the
// average alone.
func (p ProgressRecord) HasSpeedData() bool {
	return p.ResponseCount > 0 || p.AverageResponseTime > 0
}

// RecordResponseTime folds one response time into the EMA and the
// fast/slow counters. The first sample seeds the average.
func (p *ProgressRecord) RecordResponseTime(ms int) {
	rt := float64(ms)
	if p.HasSpeedData() {
		p.AverageResponseTime = ResponseTimeAlpha*rt + (1-ResponseTimeAlpha)*p.AverageResponseTime
	} else {
		p.AverageResponseTime = rt
	}
	p.ResponseCount++
	switch {
	case ms < FastResponseMs:
		p.FastResponseCount++
	case ms > SlowResponseMs:
		p.SlowResponseCount++
	}
}

// MarkCorrect extends the correct streak and clears the wrong one.
func (p *ProgressRecord) MarkCorrect() {
	p.TimesCorrect++
	p.CorrectStreak++
	p.WrongStreak = 0
}

// MarkWrong extends the wrong streak and clears the correct one.
func (p *ProgressRecord) MarkWrong() {
	p.WrongStreak++
	p.CorrectStreak = 0
}
