package sm2

import (
	"testing"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestReview(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		grade     int
		wantReps  int
		wantIvl   int
		wantEase  float64
		easeDelta float64
	}{
		{
			name:     "first success",
			state:    State{EaseFactor: 2.5},
			grade:    3,
			wantReps: 1,
			wantIvl:  1,
			wantEase: 2.36,
		},
		{
			name:     "second success",
			state:    State{EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1},
			grade:    4,
			wantReps: 2,
			wantIvl:  6,
			wantEase: 2.5,
		},
		{
			name:     "third success multiplies by ease",
			state:    State{EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2},
			grade:    4,
			wantReps: 3,
			wantIvl:  15,
			wantEase: 2.5,
		},
		{
			name:     "perfect grade raises ease",
			state:    State{EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2},
			grade:    5,
			wantReps: 3,
			wantIvl:  15,
			wantEase: 2.6,
		},
		{
			name:     "failure halves interval",
			state:    State{EaseFactor: 2.5, IntervalDays: 10, Repetitions: 5},
			grade:    2,
			wantReps: 0,
			wantIvl:  5,
			wantEase: 2.18,
		},
		{
			name:     "failure keeps at least one day",
			state:    State{EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1},
			grade:    1,
			wantReps: 0,
			wantIvl:  1,
			wantEase: 1.96,
		},
		{
			name:     "blackout zeroes interval",
			state:    State{EaseFactor: 2.5, IntervalDays: 30, Repetitions: 4},
			grade:    0,
			wantReps: 0,
			wantIvl:  0,
			wantEase: 1.7,
		},
		{
			name:     "ease floor",
			state:    State{EaseFactor: 1.3, IntervalDays: 3, Repetitions: 1},
			grade:    0,
			wantReps: 0,
			wantIvl:  0,
			wantEase: 1.3,
		},
		{
			name:     "out of range grade is clamped",
			state:    State{EaseFactor: 2.5},
			grade:    9,
			wantReps: 1,
			wantIvl:  1,
			wantEase: 2.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Review(tt.state, tt.grade)
			assert.Equal(t, tt.wantReps, got.Repetitions, "repetitions")
			assert.Equal(t, tt.wantIvl, got.IntervalDays, "interval")
			assert.InDelta(t, tt.wantEase, got.EaseFactor, 1e-9, "ease")
		})
	}
}

func TestReview_SuccessSequence(t *testing.T) {
	s := State{EaseFactor: 2.5}
	var intervals []int
	for i := 0; i < 3; i++ {
		s = Review(s, 4)
		intervals = append(intervals, s.IntervalDays)
	}
	assert.Equal(t, []int{1, 6, 15}, intervals)
}

func TestAdjustGradeBySpeed(t *testing.T) {
	tests := []struct {
		name  string
		grade int
		rt    *int
		want  int
	}{
		{"no response time", 3, nil, 3},
		{"fast correct", 3, intPtr(2000), 4},
		{"fast perfect stays at five", 5, intPtr(1000), 5},
		{"slow correct", 4, intPtr(12000), 3},
		{"slow pass stays at three", 3, intPtr(15000), 3},
		{"slow wrong", 2, intPtr(12000), 1},
		{"slow blackout stays at zero", 0, intPtr(12000), 0},
		{"fast wrong unchanged", 2, intPtr(1000), 2},
		{"medium correct unchanged", 4, intPtr(6000), 4},
		{"boundary fast", 3, intPtr(3000), 4},
		{"boundary slow", 4, intPtr(10000), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdjustGradeBySpeed(tt.grade, tt.rt))
		})
	}
}

func TestNextReviewDate(t *testing.T) {
	now := time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 6, 8, 0, 0, 0, time.UTC), NextReviewDate(now, 7))
	assert.Equal(t, now, NextReviewDate(now, 0))
}

func TestIsDueForReview(t *testing.T) {
	now := time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, IsDueForReview(models.ProgressRecord{}, now))
	assert.True(t, IsDueForReview(models.ProgressRecord{NextReviewAt: &past}, now))
	assert.True(t, IsDueForReview(models.ProgressRecord{NextReviewAt: &now}, now))
	assert.False(t, IsDueForReview(models.ProgressRecord{NextReviewAt: &future}, now))
}

func TestUrgency(t *testing.T) {
	now := time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)
	at := func(days float64) *time.Time {
		ts := now.Add(time.Duration(days * 24 * float64(time.Hour)))
		return &ts
	}

	assert.Equal(t, 1.0, Urgency(models.ProgressRecord{}, now))
	assert.Equal(t, 1.0, Urgency(models.ProgressRecord{NextReviewAt: at(-2)}, now))
	assert.InDelta(t, 0.5, Urgency(models.ProgressRecord{NextReviewAt: at(3.5)}, now), 1e-9)
	assert.InDelta(t, 0.1, Urgency(models.ProgressRecord{NextReviewAt: at(6.9)}, now), 1e-9)
	assert.Equal(t, 0.1, Urgency(models.ProgressRecord{NextReviewAt: at(30)}, now))
}
