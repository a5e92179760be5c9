// Package sm2 implements the SuperMemo-2 interval engine together with the
// small due-date helpers the schedulers build on. Every function here is
// total: out-of-range inputs are clamped rather than rejected.
package sm2

import (
	"math"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
)

const (
	// MinEaseFactor is the floor SM-2 never lets the ease drop below.
	MinEaseFactor = 1.3

	// PassGrade is the lowest grade that counts as a successful recall.
	PassGrade = 3

	// MaxGrade is a perfect response.
	MaxGrade = 5

	// UrgencyHorizonDays is how far ahead urgency starts to decay to its floor.
	UrgencyHorizonDays = 7

	minUrgency = 0.1
)

// State is the part of a progress record SM-2 reads and writes.
type State struct {
	EaseFactor   float64
	IntervalDays int
	Repetitions  int
}

// StateOf extracts the SM-2 state from a progress record.
func StateOf(p models.ProgressRecord) State {
	return State{
		EaseFactor:   p.EaseFactor,
		IntervalDays: p.IntervalDays,
		Repetitions:  p.Repetitions,
	}
}

// Apply writes s back onto p.
func (s State) Apply(p *models.ProgressRecord) {
	p.EaseFactor = s.EaseFactor
	p.IntervalDays = s.IntervalDays
	p.Repetitions = s.Repetitions
}

// Review runs one SM-2 step for the given grade (0-5).
//
// A failed recall (grade < 3) resets the repetition count and halves the
// interval, or zeroes it on a complete blackout. A successful recall grows
// the interval 1, 6, then interval*ease. The ease is adjusted in both cases
// using the interval computed from the previous ease.
func Review(s State, grade int) State {
	grade = clampGrade(grade)
	next := s

	if grade < PassGrade {
		next.Repetitions = 0
		if grade == 0 {
			next.IntervalDays = 0
		} else {
			next.IntervalDays = max(1, int(math.Floor(float64(s.IntervalDays)*0.5)))
		}
	} else {
		next.Repetitions = s.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.IntervalDays = 1
		case 2:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(math.Round(float64(s.IntervalDays) * s.EaseFactor))
		}
	}

	q := float64(MaxGrade - grade)
	delta := 0.1 - q*(0.08+q*0.02)
	next.EaseFactor = math.Round(math.Max(MinEaseFactor, s.EaseFactor+delta)*100) / 100

	if next.IntervalDays < 0 {
		next.IntervalDays = 0
	}
	if next.Repetitions < 0 {
		next.Repetitions = 0
	}
	return next
}

// NextReviewDate returns the instant intervalDays days after now.
func NextReviewDate(now time.Time, intervalDays int) time.Time {
	return now.AddDate(0, 0, intervalDays)
}

// AdjustGradeBySpeed rewards fast correct answers and penalizes slow ones.
// A nil response time leaves the grade untouched.
func AdjustGradeBySpeed(grade int, responseTimeMs *int) int {
	grade = clampGrade(grade)
	if responseTimeMs == nil {
		return grade
	}
	rt := *responseTimeMs
	if grade >= PassGrade {
		switch {
		case rt <= models.FastResponseMs:
			return min(MaxGrade, grade+1)
		case rt >= models.SlowResponseMs:
			return max(PassGrade, grade-1)
		}
		return grade
	}
	if rt >= models.SlowResponseMs {
		return max(0, grade-1)
	}
	return grade
}

// IsDueForReview reports whether p has no scheduled date or the date has passed.
func IsDueForReview(p models.ProgressRecord, now time.Time) bool {
	if p.NextReviewAt == nil {
		return true
	}
	return !now.Before(*p.NextReviewAt)
}

// Urgency maps the time until the next review onto [0.1, 1.0]: overdue and
// unscheduled words are fully urgent, words due beyond a week are at the floor.
func Urgency(p models.ProgressRecord, now time.Time) float64 {
	if IsDueForReview(p, now) {
		return 1.0
	}
	daysUntilDue := p.NextReviewAt.Sub(now).Hours() / 24
	if daysUntilDue > UrgencyHorizonDays {
		return minUrgency
	}
	return math.Max(minUrgency, 1.0-daysUntilDue/UrgencyHorizonDays)
}

func clampGrade(grade int) int {
	return min(MaxGrade, max(0, grade))
}
