// Package scorer turns a progress record into a single priority weight for
// a given study mode. It is the only scoring implementation: the ranker calls
// it both inline and from its background worker.
package scorer

import (
	"fmt"
	"math"
	"time"

	"github.com/danieldreier/vocab-drill/internal/mastery"
	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/sm2"
)

// WeightResult is the scoring output for one word. Reasons lists, in order,
// the terms that contributed to Weight.
type WeightResult struct {
	WordID  int64    `json:"word_id"`
	Weight  float64  `json:"weight"`
	Reasons []string `json:"reasons"`
}

type accumulator struct {
	weight  float64
	reasons []string
}

func (a *accumulator) add(w float64, format string, args ...any) {
	a.weight += w
	a.reasons = append(a.reasons, fmt.Sprintf(format, args...)+fmt.Sprintf(" (+%.3f)", w))
}

// Score computes the priority weight of p in the given mode as of now.
// Higher weights are presented first. The result is never negative.
func Score(p models.ProgressRecord, mode models.Mode, now time.Time) WeightResult {
	m := mastery.Mastery(p)
	acc := &accumulator{}

	switch mode {
	case models.Review:
		acc.add(math.Pow(1-m, 2)*0.6, "low mastery %.2f", m)
		urgency := sm2.Urgency(p, now)
		acc.add(urgency*0.3, "urgency %.2f", urgency)
		if sm2.IsDueForReview(p, now) {
			acc.add(0.2, "due for review")
		}
	default:
		acc.add((1-m)*0.4, "low mastery %.2f", m)
	}

	dw := mastery.DifficultyWeight(p)
	acc.add(dw*0.2, "difficulty %.2f", dw)

	sw := mastery.SpeedWeight(p)
	acc.add(sw*0.15, "response speed %.2f", sw)

	if p.WrongStreak > 0 {
		acc.add(math.Min(float64(p.WrongStreak)*0.1, 0.3), "wrong streak %d", p.WrongStreak)
	}

	if p.TimesSeen == 0 && mode != models.Review {
		acc.add(0.2, "new word")
	}

	switch mode {
	case models.Drill:
		scoreDrill(acc, m)
	case models.Quiz:
		scoreQuiz(acc, p, m)
	case models.Review:
		scoreReview(acc, m)
	}

	return WeightResult{
		WordID:  p.WordID,
		Weight:  math.Max(0, acc.weight),
		Reasons: acc.reasons,
	}
}

func scoreDrill(acc *accumulator, m float64) {
	if m < 0.5 {
		acc.add(0.15, "still learning")
	}
}

func scoreReview(acc *accumulator, m float64) {
	switch {
	case m < 0.3:
		acc.add(0.25, "weak recall")
	case m < 0.5:
		acc.add(0.15, "shaky recall")
	}
}

// scoreQuiz favours words near the middle of the mastery range, where a test
// question is most informative, and boosts hard or recently missed words.
func scoreQuiz(acc *accumulator, p models.ProgressRecord, m float64) {
	if closeness := 1 - math.Abs(m-0.5)/0.3; closeness > 0 {
		acc.add(0.2*closeness, "near mid mastery")
	}
	switch {
	case m < 0.3:
		acc.add(0.3*(0.3-m), "needs testing")
	case m >= 0.7 && m <= 0.9:
		acc.add(0.1*(0.9-m), "confirm retention")
	}
	if p.EffectiveDifficulty() >= 4 {
		acc.add(0.1, "hard word")
	}
	if p.WrongStreak >= 2 {
		acc.add(0.15, "repeated misses")
	}
}
