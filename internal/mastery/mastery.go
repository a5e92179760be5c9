// Package mastery estimates how well a word is known and derives the
// speed and difficulty sub-weights the scorer combines.
package mastery

import (
	"math"

	"github.com/danieldreier/vocab-drill/internal/models"
)

const (
	accuracyWeight      = 0.5
	correctStreakWeight = 0.1
	wrongStreakPenalty  = 0.15
	repetitionWeight    = 0.1
	repetitionCap       = 0.3
	fastRatioWeight     = 0.15
	slowRatioPenalty    = 0.1
	averageSpeedWeight  = 0.1

	// StruggleStreak is the wrong streak at which mastery is halved.
	StruggleStreak = 3

	neutralSpeedWeight = 0.5
	fastSpeedWeight    = 0.2
	slowSpeedWeight    = 1.0
	minSpeedWeight     = 0.1
	slowRatioNudge     = 0.2
	fastRatioNudge     = 0.3

	errorRateWeight = 0.3
)

// Mastery returns a 0-1 estimate of how well the word is known. Words that
// have never been answered have no mastery.
func Mastery(p models.ProgressRecord) float64 {
	if p.TimesSeen == 0 {
		return 0
	}
	seen := float64(p.TimesSeen)
	accuracy := float64(p.TimesCorrect) / seen

	m := accuracy*accuracyWeight +
		float64(p.CorrectStreak)*correctStreakWeight -
		float64(p.WrongStreak)*wrongStreakPenalty +
		math.Min(float64(p.Repetitions)*repetitionWeight, repetitionCap) +
		speedBonus(p)

	if p.WrongStreak >= StruggleStreak {
		m *= 0.5
	}
	return clamp(m, 0, 1)
}

// speedBonus sums the fast/slow ratio term and the average response term.
func speedBonus(p models.ProgressRecord) float64 {
	seen := float64(p.TimesSeen)
	bonus := float64(p.FastResponseCount)/seen*fastRatioWeight -
		float64(p.SlowResponseCount)/seen*slowRatioPenalty

	if p.HasSpeedData() {
		bonus += averageSpeedWeight * speedScale(p.AverageResponseTime)
	}
	return bonus
}

// speedScale maps an average response time to +1 (fast) through -1 (slow).
func speedScale(avgMs float64) float64 {
	switch {
	case avgMs <= models.FastResponseMs:
		return 1
	case avgMs >= models.SlowResponseMs:
		return -1
	}
	span := float64(models.SlowResponseMs - models.FastResponseMs)
	return 1 - 2*(avgMs-models.FastResponseMs)/span
}

// SpeedWeight is high for words answered slowly and low for words answered
// quickly, in [0.1, 1.0]. Words without timing data sit in the middle.
func SpeedWeight(p models.ProgressRecord) float64 {
	if !p.HasSpeedData() {
		return neutralSpeedWeight
	}

	var w float64
	switch avg := p.AverageResponseTime; {
	case avg >= models.SlowResponseMs:
		w = slowSpeedWeight
	case avg <= models.FastResponseMs:
		w = fastSpeedWeight
	default:
		span := float64(models.SlowResponseMs - models.FastResponseMs)
		w = fastSpeedWeight + (slowSpeedWeight-fastSpeedWeight)*(avg-models.FastResponseMs)/span
	}

	if p.TimesSeen > 0 {
		seen := float64(p.TimesSeen)
		if float64(p.SlowResponseCount)/seen > 0.5 {
			w += slowRatioNudge
		}
		if float64(p.FastResponseCount)/seen > 0.5 {
			w -= fastRatioNudge
		}
	}
	return clamp(w, minSpeedWeight, 1)
}

// DifficultyWeight combines the rated difficulty with the observed error
// rate, in [0, 1].
func DifficultyWeight(p models.ProgressRecord) float64 {
	w := float64(p.EffectiveDifficulty()) / 5
	if p.TimesSeen > 0 {
		errorRate := 1 - float64(p.TimesCorrect)/float64(p.TimesSeen)
		w += errorRate * errorRateWeight
	}
	return clamp(w, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
