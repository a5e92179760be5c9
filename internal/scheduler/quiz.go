package scheduler

import (
	"context"

	"github.com/danieldreier/vocab-drill/internal/mastery"
	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/ranker"
	"github.com/danieldreier/vocab-drill/internal/scorer"
	"go.uber.org/zap"
)

// IntRange is an inclusive integer range.
type IntRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r IntRange) contains(v int) bool { return v >= r.Min && v <= r.Max }

// FloatRange is an inclusive float range.
type FloatRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r FloatRange) contains(v float64) bool { return v >= r.Min && v <= r.Max }

var (
	defaultDifficultyRange = IntRange{Min: 1, Max: 5}
	defaultMasteryRange    = FloatRange{Min: 0, Max: 1}
)

// QuizOptions selects a test session. Nil ranges mean difficulty 1-5 and
// mastery 0-1. Too-easy words are left out unless IncludeTooEasy is set.
type QuizOptions struct {
	SetID int64 `json:"set_id,omitempty"`
	Limit int   `json:"limit,omitempty"`

	DifficultyRange *IntRange   `json:"difficulty_range,omitempty"`
	MasteryRange    *FloatRange `json:"mastery_range,omitempty"`
	IncludeTooEasy  bool        `json:"include_too_easy,omitempty"`
	ExcludeTooHard  bool        `json:"exclude_too_hard,omitempty"`

	Explain bool `json:"explain,omitempty"`
}

// QuizResult is a ranked test session. The averages cover every eligible
// word, not only the returned ones.
type QuizResult struct {
	OrderedIDs        []int64               `json:"ordered_ids"`
	TotalEligible     int                   `json:"total_eligible"`
	AverageDifficulty float64               `json:"average_difficulty"`
	AverageMastery    float64               `json:"average_mastery"`
	Weights           []scorer.WeightResult `json:"weights,omitempty"`
}

// tooEasy: known well and seen often.
func tooEasy(rec models.ProgressRecord, m float64) bool {
	return m > 0.9 && rec.TimesSeen > wellKnownSeen
}

// tooHard: barely known and missed many times in a row.
func tooHard(rec models.ProgressRecord, m float64) bool {
	return m < 0.1 && rec.WrongStreak >= 5
}

// ScheduleQuiz ranks the words matching the difficulty and mastery ranges.
func (s *Scheduler) ScheduleQuiz(ctx context.Context, opts QuizOptions) (QuizResult, error) {
	now := s.now()
	records, err := s.candidates(ctx, opts.SetID, now)
	if err != nil {
		return QuizResult{}, s.fail("schedule quiz", models.Quiz, opts.SetID, err)
	}

	difficulty := defaultDifficultyRange
	if opts.DifficultyRange != nil {
		difficulty = *opts.DifficultyRange
	}
	masteryRange := defaultMasteryRange
	if opts.MasteryRange != nil {
		masteryRange = *opts.MasteryRange
	}

	var sumDifficulty, sumMastery float64
	eligible := make([]models.ProgressRecord, 0, len(records))
	for _, rec := range records {
		d := rec.EffectiveDifficulty()
		m := mastery.Mastery(rec)
		if !difficulty.contains(d) || !masteryRange.contains(m) {
			continue
		}
		if !opts.IncludeTooEasy && tooEasy(rec, m) {
			continue
		}
		if opts.ExcludeTooHard && tooHard(rec, m) {
			continue
		}
		eligible = append(eligible, rec)
		sumDifficulty += float64(d)
		sumMastery += m
	}

	weights, err := s.rank(ctx, eligible, models.Quiz, now, opts.Limit, s.limits.Quiz)
	if err != nil {
		return QuizResult{}, s.fail("schedule quiz", models.Quiz, opts.SetID, err)
	}

	res := QuizResult{
		OrderedIDs:    ranker.IDs(weights),
		TotalEligible: len(eligible),
		Weights:       explain(weights, opts.Explain),
	}
	if n := len(eligible); n > 0 {
		res.AverageDifficulty = sumDifficulty / float64(n)
		res.AverageMastery = sumMastery / float64(n)
	}

	s.logger.Debug("Scheduled quiz",
		zap.Int64("set_id", opts.SetID),
		zap.Int("eligible", res.TotalEligible),
		zap.Int("returned", len(res.OrderedIDs)))
	return res, nil
}
