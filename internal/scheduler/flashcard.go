package scheduler

import (
	"context"
	"math"

	"github.com/danieldreier/vocab-drill/internal/mastery"
	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/ranker"
	"github.com/danieldreier/vocab-drill/internal/scorer"
	"github.com/danieldreier/vocab-drill/internal/sm2"
	"go.uber.org/zap"
)

// MasteryFloor is the lowest threshold ExcludeMastered honours. Callers
// passing a lower MasteryThreshold get the floor instead, so a low value
// can never drop words that are still being learned.
const MasteryFloor = 0.9

// wellKnownSeen is how often a word must have been seen before it can be
// treated as too easy.
const wellKnownSeen = 10

// FlashcardOptions selects a drill session.
type FlashcardOptions struct {
	SetID int64 `json:"set_id,omitempty"`
	Limit int   `json:"limit,omitempty"`

	ExcludeNew       bool    `json:"exclude_new,omitempty"`
	ExcludeDue       bool    `json:"exclude_due,omitempty"`
	ExcludeMastered  bool    `json:"exclude_mastered,omitempty"`
	MasteryThreshold float64 `json:"mastery_threshold,omitempty"`

	Explain bool `json:"explain,omitempty"`
}

// FlashcardResult is a ranked drill session.
type FlashcardResult struct {
	OrderedIDs    []int64               `json:"ordered_ids"`
	TotalEligible int                   `json:"total_eligible"`
	NewCount      int                   `json:"new_count"`
	DueCount      int                   `json:"due_count"`
	Weights       []scorer.WeightResult `json:"weights,omitempty"`
}

// ScheduleFlashcard ranks every word in scope for drilling.
func (s *Scheduler) ScheduleFlashcard(ctx context.Context, opts FlashcardOptions) (FlashcardResult, error) {
	now := s.now()
	records, err := s.candidates(ctx, opts.SetID, now)
	if err != nil {
		return FlashcardResult{}, s.fail("schedule flashcard", models.Drill, opts.SetID, err)
	}

	threshold := math.Max(opts.MasteryThreshold, MasteryFloor)

	var res FlashcardResult
	eligible := make([]models.ProgressRecord, 0, len(records))
	for _, rec := range records {
		isNew := rec.IsNew()
		due := sm2.IsDueForReview(rec, now)
		if opts.ExcludeNew && isNew {
			continue
		}
		if opts.ExcludeDue && due {
			continue
		}
		if opts.ExcludeMastered && rec.TimesSeen > wellKnownSeen && mastery.Mastery(rec) >= threshold {
			continue
		}
		eligible = append(eligible, rec)
		if isNew {
			res.NewCount++
		}
		if due {
			res.DueCount++
		}
	}

	weights, err := s.rank(ctx, eligible, models.Drill, now, opts.Limit, s.limits.Flashcard)
	if err != nil {
		return FlashcardResult{}, s.fail("schedule flashcard", models.Drill, opts.SetID, err)
	}

	res.OrderedIDs = ranker.IDs(weights)
	res.TotalEligible = len(eligible)
	res.Weights = explain(weights, opts.Explain)

	s.logger.Debug("Scheduled flashcards",
		zap.Int64("set_id", opts.SetID),
		zap.Int("eligible", res.TotalEligible),
		zap.Int("returned", len(res.OrderedIDs)))
	return res, nil
}
