package scheduler

import (
	"context"

	"github.com/danieldreier/vocab-drill/internal/mastery"
	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/ranker"
	"github.com/danieldreier/vocab-drill/internal/scorer"
	"github.com/danieldreier/vocab-drill/internal/sm2"
	"go.uber.org/zap"
)

// DefaultUrgencyThreshold is the urgency above which a word counts as urgent.
const DefaultUrgencyThreshold = 0.5

// lowMastery words qualify for an OnlyDue review before their due date.
const lowMastery = 0.5

// ReviewOptions selects a review session. A zero UrgencyThreshold means
// DefaultUrgencyThreshold.
type ReviewOptions struct {
	SetID int64 `json:"set_id,omitempty"`
	Limit int   `json:"limit,omitempty"`

	OnlyDue          bool    `json:"only_due,omitempty"`
	UrgencyThreshold float64 `json:"urgency_threshold,omitempty"`

	Explain bool `json:"explain,omitempty"`
}

// ReviewResult is a ranked review session. DueCount and UrgentCount cover
// every eligible word, not only the returned ones.
type ReviewResult struct {
	OrderedIDs    []int64               `json:"ordered_ids"`
	TotalEligible int                   `json:"total_eligible"`
	DueCount      int                   `json:"due_count"`
	UrgentCount   int                   `json:"urgent_count"`
	Weights       []scorer.WeightResult `json:"weights,omitempty"`
}

// ScheduleReview ranks previously seen words. Words that have never been
// answered are never part of a review, whatever the options say.
func (s *Scheduler) ScheduleReview(ctx context.Context, opts ReviewOptions) (ReviewResult, error) {
	now := s.now()
	records, err := s.candidates(ctx, opts.SetID, now)
	if err != nil {
		return ReviewResult{}, s.fail("schedule review", models.Review, opts.SetID, err)
	}

	threshold := opts.UrgencyThreshold
	if threshold == 0 {
		threshold = DefaultUrgencyThreshold
	}

	var res ReviewResult
	eligible := make([]models.ProgressRecord, 0, len(records))
	for _, rec := range records {
		if rec.TimesSeen == 0 {
			continue
		}
		due := sm2.IsDueForReview(rec, now)
		if opts.OnlyDue && !due && mastery.Mastery(rec) >= lowMastery {
			continue
		}
		eligible = append(eligible, rec)
		if due {
			res.DueCount++
		}
		if sm2.Urgency(rec, now) > threshold {
			res.UrgentCount++
		}
	}

	weights, err := s.rank(ctx, eligible, models.Review, now, opts.Limit, s.limits.Review)
	if err != nil {
		return ReviewResult{}, s.fail("schedule review", models.Review, opts.SetID, err)
	}

	res.OrderedIDs = ranker.IDs(weights)
	res.TotalEligible = len(eligible)
	res.Weights = explain(weights, opts.Explain)

	s.logger.Debug("Scheduled review",
		zap.Int64("set_id", opts.SetID),
		zap.Int("eligible", res.TotalEligible),
		zap.Int("due", res.DueCount),
		zap.Int("urgent", res.UrgentCount))
	return res, nil
}
