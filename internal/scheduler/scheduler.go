// Package scheduler decides which words a study session presents and in
// what order. Each mode filters the candidate words its own way, then hands
// the survivors to the ranker.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/ranker"
	"github.com/danieldreier/vocab-drill/internal/scorer"
	"github.com/danieldreier/vocab-drill/internal/storage"
	"go.uber.org/zap"
)

// Default session sizes per mode.
const (
	DefaultFlashcardLimit = 50
	DefaultQuizLimit      = 30
	DefaultReviewLimit    = 50
)

// Limits overrides the default session size of each mode. Zero keeps the
// default.
type Limits struct {
	Flashcard int
	Quiz      int
	Review    int
}

// Options configures a Scheduler.
type Options struct {
	Ranker *ranker.Ranker
	Logger *zap.Logger
	Now    func() time.Time
	Limits Limits
}

// Scheduler builds study sessions from the words in storage.
type Scheduler struct {
	store  storage.Storage
	ranker *ranker.Ranker
	logger *zap.Logger
	now    func() time.Time
	limits Limits
}

// New creates a Scheduler reading from store.
func New(store storage.Storage, opts Options) *Scheduler {
	s := &Scheduler{
		store:  store,
		ranker: opts.Ranker,
		logger: opts.Logger,
		now:    opts.Now,
		limits: opts.Limits,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ranker == nil {
		s.ranker = ranker.New(ranker.Options{Logger: s.logger, Now: s.now})
	}
	if s.limits.Flashcard == 0 {
		s.limits.Flashcard = DefaultFlashcardLimit
	}
	if s.limits.Quiz == 0 {
		s.limits.Quiz = DefaultQuizLimit
	}
	if s.limits.Review == 0 {
		s.limits.Review = DefaultReviewLimit
	}
	return s
}

// EnsureProgress returns a progress record for every item, in item order,
// creating the missing ones in a single bulk write. Creation only inserts,
// so a record written by a concurrent answer is returned instead of being
// reset.
func (s *Scheduler) EnsureProgress(ctx context.Context, items []models.Item) ([]models.ProgressRecord, error) {
	return s.ensureProgress(ctx, items, s.now())
}

func (s *Scheduler) ensureProgress(ctx context.Context, items []models.Item, now time.Time) ([]models.ProgressRecord, error) {
	if len(items) == 0 {
		return []models.ProgressRecord{}, nil
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	existing, err := s.store.BulkGetProgress(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	byID := make(map[int64]models.ProgressRecord, len(existing))
	for _, rec := range existing {
		byID[rec.WordID] = rec
	}

	var missing []models.ProgressRecord
	for _, item := range items {
		if _, ok := byID[item.ID]; !ok {
			rec := models.NewProgressRecord(item, now)
			byID[item.ID] = rec
			missing = append(missing, rec)
		}
	}

	if len(missing) > 0 {
		stored, err := s.store.CreateProgress(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to create progress: %w", err)
		}
		for _, rec := range stored {
			byID[rec.WordID] = rec
		}
		s.logger.Debug("Created progress records", zap.Int("count", len(missing)))
	}

	records := make([]models.ProgressRecord, 0, len(items))
	for _, item := range items {
		records = append(records, byID[item.ID])
	}
	return records, nil
}

// candidates loads the words in scope, all of them when setID is zero,
// and makes sure each has a progress record.
func (s *Scheduler) candidates(ctx context.Context, setID int64, now time.Time) ([]models.ProgressRecord, error) {
	var (
		items []models.Item
		err   error
	)
	if setID == 0 {
		items, err = s.store.AllItems(ctx)
	} else {
		items, err = s.store.ItemsBySet(ctx, setID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	return s.ensureProgress(ctx, items, now)
}

// rank orders the eligible records as of now, the instant the caller
// filtered them at. A limit of zero selects the mode's default size and a
// negative one disables truncation.
func (s *Scheduler) rank(ctx context.Context, eligible []models.ProgressRecord, mode models.Mode, now time.Time, limit, defaultLimit int) ([]scorer.WeightResult, error) {
	switch {
	case limit == 0:
		limit = defaultLimit
	case limit < 0:
		limit = 0
	}
	return s.ranker.RankWeightsAt(ctx, eligible, mode, limit, now)
}

func (s *Scheduler) fail(op string, mode models.Mode, setID int64, err error) error {
	s.logger.Error("Scheduling failed",
		zap.String("op", op),
		zap.Stringer("mode", mode),
		zap.Int64("set_id", setID),
		zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func explain(weights []scorer.WeightResult, enabled bool) []scorer.WeightResult {
	if !enabled {
		return nil
	}
	return weights
}
