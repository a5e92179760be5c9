// Package ranker orders progress records by their scorer weight. Small
// batches are scored on the caller's goroutine; larger ones are handed to a
// background scorer and awaited with a timeout. Both paths run the same
// scoring function and the same stable sort.
package ranker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/scorer"
	"go.uber.org/zap"
)

const (
	// DefaultInlineThreshold is the batch size from which scoring moves to
	// the background scorer.
	DefaultInlineThreshold = 10

	// DefaultTimeout bounds how long a background scoring job may take.
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrScoringTimeout is returned when the background scorer does not
	// answer within the configured timeout. No partial ranking is returned.
	ErrScoringTimeout = errors.New("ranker: background scoring timed out")

	// ErrScorerStopped is returned when the pool shuts down while a job is
	// waiting to be accepted.
	ErrScorerStopped = errors.New("ranker: background scorer stopped")
)

// Options configures a Ranker. Zero values select the defaults.
type Options struct {
	InlineThreshold int
	Timeout         time.Duration
	Pool            *Pool
	Logger          *zap.Logger
	Now             func() time.Time
}

// Ranker sorts progress records for a study mode.
type Ranker struct {
	inlineThreshold int
	timeout         time.Duration
	pool            *Pool
	logger          *zap.Logger
	now             func() time.Time
}

// New creates a Ranker.
func New(opts Options) *Ranker {
	r := &Ranker{
		inlineThreshold: opts.InlineThreshold,
		timeout:         opts.Timeout,
		pool:            opts.Pool,
		logger:          opts.Logger,
		now:             opts.Now,
	}
	if r.inlineThreshold <= 0 {
		r.inlineThreshold = DefaultInlineThreshold
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.pool == nil {
		r.pool = DefaultPool()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Rank returns word ids ordered by descending weight, truncated to limit
// when limit > 0. Words with equal weight keep their input order.
func (r *Ranker) Rank(ctx context.Context, records []models.ProgressRecord, mode models.Mode, limit int) ([]int64, error) {
	weights, err := r.RankWeights(ctx, records, mode, limit)
	if err != nil {
		return nil, err
	}
	return IDs(weights), nil
}

// RankWeights is Rank but keeps the weights and their reasons.
func (r *Ranker) RankWeights(ctx context.Context, records []models.ProgressRecord, mode models.Mode, limit int) ([]scorer.WeightResult, error) {
	return r.RankWeightsAt(ctx, records, mode, limit, r.now())
}

// RankWeightsAt scores against now instead of the ranker's clock, so a
// caller that already filtered the records by time ranks them at the same
// instant.
func (r *Ranker) RankWeightsAt(ctx context.Context, records []models.ProgressRecord, mode models.Mode, limit int, now time.Time) ([]scorer.WeightResult, error) {
	var weights []scorer.WeightResult
	if len(records) < r.inlineThreshold {
		r.logger.Debug("Ranking inline", zap.Int("count", len(records)), zap.Stringer("mode", mode))
		weights = scoreAll(records, mode, now)
	} else {
		var err error
		weights, err = r.rankInBackground(ctx, records, mode, now)
		if err != nil {
			return nil, err
		}
	}

	if limit > 0 && len(weights) > limit {
		weights = weights[:limit]
	}
	return weights, nil
}

func (r *Ranker) rankInBackground(ctx context.Context, records []models.ProgressRecord, mode models.Mode, now time.Time) ([]scorer.WeightResult, error) {
	snapshot := make([]models.ProgressRecord, len(records))
	for i, rec := range records {
		snapshot[i] = rec.Clone()
	}

	r.logger.Debug("Dispatching to background scorer",
		zap.Int("count", len(snapshot)),
		zap.Stringer("mode", mode),
		zap.Duration("timeout", r.timeout))

	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bg := r.pool.Acquire()
	reply, err := bg.Submit(tctx, Request{Progresses: snapshot, Mode: mode, Now: now})
	if err != nil {
		return nil, r.waitError(ctx, err)
	}

	select {
	case resp := <-reply:
		if resp.Err != nil {
			return nil, r.waitError(ctx, resp.Err)
		}
		return resp.Weights, nil
	case <-tctx.Done():
		return nil, r.waitError(ctx, tctx.Err())
	}
}

// waitError tells a caller cancellation apart from our own timeout.
func (r *Ranker) waitError(parent context.Context, err error) error {
	if errors.Is(err, ErrScorerStopped) {
		r.logger.Warn("Background scorer stopped before accepting job")
		return err
	}
	if parent.Err() != nil {
		return fmt.Errorf("ranking cancelled: %w", parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		r.logger.Error("Background scoring timed out", zap.Duration("timeout", r.timeout))
		return ErrScoringTimeout
	}
	return err
}

// scoreAll is the inline path.
func scoreAll(records []models.ProgressRecord, mode models.Mode, now time.Time) []scorer.WeightResult {
	weights := make([]scorer.WeightResult, len(records))
	for i, rec := range records {
		weights[i] = scorer.Score(rec, mode, now)
	}
	sortWeights(weights)
	return weights
}

func sortWeights(weights []scorer.WeightResult) {
	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].Weight > weights[j].Weight
	})
}

// IDs extracts the word ids in order.
func IDs(weights []scorer.WeightResult) []int64 {
	ids := make([]int64, len(weights))
	for i, w := range weights {
		ids[i] = w.WordID
	}
	return ids
}
