// Package progress applies answers to progress records. It is the only
// code that changes a record after creation, and every change is paired
// with one review log entry.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/sm2"
	"github.com/danieldreier/vocab-drill/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownResult       = errors.New("progress: unknown answer result")
	ErrUnknownMode         = errors.New("progress: unknown study mode")
	ErrInvalidGrade        = errors.New("progress: grade must be between 0 and 5")
	ErrInvalidResponseTime = errors.New("progress: response time must not be negative")
)

// defaultGrade is assumed for a correct answer that carries no grade.
const defaultGrade = 3

// Answer is one answer event from a study session.
type Answer struct {
	WordID         int64         `json:"word_id"`
	Result         models.Result `json:"result"`
	Mode           models.Mode   `json:"mode"`
	Grade          *int          `json:"grade,omitempty"`
	ResponseTimeMs *int          `json:"response_time_ms,omitempty"`
}

// Validate checks the parts of an answer that the store cannot.
func (a Answer) Validate() error {
	if !a.Result.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownResult, a.Result)
	}
	if !a.Mode.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMode, a.Mode)
	}
	if a.Grade != nil && (*a.Grade < 0 || *a.Grade > sm2.MaxGrade) {
		return fmt.Errorf("%w: got %d", ErrInvalidGrade, *a.Grade)
	}
	if a.ResponseTimeMs != nil && *a.ResponseTimeMs < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidResponseTime, *a.ResponseTimeMs)
	}
	return nil
}

// Options configures an Updater.
type Options struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// Updater turns answers into persisted progress.
type Updater struct {
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

// New creates an Updater writing to store.
func New(store storage.Storage, opts Options) *Updater {
	u := &Updater{store: store, logger: opts.Logger, now: opts.Now}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

// ApplyAnswer updates the word's progress and appends a log entry. A word
// without a progress record gets one on the fly; a word that does not exist
// yields storage.ErrNotFound. On error nothing has been persisted.
func (u *Updater) ApplyAnswer(ctx context.Context, a Answer) (models.ProgressRecord, error) {
	if err := a.Validate(); err != nil {
		return models.ProgressRecord{}, err
	}

	prev, err := u.lookup(ctx, a.WordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			u.logger.Warn("Answer for unknown word", zap.Int64("word_id", a.WordID))
		} else {
			u.logger.Error("Failed to load progress", zap.Int64("word_id", a.WordID), zap.Error(err))
		}
		return models.ProgressRecord{}, err
	}

	now := u.now()
	next := Apply(prev, a, now)
	entry := models.ReviewLogEntry{
		ID:             uuid.New().String(),
		WordID:         a.WordID,
		Timestamp:      now,
		Mode:           a.Mode,
		Result:         a.Result,
		Grade:          copyInt(a.Grade),
		EaseFactor:     next.EaseFactor,
		IntervalDays:   next.IntervalDays,
		ResponseTimeMs: copyInt(a.ResponseTimeMs),
	}

	if err := u.commit(ctx, prev, next, entry); err != nil {
		u.logger.Error("Failed to store answer", zap.Int64("word_id", a.WordID), zap.Error(err))
		return models.ProgressRecord{}, err
	}

	u.logger.Debug("Applied answer",
		zap.Int64("word_id", a.WordID),
		zap.String("result", string(a.Result)),
		zap.Stringer("mode", a.Mode),
		zap.Float64("ease_factor", next.EaseFactor),
		zap.Int("interval_days", next.IntervalDays),
		zap.Int("repetitions", next.Repetitions))
	return next, nil
}

// lookup returns the stored record, or a fresh one built from the item.
func (u *Updater) lookup(ctx context.Context, wordID int64) (models.ProgressRecord, error) {
	rec, err := u.store.GetProgress(ctx, wordID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.ProgressRecord{}, fmt.Errorf("failed to get progress: %w", err)
	}

	item, err := u.store.GetItem(ctx, wordID)
	if err != nil {
		return models.ProgressRecord{}, fmt.Errorf("failed to get word: %w", err)
	}
	return models.NewProgressRecord(item, u.now()), nil
}

// commit stores the record and its log entry together. Backends without
// transactions get the record restored if the log write fails.
func (u *Updater) commit(ctx context.Context, prev, next models.ProgressRecord, entry models.ReviewLogEntry) error {
	if c, ok := u.store.(storage.AnswerCommitter); ok {
		return c.CommitAnswer(ctx, next, entry)
	}

	if err := u.store.PutProgress(ctx, next); err != nil {
		return fmt.Errorf("failed to put progress: %w", err)
	}
	if err := u.store.AppendLog(ctx, entry); err != nil {
		if rbErr := u.store.PutProgress(ctx, prev); rbErr != nil {
			u.logger.Error("Failed to restore progress after log failure",
				zap.Int64("word_id", prev.WordID), zap.Error(rbErr))
		}
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

// Apply computes the record that results from answer a at time now. It
// does not touch storage and never mutates rec.
func Apply(rec models.ProgressRecord, a Answer, now time.Time) models.ProgressRecord {
	p := rec.Clone()

	p.TimesSeen++
	p.LastResult = a.Result
	p.LastMode = a.Mode
	p.LastReviewedAt = &now
	p.UpdatedAt = now
	if a.ResponseTimeMs != nil {
		p.RecordResponseTime(*a.ResponseTimeMs)
	}

	switch a.Result {
	case models.ResultCorrect:
		p.MarkCorrect()
		switch {
		case a.Grade != nil:
			grade := sm2.AdjustGradeBySpeed(*a.Grade, a.ResponseTimeMs)
			sm2.Review(sm2.StateOf(p), grade).Apply(&p)
		case p.Repetitions == 0:
			// first success without a grade
			p.IntervalDays = 1
			p.Repetitions = 1
		default:
			grade := sm2.AdjustGradeBySpeed(defaultGrade, a.ResponseTimeMs)
			sm2.Review(sm2.StateOf(p), grade).Apply(&p)
		}

	case models.ResultWrong:
		p.MarkWrong()
		grade := 1
		if a.Grade != nil && *a.Grade < 2 {
			grade = 0
		}
		grade = sm2.AdjustGradeBySpeed(grade, a.ResponseTimeMs)
		st := sm2.Review(sm2.StateOf(p), grade)
		// one miss always drops a word out of mastered
		st.Repetitions = min(st.Repetitions, 1)
		st.Apply(&p)

	case models.ResultSkip:
	}

	next := sm2.NextReviewDate(now, p.IntervalDays)
	p.NextReviewAt = &next
	return p
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
