// Package propertytest drives the storage, scheduler and progress packages
// through random command sequences and checks them against a simple model.
package propertytest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/progress"
	"github.com/danieldreier/vocab-drill/internal/ranker"
	"github.com/danieldreier/vocab-drill/internal/scheduler"
	"github.com/danieldreier/vocab-drill/internal/storage"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"go.uber.org/zap"
)

// Clock is a manually advanced time source shared by every component of a SUT
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at start
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// DrillSUT is the system under test: one store with a scheduler and an
// updater on top, all reading the same clock.
type DrillSUT struct {
	Store     *storage.FileStorage
	Scheduler *scheduler.Scheduler
	Updater   *progress.Updater
	Pool      *ranker.Pool
	Clock     *Clock
	T         *testing.T

	dir string
}

// inlineThreshold is kept low so most schedules go through the background scorer
const inlineThreshold = 3

// NewDrillSUT creates a SUT over a fresh JSON file in its own temp dir
func NewDrillSUT(t *testing.T) (*DrillSUT, error) {
	dir, err := os.MkdirTemp("", "vocabdrill-sut-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger := zap.NewNop()
	store := storage.NewFileStorage(filepath.Join(dir, "vocabdrill-test.json"), logger)
	if err := store.Load(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to load storage: %w", err)
	}

	clock := NewClock(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	pool := ranker.NewPool(2, logger)
	rk := ranker.New(ranker.Options{
		InlineThreshold: inlineThreshold,
		Timeout:         5 * time.Second,
		Pool:            pool,
		Logger:          logger,
		Now:             clock.Now,
	})

	return &DrillSUT{
		Store:     store,
		Scheduler: scheduler.New(store, scheduler.Options{Ranker: rk, Logger: logger, Now: clock.Now}),
		Updater:   progress.New(store, progress.Options{Logger: logger, Now: clock.Now}),
		Pool:      pool,
		Clock:     clock,
		T:         t,
		dir:       dir,
	}, nil
}

// Close stops the scorer and removes the temp dir
func (s *DrillSUT) Close() {
	s.Pool.Shutdown()
	if err := s.Store.Close(); err != nil {
		s.T.Logf("Warning: failed to close storage: %v", err)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		s.T.Logf("Warning: failed to remove temp directory %s: %v", s.dir, err)
	}
}

// --- Generators ---

// GenSetID generates a set id between 1 and 3
func GenSetID() gopter.Gen {
	return gen.Int64Range(1, 3)
}

// optionalInt generates a *int in [lo, hi] that is nil about a quarter of
// the time. A nil draw is still typed as *int.
func optionalInt(lo, hi int) gopter.Gen {
	return gopter.CombineGens(gen.IntRange(0, 3), gen.IntRange(lo, hi)).
		Map(func(v []interface{}) *int {
			if v[0].(int) == 0 {
				return nil
			}
			n := v[1].(int)
			return &n
		})
}

// GenDifficulty generates an optional 1-5 difficulty
func GenDifficulty() gopter.Gen {
	return optionalInt(1, 5)
}

// GenResult generates one of the three answer results
func GenResult() gopter.Gen {
	return gen.OneConstOf(models.ResultCorrect, models.ResultWrong, models.ResultSkip)
}

// GenMode generates one of the three study modes
func GenMode() gopter.Gen {
	return gen.OneConstOf(models.Drill, models.Quiz, models.Review)
}

// GenGrade generates an optional 0-5 grade
func GenGrade() gopter.Gen {
	return optionalInt(0, 5)
}

// GenResponseTime generates an optional response time that spans the fast
// and slow buckets
func GenResponseTime() gopter.Gen {
	return optionalInt(500, 15000)
}

// GenAnswer generates a valid answer for wordID
func GenAnswer(wordID int64) gopter.Gen {
	return gopter.CombineGens(GenResult(), GenMode(), GenGrade(), GenResponseTime()).
		Map(func(v []interface{}) progress.Answer {
			grade, _ := v[2].(*int)
			responseMs, _ := v[3].(*int)
			return progress.Answer{
				WordID:         wordID,
				Result:         v[0].(models.Result),
				Mode:           v[1].(models.Mode),
				Grade:          grade,
				ResponseTimeMs: responseMs,
			}
		})
}
