package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/danieldreier/vocab-drill/internal/config"
	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/progress"
	"github.com/danieldreier/vocab-drill/internal/scheduler"
	"github.com/danieldreier/vocab-drill/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// mockTimeNow pins timeNow and returns a function restoring it
func mockTimeNow(mockTime time.Time) func() {
	original := timeNow
	timeNow = func() time.Time {
		return mockTime
	}
	return func() {
		timeNow = original
	}
}

// setupTestService creates a service over a JSON file in a temp dir
func setupTestService(t *testing.T) (*DrillService, string) {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "vocabdrill-service-test.json")
	fileStorage := storage.NewFileStorage(filePath, zaptest.NewLogger(t))
	require.NoError(t, fileStorage.Load(), "Failed to initialize storage")

	cfg := config.Default()
	cfg.Scoring.Workers = 2
	service := NewDrillService(fileStorage, cfg, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = service.Close() })
	return service, filePath
}

func difficulty(d int) *int { return &d }

func grade(g int) *int { return &g }

// addWords creates n words in a set and returns their ids
func addWords(t *testing.T, s *DrillService, setID int64, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		word, err := s.CreateWord(context.Background(), models.Item{
			SetID:       setID,
			Term:        "term " + string(rune('a'+i)),
			Translation: "translation " + string(rune('a'+i)),
		})
		require.NoError(t, err, "CreateWord should not return an error")
		ids = append(ids, word.ID)
	}
	return ids
}

func TestCreateWord(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	word, err := service.CreateWord(ctx, models.Item{SetID: 1, Term: "Hund", Translation: "dog", Difficulty: difficulty(2)})
	require.NoError(t, err)
	assert.NotZero(t, word.ID, "Created word should get an id")
	assert.False(t, word.CreatedAt.IsZero(), "Created word should get a creation time")

	_, err = service.CreateWord(ctx, models.Item{SetID: 1, Term: "Katze", Translation: "cat", Difficulty: difficulty(6)})
	assert.Error(t, err, "Difficulty above 5 should be rejected")

	_, err = service.CreateWord(ctx, models.Item{SetID: 1, Term: "Maus", Translation: "mouse", Difficulty: difficulty(0)})
	assert.Error(t, err, "Difficulty below 1 should be rejected")

	words, err := service.ListWords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "Hund", words[0].Term)
	assert.Equal(t, 0, words[0].TimesSeen)
	assert.False(t, words[0].Due, "Unseen words are not due")
}

func TestSubmitAnswerAndStats(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	restore := mockTimeNow(now)
	defer restore()

	service, _ := setupTestService(t)
	ctx := context.Background()

	set1 := addWords(t, service, 1, 2)
	addWords(t, service, 2, 1)

	answers := []progress.Answer{
		{WordID: set1[0], Result: models.ResultCorrect, Mode: models.Drill, Grade: grade(5)},
		{WordID: set1[1], Result: models.ResultWrong, Mode: models.Drill},
		{WordID: set1[0], Result: models.ResultSkip, Mode: models.Review},
	}
	for _, a := range answers {
		resp := service.SubmitAnswer(ctx, a)
		require.True(t, resp.Success, "SubmitAnswer failed: %s", resp.Error)
		require.NotNil(t, resp.Progress)
	}

	stats, err := service.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		SetID:         1,
		TotalWords:    2,
		NewWords:      0,
		DueWords:      0,
		MasteredWords: 0,
		ReviewedToday: 3,
		AccuracyToday: 0.5,
	}, stats, "Skips count as reviewed but not towards accuracy")

	all, err := service.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalWords)
	assert.Equal(t, 1, all.NewWords)

	// two days later both words are due and nothing was reviewed today
	restoreLater := mockTimeNow(now.AddDate(0, 0, 2))
	defer restoreLater()

	stats, err = service.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DueWords)
	assert.Equal(t, 0, stats.ReviewedToday)
	assert.Equal(t, 0.0, stats.AccuracyToday)
}

func TestSubmitAnswerUnknownWord(t *testing.T) {
	service, _ := setupTestService(t)

	resp := service.SubmitAnswer(context.Background(), progress.Answer{
		WordID: 404,
		Result: models.ResultCorrect,
		Mode:   models.Drill,
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not found")
	assert.Nil(t, resp.Progress)
}

func TestSubmitAnswerInvalid(t *testing.T) {
	service, _ := setupTestService(t)
	ids := addWords(t, service, 1, 1)

	resp := service.SubmitAnswer(context.Background(), progress.Answer{
		WordID: ids[0],
		Result: "maybe",
		Mode:   models.Drill,
	})
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestSubmitAnswerPersists(t *testing.T) {
	service, filePath := setupTestService(t)
	ctx := context.Background()
	ids := addWords(t, service, 1, 1)

	resp := service.SubmitAnswer(ctx, progress.Answer{WordID: ids[0], Result: models.ResultCorrect, Mode: models.Quiz, Grade: grade(4)})
	require.True(t, resp.Success, resp.Error)

	reloaded := storage.NewFileStorage(filePath, zaptest.NewLogger(t))
	require.NoError(t, reloaded.Load())

	rec, err := reloaded.GetProgress(ctx, ids[0])
	require.NoError(t, err, "Progress should be on disk after an answer")
	assert.Equal(t, 1, rec.TimesSeen)
	assert.Equal(t, models.Quiz, rec.LastMode)

	logs, err := reloaded.ListLogs(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestScheduleModes(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	restore := mockTimeNow(now)
	defer restore()

	service, _ := setupTestService(t)
	ctx := context.Background()

	// more words than the inline threshold so the background scorer runs
	ids := addWords(t, service, 1, 12)

	resp := service.Schedule(ctx, models.Drill, scheduler.FlashcardOptions{SetID: 1}, scheduler.QuizOptions{}, scheduler.ReviewOptions{})
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Flashcard)
	assert.Nil(t, resp.Quiz)
	assert.Nil(t, resp.Review)
	assert.ElementsMatch(t, ids, resp.Flashcard.OrderedIDs)
	assert.Equal(t, 12, resp.Flashcard.NewCount)

	resp = service.Schedule(ctx, models.Quiz, scheduler.FlashcardOptions{}, scheduler.QuizOptions{SetID: 1, Limit: 5}, scheduler.ReviewOptions{})
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Quiz)
	assert.Len(t, resp.Quiz.OrderedIDs, 5)
	assert.Equal(t, 12, resp.Quiz.TotalEligible)

	resp = service.Schedule(ctx, models.Review, scheduler.FlashcardOptions{}, scheduler.QuizOptions{}, scheduler.ReviewOptions{SetID: 1})
	require.True(t, resp.Success, resp.Error)
	require.NotNil(t, resp.Review)
	assert.Empty(t, resp.Review.OrderedIDs, "Nothing has been seen yet")

	for _, id := range ids[:2] {
		ans := service.SubmitAnswer(ctx, progress.Answer{WordID: id, Result: models.ResultWrong, Mode: models.Drill})
		require.True(t, ans.Success, ans.Error)
	}

	resp = service.Schedule(ctx, models.Review, scheduler.FlashcardOptions{}, scheduler.QuizOptions{}, scheduler.ReviewOptions{SetID: 1, Explain: true})
	require.True(t, resp.Success, resp.Error)
	assert.ElementsMatch(t, ids[:2], resp.Review.OrderedIDs)
	assert.Len(t, resp.Review.Weights, 2, "Explain should return one weight per word")
}

func TestScheduleUnknownMode(t *testing.T) {
	service, _ := setupTestService(t)

	resp := service.Schedule(context.Background(), models.Mode(9), scheduler.FlashcardOptions{}, scheduler.QuizOptions{}, scheduler.ReviewOptions{})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown mode")
}

func TestDeleteWord(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()
	ids := addWords(t, service, 1, 2)

	require.NoError(t, service.DeleteWord(ctx, ids[0]))

	words, err := service.ListWords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, ids[1], words[0].ID)

	err = service.DeleteWord(ctx, ids[0])
	assert.True(t, errors.Is(err, storage.ErrNotFound), "Deleting twice should report not found, got %v", err)
}

func TestSets(t *testing.T) {
	service, _ := setupTestService(t)
	ctx := context.Background()

	set2 := addWords(t, service, 2, 1)
	set1 := addWords(t, service, 1, 3)

	// three correct answers in a row master a word
	for i := 0; i < 3; i++ {
		resp := service.SubmitAnswer(ctx, progress.Answer{WordID: set1[0], Result: models.ResultCorrect, Mode: models.Drill})
		require.True(t, resp.Success, resp.Error)
	}
	resp := service.SubmitAnswer(ctx, progress.Answer{WordID: set2[0], Result: models.ResultWrong, Mode: models.Drill})
	require.True(t, resp.Success, resp.Error)

	sets, err := service.Sets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []SetSummary{
		{SetID: 1, Words: 3, Seen: 1, Mastered: 1},
		{SetID: 2, Words: 1, Seen: 1, Mastered: 0},
	}, sets)
}

func TestOpenStore(t *testing.T) {
	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	for _, driver := range []string{config.DriverJSON, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			store, err := openStore(config.StorageConfig{Driver: driver, Path: filepath.Join(dir, "store-"+driver)}, logger)
			require.NoError(t, err)
			assert.NoError(t, store.Close())
		})
	}

	_, err := openStore(config.StorageConfig{Driver: "csv", Path: filepath.Join(dir, "x")}, logger)
	assert.Error(t, err, "Unknown drivers should be rejected")
}
