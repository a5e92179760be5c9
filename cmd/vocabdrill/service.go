package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danieldreier/vocab-drill/internal/config"
	"github.com/danieldreier/vocab-drill/internal/mastery"
	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/danieldreier/vocab-drill/internal/progress"
	"github.com/danieldreier/vocab-drill/internal/ranker"
	"github.com/danieldreier/vocab-drill/internal/scheduler"
	"github.com/danieldreier/vocab-drill/internal/sm2"
	"github.com/danieldreier/vocab-drill/internal/storage"
	"go.uber.org/zap"
)

// timeNow is replaced in tests
var timeNow = time.Now

func clock() time.Time { return timeNow() }

// DrillService wires storage, the schedulers and the progress updater
type DrillService struct {
	Store     storage.Store
	Scheduler *scheduler.Scheduler
	Updater   *progress.Updater
	Pool      *ranker.Pool
	Logger    *zap.Logger
}

// NewDrillService creates a service on top of an already loaded store
func NewDrillService(store storage.Store, cfg config.Config, logger *zap.Logger) *DrillService {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := ranker.NewPool(cfg.Scoring.Workers, logger.Named("ranker"))
	rk := ranker.New(ranker.Options{
		InlineThreshold: cfg.Scoring.InlineThreshold,
		Timeout:         cfg.Scoring.Timeout,
		Pool:            pool,
		Logger:          logger.Named("ranker"),
		Now:             clock,
	})

	return &DrillService{
		Store: store,
		Scheduler: scheduler.New(store, scheduler.Options{
			Ranker: rk,
			Logger: logger.Named("scheduler"),
			Now:    clock,
			Limits: scheduler.Limits{
				Flashcard: cfg.Schedule.FlashcardLimit,
				Quiz:      cfg.Schedule.QuizLimit,
				Review:    cfg.Schedule.ReviewLimit,
			},
		}),
		Updater: progress.New(store, progress.Options{Logger: logger.Named("progress"), Now: clock}),
		Pool:    pool,
		Logger:  logger,
	}
}

// openStore creates and loads the backend selected by cfg
func openStore(cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	var store storage.Store
	switch cfg.Driver {
	case config.DriverSQLite:
		store = storage.NewSQLStore(cfg.Path, logger.Named("storage"))
	case config.DriverJSON:
		store = storage.NewFileStorage(cfg.Path, logger.Named("storage"))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("error loading storage: %w", err)
	}
	return store, nil
}

// persist flushes the store. Writes are already visible in memory, so a
// failure is logged rather than failing the request.
func (s *DrillService) persist(op string) {
	if err := s.Store.Save(); err != nil {
		s.Logger.Error("Failed to save storage", zap.String("op", op), zap.Error(err))
	}
}

// Schedule runs the scheduler for one mode. Options for the other modes
// are ignored.
func (s *DrillService) Schedule(ctx context.Context, mode models.Mode, fc scheduler.FlashcardOptions, quiz scheduler.QuizOptions, review scheduler.ReviewOptions) ScheduleResponse {
	resp := ScheduleResponse{Mode: mode}
	var err error
	switch mode {
	case models.Drill:
		var res scheduler.FlashcardResult
		res, err = s.Scheduler.ScheduleFlashcard(ctx, fc)
		resp.Flashcard = &res
	case models.Quiz:
		var res scheduler.QuizResult
		res, err = s.Scheduler.ScheduleQuiz(ctx, quiz)
		resp.Quiz = &res
	case models.Review:
		var res scheduler.ReviewResult
		res, err = s.Scheduler.ScheduleReview(ctx, review)
		resp.Review = &res
	default:
		err = fmt.Errorf("unknown mode %d", mode)
	}
	if err != nil {
		return ScheduleResponse{Success: false, Mode: mode, Error: err.Error()}
	}
	s.persist("schedule")
	resp.Success = true
	return resp
}

// SubmitAnswer applies one answer and reports the outcome as a response
// rather than an error.
func (s *DrillService) SubmitAnswer(ctx context.Context, a progress.Answer) AnswerResponse {
	rec, err := s.Updater.ApplyAnswer(ctx, a)
	if err != nil {
		return AnswerResponse{Success: false, Error: err.Error()}
	}
	s.persist("answer")
	return AnswerResponse{Success: true, Progress: &rec}
}

// CreateWord adds a word to a set
func (s *DrillService) CreateWord(ctx context.Context, item models.Item) (models.Item, error) {
	if item.Difficulty != nil && (*item.Difficulty < 1 || *item.Difficulty > 5) {
		return models.Item{}, fmt.Errorf("difficulty must be between 1 and 5, got %d", *item.Difficulty)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = timeNow()
	}
	created, err := s.Store.CreateItem(ctx, item)
	if err != nil {
		s.Logger.Error("Error creating word", zap.Error(err))
		return models.Item{}, fmt.Errorf("error creating word: %w", err)
	}
	s.persist("create word")
	return created, nil
}

// DeleteWord removes a word and its progress
func (s *DrillService) DeleteWord(ctx context.Context, id int64) error {
	if err := s.Store.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("error deleting word: %w", err)
	}
	s.persist("delete word")
	return nil
}

// scope returns the words of a set, or all words for setID 0, with their
// progress records keyed by word id. Words never scheduled have no entry.
func (s *DrillService) scope(ctx context.Context, setID int64) ([]models.Item, map[int64]models.ProgressRecord, error) {
	var (
		items []models.Item
		err   error
	)
	if setID == 0 {
		items, err = s.Store.AllItems(ctx)
	} else {
		items, err = s.Store.ItemsBySet(ctx, setID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error listing words: %w", err)
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	recs, err := s.Store.BulkGetProgress(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading progress: %w", err)
	}
	byID := make(map[int64]models.ProgressRecord, len(recs))
	for _, rec := range recs {
		byID[rec.WordID] = rec
	}
	return items, byID, nil
}

// ListWords returns the words of a set with their learning state
func (s *DrillService) ListWords(ctx context.Context, setID int64) ([]WordInfo, error) {
	items, recs, err := s.scope(ctx, setID)
	if err != nil {
		return nil, err
	}
	now := timeNow()
	words := make([]WordInfo, 0, len(items))
	for _, item := range items {
		rec, ok := recs[item.ID]
		if !ok {
			rec = models.NewProgressRecord(item, now)
		}
		words = append(words, WordInfo{
			Item:         item,
			TimesSeen:    rec.TimesSeen,
			Mastery:      mastery.Mastery(rec),
			Mastered:     rec.IsMastered(),
			Due:          rec.TimesSeen > 0 && sm2.IsDueForReview(rec, now),
			IntervalDays: rec.IntervalDays,
		})
	}
	return words, nil
}

// Sets summarizes every set
func (s *DrillService) Sets(ctx context.Context) ([]SetSummary, error) {
	items, recs, err := s.scope(ctx, 0)
	if err != nil {
		return nil, err
	}
	bySet := make(map[int64]*SetSummary)
	for _, item := range items {
		sum, ok := bySet[item.SetID]
		if !ok {
			sum = &SetSummary{SetID: item.SetID}
			bySet[item.SetID] = sum
		}
		sum.Words++
		if rec, ok := recs[item.ID]; ok {
			if rec.TimesSeen > 0 {
				sum.Seen++
			}
			if rec.IsMastered() {
				sum.Mastered++
			}
		}
	}

	sets := make([]SetSummary, 0, len(bySet))
	for _, sum := range bySet {
		sets = append(sets, *sum)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].SetID < sets[j].SetID })
	return sets, nil
}

// Stats computes progress statistics for a set, or all words for setID 0.
// "Today" starts at local midnight.
func (s *DrillService) Stats(ctx context.Context, setID int64) (Stats, error) {
	items, recs, err := s.scope(ctx, setID)
	if err != nil {
		return Stats{}, err
	}

	now := timeNow()
	stats := Stats{SetID: setID, TotalWords: len(items)}
	inScope := make(map[int64]bool, len(items))
	for _, item := range items {
		inScope[item.ID] = true
		rec, ok := recs[item.ID]
		if !ok || rec.TimesSeen == 0 {
			stats.NewWords++
			continue
		}
		if sm2.IsDueForReview(rec, now) {
			stats.DueWords++
		}
		if rec.IsMastered() {
			stats.MasteredWords++
		}
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	logs, err := s.Store.LogsSince(ctx, startOfDay)
	if err != nil {
		return Stats{}, fmt.Errorf("error loading review log: %w", err)
	}
	var correct, graded int
	for _, entry := range logs {
		if !inScope[entry.WordID] {
			continue
		}
		stats.ReviewedToday++
		switch entry.Result {
		case models.ResultCorrect:
			correct++
			graded++
		case models.ResultWrong:
			graded++
		}
	}
	if graded > 0 {
		stats.AccuracyToday = float64(correct) / float64(graded)
	}
	return stats, nil
}

// Close stops the background scorer and closes the store
func (s *DrillService) Close() error {
	s.Pool.Shutdown()
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("error closing storage: %w", err)
	}
	return nil
}
