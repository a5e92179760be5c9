package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	// registers the pure Go "sqlite" driver
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	set_id INTEGER NOT NULL,
	term TEXT NOT NULL DEFAULT '',
	translation TEXT NOT NULL DEFAULT '',
	difficulty INTEGER,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_set ON items(set_id);

CREATE TABLE IF NOT EXISTS progress (
	word_id INTEGER PRIMARY KEY,
	set_id INTEGER NOT NULL,
	ease_factor REAL NOT NULL DEFAULT 2.5,
	interval_days INTEGER NOT NULL DEFAULT 0,
	repetitions INTEGER NOT NULL DEFAULT 0,
	times_seen INTEGER NOT NULL DEFAULT 0,
	times_correct INTEGER NOT NULL DEFAULT 0,
	correct_streak INTEGER NOT NULL DEFAULT 0,
	wrong_streak INTEGER NOT NULL DEFAULT 0,
	difficulty INTEGER,
	next_review_at TIMESTAMP,
	average_response_time REAL NOT NULL DEFAULT 0,
	response_count INTEGER NOT NULL DEFAULT 0,
	fast_response_count INTEGER NOT NULL DEFAULT 0,
	slow_response_count INTEGER NOT NULL DEFAULT 0,
	last_result TEXT NOT NULL DEFAULT '',
	last_mode TEXT NOT NULL DEFAULT '',
	last_reviewed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS review_log (
	id TEXT PRIMARY KEY,
	word_id INTEGER NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	mode TEXT NOT NULL,
	result TEXT NOT NULL,
	grade INTEGER,
	ease_factor REAL NOT NULL,
	interval_days INTEGER NOT NULL,
	response_time_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_review_log_word ON review_log(word_id);
`

const progressColumns = `(
	word_id, set_id, ease_factor, interval_days, repetitions,
	times_seen, times_correct, correct_streak, wrong_streak,
	difficulty, next_review_at, average_response_time, response_count,
	fast_response_count, slow_response_count,
	last_result, last_mode, last_reviewed_at, created_at, updated_at
) VALUES (
	:word_id, :set_id, :ease_factor, :interval_days, :repetitions,
	:times_seen, :times_correct, :correct_streak, :wrong_streak,
	:difficulty, :next_review_at, :average_response_time, :response_count,
	:fast_response_count, :slow_response_count,
	:last_result, :last_mode, :last_reviewed_at, :created_at, :updated_at
)`

const upsertProgress = `INSERT OR REPLACE INTO progress ` + progressColumns

const insertProgressIfAbsent = `INSERT OR IGNORE INTO progress ` + progressColumns

const insertLog = `
INSERT INTO review_log (
	id, word_id, timestamp, mode, result, grade, ease_factor, interval_days, response_time_ms
) VALUES (
	:id, :word_id, :timestamp, :mode, :result, :grade, :ease_factor, :interval_days, :response_time_ms
)`

// SQLStore is a Store backed by a SQLite database
type SQLStore struct {
	path   string
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLStore creates a store for the database at path. Nothing is opened
// until Load.
func NewSQLStore(path string, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{path: path, logger: logger}
}

// Load opens the database and creates the tables if needed
func (s *SQLStore) Load() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", s.path+"?_pragma=foreign_keys(1)&_time_format=sqlite")
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.db = db
	s.logger.Info("Opened database", zap.String("path", s.path))
	return nil
}

// Save is a no-op; every write is committed immediately
func (s *SQLStore) Save() error {
	return nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLStore) GetItem(ctx context.Context, id int64) (models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item, `SELECT * FROM items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

func (s *SQLStore) BulkGetItems(ctx context.Context, ids []int64) ([]models.Item, error) {
	if len(ids) == 0 {
		return []models.Item{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build item query: %w", err)
	}
	var found []models.Item
	if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}

	byID := make(map[int64]models.Item, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}
	result := make([]models.Item, 0, len(found))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			result = append(result, item)
		}
	}
	return result, nil
}

func (s *SQLStore) ItemsBySet(ctx context.Context, setID int64) ([]models.Item, error) {
	items := []models.Item{}
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM items WHERE set_id = ? ORDER BY id`, setID); err != nil {
		return nil, fmt.Errorf("failed to list items of set %d: %w", setID, err)
	}
	return items, nil
}

func (s *SQLStore) AllItems(ctx context.Context) ([]models.Item, error) {
	items := []models.Item{}
	if err := s.db.SelectContext(ctx, &items, `SELECT * FROM items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (s *SQLStore) GetProgress(ctx context.Context, wordID int64) (models.ProgressRecord, error) {
	var rec models.ProgressRecord
	err := s.db.GetContext(ctx, &rec, `SELECT * FROM progress WHERE word_id = ?`, wordID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProgressRecord{}, fmt.Errorf("progress %d: %w", wordID, ErrNotFound)
	}
	if err != nil {
		return models.ProgressRecord{}, fmt.Errorf("failed to get progress %d: %w", wordID, err)
	}
	return rec, nil
}

func (s *SQLStore) BulkGetProgress(ctx context.Context, wordIDs []int64) ([]models.ProgressRecord, error) {
	if len(wordIDs) == 0 {
		return []models.ProgressRecord{}, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM progress WHERE word_id IN (?)`, wordIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build progress query: %w", err)
	}
	var found []models.ProgressRecord
	if err := s.db.SelectContext(ctx, &found, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	byID := make(map[int64]models.ProgressRecord, len(found))
	for _, rec := range found {
		byID[rec.WordID] = rec
	}
	result := make([]models.ProgressRecord, 0, len(found))
	for _, id := range wordIDs {
		if rec, ok := byID[id]; ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (s *SQLStore) PutProgress(ctx context.Context, rec models.ProgressRecord) error {
	if _, err := s.db.NamedExecContext(ctx, upsertProgress, rec); err != nil {
		return fmt.Errorf("failed to put progress %d: %w", rec.WordID, err)
	}
	return nil
}

func (s *SQLStore) BulkPutProgress(ctx context.Context, recs []models.ProgressRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range recs {
			if _, err := tx.NamedExecContext(ctx, upsertProgress, rec); err != nil {
				return fmt.Errorf("failed to put progress %d: %w", rec.WordID, err)
			}
		}
		return nil
	})
}

// CreateProgress inserts the missing records with INSERT OR IGNORE and
// reads every word back inside the same transaction
func (s *SQLStore) CreateProgress(ctx context.Context, recs []models.ProgressRecord) ([]models.ProgressRecord, error) {
	if len(recs) == 0 {
		return []models.ProgressRecord{}, nil
	}
	result := make([]models.ProgressRecord, 0, len(recs))
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, rec := range recs {
			if _, err := tx.NamedExecContext(ctx, insertProgressIfAbsent, rec); err != nil {
				return fmt.Errorf("failed to create progress %d: %w", rec.WordID, err)
			}
			var stored models.ProgressRecord
			if err := tx.GetContext(ctx, &stored, `SELECT * FROM progress WHERE word_id = ?`, rec.WordID); err != nil {
				return fmt.Errorf("failed to read progress %d: %w", rec.WordID, err)
			}
			result = append(result, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLStore) AppendLog(ctx context.Context, entry models.ReviewLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if _, err := s.db.NamedExecContext(ctx, insertLog, entry); err != nil {
		return fmt.Errorf("failed to append log for word %d: %w", entry.WordID, err)
	}
	return nil
}

// CommitAnswer writes the record and its log entry in one transaction
func (s *SQLStore) CommitAnswer(ctx context.Context, rec models.ProgressRecord, entry models.ReviewLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, upsertProgress, rec); err != nil {
			return fmt.Errorf("failed to put progress %d: %w", rec.WordID, err)
		}
		if _, err := tx.NamedExecContext(ctx, insertLog, entry); err != nil {
			return fmt.Errorf("failed to append log for word %d: %w", entry.WordID, err)
		}
		return nil
	})
}

// CreateItem adds a word. A zero id lets the database pick one.
func (s *SQLStore) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = timeNow()
	}

	if item.ID != 0 {
		var exists int
		if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM items WHERE id = ?`, item.ID); err != nil {
			return models.Item{}, fmt.Errorf("failed to check item %d: %w", item.ID, err)
		}
		if exists > 0 {
			return models.Item{}, fmt.Errorf("item %d: %w", item.ID, ErrDuplicate)
		}
		_, err := s.db.NamedExecContext(ctx,
			`INSERT INTO items (id, set_id, term, translation, difficulty, created_at)
			 VALUES (:id, :set_id, :term, :translation, :difficulty, :created_at)`, item)
		if err != nil {
			return models.Item{}, fmt.Errorf("failed to create item: %w", err)
		}
		return item, nil
	}

	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO items (set_id, term, translation, difficulty, created_at)
		 VALUES (:set_id, :term, :translation, :difficulty, :created_at)`, item)
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to read item id: %w", err)
	}
	item.ID = id
	s.logger.Debug("Created item", zap.Int64("word_id", item.ID), zap.Int64("set_id", item.SetID))
	return item, nil
}

// DeleteItem removes a word and its progress record; log entries stay
func (s *SQLStore) DeleteItem(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete item %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE word_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete progress %d: %w", id, err)
		}
		return nil
	})
}

func (s *SQLStore) ListLogs(ctx context.Context, wordID int64) ([]models.ReviewLogEntry, error) {
	var entries []models.ReviewLogEntry
	if err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM review_log WHERE word_id = ? ORDER BY rowid`, wordID); err != nil {
		return nil, fmt.Errorf("failed to list logs for word %d: %w", wordID, err)
	}
	return entries, nil
}

// LogsSince filters in Go: stored timestamps carry their own offsets and
// do not compare reliably as text.
func (s *SQLStore) LogsSince(ctx context.Context, since time.Time) ([]models.ReviewLogEntry, error) {
	var all []models.ReviewLogEntry
	if err := s.db.SelectContext(ctx, &all, `SELECT * FROM review_log ORDER BY rowid`); err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	var result []models.ReviewLogEntry
	for _, entry := range all {
		if !entry.Timestamp.Before(since) {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var (
	_ Store = (*FileStorage)(nil)
	_ Store = (*SQLStore)(nil)
)
