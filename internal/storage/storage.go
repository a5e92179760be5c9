package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/danieldreier/vocab-drill/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when an item or progress record does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when creating an item whose id is already taken
var ErrDuplicate = errors.New("already exists")

// timeNow is swapped out in tests
var timeNow = time.Now

// Storage is what the scheduling core reads and writes. Bulk reads return
// only the records that exist, in the order the ids were requested.
type Storage interface {
	GetItem(ctx context.Context, id int64) (models.Item, error)
	BulkGetItems(ctx context.Context, ids []int64) ([]models.Item, error)
	ItemsBySet(ctx context.Context, setID int64) ([]models.Item, error)
	AllItems(ctx context.Context) ([]models.Item, error)

	GetProgress(ctx context.Context, wordID int64) (models.ProgressRecord, error)
	BulkGetProgress(ctx context.Context, wordIDs []int64) ([]models.ProgressRecord, error)
	PutProgress(ctx context.Context, rec models.ProgressRecord) error
	BulkPutProgress(ctx context.Context, recs []models.ProgressRecord) error
	// CreateProgress stores each record whose word has none yet and returns
	// the stored record for every input, in input order. Existing records
	// are never overwritten.
	CreateProgress(ctx context.Context, recs []models.ProgressRecord) ([]models.ProgressRecord, error)

	AppendLog(ctx context.Context, entry models.ReviewLogEntry) error
}

// AnswerCommitter is implemented by backends that can persist a progress
// record together with its log entry, so that either both or neither are
// observed.
type AnswerCommitter interface {
	CommitAnswer(ctx context.Context, rec models.ProgressRecord, entry models.ReviewLogEntry) error
}

// Store is a complete backend as used by the command line and MCP server.
type Store interface {
	Storage
	AnswerCommitter

	CreateItem(ctx context.Context, item models.Item) (models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	ListLogs(ctx context.Context, wordID int64) ([]models.ReviewLogEntry, error)
	LogsSince(ctx context.Context, since time.Time) ([]models.ReviewLogEntry, error)

	Load() error
	Save() error
	Close() error
}

// fileData is the document stored in the JSON file
type fileData struct {
	Items       map[int64]models.Item           `json:"items"`
	Progress    map[int64]models.ProgressRecord `json:"progress"`
	Logs        []models.ReviewLogEntry         `json:"logs"`
	NextItemID  int64                           `json:"next_item_id"`
	LastUpdated time.Time                       `json:"last_updated"`
}

func emptyData() fileData {
	return fileData{
		Items:    make(map[int64]models.Item),
		Progress: make(map[int64]models.ProgressRecord),
		Logs:     []models.ReviewLogEntry{},
	}
}

// FileStorage keeps everything in memory and persists it as a single JSON
// document. Writes are visible immediately; Save makes them durable.
type FileStorage struct {
	filePath string
	data     fileData
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewFileStorage creates a new FileStorage instance
func NewFileStorage(filePath string, logger *zap.Logger) *FileStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Creating file storage", zap.String("path", filePath))
	return &FileStorage{
		filePath: filePath,
		data:     emptyData(),
		logger:   logger,
	}
}

// GetItem retrieves a word by id
func (fs *FileStorage) GetItem(ctx context.Context, id int64) (models.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	item, ok := fs.data.Items[id]
	if !ok {
		return models.Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	return item, nil
}

// BulkGetItems returns the items that exist among ids, in request order
func (fs *FileStorage) BulkGetItems(ctx context.Context, ids []int64) ([]models.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := fs.data.Items[id]; ok {
			result = append(result, item)
		}
	}
	return result, nil
}

// ItemsBySet returns the words of one set in ascending id order
func (fs *FileStorage) ItemsBySet(ctx context.Context, setID int64) ([]models.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := []models.Item{}
	for _, item := range fs.data.Items {
		if item.SetID == setID {
			result = append(result, item)
		}
	}
	sortItems(result)
	return result, nil
}

// AllItems returns every word in ascending id order
func (fs *FileStorage) AllItems(ctx context.Context) ([]models.Item, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]models.Item, 0, len(fs.data.Items))
	for _, item := range fs.data.Items {
		result = append(result, item)
	}
	sortItems(result)
	return result, nil
}

func sortItems(items []models.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

// GetProgress retrieves the progress record of a word
func (fs *FileStorage) GetProgress(ctx context.Context, wordID int64) (models.ProgressRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rec, ok := fs.data.Progress[wordID]
	if !ok {
		return models.ProgressRecord{}, fmt.Errorf("progress %d: %w", wordID, ErrNotFound)
	}
	return rec.Clone(), nil
}

// BulkGetProgress returns the records that exist among wordIDs, in request order
func (fs *FileStorage) BulkGetProgress(ctx context.Context, wordIDs []int64) ([]models.ProgressRecord, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]models.ProgressRecord, 0, len(wordIDs))
	for _, id := range wordIDs {
		if rec, ok := fs.data.Progress[id]; ok {
			result = append(result, rec.Clone())
		}
	}
	return result, nil
}

// PutProgress inserts or replaces a progress record
func (fs *FileStorage) PutProgress(ctx context.Context, rec models.ProgressRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.data.Progress[rec.WordID] = rec.Clone()
	fs.data.LastUpdated = timeNow()
	return nil
}

// BulkPutProgress inserts or replaces several records; last write wins
func (fs *FileStorage) BulkPutProgress(ctx context.Context, recs []models.ProgressRecord) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, rec := range recs {
		fs.data.Progress[rec.WordID] = rec.Clone()
	}
	fs.data.LastUpdated = timeNow()
	return nil
}

// CreateProgress inserts the records that are still missing under the write
// lock and returns what is stored for each word
func (fs *FileStorage) CreateProgress(ctx context.Context, recs []models.ProgressRecord) ([]models.ProgressRecord, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	result := make([]models.ProgressRecord, 0, len(recs))
	inserted := 0
	for _, rec := range recs {
		if existing, ok := fs.data.Progress[rec.WordID]; ok {
			result = append(result, existing.Clone())
			continue
		}
		fs.data.Progress[rec.WordID] = rec.Clone()
		result = append(result, rec.Clone())
		inserted++
	}
	if inserted > 0 {
		fs.data.LastUpdated = timeNow()
	}
	return result, nil
}

// AppendLog appends a review log entry, assigning an id when it has none
func (fs *FileStorage) AppendLog(ctx context.Context, entry models.ReviewLogEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.appendLog(entry)
	return nil
}

func (fs *FileStorage) appendLog(entry models.ReviewLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	fs.data.Logs = append(fs.data.Logs, entry)
	fs.data.LastUpdated = timeNow()
}

// CommitAnswer stores the record and its log entry under one lock
func (fs *FileStorage) CommitAnswer(ctx context.Context, rec models.ProgressRecord, entry models.ReviewLogEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.data.Progress[rec.WordID] = rec.Clone()
	fs.appendLog(entry)
	return nil
}

// CreateItem adds a word. A zero id is replaced by the next free one.
func (fs *FileStorage) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if item.ID == 0 {
		fs.data.NextItemID++
		for {
			if _, taken := fs.data.Items[fs.data.NextItemID]; !taken {
				break
			}
			fs.data.NextItemID++
		}
		item.ID = fs.data.NextItemID
	} else if _, exists := fs.data.Items[item.ID]; exists {
		return models.Item{}, fmt.Errorf("item %d: %w", item.ID, ErrDuplicate)
	}
	if item.ID > fs.data.NextItemID {
		fs.data.NextItemID = item.ID
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = timeNow()
	}

	fs.data.Items[item.ID] = item
	fs.data.LastUpdated = timeNow()
	fs.logger.Debug("Created item", zap.Int64("word_id", item.ID), zap.Int64("set_id", item.SetID))
	return item, nil
}

// DeleteItem removes a word together with its progress record. Log
// entries are history and stay.
func (fs *FileStorage) DeleteItem(ctx context.Context, id int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.data.Items[id]; !exists {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	delete(fs.data.Items, id)
	delete(fs.data.Progress, id)
	fs.data.LastUpdated = timeNow()
	return nil
}

// ListLogs returns the log entries of one word in append order
func (fs *FileStorage) ListLogs(ctx context.Context, wordID int64) ([]models.ReviewLogEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var result []models.ReviewLogEntry
	for _, entry := range fs.data.Logs {
		if entry.WordID == wordID {
			result = append(result, entry)
		}
	}
	return result, nil
}

// LogsSince returns all entries stamped at or after since, in append order
func (fs *FileStorage) LogsSince(ctx context.Context, since time.Time) ([]models.ReviewLogEntry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var result []models.ReviewLogEntry
	for _, entry := range fs.data.Logs {
		if !entry.Timestamp.Before(since) {
			result = append(result, entry)
		}
	}
	return result, nil
}

// save writes the document without taking the lock. Callers hold it.
func (fs *FileStorage) save() error {
	fs.data.LastUpdated = timeNow()

	dataBytes, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal storage data: %w", err)
	}

	dir := filepath.Dir(fs.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file and rename it over the target
	tempFile := fs.filePath + ".tmp"
	if err := os.WriteFile(tempFile, dataBytes, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, fs.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	fs.logger.Debug("Saved storage",
		zap.String("path", fs.filePath),
		zap.Int("items", len(fs.data.Items)),
		zap.Int("progress", len(fs.data.Progress)),
		zap.Int("logs", len(fs.data.Logs)))
	return nil
}

// Load reads the JSON file, creating it when it does not exist yet
func (fs *FileStorage) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.filePath); os.IsNotExist(err) {
		fs.logger.Info("Storage file not found, initializing empty store", zap.String("path", fs.filePath))
		fs.data = emptyData()
		if err := fs.save(); err != nil {
			return fmt.Errorf("failed to save initial empty store: %w", err)
		}
		return nil
	}

	raw, err := os.ReadFile(fs.filePath)
	if err != nil {
		return fmt.Errorf("failed to read storage file: %w", err)
	}
	if len(raw) == 0 {
		fs.logger.Warn("Storage file is empty, initializing empty store", zap.String("path", fs.filePath))
		fs.data = emptyData()
		return nil
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal storage data: %w", err)
	}
	if data.Items == nil {
		data.Items = make(map[int64]models.Item)
	}
	if data.Progress == nil {
		data.Progress = make(map[int64]models.ProgressRecord)
	}
	if data.Logs == nil {
		data.Logs = []models.ReviewLogEntry{}
	}
	for id := range data.Items {
		if id > data.NextItemID {
			data.NextItemID = id
		}
	}

	fs.data = data
	fs.logger.Info("Loaded storage",
		zap.String("path", fs.filePath),
		zap.Int("items", len(fs.data.Items)),
		zap.Int("progress", len(fs.data.Progress)))
	return nil
}

// Save writes the data to the file atomically
func (fs *FileStorage) Save() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.save()
}

// Close flushes pending writes
func (fs *FileStorage) Close() error {
	return fs.Save()
}
