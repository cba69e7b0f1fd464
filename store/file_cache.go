package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"abfeedback/api/models"
)

const (
	behaviorCacheFile = "portal-service-behaviors.json"
	feedbackCacheFile = "portal-service-feedbacks.json"
)

// FileCache is a synchronous local cache of two JSON collections in one
// directory. It survives restarts but not deletion of the directory. Reads of
// missing or corrupt files yield an empty collection.
type FileCache struct {
	mu  sync.Mutex
	dir string
}

func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, ErrNotConfigured
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &FileCache{dir: dir}, nil
}

func (c *FileCache) Name() string { return "local-cache" }

func (c *FileCache) SaveBehavior(_ context.Context, rec *models.BehaviorRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := loadCollection[models.BehaviorRecord](c.dir, behaviorCacheFile)
	stored = append(stored, *rec)
	return c.write(behaviorCacheFile, stored)
}

func (c *FileCache) SaveFeedback(_ context.Context, rec *models.FeedbackRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := loadCollection[models.FeedbackRecord](c.dir, feedbackCacheFile)
	stored = append(stored, *rec)
	return c.write(feedbackCacheFile, stored)
}

func (c *FileCache) ListBehaviors(_ context.Context, f Filter) ([]models.BehaviorRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return f.filterBehaviors(loadCollection[models.BehaviorRecord](c.dir, behaviorCacheFile)), nil
}

func (c *FileCache) ListFeedbacks(_ context.Context, f Filter) ([]models.FeedbackRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return f.filterFeedbacks(loadCollection[models.FeedbackRecord](c.dir, feedbackCacheFile)), nil
}

// Clear removes both collections.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, name := range []string{behaviorCacheFile, feedbackCacheFile} {
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

func loadCollection[T any](dir, name string) []T {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[LocalCache] failed to read %s, using empty collection: %v", name, err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		log.Printf("[LocalCache] corrupt %s, using empty collection: %v", name, err)
		return nil
	}
	return out
}

func (c *FileCache) write(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(c.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(c.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
