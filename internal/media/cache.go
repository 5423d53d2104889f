// Package media memoizes platform-assigned file handles for local images so the
// same photo is never uploaded twice.
package media

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/kvaty/gatekeeper-bot/internal/repository"
)

// Cache is an in-memory path to file_id map with write-through persistence.
// Reads are hot-path (every photo send); writes happen once per image.
type Cache struct {
	mu        sync.RWMutex
	handles   map[string]string
	repo      repository.MediaRepository
	log       *slog.Logger
	mediaPath string
}

// NewCache constructs an empty cache over the persistent repository.
func NewCache(repo repository.MediaRepository, log *slog.Logger, mediaPath string) *Cache {
	if log == nil {
		log = slog.Default()
	}

	return &Cache{
		handles:   make(map[string]string),
		repo:      repo,
		log:       log,
		mediaPath: mediaPath,
	}
}

// WarmUp bulk-loads all known path to handle pairs from storage.
func (c *Cache) WarmUp(ctx context.Context) error {
	entries, err := c.repo.All(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, entry := range entries {
		c.handles[entry.Path] = entry.FileID
	}
	c.mu.Unlock()

	c.log.Info("media cache warmed up", slog.Int("entries", len(entries)))
	return nil
}

// Handle returns the cached file handle for an image path, if known.
func (c *Cache) Handle(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	handle, ok := c.handles[path]
	return handle, ok
}

// SetHandle stores a freshly assigned handle and writes it through to storage.
// A persistence failure only costs a re-upload later, so it is logged, not returned.
func (c *Cache) SetHandle(ctx context.Context, path, fileID string) {
	c.mu.Lock()
	c.handles[path] = fileID
	c.mu.Unlock()

	if err := c.repo.Set(ctx, path, fileID); err != nil {
		c.log.Warn("failed to persist media handle", slog.String("path", path), slog.Any("error", err))
	}
}

// DiskPath resolves an image path from the content document to its location
// under the configured media directory.
func (c *Cache) DiskPath(image string) string {
	return filepath.Join(c.mediaPath, image)
}
