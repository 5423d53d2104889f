package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kvaty/gatekeeper-bot/internal/domain"
)

// MediaRepository persists the path to file_id mapping behind the media cache.
type MediaRepository interface {
	All(ctx context.Context) ([]domain.MediaCacheEntry, error)
	Set(ctx context.Context, path, fileID string) error
}

type mediaRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMediaRepository creates a new SQL-backed media handle repository.
func NewMediaRepository(db *sql.DB, log *slog.Logger) MediaRepository {
	return &mediaRepository{
		db:  db,
		log: log,
	}
}

// All returns every cached path to file_id pair.
func (r *mediaRepository) All(ctx context.Context) ([]domain.MediaCacheEntry, error) {
	const query = `SELECT path, file_id FROM media_cache`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to load media cache", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select media cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.MediaCacheEntry
	for rows.Next() {
		var entry domain.MediaCacheEntry
		if err := rows.Scan(&entry.Path, &entry.FileID); err != nil {
			return nil, fmt.Errorf("scan media cache entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media cache: %w", err)
	}

	return entries, nil
}

// Set stores the handle for a path. The first write wins; a handle never changes
// for the same file, so conflicts are ignored.
func (r *mediaRepository) Set(ctx context.Context, path, fileID string) error {
	const query = `
		INSERT INTO media_cache (path, file_id)
		VALUES ($1, $2)
		ON CONFLICT (path) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, path, fileID); err != nil {
		if r.log != nil {
			r.log.Error("failed to store media handle", slog.String("path", path), slog.Any("error", err))
		}
		return fmt.Errorf("insert media cache entry: %w", err)
	}

	return nil
}
