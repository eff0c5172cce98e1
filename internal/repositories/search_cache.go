package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/goose/internal/shared"
)

// SearchCacheRepository maps normalized text queries to the goose id they resolved to,
// so repeated searches skip the network.
//
// Queries are normalized with [shared.NormalizeKey] on both read and write.
type SearchCacheRepository struct {
	db *sql.DB
}

// NewSearchCacheRepository creates a new SearchCacheRepository with the given database connection
func NewSearchCacheRepository(db *sql.DB) *SearchCacheRepository {
	return &SearchCacheRepository{db: db}
}

// Lookup returns the cached goose id for query and counts the hit. A miss wraps
// [shared.ErrTrackNotFound].
func (r *SearchCacheRepository) Lookup(ctx context.Context, query string) (string, error) {
	key := shared.NormalizeKey(query)

	var trackID string
	err := r.db.QueryRowContext(ctx, `SELECT track_id FROM search_cache WHERE query = ?`, key).Scan(&trackID)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("%w: no cached result for %q", shared.ErrTrackNotFound, key)
		}
		return "", fmt.Errorf("failed to read search cache: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE search_cache SET hits = hits + 1, updated_at = ? WHERE query = ?`, time.Now().UTC(), key); err != nil {
		return "", fmt.Errorf("failed to count cache hit: %w", err)
	}
	return trackID, nil
}

// Store caches query → trackID, replacing any earlier mapping.
func (r *SearchCacheRepository) Store(ctx context.Context, query, trackID string) error {
	key := shared.NormalizeKey(query)
	if key == "" || trackID == "" {
		return fmt.Errorf("%w: empty query or track id", shared.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	stmt := `
		INSERT INTO search_cache (query, track_id, hits, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
		ON CONFLICT(query) DO UPDATE SET track_id = excluded.track_id, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, stmt, key, trackID, now, now); err != nil {
		return fmt.Errorf("failed to cache search: %w", err)
	}
	return nil
}

// Forget drops every cached query pointing at trackID and returns how many were removed.
func (r *SearchCacheRepository) Forget(ctx context.Context, trackID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM search_cache WHERE track_id = ?`, trackID)
	if err != nil {
		return 0, fmt.Errorf("failed to forget track: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}
