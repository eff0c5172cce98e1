package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/goose/internal/shared"
)

// PlayEvent is one playback transition recorded in the ledger.
type PlayEvent struct {
	ID       string
	TrackID  string
	GuildID  string
	Success  bool
	PlayedAt time.Time
}

// PlayEventRepository appends play telemetry to the ledger.
//
// The document store only keeps counters; the ledger keeps the history behind them.
type PlayEventRepository struct {
	db *sql.DB
}

// NewPlayEventRepository creates a new PlayEventRepository with the given database connection
func NewPlayEventRepository(db *sql.DB) *PlayEventRepository {
	return &PlayEventRepository{db: db}
}

// Record appends one event.
func (r *PlayEventRepository) Record(ctx context.Context, trackID, guildID string, success bool) error {
	query := `
		INSERT INTO play_events (id, track_id, guild_id, success, played_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query, shared.GenerateID(), trackID, guildID, success, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

// Counts returns how many plays and failed plays a track has.
func (r *PlayEventRepository) Counts(ctx context.Context, trackID string) (plays, failures int, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM play_events
		WHERE track_id = ?
	`

	if err := r.db.QueryRowContext(ctx, query, trackID).Scan(&plays, &failures); err != nil {
		return 0, 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return plays, failures, nil
}

// Recent returns the latest events, newest first.
func (r *PlayEventRepository) Recent(ctx context.Context, limit int) ([]PlayEvent, error) {
	query := `
		SELECT id, track_id, guild_id, success, played_at
		FROM play_events
		ORDER BY played_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plays: %w", err)
	}
	defer rows.Close()

	var events []PlayEvent
	for rows.Next() {
		var e PlayEvent
		if err := rows.Scan(&e.ID, &e.TrackID, &e.GuildID, &e.Success, &e.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plays: %w", err)
	}
	return events, nil
}
